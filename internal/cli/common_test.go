package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danieljhkim/geoengine/internal/clock"
	"github.com/danieljhkim/geoengine/internal/config"
	"github.com/danieljhkim/geoengine/internal/fsops"
	"github.com/danieljhkim/geoengine/internal/hash"
	"github.com/danieljhkim/geoengine/internal/store/filestore"
)

func TestFormatJSON(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
	}{
		{"simple map", map[string]string{"key": "value"}},
		{"empty map", map[string]string{}},
		{"array", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatJSON(tt.input)
			if err != nil {
				t.Fatalf("formatJSON() error = %v", err)
			}
			var v interface{}
			if err := json.Unmarshal([]byte(got), &v); err != nil {
				t.Errorf("formatJSON() produced invalid JSON: %v", err)
			}
		})
	}
}

func TestFormatError(t *testing.T) {
	got := formatError(os.ErrNotExist)
	if !strings.Contains(got, "Error:") {
		t.Errorf("formatError() = %q, expected to contain 'Error:'", got)
	}
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	out = &buf
	defer func() { out = os.Stdout }()

	if err := outputJSON(map[string]string{"test": "value"}); err != nil {
		t.Fatalf("outputJSON() error = %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal(buf.Bytes(), &v); err != nil {
		t.Errorf("outputJSON() produced invalid JSON: %v", err)
	}
}

func TestPrintFunctions(t *testing.T) {
	var buf bytes.Buffer
	out = &buf
	defer func() { out = os.Stdout }()

	PrintSuccess("Success message")
	PrintWarning("Warning message")
	PrintTable([]string{"Band", "Type"}, [][]string{{"B1", "Int16"}})

	for _, want := range []string{"Success message", "Warning message", "B1", "Int16", "----"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"B1", []string{"B1"}},
		{" B4, B3 ,,B2 ", []string{"B4", "B3", "B2"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, splitList(tt.in)); diff != "" {
			t.Errorf("splitList(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestParseBounds(t *testing.T) {
	g, err := parseBounds("-1, -2, 3, 4")
	if err != nil {
		t.Fatalf("parseBounds failed: %v", err)
	}
	if diff := cmp.Diff([4]float64{-1, -2, 3, 4}, g.Bounds()); diff != "" {
		t.Errorf("bounds mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"1,2,3", "a,b,c,d", "3,0,1,1"} {
		if _, err := parseBounds(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestOpenStore(t *testing.T) {
	fs := fsops.NewRealFS()
	hasher := hash.NewBlake2bHasher()
	clk := clock.NewRealClock()

	st, err := openStore(context.Background(), config.StoreConfig{Driver: config.DriverFile, Path: t.TempDir()}, fs, hasher, clk)
	if err != nil {
		t.Fatalf("openStore failed: %v", err)
	}
	if _, ok := st.(*filestore.Store); !ok {
		t.Errorf("file driver opened %T", st)
	}

	_, err = openStore(context.Background(), config.StoreConfig{Driver: "sqlite"}, fs, hasher, clk)
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	_, err = openStore(context.Background(), config.StoreConfig{Driver: config.DriverMongo}, fs, hasher, clk)
	if err == nil {
		t.Error("expected error for mongo driver without uri")
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	root := t.TempDir()
	t.Setenv("GEOENGINE_ROOT", root)
	t.Setenv(config.EnvDBHost, "")
	cfg := filepath.Join(root, "bad.hcl")
	if err := os.WriteFile(cfg, []byte(`store { driver = "sqlite" }`), 0644); err != nil {
		t.Fatal(err)
	}
	configPath = cfg
	defer func() { configPath = "" }()

	if _, _, err := newEngine(context.Background()); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

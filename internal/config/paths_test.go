package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/danieljhkim/geoengine/internal/fsops"
)

func TestDefaultPaths(t *testing.T) {
	t.Run("returns paths based on home directory", func(t *testing.T) {
		t.Setenv("GEOENGINE_ROOT", "")

		paths, err := DefaultPaths()
		if err != nil {
			t.Fatalf("DefaultPaths failed: %v", err)
		}
		if filepath.Base(paths.Root) != ".geoengine" {
			t.Errorf("Root should end with .geoengine, got: %s", paths.Root)
		}
		if paths.Store != filepath.Join(paths.Root, "store") {
			t.Errorf("Store path incorrect: got %s", paths.Store)
		}
		if paths.Config != filepath.Join(paths.Root, "config.hcl") {
			t.Errorf("Config path incorrect: got %s", paths.Config)
		}
	})

	t.Run("respects GEOENGINE_ROOT environment variable", func(t *testing.T) {
		t.Setenv("GEOENGINE_ROOT", "/custom/geoengine")

		paths, err := DefaultPaths()
		if err != nil {
			t.Fatalf("DefaultPaths failed: %v", err)
		}
		if diff := cmp.Diff(PathsAt("/custom/geoengine"), paths); diff != "" {
			t.Errorf("paths mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestPaths_EnsureDirectories(t *testing.T) {
	paths := PathsAt(filepath.Join(t.TempDir(), "root"))
	if err := paths.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if info, err := os.Stat(paths.Store); err != nil || !info.IsDir() {
		t.Errorf("store directory missing: %v", err)
	}
}

// memFS serves config files from memory.
type memFS struct {
	*fsops.RealFS
	files map[string]string
	err   error
}

func (m *memFS) ReadFile(path string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	body, ok := m.files[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return []byte(body), nil
}

const configFile = "/etc/geoengine/config.hcl"

func configFS(body string) *memFS {
	return &memFS{RealFS: fsops.NewRealFS(), files: map[string]string{configFile: body}}
}

func TestLoad(t *testing.T) {
	paths := PathsAt("/data/geoengine")
	t.Setenv(EnvDBHost, "")
	t.Setenv(EnvDBName, "")

	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := Load(configFS(""), "/etc/geoengine/none.hcl", paths)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if diff := cmp.Diff(Default(paths), cfg); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("file with env interpolation", func(t *testing.T) {
		t.Setenv("GEO_TEST_HOST", "db.internal")
		fs := configFS(`
store {
  driver   = "mongo"
  uri      = "mongodb://${env.GEO_TEST_HOST}:27017"
  database = "scenes"
}

log {
  format = "json"
}
`)
		cfg, err := Load(fs, configFile, paths)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		want := &Config{
			Store: StoreConfig{Driver: DriverMongo, Path: paths.Store, URI: "mongodb://db.internal:27017", Database: "scenes"},
			Log:   LogConfig{Level: "info", Format: "json"},
		}
		if diff := cmp.Diff(want, cfg); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv(EnvDBHost, "localhost:27017")
		t.Setenv(EnvDBName, "ge")
		cfg, err := Load(configFS(""), "/etc/geoengine/none.hcl", paths)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Store.Driver != DriverMongo || cfg.Store.URI != "mongodb://localhost:27017" || cfg.Store.Database != "ge" {
			t.Errorf("store = %+v", cfg.Store)
		}
	})

	errorCases := []struct {
		name string
		body string
	}{
		{"unknown block", `cache { size = 1 }`},
		{"unknown attribute", `store { color = "red" }`},
		{"syntax error", `store {`},
		{"unknown driver", `store { driver = "sqlite" }`},
		{"mongo without uri", `store { driver = "mongo" }`},
		{"bad level", `log { level = "loud" }`},
		{"bad format", `log { format = "xml" }`},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(configFS(tt.body), configFile, paths); err == nil {
				t.Errorf("expected error for %s", tt.body)
			}
		})
	}

	t.Run("read errors are reported", func(t *testing.T) {
		fs := &memFS{RealFS: fsops.NewRealFS(), err: os.ErrPermission}
		if _, err := Load(fs, configFile, paths); !errors.Is(err, os.ErrPermission) {
			t.Errorf("expected ErrPermission, got %v", err)
		}
	})

	t.Run("validation errors are typed", func(t *testing.T) {
		_, err := Load(configFS(`store { driver = "sqlite" }`), configFile, paths)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if logger.GetLevel() != logrus.WarnLevel {
		t.Errorf("level = %v", logger.GetLevel())
	}

	logger.Info("hidden")
	logger.WithField("band", "B1").Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"band":"B1"`) {
		t.Errorf("unexpected output: %s", out)
	}

	if _, err := (LogConfig{Level: "nope"}).NewLogger(&buf); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

package fsops

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRealFS_ValidateRelPath(t *testing.T) {
	fs := &RealFS{}

	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{name: "collection path", path: "landsat/2021", wantError: false},
		{name: "single segment", path: "ndvi", wantError: false},
		{name: "dotted segment", path: "a/b..c", wantError: false},
		{name: "empty path", path: "", wantError: true},
		{name: "current directory", path: ".", wantError: true},
		{name: "absolute path", path: "/etc/hosts", wantError: true},
		{name: "parent directory", path: "..", wantError: true},
		{name: "parent directory traversal", path: "../etc/hosts", wantError: true},
		{name: "traversal in middle", path: "foo/../../../etc/hosts", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fs.ValidateRelPath(tt.path)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateRelPath(%q) error = %v, wantError %v", tt.path, err, tt.wantError)
			}
		})
	}
}

func TestRealFS_ValidateIdentifier(t *testing.T) {
	fs := &RealFS{}

	tests := []struct {
		name      string
		id        string
		wantError bool
	}{
		{name: "feature collection code", id: "municipios-2020", wantError: false},
		{name: "image file name", id: "scene_01.tif", wantError: false},
		{name: "empty identifier", id: "", wantError: true},
		{name: "current directory", id: ".", wantError: true},
		{name: "parent directory", id: "..", wantError: true},
		{name: "path with separator", id: "a/b", wantError: true},
		{name: "path with backslash", id: "a\\b", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fs.ValidateIdentifier(tt.id)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantError %v", tt.id, err, tt.wantError)
			}
		})
	}
}

func TestRealFS_AtomicWrite(t *testing.T) {
	fs := &RealFS{}
	tmpDir := t.TempDir()

	t.Run("write creates parents", func(t *testing.T) {
		path := filepath.Join(tmpDir, "a", "b", "record.json")
		if err := fs.AtomicWrite(path, []byte(`{"x":1}`), 0644); err != nil {
			t.Fatalf("AtomicWrite failed: %v", err)
		}
		got, err := fs.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if string(got) != `{"x":1}` {
			t.Errorf("content = %q", got)
		}
	})

	t.Run("overwrite existing file", func(t *testing.T) {
		path := filepath.Join(tmpDir, "overwrite.json")
		if err := os.WriteFile(path, []byte("initial"), 0644); err != nil {
			t.Fatalf("failed to create initial file: %v", err)
		}
		if err := fs.AtomicWrite(path, []byte("overwritten"), 0644); err != nil {
			t.Fatalf("AtomicWrite failed: %v", err)
		}
		got, _ := os.ReadFile(path)
		if string(got) != "overwritten" {
			t.Errorf("File content not updated: got %q", got)
		}
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestRealFS_AtomicWriteFrom(t *testing.T) {
	fs := &RealFS{}
	tmpDir := t.TempDir()

	t.Run("streams content", func(t *testing.T) {
		path := filepath.Join(tmpDir, "payload.tif")
		n, err := fs.AtomicWriteFrom(path, strings.NewReader("raster bytes"), 0644)
		if err != nil {
			t.Fatalf("AtomicWriteFrom failed: %v", err)
		}
		if n != int64(len("raster bytes")) {
			t.Errorf("n = %d", n)
		}
		r, err := fs.Open(path)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer r.Close()
		got, _ := io.ReadAll(r)
		if string(got) != "raster bytes" {
			t.Errorf("content = %q", got)
		}
	})

	t.Run("failed stream leaves no file behind", func(t *testing.T) {
		dir := filepath.Join(tmpDir, "failing")
		path := filepath.Join(dir, "payload.tif")
		if _, err := fs.AtomicWriteFrom(path, failingReader{}, 0644); err == nil {
			t.Fatal("expected error, got nil")
		}
		names, err := fs.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		if len(names) != 0 {
			t.Errorf("leftover files: %v", names)
		}
	})
}

func TestRealFS_ReadDir(t *testing.T) {
	fs := &RealFS{}
	tmpDir := t.TempDir()

	for _, name := range []string{"c.json", "a.json", "b.json"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), nil, 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
	}

	names, err := fs.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a.json", "b.json", "c.json"}, names); diff != "" {
		t.Errorf("ReadDir mismatch (-want +got):\n%s", diff)
	}

	missing, err := fs.ReadDir(filepath.Join(tmpDir, "missing"))
	if err != nil || len(missing) != 0 {
		t.Errorf("ReadDir(missing) = %v, %v; want empty, nil", missing, err)
	}
}

func TestRealFS_TempDir(t *testing.T) {
	fs := &RealFS{}

	dir, cleanup, err := fs.TempDir("geoengine-test-*")
	if err != nil {
		t.Fatalf("TempDir failed: %v", err)
	}
	if exists, _ := fs.Exists(dir); !exists {
		t.Fatal("TempDir did not create the directory")
	}
	if err := os.WriteFile(filepath.Join(dir, "scratch.tif"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write scratch file: %v", err)
	}

	cleanup()
	cleanup()

	if exists, _ := fs.Exists(dir); exists {
		t.Error("cleanup did not remove the directory")
	}
}

func TestRealFS_Remove(t *testing.T) {
	fs := &RealFS{}
	tmpDir := t.TempDir()

	path := filepath.Join(tmpDir, "remove-me.json")
	if err := os.WriteFile(path, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	if err := fs.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if exists, _ := fs.Exists(path); exists {
		t.Error("File should have been removed")
	}
	if err := fs.RemoveAll(filepath.Join(tmpDir, "never-existed")); err != nil {
		t.Errorf("RemoveAll on missing path: %v", err)
	}
}

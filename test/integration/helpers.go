package integration

import (
	"bytes"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/danieljhkim/geoengine/internal/clock"
	"github.com/danieljhkim/geoengine/internal/engine"
	"github.com/danieljhkim/geoengine/internal/fsops"
	"github.com/danieljhkim/geoengine/internal/geo"
	"github.com/danieljhkim/geoengine/internal/hash"
	"github.com/danieljhkim/geoengine/internal/store/filestore"
)

// testFS is a filesystem implementation that keeps files in memory, so a
// whole load/export cycle runs without touching disk.
type testFS struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
	temps int
	real  *fsops.RealFS
}

var _ fsops.FS = (*testFS)(nil)

func newTestFS() *testFS {
	return &testFS{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
		real:  fsops.NewRealFS(),
	}
}

func notExist(op, path string) error {
	return &iofs.PathError{Op: op, Path: path, Err: os.ErrNotExist}
}

func (fs *testFS) MkdirAll(path string, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for p := filepath.Clean(path); p != "/" && p != "."; p = filepath.Dir(p) {
		fs.dirs[p] = true
	}
	return nil
}

func (fs *testFS) Remove(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.files[path]; !ok {
		return notExist("remove", path)
	}
	delete(fs.files, path)
	return nil
}

func (fs *testFS) RemoveAll(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	prefix := filepath.Clean(path) + "/"
	for p := range fs.files {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(fs.files, p)
		}
	}
	for p := range fs.dirs {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(fs.dirs, p)
		}
	}
	return nil
}

func (fs *testFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[filepath.Clean(path)] = append([]byte(nil), data...)
	return nil
}

func (fs *testFS) AtomicWriteFrom(path string, r io.Reader, perm os.FileMode) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), fs.AtomicWrite(path, data, perm)
}

func (fs *testFS) Open(path string) (io.ReadCloser, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (fs *testFS) ReadFile(path string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	data, ok := fs.files[filepath.Clean(path)]
	if !ok {
		return nil, notExist("open", path)
	}
	return append([]byte(nil), data...), nil
}

func (fs *testFS) ReadDir(dir string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	prefix := filepath.Clean(dir) + "/"
	seen := make(map[string]bool)
	add := func(p string) {
		if rest, ok := strings.CutPrefix(p, prefix); ok {
			seen[strings.SplitN(rest, "/", 2)[0]] = true
		}
	}
	for p := range fs.files {
		add(p)
	}
	for p := range fs.dirs {
		add(p)
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (fs *testFS) Exists(path string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p := filepath.Clean(path)
	_, isFile := fs.files[p]
	return isFile || fs.dirs[p], nil
}

func (fs *testFS) TempDir(pattern string) (string, func(), error) {
	fs.mu.Lock()
	fs.temps++
	dir := filepath.Join("/tmp", strings.Replace(pattern, "*", fmt.Sprint(fs.temps), 1))
	fs.mu.Unlock()
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return "", func() {}, err
	}
	return dir, func() { _ = fs.RemoveAll(dir) }, nil
}

func (fs *testFS) ValidateRelPath(relPath string) error { return fs.real.ValidateRelPath(relPath) }
func (fs *testFS) ValidateIdentifier(id string) error   { return fs.real.ValidateIdentifier(id) }

// paths returns every file path under prefix.
func (fs *testFS) paths(prefix string) []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []string
	for p := range fs.files {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// setupTestEngine wires an engine to a file store and kernel that both live
// on an in-memory filesystem.
func setupTestEngine(t *testing.T) (*engine.Engine, *testFS, *filestore.Store, *test.Hook) {
	t.Helper()
	fs := newTestFS()
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	st := filestore.New(fs, hash.NewBlake2bHasher(), clk, "/geoengine/store")
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	eng := engine.New(st, geo.NewKernel(fs), fs, hash.NewBlake2bHasher(), logger)
	return eng, fs, st, hook
}

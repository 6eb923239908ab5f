// Package engine provides the load and export pipeline of geoengine.
//
// The engine is the orchestration layer between CLI commands and the
// lower-level packages. It resolves source addresses, reads rasters and
// vector layers through the geometry delegate, and persists images and
// feature collections either to local files or to the record store.
//
// Key components:
//   - Engine: holds the injected store, delegate, filesystem and logger
//   - Load*: turn a source address into an Image, ImageCollection or
//     FeatureCollection
//   - Export*: materialize a value and write it to a file or the store,
//     idempotently per target key
package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/danieljhkim/geoengine/internal/address"
	"github.com/danieljhkim/geoengine/internal/fsops"
	"github.com/danieljhkim/geoengine/internal/geo"
	"github.com/danieljhkim/geoengine/internal/hash"
	"github.com/danieljhkim/geoengine/internal/store"
)

// Engine orchestrates all geoengine load and export operations.
// It is the main API surface called by the CLI.
type Engine struct {
	store    store.Store
	delegate geo.Delegate
	fs       fsops.FS
	hasher   hash.Hasher
	log      logrus.FieldLogger
}

// New creates a new Engine with the given dependencies. st may be nil, in
// which case every db:// address fails with ErrNoStore.
func New(
	st store.Store,
	delegate geo.Delegate,
	fs fsops.FS,
	hasher hash.Hasher,
	log logrus.FieldLogger,
) *Engine {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Engine{
		store:    st,
		delegate: delegate,
		fs:       fs,
		hasher:   hasher,
		log:      log,
	}
}

// Delegate returns the geometry/raster delegate, for callers that build
// Reproject, Clip or FilterBounds calls on loaded values.
func (e *Engine) Delegate() geo.Delegate { return e.delegate }

// resolve parses source and checks that a store is available for db://
// addresses.
func (e *Engine) resolve(source string) (address.Address, error) {
	addr, err := address.Parse(source)
	if err != nil {
		return address.Address{}, err
	}
	if addr.IsStore() && e.store == nil {
		return address.Address{}, fmt.Errorf("%w: %s", ErrNoStore, addr)
	}
	return addr, nil
}

// fileExists maps a missing local file to ErrSourceNotFound.
func (e *Engine) fileExists(addr address.Address) error {
	exists, err := e.fs.Exists(addr.Path)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", addr.Path, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, addr.Path)
	}
	return nil
}

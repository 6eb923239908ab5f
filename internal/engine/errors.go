package engine

import "errors"

var (
	// ErrSourceNotFound indicates a load source has no collection, record
	// or file behind it.
	ErrSourceNotFound = errors.New("source not found")

	// ErrNoStore indicates a db:// address was used without a configured
	// store.
	ErrNoStore = errors.New("no store configured")

	// ErrEmptyImage indicates an export of an image without bands.
	ErrEmptyImage = errors.New("image has no bands")

	// ErrGridMismatch indicates an image whose bands do not share one grid
	// and cannot be written as a single raster.
	ErrGridMismatch = errors.New("bands do not share a grid")
)

// Package raster implements the image model: Bands holding deferred sample
// grids plus georeference metadata, Images as ordered band sequences, and
// ImageCollections with temporal reduction.
//
// Arithmetic never computes anything. Each operation returns a new Band
// whose grid is a memoized thunk over its operands; the thunk runs when the
// band is materialized (Band.Materialize, Image.GetInfo or an export). The
// declared sample type is applied at that point only. Metadata-only
// operations (Select, Rename, Set, type changes) share the operand thunk, so
// no grid is copied until samples actually change.
package raster

import (
	"errors"
	"fmt"

	"github.com/danieljhkim/geoengine/internal/geo"
)

var (
	// ErrArityMismatch is returned when two images cannot be paired band
	// by band.
	ErrArityMismatch = errors.New("band count mismatch")

	// ErrBandNotFound is returned for unknown band names or indexes.
	ErrBandNotFound = errors.New("band not found")

	// ErrGridMismatch is returned at evaluation when paired grids differ
	// in size and neither is a constant.
	ErrGridMismatch = errors.New("grid size mismatch")

	// ErrInvalidBand is returned by NewBand for inconsistent options.
	ErrInvalidBand = errors.New("invalid band")

	// ErrEmptyImage is returned by operations that need at least one band.
	ErrEmptyImage = errors.New("image has no bands")

	// ErrEmptyCollection is returned when reducing an empty collection.
	ErrEmptyCollection = errors.New("image collection is empty")

	// ErrInvalidOptions is returned for contradictory operation options.
	ErrInvalidOptions = errors.New("invalid options")
)

// SampleType is the declared numeric type of a band.
type SampleType = geo.DataType

const (
	Byte    = geo.Byte
	UInt16  = geo.UInt16
	Int16   = geo.Int16
	UInt32  = geo.UInt32
	Int32   = geo.Int32
	Float32 = geo.Float32
	Float64 = geo.Float64
)

// Grid is an immutable cols x rows sample buffer in row-major order. The
// working type of every computation is float64.
type Grid struct {
	cols int
	rows int
	data []float64
}

// NewGrid copies data into a new Grid.
func NewGrid(cols, rows int, data []float64) (*Grid, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("%w: grid size %dx%d", ErrInvalidBand, cols, rows)
	}
	if len(data) != cols*rows {
		return nil, fmt.Errorf("%w: %d samples for a %dx%d grid", ErrInvalidBand, len(data), cols, rows)
	}
	return &Grid{cols: cols, rows: rows, data: append([]float64(nil), data...)}, nil
}

// Cols returns the grid width.
func (g *Grid) Cols() int { return g.cols }

// Rows returns the grid height.
func (g *Grid) Rows() int { return g.rows }

// At returns the sample at (col, row).
func (g *Grid) At(col, row int) float64 { return g.data[row*g.cols+col] }

// Values returns a copy of the samples.
func (g *Grid) Values() []float64 { return append([]float64(nil), g.data...) }

// sameSize reports whether g and o can be combined elementwise.
func (g *Grid) sameSize(o *Grid) bool { return g.cols == o.cols && g.rows == o.rows }

// scalar reports whether g is a 1x1 grid that broadcasts spatially.
func (g *Grid) scalar() bool { return g.cols == 1 && g.rows == 1 }

// expand returns g's samples as a slice of n values, repeating a scalar.
func (g *Grid) expand(n int) []float64 {
	if len(g.data) == n {
		return g.data
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = g.data[0]
	}
	return out
}

// Projection is the coordinate system and affine transform of a band.
type Projection struct {
	CRS       string        `json:"crs"`
	Transform geo.Transform `json:"transform"`
}

// NominalScale returns the pixel width in CRS units.
func (p Projection) NominalScale() float64 {
	if p.Transform[1] < 0 {
		return -p.Transform[1]
	}
	return p.Transform[1]
}

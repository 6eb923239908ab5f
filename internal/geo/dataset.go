package geo

import (
	"fmt"
	"math"
)

// Transform is a GDAL-style affine georeference:
// x = t[0] + col*t[1] + row*t[2], y = t[3] + col*t[4] + row*t[5].
type Transform [6]float64

// Identity maps pixel space onto itself with north-up rows.
var Identity = Transform{0, 1, 0, 0, 0, 1}

// Apply maps a pixel-space position to model coordinates.
func (t Transform) Apply(col, row float64) (float64, float64) {
	return t[0] + col*t[1] + row*t[2], t[3] + col*t[4] + row*t[5]
}

// Invert returns the transform mapping model coordinates back to pixel
// space.
func (t Transform) Invert() (Transform, error) {
	det := t[1]*t[5] - t[2]*t[4]
	if det == 0 {
		return Transform{}, fmt.Errorf("transform %v is not invertible", t)
	}
	a := t[5] / det
	b := -t[2] / det
	d := -t[4] / det
	e := t[1] / det
	return Transform{
		-(a*t[0] + b*t[3]), a, b,
		-(d*t[0] + e*t[3]), d, e,
	}, nil
}

// Window returns t shifted so its origin sits at pixel (col, row).
func (t Transform) Window(col, row int) Transform {
	x, y := t.Apply(float64(col), float64(row))
	return Transform{x, t[1], t[2], y, t[4], t[5]}
}

// Dataset is an in-memory raster exchanged with the delegate. Every band
// holds Cols*Rows samples in row-major order.
type Dataset struct {
	Cols      int
	Rows      int
	CRS       string
	Transform Transform
	Type      DataType
	Bands     [][]float64
}

// Validate checks the dataset shape.
func (ds *Dataset) Validate() error {
	if ds.Cols <= 0 || ds.Rows <= 0 {
		return fmt.Errorf("%w: invalid size %dx%d", ErrInvalidDataset, ds.Cols, ds.Rows)
	}
	if len(ds.Bands) == 0 {
		return fmt.Errorf("%w: no bands", ErrInvalidDataset)
	}
	if !ds.Type.Valid() {
		return fmt.Errorf("%w: invalid data type %v", ErrInvalidDataset, ds.Type)
	}
	for i, b := range ds.Bands {
		if len(b) != ds.Cols*ds.Rows {
			return fmt.Errorf("%w: band %d has %d samples, want %d", ErrInvalidDataset, i+1, len(b), ds.Cols*ds.Rows)
		}
	}
	return nil
}

// Corners returns the model-space bounding box of the dataset as
// (minX, minY, maxX, maxY).
func (ds *Dataset) Corners() (float64, float64, float64, float64) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range [][2]float64{{0, 0}, {float64(ds.Cols), 0}, {0, float64(ds.Rows)}, {float64(ds.Cols), float64(ds.Rows)}} {
		x, y := ds.Transform.Apply(c[0], c[1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return minX, minY, maxX, maxY
}

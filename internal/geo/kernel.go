// Package geo is the geometry and raster boundary of the engine.
//
// The core packages only see the Delegate interface; Kernel is the
// in-process implementation backed by paulmach/orb for geometry values,
// simplefeatures for predicates and overlays, the geotiff codec for rasters
// and go-shp for shapefiles. Reprojection covers
// EPSG:4326 and EPSG:3857; other pairs fail with ErrUnsupportedCRS.
package geo

import (
	"errors"

	"github.com/danieljhkim/geoengine/internal/fsops"
)

var (
	// ErrUnsupportedCRS is returned when no transformation between two
	// reference systems is available.
	ErrUnsupportedCRS = errors.New("unsupported CRS transformation")

	// ErrInvalidGeometry is returned for malformed geometry input.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrInvalidDataset is returned for rasters with an inconsistent shape.
	ErrInvalidDataset = errors.New("invalid dataset")

	// ErrNoOverlap is returned when a clip geometry misses the raster.
	ErrNoOverlap = errors.New("geometry does not overlap raster")

	// ErrUnsupportedFormat is returned for file extensions the kernel
	// cannot read or write.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Delegate is the capability set the image and feature models need from
// a geometry/raster library.
type Delegate interface {
	// OpenRaster reads a raster file.
	OpenRaster(path string) (*Dataset, error)

	// DecodeRaster decodes an encoded raster container.
	DecodeRaster(data []byte) (*Dataset, error)

	// EncodeRaster encodes ds as a raster container.
	EncodeRaster(ds *Dataset) ([]byte, error)

	// WriteRaster writes ds to path.
	WriteRaster(path string, ds *Dataset) error

	// Reproject resamples ds into crs. At most one of transform and scale
	// may be set; with neither the output keeps the source pixel count.
	Reproject(ds *Dataset, crs string, transform *Transform, scale float64) (*Dataset, error)

	// Clip masks pixels outside g and crops ds to the bounds of g.
	Clip(ds *Dataset, g Geometry) (*Dataset, error)

	// Intersects reports whether a and b share at least one point.
	Intersects(a, b Geometry) (bool, error)

	// Contains reports whether b lies inside a.
	Contains(a, b Geometry) (bool, error)

	// Intersection, Union and Difference overlay a and b. The result is in
	// the CRS of a.
	Intersection(a, b Geometry) (Geometry, error)
	Union(a, b Geometry) (Geometry, error)
	Difference(a, b Geometry) (Geometry, error)

	// Buffer grows g by distance (shrinks it when negative), working in crs
	// or in the CRS of g when crs is empty.
	Buffer(g Geometry, distance float64, crs string) (Geometry, error)

	// TransformGeometry converts g into crs.
	TransformGeometry(g Geometry, crs string) (Geometry, error)

	// OpenVector reads a vector file (Shapefile or GeoJSON).
	OpenVector(path string) (*Layer, error)

	// WriteVector writes layer to path, choosing the format by extension.
	WriteVector(path string, layer *Layer) error
}

// Kernel implements Delegate in process.
type Kernel struct {
	fs fsops.FS
}

var _ Delegate = (*Kernel)(nil)

// NewKernel creates a Kernel doing its file IO through fs.
func NewKernel(fs fsops.FS) *Kernel {
	return &Kernel{fs: fs}
}

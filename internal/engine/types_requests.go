package engine

import (
	"github.com/danieljhkim/geoengine/internal/raster"
	"github.com/danieljhkim/geoengine/internal/vector"
)

// ExportImageRequest represents a request to persist an image.
type ExportImageRequest struct {
	// Image is the value to materialize and write
	Image raster.Image

	// Target is a file path (.tif) or a db://collection/name address
	Target string
}

// ExportTableRequest represents a request to persist a feature collection.
type ExportTableRequest struct {
	// Collection is the value to materialize and write
	Collection vector.FeatureCollection

	// Target is a file path (.shp, .geojson, .json) or a db://code address
	Target string
}

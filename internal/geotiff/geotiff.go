// Package geotiff reads and writes the subset of GeoTIFF the engine uses to
// persist rasters: uncompressed strips, one or more bands of the same
// sample type, an affine georeference and an opaque CRS string.
//
// Files are written little-endian with one strip per band
// (PlanarConfiguration=2). The decoder also accepts big-endian files and
// pixel-interleaved strips as produced by other tools.
package geotiff

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is returned for input that is not a classic TIFF file.
	ErrFormat = errors.New("geotiff: malformed file")

	// ErrUnsupported is returned for valid TIFF features the codec does
	// not implement (compression, tiles, mixed sample types...).
	ErrUnsupported = errors.New("geotiff: unsupported feature")
)

// SampleFormat is the TIFF SampleFormat tag value.
type SampleFormat uint16

const (
	FormatUint  SampleFormat = 1
	FormatInt   SampleFormat = 2
	FormatFloat SampleFormat = 3
)

// Raster is a decoded image: every band holds Width*Height samples in
// row-major order.
type Raster struct {
	Width         int
	Height        int
	BitsPerSample int
	Format        SampleFormat

	// Bands holds the samples of each band widened to float64.
	Bands [][]float64

	// GeoTransform maps pixel (col,row) to model space:
	// x = g[0] + col*g[1] + row*g[2], y = g[3] + col*g[4] + row*g[5].
	GeoTransform [6]float64

	// CRS is the coordinate reference identifier stored with the file.
	CRS string

	// EPSG is the EPSG code from the GeoKey directory, or 0.
	EPSG int
}

// validate checks that r can be encoded.
func (r *Raster) validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("geotiff: invalid size %dx%d", r.Width, r.Height)
	}
	if len(r.Bands) == 0 {
		return fmt.Errorf("geotiff: raster has no bands")
	}
	if _, err := bytesPerSample(r.BitsPerSample, r.Format); err != nil {
		return err
	}
	for i, b := range r.Bands {
		if len(b) != r.Width*r.Height {
			return fmt.Errorf("geotiff: band %d has %d samples, want %d", i+1, len(b), r.Width*r.Height)
		}
	}
	return nil
}

func bytesPerSample(bits int, format SampleFormat) (int, error) {
	switch format {
	case FormatUint, FormatInt:
		switch bits {
		case 8, 16, 32:
			return bits / 8, nil
		}
	case FormatFloat:
		switch bits {
		case 32, 64:
			return bits / 8, nil
		}
	}
	return 0, fmt.Errorf("%w: %d-bit sample format %d", ErrUnsupported, bits, format)
}

// TIFF tags.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfiguration = 284
	tagTileWidth           = 322
	tagSampleFormat        = 339
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGeoAsciiParams      = 34737
)

// TIFF field types.
const (
	typeByte   = 1
	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeSShort = 8
	typeSLong  = 9
	typeFloat  = 11
	typeDouble = 12
)

func typeSize(t uint16) int {
	switch t {
	case typeByte, typeASCII, 6, 7:
		return 1
	case typeShort, typeSShort:
		return 2
	case typeLong, typeSLong, typeFloat:
		return 4
	case 5, 10, typeDouble:
		return 8
	default:
		return 0
	}
}

// GeoKeys.
const (
	keyModelType          = 1024
	keyRasterType         = 1025
	keyCitation           = 1026
	keyGeographicType     = 2048
	keyProjectedCSType    = 3072
	modelTypeProjected    = 1
	modelTypeGeographic   = 2
	rasterPixelIsArea     = 1
	userDefined           = 32767
	geoKeyDirectoryHeader = 4
)

// geographicEPSG reports whether an EPSG code names a geographic 2D CRS.
// The EPSG registry keeps those in the 4000-4999 block.
func geographicEPSG(code int) bool {
	return code >= 4000 && code < 5000
}

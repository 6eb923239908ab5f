package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/danieljhkim/geoengine/internal/geotiff"
)

// DataType is a raster sample type.
type DataType int

const (
	Byte DataType = iota + 1
	UInt16
	Int16
	UInt32
	Int32
	Float32
	Float64
)

var dataTypeNames = map[DataType]string{
	Byte:    "Byte",
	UInt16:  "UInt16",
	Int16:   "Int16",
	UInt32:  "UInt32",
	Int32:   "Int32",
	Float32: "Float32",
	Float64: "Float64",
}

func (t DataType) String() string {
	if s, ok := dataTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// ParseDataType accepts a type name in any case ("int16", "Float32").
func ParseDataType(s string) (DataType, error) {
	for t, name := range dataTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", s)
}

// Valid reports whether t is one of the declared types.
func (t DataType) Valid() bool {
	_, ok := dataTypeNames[t]
	return ok
}

// IsInteger reports whether t stores integers.
func (t DataType) IsInteger() bool {
	return t != Float32 && t != Float64
}

// Cast converts v to the value t would store: integers are truncated toward
// zero and saturated at the type range, NaN becomes 0, Float32 rounds to
// single precision.
func (t DataType) Cast(v float64) float64 {
	switch t {
	case Float64:
		return v
	case Float32:
		return float64(float32(v))
	}
	if math.IsNaN(v) {
		return 0
	}
	lo, hi := t.bounds()
	v = math.Trunc(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (t DataType) bounds() (float64, float64) {
	switch t {
	case Byte:
		return 0, math.MaxUint8
	case UInt16:
		return 0, math.MaxUint16
	case Int16:
		return math.MinInt16, math.MaxInt16
	case UInt32:
		return 0, math.MaxUint32
	case Int32:
		return math.MinInt32, math.MaxInt32
	default:
		return math.Inf(-1), math.Inf(1)
	}
}

func (t DataType) tiff() (int, geotiff.SampleFormat) {
	switch t {
	case Byte:
		return 8, geotiff.FormatUint
	case UInt16:
		return 16, geotiff.FormatUint
	case Int16:
		return 16, geotiff.FormatInt
	case UInt32:
		return 32, geotiff.FormatUint
	case Int32:
		return 32, geotiff.FormatInt
	case Float32:
		return 32, geotiff.FormatFloat
	default:
		return 64, geotiff.FormatFloat
	}
}

func dataTypeFromTIFF(bits int, format geotiff.SampleFormat) DataType {
	switch {
	case format == geotiff.FormatFloat && bits == 32:
		return Float32
	case format == geotiff.FormatFloat:
		return Float64
	case format == geotiff.FormatInt && bits <= 16:
		return Int16
	case format == geotiff.FormatInt:
		return Int32
	case bits == 8:
		return Byte
	case bits == 16:
		return UInt16
	default:
		return UInt32
	}
}

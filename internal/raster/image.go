package raster

import (
	"fmt"

	"github.com/danieljhkim/geoengine/internal/collection"
	"github.com/danieljhkim/geoengine/internal/element"
	"github.com/danieljhkim/geoengine/internal/geo"
)

// Image is an ordered sequence of bands plus a property bag. Band order is
// significant: binary operations pair bands by index, not by name.
type Image struct {
	elem  element.Element
	bands collection.List[Band]
}

// NewImage builds an image from bands.
func NewImage(bands ...Band) Image {
	return Image{
		elem:  element.New(element.Operation{Func: "Image.new"}),
		bands: collection.New(bands...),
	}
}

// Number is any Go numeric type Constant accepts.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Constant builds a single-band image whose 1x1 grid broadcasts over any
// grid it is combined with. Integer values are declared Int16 and floats
// Float32.
func Constant[N Number](v N) Image {
	typ := Int16
	half := 0.5
	if N(half) != 0 {
		typ = Float32
	}
	b := Band{
		name:     "constant",
		typ:      typ,
		cols:     1,
		rows:     1,
		constant: true,
		src:      ready(element.Operation{Func: "Image.constant", Args: []any{float64(v)}}, &Grid{cols: 1, rows: 1, data: []float64{float64(v)}}),
	}
	img := NewImage(b)
	img.elem = element.New(element.Operation{Func: "Image.constant", Args: []any{float64(v)}}).WithID("constant")
	return img
}

// Element returns the image's element (id, properties, operation).
func (img Image) Element() element.Element { return img.elem }

// ID returns the image identifier, usually its source.
func (img Image) ID() string { return img.elem.ID() }

// WithID returns a copy of img with id set.
func (img Image) WithID(id string) Image {
	img.elem = img.elem.WithID(id)
	return img
}

// Properties returns the property bag.
func (img Image) Properties() element.Properties { return img.elem.Properties() }

// Get returns a property value.
func (img Image) Get(key string) (any, bool) { return img.elem.Get(key) }

// Set accepts one property map or key/value pairs.
func (img Image) Set(args ...any) (Image, error) {
	elem, err := img.elem.Set(args...)
	if err != nil {
		return Image{}, err
	}
	img.elem = elem
	return img, nil
}

// Metadata sets a single property.
func (img Image) Metadata(property string, value any) (Image, error) {
	return img.Set(property, value)
}

// CopyProperties replaces img's properties with those of source.
func (img Image) CopyProperties(source Image) Image {
	img.elem = img.elem.CopyProperties(source.elem)
	return img
}

// BandCount returns the number of bands.
func (img Image) BandCount() int { return img.bands.Len() }

// Bands returns the bands in order.
func (img Image) Bands() []Band { return img.bands.All() }

// Band returns the band at index.
func (img Image) Band(index int) (Band, error) {
	b, err := img.bands.Get(index)
	if err != nil {
		return Band{}, fmt.Errorf("%w: %v", ErrBandNotFound, err)
	}
	return b, nil
}

// BandNames returns the band names in order.
func (img Image) BandNames() []string {
	return collection.Fold(img.bands, make([]string, 0, img.bands.Len()), func(names []string, b Band) []string {
		return append(names, b.name)
	})
}

// Projection returns the projection of the first band.
func (img Image) Projection() (Projection, error) {
	b, err := img.bands.Get(0)
	if err != nil {
		return Projection{}, ErrEmptyImage
	}
	return b.Projection(), nil
}

// Select picks bands by exact name in the given order. When names is not
// empty the selected bands are renamed to it.
func (img Image) Select(selectors []string, names ...string) (Image, error) {
	if len(names) > 0 && len(names) != len(selectors) {
		return Image{}, fmt.Errorf("%w: %d names for %d selectors", ErrArityMismatch, len(names), len(selectors))
	}
	all := img.bands.All()
	out := make([]Band, 0, len(selectors))
	for i, sel := range selectors {
		found := -1
		for j, b := range all {
			if b.name == sel {
				found = j
				break
			}
		}
		if found < 0 {
			return Image{}, fmt.Errorf("%w: band %s not found in image", ErrBandNotFound, sel)
		}
		b := all[found]
		if len(names) > 0 {
			b = b.withName(names[i])
		}
		out = append(out, b)
	}
	return img.with("Image.select", collection.New(out...)), nil
}

// Rename replaces band names by position. Naming more bands than the image
// has is an error.
func (img Image) Rename(names ...string) (Image, error) {
	bands := img.bands
	for i, name := range names {
		b, err := bands.Get(i)
		if err != nil {
			return Image{}, fmt.Errorf("%w: cannot rename band %d to %q, image has %d bands", ErrBandNotFound, i, name, bands.Len())
		}
		if bands, err = bands.Insert(i, b.withName(name)); err != nil {
			return Image{}, err
		}
	}
	return img.with("Image.rename", bands), nil
}

// AddBands appends the bands of other. Properties stay those of img.
func (img Image) AddBands(other Image) Image {
	bands := collection.Fold(other.bands, img.bands, func(l collection.List[Band], b Band) collection.List[Band] {
		return l.Add(b)
	})
	return img.with("Image.addBands", bands)
}

// Cast declares every band as t. Samples are converted when the image is
// materialized.
func (img Image) Cast(t SampleType) (Image, error) {
	if !t.Valid() {
		return Image{}, fmt.Errorf("%w: invalid sample type %v", ErrInvalidOptions, t)
	}
	bands, _ := collection.Map(img.bands, func(b Band) (Band, error) { return b.withType(t), nil })
	return img.with("Image.cast", bands), nil
}

// ToInt16 declares every band as Int16.
func (img Image) ToInt16() Image {
	out, _ := img.Cast(Int16)
	return out
}

// ToFloat32 declares every band as Float32.
func (img Image) ToFloat32() Image {
	out, _ := img.Cast(Float32)
	return out
}

// Int is ToInt16.
func (img Image) Int() Image { return img.ToInt16() }

// Float is ToFloat32.
func (img Image) Float() Image { return img.ToFloat32() }

// GetInfo materializes every band.
func (img Image) GetInfo() (Image, error) {
	bands, err := collection.Map(img.bands, Band.concrete)
	if err != nil {
		return Image{}, err
	}
	img.bands = bands
	return img, nil
}

// Resampler is the part of the geometry delegate Reproject and Clip need.
type Resampler interface {
	Reproject(ds *geo.Dataset, crs string, transform *geo.Transform, scale float64) (*geo.Dataset, error)
	Clip(ds *geo.Dataset, g geo.Geometry) (*geo.Dataset, error)
}

// ReprojectOptions controls Image.Reproject. Transform and Scale are
// mutually exclusive; an empty CRS keeps the image's own.
type ReprojectOptions struct {
	CRS       string
	Transform *geo.Transform
	Scale     float64
}

// Reproject resamples every non-constant band through r.
func (img Image) Reproject(r Resampler, opts ReprojectOptions) (Image, error) {
	if opts.Transform != nil && opts.Scale != 0 {
		return Image{}, fmt.Errorf("%w: transform and scale cannot both be set", ErrInvalidOptions)
	}
	if opts.CRS == "" {
		p, err := img.Projection()
		if err != nil {
			return Image{}, err
		}
		opts.CRS = p.CRS
	}
	op := element.Operation{Func: "Band.reproject", Args: []any{opts.CRS}}
	return img.perBand("Image.reproject", func(ds *geo.Dataset) (*geo.Dataset, error) {
		return r.Reproject(ds, opts.CRS, opts.Transform, opts.Scale)
	}, op)
}

// Clip masks every non-constant band to g and crops it to g's bounds.
func (img Image) Clip(r Resampler, g geo.Geometry) (Image, error) {
	op := element.Operation{Func: "Band.clip", Args: []any{g.Type()}}
	return img.perBand("Image.clip", func(ds *geo.Dataset) (*geo.Dataset, error) {
		return r.Clip(ds, g)
	}, op)
}

func (img Image) perBand(fn string, f func(*geo.Dataset) (*geo.Dataset, error), op element.Operation) (Image, error) {
	bands, err := collection.Map(img.bands, func(b Band) (Band, error) {
		if b.constant {
			return b, nil
		}
		ds, err := b.dataset()
		if err != nil {
			return Band{}, err
		}
		out, err := f(ds)
		if err != nil {
			return Band{}, fmt.Errorf("band %q: %w", b.name, err)
		}
		return b.fromDataset(op, out)
	})
	if err != nil {
		return Image{}, err
	}
	return img.with(fn, bands), nil
}

// with returns img with new bands, keeping id and properties.
func (img Image) with(fn string, bands collection.List[Band]) Image {
	img.elem = img.elem.WithOperation(element.Operation{Func: fn, Args: []any{img.elem.Operation().Func}})
	img.bands = bands
	return img
}

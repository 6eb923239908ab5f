package raster

import (
	"fmt"
	"math"
	"strings"

	"github.com/danieljhkim/geoengine/internal/collection"
	"github.com/danieljhkim/geoengine/internal/element"
)

// ImageCollection is an ordered collection of images, typically a time
// series over the same footprint.
type ImageCollection struct {
	collection.Collection[Image]
}

// NewImageCollection builds a collection from images.
func NewImageCollection(images ...Image) ImageCollection {
	op := element.Operation{Func: "ImageCollection.fromImages", Args: []any{len(images)}}
	return ImageCollection{collection.NewCollection(op, images...)}
}

// ImageCollectionFromList wraps a List of images.
func ImageCollectionFromList(op element.Operation, images collection.List[Image]) ImageCollection {
	return ImageCollection{collection.FromList(op, images)}
}

// Map applies fn to every image in order.
func (c ImageCollection) Map(fn func(Image) (Image, error)) (ImageCollection, error) {
	out, err := c.Collection.Map(fn)
	if err != nil {
		return ImageCollection{}, err
	}
	return ImageCollection{out}, nil
}

// Set updates the collection's own properties.
func (c ImageCollection) Set(args ...any) (ImageCollection, error) {
	out, err := c.Collection.Set(args...)
	if err != nil {
		return ImageCollection{}, err
	}
	return ImageCollection{out}, nil
}

// Reduce folds r across the images band by band.
func (c ImageCollection) Reduce(r Reducer) (Image, error) {
	return ReduceImages(c.List(), r)
}

// ReduceImages reduces a list of images. The first image is the template:
// for each of its bands the reducer folds the band at the same index of
// every image, left to right. The result keeps the template's band names,
// georeference and properties.
func ReduceImages(images collection.List[Image], r Reducer) (Image, error) {
	template, err := images.Get(0)
	if err != nil {
		return Image{}, ErrEmptyCollection
	}
	all := images.All()
	bands := template.bands.All()
	out := make([]Band, len(bands))
	for i, tb := range bands {
		column := make([]Band, len(all))
		for j, img := range all {
			b, err := img.bands.Get(i)
			if err != nil {
				return Image{}, fmt.Errorf("%w: image %d has %d bands, template has %d", ErrArityMismatch, j, img.BandCount(), len(bands))
			}
			column[j] = b
		}
		out[i] = reduceBand(r, tb, column)
	}
	return template.derive("ImageCollection.reduce", out, r.name), nil
}

func reduceBand(r Reducer, template Band, column []Band) Band {
	result := template
	result.typ = column[0].typ
	for _, b := range column[1:] {
		result.typ = promote(result.typ, b.typ)
	}
	if r.float {
		result.typ = promoteFloat(result.typ, result.typ)
	}
	result.src = deferred(element.Operation{Func: "Band.reduce", Args: []any{r.name, template.name}}, func() (*Grid, error) {
		first, err := column[0].src.force()
		if err != nil {
			return nil, err
		}
		acc := first.Values()
		for _, b := range column[1:] {
			g, err := b.src.force()
			if err != nil {
				return nil, err
			}
			if !g.sameSize(first) {
				return nil, fmt.Errorf("%w: band %q is %dx%d, template is %dx%d", ErrGridMismatch, b.name, g.cols, g.rows, first.cols, first.rows)
			}
			for k, v := range g.data {
				acc[k] = r.fold(acc[k], v)
			}
		}
		if r.final != nil {
			for k := range acc {
				acc[k] = r.final(acc[k], len(column))
			}
		}
		return &Grid{cols: first.cols, rows: first.rows, data: acc}, nil
	})
	return result
}

// Reducer combines samples across images.
type Reducer struct {
	name  string
	fold  func(acc, x float64) float64
	final func(acc float64, n int) float64
	float bool
}

// NewReducer builds a reducer from a pairwise fold.
func NewReducer(name string, fold func(acc, x float64) float64) Reducer {
	return Reducer{name: name, fold: fold}
}

// Name returns the reducer name.
func (r Reducer) Name() string { return r.name }

// Sum adds samples.
func Sum() Reducer { return NewReducer("sum", func(a, x float64) float64 { return a + x }) }

// Min keeps the smallest sample.
func Min() Reducer { return NewReducer("min", math.Min) }

// Max keeps the largest sample.
func Max() Reducer { return NewReducer("max", math.Max) }

// Mean averages samples. The result is declared as a float type.
func Mean() Reducer {
	r := Sum()
	r.name = "mean"
	r.final = func(acc float64, n int) float64 { return acc / float64(n) }
	r.float = true
	return r
}

// ParseReducer returns the built-in reducer with the given name.
func ParseReducer(name string) (Reducer, error) {
	switch strings.ToLower(name) {
	case "sum":
		return Sum(), nil
	case "min":
		return Min(), nil
	case "max":
		return Max(), nil
	case "mean":
		return Mean(), nil
	}
	return Reducer{}, fmt.Errorf("%w: unknown reducer %q", ErrInvalidOptions, name)
}

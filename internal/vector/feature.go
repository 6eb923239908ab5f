// Package vector implements features (geometry plus properties) and
// feature collections with their column schema.
package vector

import (
	"errors"

	"github.com/danieljhkim/geoengine/internal/element"
	"github.com/danieljhkim/geoengine/internal/geo"
)

// ErrEmptyCollection is returned when a feature collection has no features
// and the operation needs one.
var ErrEmptyCollection = errors.New("feature collection is empty")

// TypeFeature is the type tag of every feature.
const TypeFeature = "Feature"

// Feature is a geometry plus an ordered property bag.
type Feature struct {
	elem     element.Element
	geometry geo.Geometry
}

// NewFeature builds a feature. props may be nil.
func NewFeature(g geo.Geometry, props map[string]any) Feature {
	elem := element.New(element.Operation{Func: "Feature", Args: []any{g.Type()}})
	return Feature{elem: elem.WithProperties(element.NewProperties(props)), geometry: g}
}

// Type returns "Feature".
func (f Feature) Type() string { return TypeFeature }

// Geometry returns the feature geometry.
func (f Feature) Geometry() geo.Geometry { return f.geometry }

// WithGeometry returns a copy of f with g.
func (f Feature) WithGeometry(g geo.Geometry) Feature {
	f.geometry = g
	return f
}

// Element returns the feature's element.
func (f Feature) Element() element.Element { return f.elem }

// ID returns the feature id.
func (f Feature) ID() string { return f.elem.ID() }

// WithID returns a copy of f with id.
func (f Feature) WithID(id string) Feature {
	f.elem = f.elem.WithID(id)
	return f
}

// Properties returns the property bag.
func (f Feature) Properties() element.Properties { return f.elem.Properties() }

// Get returns a property value.
func (f Feature) Get(key string) (any, bool) { return f.elem.Get(key) }

// Set accepts one property map or key/value pairs.
func (f Feature) Set(args ...any) (Feature, error) {
	elem, err := f.elem.Set(args...)
	if err != nil {
		return Feature{}, err
	}
	f.elem = elem
	return f, nil
}

// CopyProperties replaces f's properties with those of source.
func (f Feature) CopyProperties(source Feature) Feature {
	f.elem = f.elem.CopyProperties(source.elem)
	return f
}

// Buffer returns f with its geometry buffered by distance through b. With
// a non-empty crs the buffer is computed there and distance is in its units.
func (f Feature) Buffer(b Bufferer, distance float64, crs string) (Feature, error) {
	g, err := b.Buffer(f.geometry, distance, crs)
	if err != nil {
		return Feature{}, err
	}
	f.geometry = g
	return f, nil
}

// Bufferer is the part of the geometry delegate Feature.Buffer needs.
type Bufferer interface {
	Buffer(g geo.Geometry, distance float64, crs string) (geo.Geometry, error)
}

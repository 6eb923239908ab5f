package vector

import (
	"encoding/json"
	"fmt"

	"github.com/danieljhkim/geoengine/internal/collection"
	"github.com/danieljhkim/geoengine/internal/element"
	"github.com/danieljhkim/geoengine/internal/geo"
)

// TypeFeatureCollection is the default collection type tag.
const TypeFeatureCollection = "FeatureCollection"

// Column describes one attribute of a feature collection.
type Column = geo.Field

// FeatureCollectionOptions lists everything NewFeatureCollection accepts.
type FeatureCollectionOptions struct {
	ID         string
	Type       string
	Columns    []Column
	Features   []Feature
	Properties map[string]any
}

// FeatureCollection is an ordered collection of features plus the column
// schema they share.
type FeatureCollection struct {
	collection.Collection[Feature]
	typ     string
	columns []Column
}

// NewFeatureCollection builds a collection from opts.
func NewFeatureCollection(opts FeatureCollectionOptions) FeatureCollection {
	typ := opts.Type
	if typ == "" {
		typ = TypeFeatureCollection
	}
	c := collection.NewCollection(element.Operation{Func: "FeatureCollection", Args: []any{opts.ID}}, opts.Features...)
	elem := c.Element().WithID(opts.ID).WithProperties(element.NewProperties(opts.Properties))
	return FeatureCollection{
		Collection: c.WithElement(elem),
		typ:        typ,
		columns:    append([]Column(nil), opts.Columns...),
	}
}

// FromLayer converts a delegate vector layer.
func FromLayer(id string, layer *geo.Layer) FeatureCollection {
	features := make([]Feature, len(layer.Rows))
	for i, row := range layer.Rows {
		features[i] = NewFeature(row.Geometry, row.Properties)
	}
	return NewFeatureCollection(FeatureCollectionOptions{
		ID:       id,
		Columns:  layer.Fields,
		Features: features,
	})
}

// Type returns the collection type tag.
func (fc FeatureCollection) Type() string { return fc.typ }

// ID returns the collection id, usually its source.
func (fc FeatureCollection) ID() string { return fc.Element().ID() }

// Columns returns the column schema.
func (fc FeatureCollection) Columns() []Column { return append([]Column(nil), fc.columns...) }

// Features returns the features in order.
func (fc FeatureCollection) Features() []Feature { return fc.List().All() }

// First returns the first feature, or ErrEmptyCollection.
func (fc FeatureCollection) First() (Feature, error) {
	f, err := fc.Collection.First()
	if err != nil {
		return Feature{}, fmt.Errorf("%w: %w", ErrEmptyCollection, err)
	}
	return f, nil
}

// Map applies fn to every feature in order.
func (fc FeatureCollection) Map(fn func(Feature) (Feature, error)) (FeatureCollection, error) {
	out, err := fc.Collection.Map(fn)
	if err != nil {
		return FeatureCollection{}, err
	}
	fc.Collection = out
	return fc, nil
}

// Set updates the collection's own properties.
func (fc FeatureCollection) Set(args ...any) (FeatureCollection, error) {
	out, err := fc.Collection.Set(args...)
	if err != nil {
		return FeatureCollection{}, err
	}
	fc.Collection = out
	return fc, nil
}

// Intersecter is the part of the geometry delegate FilterBounds needs.
type Intersecter interface {
	Intersects(a, b geo.Geometry) (bool, error)
}

// FilterBounds keeps the features whose geometry intersects g, in their
// original order.
func (fc FeatureCollection) FilterBounds(ix Intersecter, g geo.Geometry) (FeatureCollection, error) {
	kept := make([]Feature, 0, fc.Size())
	for i, f := range fc.Features() {
		ok, err := ix.Intersects(f.geometry, g)
		if err != nil {
			return FeatureCollection{}, fmt.Errorf("feature %d: %w", i, err)
		}
		if ok {
			kept = append(kept, f)
		}
	}
	op := element.Operation{Func: "FeatureCollection.filterBounds", Args: []any{g.Type()}}
	fc.Collection = collection.FromList(op, collection.New(kept...)).WithElement(fc.Element().WithOperation(op))
	return fc, nil
}

// Layer converts fc into the delegate's vector form.
func (fc FeatureCollection) Layer() *geo.Layer {
	layer := &geo.Layer{Fields: fc.Columns()}
	for _, f := range fc.Features() {
		if layer.CRS == "" {
			layer.CRS = f.geometry.CRS()
		}
		layer.Rows = append(layer.Rows, geo.Row{Geometry: f.geometry, Properties: f.Properties().ToMap()})
	}
	if layer.CRS == "" {
		layer.CRS = geo.WGS84
	}
	return layer
}

// FeatureInfo is the materialized form of a feature.
type FeatureInfo struct {
	Type       string             `json:"type"`
	ID         string             `json:"id,omitempty"`
	Geometry   json.RawMessage    `json:"geometry"`
	Properties element.Properties `json:"properties"`
}

// Info is the materialized form of a feature collection.
type Info struct {
	Type       string             `json:"type"`
	ID         string             `json:"id,omitempty"`
	Columns    []Column           `json:"columns"`
	Properties element.Properties `json:"properties"`
	Features   []FeatureInfo      `json:"features"`
}

// GetInfo materializes every feature geometry as GeoJSON.
func (fc FeatureCollection) GetInfo() (*Info, error) {
	info := &Info{
		Type:       fc.typ,
		ID:         fc.ID(),
		Columns:    fc.Columns(),
		Properties: fc.Element().Properties(),
		Features:   make([]FeatureInfo, 0, fc.Size()),
	}
	for i, f := range fc.Features() {
		geom, err := f.geometry.GeoJSON()
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		info.Features = append(info.Features, FeatureInfo{
			Type:       TypeFeature,
			ID:         f.ID(),
			Geometry:   geom,
			Properties: f.Properties(),
		})
	}
	return info, nil
}

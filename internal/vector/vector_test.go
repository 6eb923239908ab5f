package vector

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danieljhkim/geoengine/internal/collection"
	"github.com/danieljhkim/geoengine/internal/element"
	"github.com/danieljhkim/geoengine/internal/fsops"
	"github.com/danieljhkim/geoengine/internal/geo"
)

func testCollection(t *testing.T) FeatureCollection {
	t.Helper()
	var features []Feature
	for i, x := range []float64{0, 5, 1, 20} {
		f := NewFeature(geo.Rectangle(x, 0, x+1, 1), map[string]any{"n": i})
		features = append(features, f)
	}
	return NewFeatureCollection(FeatureCollectionOptions{
		ID:         "areas",
		Columns:    []Column{{Name: "n", Type: geo.FieldInteger, Width: 10}},
		Features:   features,
		Properties: map[string]any{"source": "test"},
	})
}

func names(t *testing.T, fc FeatureCollection) []any {
	t.Helper()
	var out []any
	for _, f := range fc.Features() {
		v, _ := f.Get("n")
		out = append(out, v)
	}
	return out
}

func TestFeature(t *testing.T) {
	f := NewFeature(geo.Point(1, 2), map[string]any{"b": 2, "a": 1})

	if f.Type() != "Feature" || f.Geometry().Type() != "Point" {
		t.Errorf("got %s with %s", f.Type(), f.Geometry().Type())
	}

	g, err := f.Set("c", 3)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := f.Get("c"); ok {
		t.Error("Set modified the receiver")
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, g.Properties().Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if _, err := f.Set("odd"); !errors.Is(err, element.ErrInvalidPropertyArgument) {
		t.Errorf("expected ErrInvalidPropertyArgument, got %v", err)
	}

	copied := NewFeature(geo.Point(0, 0), map[string]any{"z": true}).CopyProperties(g)
	if diff := cmp.Diff(g.Properties().ToMap(), copied.Properties().ToMap()); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}

	t.Run("buffer", func(t *testing.T) {
		k := geo.NewKernel(fsops.NewRealFS())
		out, err := f.Buffer(k, 1, "")
		if err != nil {
			t.Fatalf("Buffer failed: %v", err)
		}
		if out.Geometry().Type() != "Polygon" || f.Geometry().Type() != "Point" {
			t.Errorf("types = %s, %s", out.Geometry().Type(), f.Geometry().Type())
		}
	})
}

func TestFeatureCollection_FilterBounds(t *testing.T) {
	k := geo.NewKernel(fsops.NewRealFS())
	fc := testCollection(t)

	out, err := fc.FilterBounds(k, geo.Rectangle(0.5, 0.5, 5.5, 0.75))
	if err != nil {
		t.Fatalf("FilterBounds failed: %v", err)
	}
	if diff := cmp.Diff([]any{0, 1, 2}, names(t, out)); diff != "" {
		t.Errorf("kept features mismatch (-want +got):\n%s", diff)
	}
	if fc.Size() != 4 {
		t.Errorf("receiver modified: size %d", fc.Size())
	}
	if v, _ := out.Get("source"); v != "test" || out.ID() != "areas" || len(out.Columns()) != 1 {
		t.Errorf("collection metadata lost: %v %q %v", v, out.ID(), out.Columns())
	}

	t.Run("nothing intersects", func(t *testing.T) {
		out, err := fc.FilterBounds(k, geo.Point(100, 100))
		if err != nil {
			t.Fatalf("FilterBounds failed: %v", err)
		}
		if out.Size() != 0 {
			t.Errorf("size = %d, want 0", out.Size())
		}
	})

	t.Run("delegate errors propagate", func(t *testing.T) {
		g := geo.Point(0, 0).WithCRS("EPSG:31983")
		if _, err := fc.FilterBounds(k, g); !errors.Is(err, geo.ErrUnsupportedCRS) {
			t.Errorf("expected ErrUnsupportedCRS, got %v", err)
		}
	})
}

func TestFeatureCollection_Accessors(t *testing.T) {
	fc := testCollection(t)

	first, err := fc.First()
	if err != nil {
		t.Fatalf("First failed: %v", err)
	}
	if v, _ := first.Get("n"); v != 0 {
		t.Errorf("first n = %v", v)
	}
	if got := fc.ToList(10, 2).Len(); got != 2 {
		t.Errorf("ToList(10, 2) length = %d, want 2", got)
	}
	if got := fc.Limit(3).Len(); got != 3 {
		t.Errorf("Limit(3) length = %d, want 3", got)
	}
	_, err = NewFeatureCollection(FeatureCollectionOptions{}).First()
	if !errors.Is(err, ErrEmptyCollection) || !errors.Is(err, collection.ErrEmpty) {
		t.Errorf("expected ErrEmptyCollection wrapping collection.ErrEmpty, got %v", err)
	}

	mapped, err := fc.Map(func(f Feature) (Feature, error) {
		v, _ := f.Get("n")
		return f.Set("double", v.(int)*2)
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	last, _ := mapped.Last()
	if v, _ := last.Get("double"); v != 6 {
		t.Errorf("double = %v, want 6", v)
	}

	tagged, err := fc.Set("year", 2024)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := fc.Get("year"); ok {
		t.Error("Set modified the receiver")
	}
	if v, _ := tagged.Get("year"); v != 2024 || tagged.Size() != 4 {
		t.Errorf("year = %v, size = %d", v, tagged.Size())
	}
}

func TestFeatureCollection_GetInfo(t *testing.T) {
	fc := testCollection(t)
	info, err := fc.GetInfo()
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if info.Type != TypeFeatureCollection || len(info.Features) != 4 {
		t.Fatalf("info = %s with %d features", info.Type, len(info.Features))
	}

	var geom struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(info.Features[1].Geometry, &geom); err != nil {
		t.Fatalf("geometry is not GeoJSON: %v", err)
	}
	if geom.Type != "Polygon" || geom.Coordinates[0][0] != [2]float64{5, 0} {
		t.Errorf("geometry = %+v", geom)
	}

	data, err := json.Marshal(info.Features[0])
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back["type"] != "Feature" {
		t.Errorf("type = %v", back["type"])
	}
}

func TestFromLayer(t *testing.T) {
	k := geo.NewKernel(fsops.NewRealFS())
	g := geo.Rectangle(0, 0, 100, 100).WithCRS(geo.WebMercator)
	layer := &geo.Layer{
		CRS:    geo.WebMercator,
		Fields: []geo.Field{{Name: "name", Type: geo.FieldString, Width: 8}},
		Rows:   []geo.Row{{Geometry: g, Properties: map[string]any{"name": "a"}}},
	}

	fc := FromLayer("file.geojson", layer)
	if fc.ID() != "file.geojson" || fc.Size() != 1 {
		t.Fatalf("got %q with %d features", fc.ID(), fc.Size())
	}

	back := fc.Layer()
	if back.CRS != geo.WebMercator {
		t.Errorf("CRS = %q", back.CRS)
	}
	if diff := cmp.Diff(layer.Fields, back.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	ok, err := k.Intersects(fc.Features()[0].Geometry(), geo.Point(0.0005, 0.0005))
	if err != nil || !ok {
		t.Errorf("Intersects = %v, %v; want true across CRSs", ok, err)
	}
}

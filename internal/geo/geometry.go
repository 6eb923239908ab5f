package geo

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Geometry is an immutable vector geometry tagged with its CRS.
type Geometry struct {
	g   orb.Geometry
	crs string
}

// FromOrb wraps an orb geometry. An empty crs means WGS84.
func FromOrb(g orb.Geometry, crs string) Geometry {
	if crs == "" {
		crs = WGS84
	}
	return Geometry{g: g, crs: crs}
}

// Point builds a point in WGS84.
func Point(x, y float64) Geometry {
	return FromOrb(orb.Point{x, y}, WGS84)
}

// LineString builds a line through coords.
func LineString(coords ...[2]float64) (Geometry, error) {
	if len(coords) < 2 {
		return Geometry{}, fmt.Errorf("%w: line string needs at least 2 points, got %d", ErrInvalidGeometry, len(coords))
	}
	return FromOrb(orb.LineString(points(coords)), WGS84), nil
}

// LinearRing builds a closed ring, appending the first point when coords
// is not already closed.
func LinearRing(coords ...[2]float64) (Geometry, error) {
	r, err := ring(coords)
	if err != nil {
		return Geometry{}, err
	}
	return FromOrb(r, WGS84), nil
}

// Polygon builds a polygon from an outer ring followed by holes. Rings are
// closed automatically.
func Polygon(rings ...[][2]float64) (Geometry, error) {
	p, err := polygon(rings)
	if err != nil {
		return Geometry{}, err
	}
	return FromOrb(p, WGS84), nil
}

// MultiPoint builds a multi point.
func MultiPoint(coords ...[2]float64) Geometry {
	return FromOrb(orb.MultiPoint(points(coords)), WGS84)
}

// MultiLineString builds a multi line string.
func MultiLineString(lines ...[][2]float64) (Geometry, error) {
	mls := make(orb.MultiLineString, 0, len(lines))
	for _, l := range lines {
		if len(l) < 2 {
			return Geometry{}, fmt.Errorf("%w: line string needs at least 2 points, got %d", ErrInvalidGeometry, len(l))
		}
		mls = append(mls, orb.LineString(points(l)))
	}
	return FromOrb(mls, WGS84), nil
}

// MultiPolygon builds a multi polygon; each entry is a list of rings.
func MultiPolygon(polys ...[][][2]float64) (Geometry, error) {
	mp := make(orb.MultiPolygon, 0, len(polys))
	for _, rings := range polys {
		p, err := polygon(rings)
		if err != nil {
			return Geometry{}, err
		}
		mp = append(mp, p)
	}
	return FromOrb(mp, WGS84), nil
}

// Rectangle builds the axis-aligned polygon spanning the given corners.
func Rectangle(xmin, ymin, xmax, ymax float64) Geometry {
	b := orb.Bound{Min: orb.Point{xmin, ymin}, Max: orb.Point{xmax, ymax}}
	return FromOrb(b.ToPolygon(), WGS84)
}

// FromGeoJSON decodes a GeoJSON geometry object.
func FromGeoJSON(data []byte, crs string) (Geometry, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return Geometry{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return FromOrb(g.Geometry(), crs), nil
}

func points(coords [][2]float64) []orb.Point {
	out := make([]orb.Point, len(coords))
	for i, c := range coords {
		out[i] = orb.Point(c)
	}
	return out
}

func ring(coords [][2]float64) (orb.Ring, error) {
	if len(coords) < 3 {
		return nil, fmt.Errorf("%w: ring needs at least 3 points, got %d", ErrInvalidGeometry, len(coords))
	}
	r := orb.Ring(points(coords))
	if !r.Closed() {
		r = append(r, r[0])
	}
	return r, nil
}

func polygon(rings [][][2]float64) (orb.Polygon, error) {
	if len(rings) == 0 {
		return nil, fmt.Errorf("%w: polygon needs an outer ring", ErrInvalidGeometry)
	}
	p := make(orb.Polygon, 0, len(rings))
	for _, coords := range rings {
		r, err := ring(coords)
		if err != nil {
			return nil, err
		}
		p = append(p, r)
	}
	return p, nil
}

// Orb returns a copy of the underlying orb geometry.
func (g Geometry) Orb() orb.Geometry {
	if g.g == nil {
		return nil
	}
	return orb.Clone(g.g)
}

// IsEmpty reports whether g holds no geometry.
func (g Geometry) IsEmpty() bool { return g.g == nil }

// Type returns the GeoJSON type name.
func (g Geometry) Type() string {
	if g.g == nil {
		return ""
	}
	return g.g.GeoJSONType()
}

// CRS returns the coordinate reference identifier.
func (g Geometry) CRS() string { return g.crs }

// WithCRS relabels g without touching coordinates.
func (g Geometry) WithCRS(crs string) Geometry {
	g.crs = crs
	return g
}

// Bounds returns the bounding box as (minX, minY, maxX, maxY).
func (g Geometry) Bounds() [4]float64 {
	if g.g == nil {
		return [4]float64{}
	}
	b := g.g.Bound()
	return [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

// Area returns the planar area in CRS units.
func (g Geometry) Area() float64 {
	if g.g == nil {
		return 0
	}
	return planar.Area(g.g)
}

// Length returns the planar length (perimeter for polygons).
func (g Geometry) Length() float64 {
	if g.g == nil {
		return 0
	}
	return planar.Length(g.g)
}

// Centroid returns the planar centroid as a point.
func (g Geometry) Centroid() Geometry {
	if g.g == nil {
		return g
	}
	c, _ := planar.CentroidArea(g.g)
	return Geometry{g: c, crs: g.crs}
}

// ConvexHull returns the smallest convex geometry holding g.
func (g Geometry) ConvexHull() (Geometry, error) {
	sf, err := toSF(g.g)
	if err != nil {
		return Geometry{}, err
	}
	h, err := fromSF(sf.ConvexHull())
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{g: h, crs: g.crs}, nil
}

// Coordinates returns the GeoJSON coordinate array of g.
func (g Geometry) Coordinates() (any, error) {
	data, err := g.GeoJSON()
	if err != nil {
		return nil, err
	}
	var obj struct {
		Coordinates any `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return obj.Coordinates, nil
}

// GeoJSON encodes g as a GeoJSON geometry object.
func (g Geometry) GeoJSON() ([]byte, error) {
	if g.g == nil {
		return []byte("null"), nil
	}
	return json.Marshal(geojson.NewGeometry(g.g))
}

func (g Geometry) String() string {
	data, err := g.GeoJSON()
	if err != nil {
		return fmt.Sprintf("%s(%s)", g.Type(), g.crs)
	}
	return string(data)
}

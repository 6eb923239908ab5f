package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/peterstace/simplefeatures/geom"
)

// toSF converts an orb geometry into a simplefeatures geometry through WKB.
func toSF(g orb.Geometry) (geom.Geometry, error) {
	if g == nil {
		return geom.Geometry{}, nil
	}
	data, err := wkb.Marshal(normalize(g))
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	sf, err := geom.UnmarshalWKB(data)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return sf, nil
}

// fromSF converts back to orb. Empty results become a nil geometry.
func fromSF(sf geom.Geometry) (orb.Geometry, error) {
	if sf.IsEmpty() {
		return nil, nil
	}
	g, err := wkb.Unmarshal(sf.AsBinary())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return g, nil
}

// normalize rewrites the orb-only shapes (Ring, Bound) as polygons so they
// have a WKB encoding.
func normalize(g orb.Geometry) orb.Geometry {
	switch g := g.(type) {
	case orb.Ring:
		return orb.Polygon{g}
	case orb.Bound:
		return g.ToPolygon()
	case orb.Collection:
		out := make(orb.Collection, len(g))
		for i, c := range g {
			out[i] = normalize(c)
		}
		return out
	}
	return g
}

// outline is a geometry broken into what a buffer grows from: isolated
// points, edges, and the polygons it covers.
type outline struct {
	points   []orb.Point
	edges    [][2]orb.Point
	polygons orb.MultiPolygon
}

func outlineOf(g orb.Geometry) outline {
	var o outline
	o.add(g)
	return o
}

func (o *outline) add(g orb.Geometry) {
	switch g := g.(type) {
	case orb.Point:
		o.points = append(o.points, g)
	case orb.MultiPoint:
		o.points = append(o.points, g...)
	case orb.LineString:
		o.addPath(g)
	case orb.MultiLineString:
		for _, ls := range g {
			o.addPath(ls)
		}
	case orb.Ring:
		o.addPolygon(orb.Polygon{g})
	case orb.Polygon:
		o.addPolygon(g)
	case orb.MultiPolygon:
		for _, p := range g {
			o.addPolygon(p)
		}
	case orb.Bound:
		o.addPolygon(g.ToPolygon())
	case orb.Collection:
		for _, c := range g {
			o.add(c)
		}
	}
}

func (o *outline) addPath(ls orb.LineString) {
	if len(ls) == 1 {
		o.points = append(o.points, ls[0])
	}
	for i := 1; i < len(ls); i++ {
		if ls[i-1] == ls[i] {
			continue
		}
		o.edges = append(o.edges, [2]orb.Point{ls[i-1], ls[i]})
	}
}

func (o *outline) addPolygon(p orb.Polygon) {
	for _, r := range p {
		o.addPath(orb.LineString(r))
	}
	o.polygons = append(o.polygons, p)
}

// quadrantSegments is the number of segments approximating a quarter circle.
const quadrantSegments = 8

// circle is the regular polygon inscribed in the circle of radius r around c.
func circle(c orb.Point, r float64) orb.Polygon {
	n := 4 * quadrantSegments
	ring := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, orb.Point{c[0] + r*math.Cos(a), c[1] + r*math.Sin(a)})
	}
	return orb.Polygon{append(ring, ring[0])}
}

// capsule is the set of points within r of the segment a-b: a rectangle
// capped by a half circle at each end, counter-clockwise.
func capsule(a, b orb.Point, r float64) orb.Polygon {
	theta := math.Atan2(b[1]-a[1], b[0]-a[0])
	n := 2 * quadrantSegments
	ring := make(orb.Ring, 0, 2*n+3)
	for i := 0; i <= n; i++ {
		t := theta - math.Pi/2 + math.Pi*float64(i)/float64(n)
		ring = append(ring, orb.Point{b[0] + r*math.Cos(t), b[1] + r*math.Sin(t)})
	}
	for i := 0; i <= n; i++ {
		t := theta + math.Pi/2 + math.Pi*float64(i)/float64(n)
		ring = append(ring, orb.Point{a[0] + r*math.Cos(t), a[1] + r*math.Sin(t)})
	}
	return orb.Polygon{append(ring, ring[0])}
}

// unionAll unions gs pairwise, halving the input each round.
func unionAll(gs []geom.Geometry) (geom.Geometry, error) {
	switch len(gs) {
	case 0:
		return geom.Geometry{}, nil
	case 1:
		return gs[0], nil
	}
	mid := len(gs) / 2
	a, err := unionAll(gs[:mid])
	if err != nil {
		return geom.Geometry{}, err
	}
	b, err := unionAll(gs[mid:])
	if err != nil {
		return geom.Geometry{}, err
	}
	return geom.Union(a, b)
}

// buffer computes the Minkowski sum of g with a disc of radius distance.
// A negative distance erodes the polygonal part of g instead; lines and
// points erode to nothing.
func buffer(g orb.Geometry, distance float64) (geom.Geometry, error) {
	o := outlineOf(g)
	r := math.Abs(distance)

	band := make([]geom.Geometry, 0, len(o.points)+len(o.edges))
	for _, p := range o.points {
		sf, err := toSF(circle(p, r))
		if err != nil {
			return geom.Geometry{}, err
		}
		band = append(band, sf)
	}
	for _, e := range o.edges {
		sf, err := toSF(capsule(e[0], e[1], r))
		if err != nil {
			return geom.Geometry{}, err
		}
		band = append(band, sf)
	}

	var area geom.Geometry
	if len(o.polygons) > 0 {
		var err error
		if area, err = toSF(o.polygons); err != nil {
			return geom.Geometry{}, err
		}
	}

	if distance < 0 {
		if len(o.polygons) == 0 {
			return geom.Geometry{}, nil
		}
		ring, err := unionAll(band)
		if err != nil {
			return geom.Geometry{}, err
		}
		return geom.Difference(area, ring)
	}
	if len(o.polygons) > 0 {
		band = append(band, area)
	}
	return unionAll(band)
}

// polygons returns the polygonal parts of g.
func polygons(g orb.Geometry) orb.MultiPolygon {
	return outlineOf(g).polygons
}

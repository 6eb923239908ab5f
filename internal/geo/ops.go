package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/peterstace/simplefeatures/geom"
)

// pair converts a and b into simplefeatures geometries, with b moved into
// the CRS of a first.
func (k *Kernel) pair(a, b Geometry) (geom.Geometry, geom.Geometry, error) {
	b, err := k.TransformGeometry(b, a.crs)
	if err != nil {
		return geom.Geometry{}, geom.Geometry{}, err
	}
	sa, err := toSF(a.g)
	if err != nil {
		return geom.Geometry{}, geom.Geometry{}, err
	}
	sb, err := toSF(b.g)
	if err != nil {
		return geom.Geometry{}, geom.Geometry{}, err
	}
	return sa, sb, nil
}

// Intersects reports whether a and b share at least one point. b is
// converted into the CRS of a first.
func (k *Kernel) Intersects(a, b Geometry) (bool, error) {
	if a.IsEmpty() || b.IsEmpty() {
		return false, nil
	}
	b, err := k.TransformGeometry(b, a.crs)
	if err != nil {
		return false, err
	}
	if !a.g.Bound().Intersects(b.g.Bound()) {
		return false, nil
	}
	sa, sb, err := k.pair(a, b)
	if err != nil {
		return false, err
	}
	return geom.Intersects(sa, sb), nil
}

// Contains reports whether no point of b lies outside a and their
// interiors meet.
func (k *Kernel) Contains(a, b Geometry) (bool, error) {
	if a.IsEmpty() || b.IsEmpty() {
		return false, nil
	}
	sa, sb, err := k.pair(a, b)
	if err != nil {
		return false, err
	}
	ok, err := geom.Contains(sa, sb)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return ok, nil
}

// Intersection returns the points shared by a and b, in the CRS of a.
func (k *Kernel) Intersection(a, b Geometry) (Geometry, error) {
	return k.overlay("intersection", geom.Intersection, a, b)
}

// Union returns the points in either a or b, in the CRS of a.
func (k *Kernel) Union(a, b Geometry) (Geometry, error) {
	return k.overlay("union", geom.Union, a, b)
}

// Difference returns the points of a not in b, in the CRS of a.
func (k *Kernel) Difference(a, b Geometry) (Geometry, error) {
	return k.overlay("difference", geom.Difference, a, b)
}

func (k *Kernel) overlay(name string, op func(a, b geom.Geometry) (geom.Geometry, error), a, b Geometry) (Geometry, error) {
	crs := a.crs
	if a.IsEmpty() {
		crs = b.crs
	}
	sa, sb, err := k.pair(a, b)
	if err != nil {
		return Geometry{}, err
	}
	out, err := op(sa, sb)
	if err != nil {
		return Geometry{}, fmt.Errorf("%s failed: %w", name, err)
	}
	g, err := fromSF(out)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{g: g, crs: crs}, nil
}

// Buffer grows g by distance, or shrinks it when distance is negative.
// The buffer is computed in crs (the CRS of g when empty) and distance is
// in its units; the result stays in crs.
func (k *Kernel) Buffer(g Geometry, distance float64, crs string) (Geometry, error) {
	if g.IsEmpty() {
		return Geometry{}, fmt.Errorf("%w: empty geometry", ErrInvalidGeometry)
	}
	g, err := k.TransformGeometry(g, crs)
	if err != nil {
		return Geometry{}, err
	}
	if distance == 0 {
		return g, nil
	}
	sf, err := buffer(g.g, distance)
	if err != nil {
		return Geometry{}, fmt.Errorf("buffer failed: %w", err)
	}
	out, err := fromSF(sf)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{g: out, crs: g.crs}, nil
}

// TransformGeometry converts g into crs.
func (k *Kernel) TransformGeometry(g Geometry, crs string) (Geometry, error) {
	if crs == "" || SameCRS(g.crs, crs) || g.IsEmpty() {
		return g, nil
	}
	proj, err := projection(g.crs, crs)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{g: project.Geometry(orb.Clone(g.g), proj), crs: crs}, nil
}

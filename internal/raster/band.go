package raster

import (
	"fmt"
	"sync"

	"github.com/danieljhkim/geoengine/internal/element"
	"github.com/danieljhkim/geoengine/internal/geo"
)

// thunk is a memoized deferred grid. Bands that only differ in metadata
// point at the same thunk.
type thunk struct {
	op   element.Operation
	once sync.Once
	eval func() (*Grid, error)
	grid *Grid
	err  error
}

func ready(op element.Operation, g *Grid) *thunk {
	return &thunk{op: op, grid: g}
}

func deferred(op element.Operation, eval func() (*Grid, error)) *thunk {
	return &thunk{op: op, eval: eval}
}

func (t *thunk) force() (*Grid, error) {
	t.once.Do(func() {
		if t.eval != nil {
			t.grid, t.err = t.eval()
			t.eval = nil
		}
	})
	return t.grid, t.err
}

// Band is one named sample grid with its georeference.
type Band struct {
	name      string
	typ       SampleType
	cols      int
	rows      int
	crs       string
	transform geo.Transform
	constant  bool
	src       *thunk
}

// BandOptions lists everything NewBand accepts.
type BandOptions struct {
	Name      string
	Type      SampleType
	Cols      int
	Rows      int
	CRS       string
	Transform geo.Transform
	Data      []float64
}

// NewBand validates opts and builds a concrete band. Data is copied.
func NewBand(opts BandOptions) (Band, error) {
	if opts.Name == "" {
		return Band{}, fmt.Errorf("%w: name is required", ErrInvalidBand)
	}
	if !opts.Type.Valid() {
		return Band{}, fmt.Errorf("%w: band %q has invalid type %v", ErrInvalidBand, opts.Name, opts.Type)
	}
	g, err := NewGrid(opts.Cols, opts.Rows, opts.Data)
	if err != nil {
		return Band{}, fmt.Errorf("band %q: %w", opts.Name, err)
	}
	return Band{
		name:      opts.Name,
		typ:       opts.Type,
		cols:      opts.Cols,
		rows:      opts.Rows,
		crs:       opts.CRS,
		transform: opts.Transform,
		src:       ready(element.Operation{Func: "Image.band", Args: []any{opts.Name}}, g),
	}, nil
}

// Name returns the band name.
func (b Band) Name() string { return b.name }

// Type returns the declared sample type.
func (b Band) Type() SampleType { return b.typ }

// Cols returns the band width in pixels.
func (b Band) Cols() int { return b.cols }

// Rows returns the band height in pixels.
func (b Band) Rows() int { return b.rows }

// CRS returns the coordinate reference identifier.
func (b Band) CRS() string { return b.crs }

// Transform returns the affine georeference.
func (b Band) Transform() geo.Transform { return b.transform }

// Projection returns CRS and transform together.
func (b Band) Projection() Projection {
	return Projection{CRS: b.crs, Transform: b.transform}
}

// IsConstant reports whether b is a broadcasting 1x1 constant.
func (b Band) IsConstant() bool { return b.constant }

// Operation describes how the band's grid is produced.
func (b Band) Operation() element.Operation { return b.src.op }

// Materialize evaluates the band and returns its grid cast to the declared
// sample type.
func (b Band) Materialize() (*Grid, error) {
	g, err := b.src.force()
	if err != nil {
		return nil, fmt.Errorf("band %q: %w", b.name, err)
	}
	if b.typ == Float64 {
		return g, nil
	}
	out := &Grid{cols: g.cols, rows: g.rows, data: make([]float64, len(g.data))}
	for i, v := range g.data {
		out.data[i] = b.typ.Cast(v)
	}
	return out, nil
}

// Values materializes the band and returns its samples.
func (b Band) Values() ([]float64, error) {
	g, err := b.Materialize()
	if err != nil {
		return nil, err
	}
	return g.Values(), nil
}

func (b Band) withName(name string) Band {
	b.name = name
	return b
}

func (b Band) withType(t SampleType) Band {
	b.typ = t
	return b
}

// concrete returns b with its materialized grid.
func (b Band) concrete() (Band, error) {
	g, err := b.Materialize()
	if err != nil {
		return Band{}, err
	}
	b.src = ready(b.src.op, g)
	return b, nil
}

// dataset exports a concrete band to the delegate's raster form.
func (b Band) dataset() (*geo.Dataset, error) {
	g, err := b.Materialize()
	if err != nil {
		return nil, err
	}
	return &geo.Dataset{
		Cols:      g.cols,
		Rows:      g.rows,
		CRS:       b.crs,
		Transform: b.transform,
		Type:      b.typ,
		Bands:     [][]float64{g.data},
	}, nil
}

// fromDataset rebuilds b from a single-band delegate result.
func (b Band) fromDataset(op element.Operation, ds *geo.Dataset) (Band, error) {
	if len(ds.Bands) != 1 {
		return Band{}, fmt.Errorf("%w: delegate returned %d bands for band %q", ErrInvalidBand, len(ds.Bands), b.name)
	}
	g, err := NewGrid(ds.Cols, ds.Rows, ds.Bands[0])
	if err != nil {
		return Band{}, err
	}
	b.cols, b.rows = ds.Cols, ds.Rows
	b.crs, b.transform = ds.CRS, ds.Transform
	b.constant = false
	b.src = ready(op, g)
	return b, nil
}

package geo

import (
	"bytes"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/danieljhkim/geoengine/internal/geotiff"
)

// OpenRaster reads a GeoTIFF file.
func (k *Kernel) OpenRaster(path string) (*Dataset, error) {
	data, err := k.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raster %s: %w", path, err)
	}
	ds, err := k.DecodeRaster(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode raster %s: %w", path, err)
	}
	return ds, nil
}

// DecodeRaster decodes GeoTIFF bytes.
func (k *Kernel) DecodeRaster(data []byte) (*Dataset, error) {
	r, err := geotiff.Decode(data)
	if err != nil {
		return nil, err
	}
	return &Dataset{
		Cols:      r.Width,
		Rows:      r.Height,
		CRS:       r.CRS,
		Transform: Transform(r.GeoTransform),
		Type:      dataTypeFromTIFF(r.BitsPerSample, r.Format),
		Bands:     r.Bands,
	}, nil
}

// EncodeRaster encodes ds as GeoTIFF, casting samples to ds.Type.
func (k *Kernel) EncodeRaster(ds *Dataset) ([]byte, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	bits, format := ds.Type.tiff()
	bands := make([][]float64, len(ds.Bands))
	for i, b := range ds.Bands {
		bands[i] = make([]float64, len(b))
		for j, v := range b {
			bands[i][j] = ds.Type.Cast(v)
		}
	}
	epsg, _ := ParseEPSG(ds.CRS)
	var buf bytes.Buffer
	err := geotiff.Encode(&buf, &geotiff.Raster{
		Width:         ds.Cols,
		Height:        ds.Rows,
		BitsPerSample: bits,
		Format:        format,
		Bands:         bands,
		GeoTransform:  ds.Transform,
		CRS:           ds.CRS,
		EPSG:          epsg,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteRaster writes ds to path as GeoTIFF.
func (k *Kernel) WriteRaster(path string, ds *Dataset) error {
	data, err := k.EncodeRaster(ds)
	if err != nil {
		return err
	}
	if err := k.fs.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write raster %s: %w", path, err)
	}
	return nil
}

// Reproject resamples ds into crs with nearest-neighbour sampling. Output
// pixels that fall outside the source are NaN.
func (k *Kernel) Reproject(ds *Dataset, crs string, transform *Transform, scale float64) (*Dataset, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if transform != nil && scale != 0 {
		return nil, fmt.Errorf("transform and scale are mutually exclusive")
	}
	if scale < 0 {
		return nil, fmt.Errorf("scale must be positive, got %g", scale)
	}
	forward, err := projection(ds.CRS, crs)
	if err != nil {
		return nil, err
	}
	inverse, err := projection(crs, ds.CRS)
	if err != nil {
		return nil, err
	}
	srcInv, err := ds.Transform.Invert()
	if err != nil {
		return nil, err
	}

	b := projectedBounds(ds, forward)
	var dst Transform
	var cols, rows int
	switch {
	case transform != nil:
		t := *transform
		inv, err := t.Invert()
		if err != nil {
			return nil, err
		}
		c0, r0, c1, r1 := pixelWindow(inv, b)
		dst = t.Window(c0, r0)
		cols, rows = c1-c0, r1-r0
	case scale > 0:
		dst = Transform{b.Min[0], scale, 0, b.Max[1], 0, -scale}
		cols = int(math.Ceil((b.Max[0] - b.Min[0]) / scale))
		rows = int(math.Ceil((b.Max[1] - b.Min[1]) / scale))
	default:
		cols, rows = ds.Cols, ds.Rows
		dst = Transform{
			b.Min[0], (b.Max[0] - b.Min[0]) / float64(cols), 0,
			b.Max[1], 0, -(b.Max[1] - b.Min[1]) / float64(rows),
		}
	}
	cols, rows = max(cols, 1), max(rows, 1)

	out := &Dataset{Cols: cols, Rows: rows, CRS: crs, Transform: dst, Type: ds.Type, Bands: make([][]float64, len(ds.Bands))}
	for i := range out.Bands {
		out.Bands[i] = make([]float64, cols*rows)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y := dst.Apply(float64(c)+0.5, float64(r)+0.5)
			p := inverse(orb.Point{x, y})
			sc, sr := srcInv.Apply(p[0], p[1])
			col, row := int(math.Floor(sc)), int(math.Floor(sr))
			inside := col >= 0 && col < ds.Cols && row >= 0 && row < ds.Rows
			for i, band := range ds.Bands {
				if inside {
					out.Bands[i][r*cols+c] = band[row*ds.Cols+col]
				} else {
					out.Bands[i][r*cols+c] = math.NaN()
				}
			}
		}
	}
	return out, nil
}

// projectedBounds samples the dataset outline and returns its bounds in the
// target CRS. Edges are densified since a projection may bend them.
func projectedBounds(ds *Dataset, proj orb.Projection) orb.Bound {
	const steps = 16
	b := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for i := 0; i <= steps; i++ {
		f := float64(i) / steps
		for _, px := range [][2]float64{
			{f * float64(ds.Cols), 0},
			{f * float64(ds.Cols), float64(ds.Rows)},
			{0, f * float64(ds.Rows)},
			{float64(ds.Cols), f * float64(ds.Rows)},
		} {
			x, y := ds.Transform.Apply(px[0], px[1])
			b = b.Extend(proj(orb.Point{x, y}))
		}
	}
	return b
}

// pixelWindow returns the integer pixel window [c0,c1) x [r0,r1) covering b
// under the inverse transform inv.
func pixelWindow(inv Transform, b orb.Bound) (int, int, int, int) {
	minC, minR := math.Inf(1), math.Inf(1)
	maxC, maxR := math.Inf(-1), math.Inf(-1)
	for _, p := range []orb.Point{b.Min, b.Max, {b.Min[0], b.Max[1]}, {b.Max[0], b.Min[1]}} {
		c, r := inv.Apply(p[0], p[1])
		minC, maxC = math.Min(minC, c), math.Max(maxC, c)
		minR, maxR = math.Min(minR, r), math.Max(maxR, r)
	}
	return int(math.Floor(minC)), int(math.Floor(minR)), int(math.Ceil(maxC)), int(math.Ceil(maxR))
}

// Clip keeps the pixels whose centre falls inside g, cropped to the part
// of the raster covered by the bounds of g. Pixels outside g are NaN.
func (k *Kernel) Clip(ds *Dataset, g Geometry) (*Dataset, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if g.IsEmpty() {
		return nil, fmt.Errorf("%w: empty clip geometry", ErrInvalidGeometry)
	}
	g, err := k.TransformGeometry(g, ds.CRS)
	if err != nil {
		return nil, err
	}
	shape := polygons(g.g)
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: clip needs a polygonal geometry, got %s", ErrInvalidGeometry, g.Type())
	}
	inv, err := ds.Transform.Invert()
	if err != nil {
		return nil, err
	}

	c0, r0, c1, r1 := pixelWindow(inv, g.g.Bound())
	c0, r0 = max(c0, 0), max(r0, 0)
	c1, r1 = min(c1, ds.Cols), min(r1, ds.Rows)
	if c0 >= c1 || r0 >= r1 {
		return nil, ErrNoOverlap
	}

	cols, rows := c1-c0, r1-r0
	out := &Dataset{Cols: cols, Rows: rows, CRS: ds.CRS, Transform: ds.Transform.Window(c0, r0), Type: ds.Type, Bands: make([][]float64, len(ds.Bands))}
	for i := range out.Bands {
		out.Bands[i] = make([]float64, cols*rows)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y := ds.Transform.Apply(float64(c0+c)+0.5, float64(r0+r)+0.5)
			in := false
			for _, poly := range shape {
				if planar.PolygonContains(poly, orb.Point{x, y}) {
					in = true
					break
				}
			}
			for i, band := range ds.Bands {
				if in {
					out.Bands[i][r*cols+c] = band[(r0+r)*ds.Cols+c0+c]
				} else {
					out.Bands[i][r*cols+c] = math.NaN()
				}
			}
		}
	}
	return out, nil
}

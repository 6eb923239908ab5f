package raster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/danieljhkim/geoengine/internal/collection"
	"github.com/danieljhkim/geoengine/internal/element"
)

// binaryOp is an elementwise kernel over equally sized slices.
type binaryOp struct {
	name string
	fn   func(dst, a, b []float64)
	typ  func(a, b SampleType) SampleType
}

func elementwise(f func(a, b float64) float64) func(dst, a, b []float64) {
	return func(dst, a, b []float64) {
		for i := range dst {
			dst[i] = f(a[i], b[i])
		}
	}
}

func indicator(f func(a, b float64) bool) func(dst, a, b []float64) {
	return elementwise(func(a, b float64) float64 {
		if f(a, b) {
			return 1
		}
		return 0
	})
}

// promote picks the declared type of an arithmetic result.
func promote(a, b SampleType) SampleType {
	switch {
	case a == Float64 || b == Float64:
		return Float64
	case a == Float32 || b == Float32:
		return Float32
	case a == b:
		return a
	default:
		return Int32
	}
}

// PromoteTypes returns the type that holds every one of types, following
// the same rules as arithmetic results.
func PromoteTypes(types ...SampleType) SampleType {
	if len(types) == 0 {
		return Float64
	}
	out := types[0]
	for _, t := range types[1:] {
		out = promote(out, t)
	}
	return out
}

func promoteFloat(a, b SampleType) SampleType {
	if t := promote(a, b); !t.IsInteger() {
		return t
	}
	return Float32
}

func boolean(SampleType, SampleType) SampleType { return Byte }

var (
	opAdd      = binaryOp{"add", func(dst, a, b []float64) { floats.AddTo(dst, a, b) }, promote}
	opSubtract = binaryOp{"subtract", func(dst, a, b []float64) { floats.SubTo(dst, a, b) }, promote}
	opMultiply = binaryOp{"multiply", func(dst, a, b []float64) { floats.MulTo(dst, a, b) }, promote}
	opDivide   = binaryOp{"divide", func(dst, a, b []float64) { floats.DivTo(dst, a, b) }, promoteFloat}
	opMax      = binaryOp{"max", elementwise(math.Max), promote}
	opMin      = binaryOp{"min", elementwise(math.Min), promote}
	opEq       = binaryOp{"eq", indicator(func(a, b float64) bool { return a == b }), boolean}
	opNeq      = binaryOp{"neq", indicator(func(a, b float64) bool { return a != b }), boolean}
	opGt       = binaryOp{"gt", indicator(func(a, b float64) bool { return a > b }), boolean}
	opGte      = binaryOp{"gte", indicator(func(a, b float64) bool { return a >= b }), boolean}
	opLt       = binaryOp{"lt", indicator(func(a, b float64) bool { return a < b }), boolean}
	opLte      = binaryOp{"lte", indicator(func(a, b float64) bool { return a <= b }), boolean}
)

// Add adds other to img band by band.
func (img Image) Add(other Image) (Image, error) { return img.apply(opAdd, other) }

// Subtract subtracts other from img band by band.
func (img Image) Subtract(other Image) (Image, error) { return img.apply(opSubtract, other) }

// Multiply multiplies img by other band by band.
func (img Image) Multiply(other Image) (Image, error) { return img.apply(opMultiply, other) }

// Divide divides img by other band by band. Integer division is not
// performed: the result is declared as a float type.
func (img Image) Divide(other Image) (Image, error) { return img.apply(opDivide, other) }

// Max keeps the larger sample of each pair.
func (img Image) Max(other Image) (Image, error) { return img.apply(opMax, other) }

// Min keeps the smaller sample of each pair.
func (img Image) Min(other Image) (Image, error) { return img.apply(opMin, other) }

// Eq is 1 where the samples are equal and 0 elsewhere.
func (img Image) Eq(other Image) (Image, error) { return img.apply(opEq, other) }

// Neq is 1 where the samples differ.
func (img Image) Neq(other Image) (Image, error) { return img.apply(opNeq, other) }

// Gt is 1 where img is greater than other.
func (img Image) Gt(other Image) (Image, error) { return img.apply(opGt, other) }

// Gte is 1 where img is greater than or equal to other.
func (img Image) Gte(other Image) (Image, error) { return img.apply(opGte, other) }

// Lt is 1 where img is less than other.
func (img Image) Lt(other Image) (Image, error) { return img.apply(opLt, other) }

// Lte is 1 where img is less than or equal to other.
func (img Image) Lte(other Image) (Image, error) { return img.apply(opLte, other) }

// pair applies the broadcast rule: equal counts pair positionally, a single
// band on either side pairs with every band of the other side. The left
// image's band is always the first operand.
func pair(a, b Image) ([][2]Band, error) {
	na, nb := a.bands.Len(), b.bands.Len()
	if na == 0 || nb == 0 {
		return nil, ErrEmptyImage
	}
	ab, bb := a.bands.All(), b.bands.All()
	var pairs [][2]Band
	switch {
	case na == nb:
		for i := range ab {
			pairs = append(pairs, [2]Band{ab[i], bb[i]})
		}
	case nb == 1:
		for _, x := range ab {
			pairs = append(pairs, [2]Band{x, bb[0]})
		}
	case na == 1:
		for _, y := range bb {
			pairs = append(pairs, [2]Band{ab[0], y})
		}
	default:
		return nil, fmt.Errorf("%w: %d bands against %d", ErrArityMismatch, na, nb)
	}
	return pairs, nil
}

func (img Image) apply(op binaryOp, other Image) (Image, error) {
	pairs, err := pair(img, other)
	if err != nil {
		return Image{}, fmt.Errorf("Image.%s: %w", op.name, err)
	}
	out := make([]Band, len(pairs))
	for i, p := range pairs {
		out[i] = combine(op, p[0], p[1])
	}
	return img.derive("Image."+op.name, out, other.elem.Operation().Func), nil
}

// combine builds the deferred result of op over two bands. Georeference
// and name come from the first operand unless it is a constant.
func combine(op binaryOp, a, b Band) Band {
	meta := a
	if a.constant && !b.constant {
		meta = b
	}
	result := meta
	result.typ = op.typ(a.typ, b.typ)
	result.constant = a.constant && b.constant
	desc := element.Operation{Func: "Band." + op.name, Args: []any{a.name, b.name}}
	result.src = deferred(desc, func() (*Grid, error) {
		ga, err := a.src.force()
		if err != nil {
			return nil, err
		}
		gb, err := b.src.force()
		if err != nil {
			return nil, err
		}
		shape := ga
		switch {
		case ga.sameSize(gb):
		case ga.scalar():
			shape = gb
		case gb.scalar():
		default:
			return nil, fmt.Errorf("%w: %s is %dx%d, %s is %dx%d", ErrGridMismatch, a.name, ga.cols, ga.rows, b.name, gb.cols, gb.rows)
		}
		n := shape.cols * shape.rows
		dst := make([]float64, n)
		op.fn(dst, ga.expand(n), gb.expand(n))
		return &Grid{cols: shape.cols, rows: shape.rows, data: dst}, nil
	})
	return result
}

// Exp applies e^x to every band.
func (img Image) Exp() Image { return img.unary("exp", math.Exp) }

// Log applies the natural logarithm to every band.
func (img Image) Log() Image { return img.unary("log", math.Log) }

func (img Image) unary(name string, f func(float64) float64) Image {
	in := img.bands.All()
	out := make([]Band, len(in))
	for i, b := range in {
		src := b.src
		r := b
		r.typ = promoteFloat(b.typ, b.typ)
		r.src = deferred(element.Operation{Func: "Band." + name, Args: []any{b.name}}, func() (*Grid, error) {
			g, err := src.force()
			if err != nil {
				return nil, err
			}
			dst := make([]float64, len(g.data))
			for j, v := range g.data {
				dst[j] = f(v)
			}
			return &Grid{cols: g.cols, rows: g.rows, data: dst}, nil
		})
		out[i] = r
	}
	return img.derive("Image."+name, out)
}

// MatrixMultiply treats each paired grid as a rows x cols matrix and
// multiplies them. A constant operand scales the other one.
func (img Image) MatrixMultiply(other Image) (Image, error) {
	pairs, err := pair(img, other)
	if err != nil {
		return Image{}, fmt.Errorf("Image.matrixMultiply: %w", err)
	}
	out := make([]Band, len(pairs))
	for i, p := range pairs {
		a, b := p[0], p[1]
		if a.constant || b.constant {
			out[i] = combine(opMultiply, a, b)
			continue
		}
		r := a
		r.typ = promote(a.typ, b.typ)
		r.cols, r.rows = b.cols, a.rows
		r.src = deferred(element.Operation{Func: "Band.matrixMultiply", Args: []any{a.name, b.name}}, func() (*Grid, error) {
			ga, err := a.src.force()
			if err != nil {
				return nil, err
			}
			gb, err := b.src.force()
			if err != nil {
				return nil, err
			}
			if ga.cols != gb.rows {
				return nil, fmt.Errorf("%w: cannot multiply %dx%d by %dx%d", ErrGridMismatch, ga.rows, ga.cols, gb.rows, gb.cols)
			}
			var c mat.Dense
			c.Mul(mat.NewDense(ga.rows, ga.cols, ga.Values()), mat.NewDense(gb.rows, gb.cols, gb.Values()))
			rows, cols := c.Dims()
			data := make([]float64, 0, rows*cols)
			for y := 0; y < rows; y++ {
				data = append(data, c.RawRowView(y)...)
			}
			return &Grid{cols: cols, rows: rows, data: data}, nil
		})
		out[i] = r
	}
	return img.derive("Image.matrixMultiply", out, other.elem.Operation().Func), nil
}

// NormalizedDifference computes (a - b) / (a + b) for the two named bands.
func (img Image) NormalizedDifference(a, b string) (Image, error) {
	first, err := img.Select([]string{a})
	if err != nil {
		return Image{}, err
	}
	second, err := img.Select([]string{b})
	if err != nil {
		return Image{}, err
	}
	diff, err := first.Subtract(second)
	if err != nil {
		return Image{}, err
	}
	sum, err := first.Add(second)
	if err != nil {
		return Image{}, err
	}
	return diff.Divide(sum)
}

// derive builds a new image from bands carrying img's properties.
func (img Image) derive(fn string, bands []Band, args ...any) Image {
	elem := element.New(element.Operation{Func: fn, Args: args}).CopyProperties(img.elem)
	return Image{elem: elem, bands: collection.New(bands...)}
}

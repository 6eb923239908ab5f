package geotiff

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

type decoder struct {
	buf   []byte
	order binary.ByteOrder
	tags  map[uint16]rawEntry
}

type rawEntry struct {
	typ   uint16
	count uint32
	data  []byte
}

// Read decodes a GeoTIFF from r.
func Read(r io.Reader) (*Raster, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("geotiff: failed to read: %w", err)
	}
	return Decode(data)
}

// Decode decodes the first image of a GeoTIFF file.
func Decode(data []byte) (*Raster, error) {
	d := &decoder{buf: data, tags: make(map[uint16]rawEntry)}
	if err := d.readIFD(); err != nil {
		return nil, err
	}

	if _, ok := d.tags[tagTileWidth]; ok {
		return nil, fmt.Errorf("%w: tiled layout", ErrUnsupported)
	}
	if c := d.firstUint(tagCompression, 1); c != 1 {
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, c)
	}

	width := int(d.firstUint(tagImageWidth, 0))
	height := int(d.firstUint(tagImageLength, 0))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: missing image dimensions", ErrFormat)
	}
	spp := int(d.firstUint(tagSamplesPerPixel, 1))
	if spp <= 0 {
		return nil, fmt.Errorf("%w: samples per pixel %d", ErrFormat, spp)
	}

	bits, err := d.uniform(tagBitsPerSample, 1)
	if err != nil {
		return nil, err
	}
	format, err := d.uniform(tagSampleFormat, uint64(FormatUint))
	if err != nil {
		return nil, err
	}
	bps, err := bytesPerSample(int(bits), SampleFormat(format))
	if err != nil {
		return nil, err
	}

	pixels, err := d.strips()
	if err != nil {
		return nil, err
	}
	if want := width * height * spp * bps; len(pixels) < want {
		return nil, fmt.Errorf("%w: %d bytes of pixel data, want %d", ErrFormat, len(pixels), want)
	}

	planar := d.firstUint(tagPlanarConfiguration, 1) == 2
	n := width * height
	bands := make([][]float64, spp)
	for b := range bands {
		bands[b] = make([]float64, n)
		for i := 0; i < n; i++ {
			idx := i*spp + b
			if planar {
				idx = b*n + i
			}
			bands[b][i] = d.sample(pixels[idx*bps:], int(bits), SampleFormat(format))
		}
	}

	r := &Raster{
		Width:         width,
		Height:        height,
		BitsPerSample: int(bits),
		Format:        SampleFormat(format),
		Bands:         bands,
		GeoTransform:  d.geoTransform(),
	}
	r.CRS, r.EPSG = d.crs()
	return r, nil
}

func (d *decoder) readIFD() error {
	if len(d.buf) < 8 {
		return fmt.Errorf("%w: short header", ErrFormat)
	}
	switch string(d.buf[:2]) {
	case "II":
		d.order = binary.LittleEndian
	case "MM":
		d.order = binary.BigEndian
	default:
		return fmt.Errorf("%w: bad byte order mark", ErrFormat)
	}
	switch d.order.Uint16(d.buf[2:4]) {
	case 42:
	case 43:
		return fmt.Errorf("%w: BigTIFF", ErrUnsupported)
	default:
		return fmt.Errorf("%w: bad magic number", ErrFormat)
	}

	off := int(d.order.Uint32(d.buf[4:8]))
	if off+2 > len(d.buf) {
		return fmt.Errorf("%w: IFD offset out of range", ErrFormat)
	}
	n := int(d.order.Uint16(d.buf[off:]))
	off += 2
	if off+12*n > len(d.buf) {
		return fmt.Errorf("%w: truncated IFD", ErrFormat)
	}
	for i := 0; i < n; i++ {
		e := d.buf[off+12*i : off+12*i+12]
		tag := d.order.Uint16(e[0:2])
		typ := d.order.Uint16(e[2:4])
		count := d.order.Uint32(e[4:8])
		size := typeSize(typ) * int(count)
		if size == 0 {
			continue
		}
		var data []byte
		if size <= 4 {
			data = e[8 : 8+size]
		} else {
			at := int(d.order.Uint32(e[8:12]))
			if at < 0 || at+size > len(d.buf) {
				return fmt.Errorf("%w: tag %d data out of range", ErrFormat, tag)
			}
			data = d.buf[at : at+size]
		}
		d.tags[tag] = rawEntry{typ: typ, count: count, data: data}
	}
	return nil
}

// uints returns an integer-typed tag's values.
func (d *decoder) uints(tag uint16) []uint64 {
	e, ok := d.tags[tag]
	if !ok {
		return nil
	}
	out := make([]uint64, e.count)
	for i := range out {
		switch e.typ {
		case typeByte:
			out[i] = uint64(e.data[i])
		case typeShort, typeSShort:
			out[i] = uint64(d.order.Uint16(e.data[2*i:]))
		case typeLong, typeSLong:
			out[i] = uint64(d.order.Uint32(e.data[4*i:]))
		default:
			return nil
		}
	}
	return out
}

func (d *decoder) firstUint(tag uint16, def uint64) uint64 {
	if vs := d.uints(tag); len(vs) > 0 {
		return vs[0]
	}
	return def
}

// uniform returns the single value shared by every entry of a per-sample
// tag.
func (d *decoder) uniform(tag uint16, def uint64) (uint64, error) {
	vs := d.uints(tag)
	if len(vs) == 0 {
		return def, nil
	}
	for _, v := range vs[1:] {
		if v != vs[0] {
			return 0, fmt.Errorf("%w: mixed values for tag %d", ErrUnsupported, tag)
		}
	}
	return vs[0], nil
}

func (d *decoder) floats(tag uint16) []float64 {
	e, ok := d.tags[tag]
	if !ok {
		return nil
	}
	out := make([]float64, e.count)
	for i := range out {
		switch e.typ {
		case typeDouble:
			out[i] = math.Float64frombits(d.order.Uint64(e.data[8*i:]))
		case typeFloat:
			out[i] = float64(math.Float32frombits(d.order.Uint32(e.data[4*i:])))
		default:
			return nil
		}
	}
	return out
}

func (d *decoder) strips() ([]byte, error) {
	offsets := d.uints(tagStripOffsets)
	counts := d.uints(tagStripByteCounts)
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, fmt.Errorf("%w: missing strip layout", ErrFormat)
	}
	var out []byte
	for i, off := range offsets {
		end := off + counts[i]
		if end > uint64(len(d.buf)) {
			return nil, fmt.Errorf("%w: strip %d out of range", ErrFormat, i)
		}
		out = append(out, d.buf[off:end]...)
	}
	return out, nil
}

func (d *decoder) sample(b []byte, bits int, format SampleFormat) float64 {
	switch format {
	case FormatFloat:
		if bits == 32 {
			return float64(math.Float32frombits(d.order.Uint32(b)))
		}
		return math.Float64frombits(d.order.Uint64(b))
	case FormatInt:
		switch bits {
		case 8:
			return float64(int8(b[0]))
		case 16:
			return float64(int16(d.order.Uint16(b)))
		default:
			return float64(int32(d.order.Uint32(b)))
		}
	default:
		switch bits {
		case 8:
			return float64(b[0])
		case 16:
			return float64(d.order.Uint16(b))
		default:
			return float64(d.order.Uint32(b))
		}
	}
}

func (d *decoder) geoTransform() [6]float64 {
	if m := d.floats(tagModelTransformation); len(m) >= 8 {
		return [6]float64{m[3], m[0], m[1], m[7], m[4], m[5]}
	}
	tp := d.floats(tagModelTiepoint)
	scale := d.floats(tagModelPixelScale)
	if len(tp) >= 6 && len(scale) >= 2 {
		return [6]float64{
			tp[3] - tp[0]*scale[0], scale[0], 0,
			tp[4] + tp[1]*scale[1], 0, -scale[1],
		}
	}
	return [6]float64{0, 1, 0, 0, 0, 1}
}

// crs resolves the stored CRS. A citation that is itself an identifier wins,
// then the EPSG code, then whatever citation text is present.
func (d *decoder) crs() (string, int) {
	dir := d.uints(tagGeoKeyDirectory)
	if len(dir) < geoKeyDirectoryHeader {
		return "", 0
	}
	var ascii string
	if e, ok := d.tags[tagGeoAsciiParams]; ok {
		ascii = string(e.data)
	}

	var citation string
	var epsg int
	n := int(dir[3])
	for i := 0; i < n; i++ {
		at := geoKeyDirectoryHeader + 4*i
		if at+4 > len(dir) {
			break
		}
		key, loc, count, value := dir[at], dir[at+1], dir[at+2], dir[at+3]
		switch key {
		case keyCitation:
			if loc == tagGeoAsciiParams && int(value+count) <= len(ascii) {
				citation = strings.TrimRight(ascii[value:value+count], "|\x00")
			}
		case keyGeographicType, keyProjectedCSType:
			if loc == 0 && value != userDefined {
				epsg = int(value)
			}
		}
	}

	switch {
	case strings.HasPrefix(citation, "EPSG:") || strings.Contains(citation, "["):
		return citation, epsg
	case epsg != 0:
		return fmt.Sprintf("EPSG:%d", epsg), epsg
	default:
		return citation, 0
	}
}

package geotiff

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"sort"
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

var le = binary.LittleEndian

// Encode writes r as a little-endian GeoTIFF.
func Encode(w io.Writer, r *Raster) error {
	if err := r.validate(); err != nil {
		return err
	}
	bps, _ := bytesPerSample(r.BitsPerSample, r.Format)
	spp := len(r.Bands)
	planeSize := r.Width * r.Height * bps

	const headerSize = 8
	offsets := make([]uint32, spp)
	counts := make([]uint32, spp)
	for i := range r.Bands {
		offsets[i] = uint32(headerSize + i*planeSize)
		counts[i] = uint32(planeSize)
	}
	dataEnd := headerSize + spp*planeSize

	bits := make([]uint16, spp)
	formats := make([]uint16, spp)
	for i := range bits {
		bits[i] = uint16(r.BitsPerSample)
		formats[i] = uint16(r.Format)
	}

	entries := []ifdEntry{
		{tag: tagImageWidth, typ: typeLong, count: 1, data: longs(uint32(r.Width))},
		{tag: tagImageLength, typ: typeLong, count: 1, data: longs(uint32(r.Height))},
		{tag: tagBitsPerSample, typ: typeShort, count: uint32(spp), data: shorts(bits...)},
		{tag: tagCompression, typ: typeShort, count: 1, data: shorts(1)},
		{tag: tagPhotometric, typ: typeShort, count: 1, data: shorts(1)},
		{tag: tagStripOffsets, typ: typeLong, count: uint32(spp), data: longs(offsets...)},
		{tag: tagSamplesPerPixel, typ: typeShort, count: 1, data: shorts(uint16(spp))},
		{tag: tagRowsPerStrip, typ: typeLong, count: 1, data: longs(uint32(r.Height))},
		{tag: tagStripByteCounts, typ: typeLong, count: uint32(spp), data: longs(counts...)},
		{tag: tagPlanarConfiguration, typ: typeShort, count: 1, data: shorts(2)},
		{tag: tagSampleFormat, typ: typeShort, count: uint32(spp), data: shorts(formats...)},
	}
	entries = append(entries, geoEntries(r)...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	ifdOffset := align(dataEnd)
	extraOffset := ifdOffset + 2 + 12*len(entries) + 4

	var buf bytes.Buffer
	buf.Grow(extraOffset)
	buf.WriteString("II")
	_ = binary.Write(&buf, le, uint16(42))
	_ = binary.Write(&buf, le, uint32(ifdOffset))

	for _, band := range r.Bands {
		writeSamples(&buf, band, r.BitsPerSample, r.Format)
	}
	pad(&buf, ifdOffset)

	var extra bytes.Buffer
	_ = binary.Write(&buf, le, uint16(len(entries)))
	for _, e := range entries {
		_ = binary.Write(&buf, le, e.tag)
		_ = binary.Write(&buf, le, e.typ)
		_ = binary.Write(&buf, le, e.count)
		if len(e.data) <= 4 {
			var inline [4]byte
			copy(inline[:], e.data)
			buf.Write(inline[:])
			continue
		}
		if extra.Len()%2 != 0 {
			extra.WriteByte(0)
		}
		_ = binary.Write(&buf, le, uint32(extraOffset+extra.Len()))
		extra.Write(e.data)
	}
	_ = binary.Write(&buf, le, uint32(0))
	buf.Write(extra.Bytes())

	_, err := w.Write(buf.Bytes())
	return err
}

// geoEntries builds the georeferencing tags.
func geoEntries(r *Raster) []ifdEntry {
	g := r.GeoTransform
	var entries []ifdEntry
	if g[2] == 0 && g[4] == 0 {
		entries = append(entries,
			ifdEntry{tag: tagModelPixelScale, typ: typeDouble, count: 3, data: doubles(g[1], -g[5], 0)},
			ifdEntry{tag: tagModelTiepoint, typ: typeDouble, count: 6, data: doubles(0, 0, 0, g[0], g[3], 0)},
		)
	} else {
		entries = append(entries, ifdEntry{
			tag: tagModelTransformation, typ: typeDouble, count: 16,
			data: doubles(
				g[1], g[2], 0, g[0],
				g[4], g[5], 0, g[3],
				0, 0, 0, 0,
				0, 0, 0, 1,
			),
		})
	}

	modelType := uint16(modelTypeProjected)
	if geographicEPSG(r.EPSG) {
		modelType = modelTypeGeographic
	}
	keys := [][4]uint16{
		{keyModelType, 0, 1, modelType},
		{keyRasterType, 0, 1, rasterPixelIsArea},
	}

	var ascii string
	if r.CRS != "" {
		ascii = r.CRS + "|"
		keys = append(keys, [4]uint16{keyCitation, tagGeoAsciiParams, uint16(len(ascii)), 0})
	}
	if r.EPSG > 0 && r.EPSG < userDefined {
		key := uint16(keyProjectedCSType)
		if geographicEPSG(r.EPSG) {
			key = keyGeographicType
		}
		keys = append(keys, [4]uint16{key, 0, 1, uint16(r.EPSG)})
	}

	dir := []uint16{1, 1, 0, uint16(len(keys))}
	for _, k := range keys {
		dir = append(dir, k[:]...)
	}
	entries = append(entries, ifdEntry{tag: tagGeoKeyDirectory, typ: typeShort, count: uint32(len(dir)), data: shorts(dir...)})
	if ascii != "" {
		data := append([]byte(ascii), 0)
		entries = append(entries, ifdEntry{tag: tagGeoAsciiParams, typ: typeASCII, count: uint32(len(data)), data: data})
	}
	return entries
}

func writeSamples(buf *bytes.Buffer, band []float64, bits int, format SampleFormat) {
	var scratch [8]byte
	for _, v := range band {
		switch {
		case format == FormatFloat && bits == 32:
			le.PutUint32(scratch[:4], math.Float32bits(float32(v)))
			buf.Write(scratch[:4])
		case format == FormatFloat && bits == 64:
			le.PutUint64(scratch[:8], math.Float64bits(v))
			buf.Write(scratch[:8])
		case format == FormatInt && bits == 8:
			buf.WriteByte(byte(int8(clamp(v, math.MinInt8, math.MaxInt8))))
		case format == FormatInt && bits == 16:
			le.PutUint16(scratch[:2], uint16(int16(clamp(v, math.MinInt16, math.MaxInt16))))
			buf.Write(scratch[:2])
		case format == FormatInt && bits == 32:
			le.PutUint32(scratch[:4], uint32(int32(clamp(v, math.MinInt32, math.MaxInt32))))
			buf.Write(scratch[:4])
		case bits == 8:
			buf.WriteByte(uint8(clamp(v, 0, math.MaxUint8)))
		case bits == 16:
			le.PutUint16(scratch[:2], uint16(clamp(v, 0, math.MaxUint16)))
			buf.Write(scratch[:2])
		default:
			le.PutUint32(scratch[:4], uint32(clamp(v, 0, math.MaxUint32)))
			buf.Write(scratch[:4])
		}
	}
}

// clamp truncates v toward zero and limits it to [lo, hi]. NaN maps to 0.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Trunc(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func align(n int) int { return n + n%2 }

func pad(buf *bytes.Buffer, to int) {
	for buf.Len() < to {
		buf.WriteByte(0)
	}
}

func shorts(vs ...uint16) []byte {
	out := make([]byte, 2*len(vs))
	for i, v := range vs {
		le.PutUint16(out[2*i:], v)
	}
	return out
}

func longs(vs ...uint32) []byte {
	out := make([]byte, 4*len(vs))
	for i, v := range vs {
		le.PutUint32(out[4*i:], v)
	}
	return out
}

func doubles(vs ...float64) []byte {
	out := make([]byte, 8*len(vs))
	for i, v := range vs {
		le.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

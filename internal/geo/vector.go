package geo

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Field types of vector layers.
const (
	FieldString  = "String"
	FieldInteger = "Integer"
	FieldReal    = "Real"
	FieldDate    = "Date"
	FieldLogical = "Logical"
)

// Field describes one attribute column of a vector layer.
type Field struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Width     int    `json:"width"`
	Precision int    `json:"precision"`
}

// Row is one feature of a vector layer.
type Row struct {
	Geometry   Geometry
	Properties map[string]any
}

// Layer is an in-memory vector dataset.
type Layer struct {
	CRS    string
	Fields []Field
	Rows   []Row
}

// OpenVector reads a Shapefile (.shp) or GeoJSON (.geojson, .json) file.
func (k *Kernel) OpenVector(path string) (*Layer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return readShapefile(path)
	case ".geojson", ".json":
		data, err := k.fs.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return decodeGeoJSON(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// WriteVector writes layer to a Shapefile or GeoJSON file.
func (k *Kernel) WriteVector(path string, layer *Layer) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		if err := k.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create parent directory: %w", err)
		}
		if err := writeShapefile(path, layer); err != nil {
			return err
		}
		if layer.CRS == "" {
			return nil
		}
		return k.fs.AtomicWrite(prjPath(path), []byte(layer.CRS), 0644)
	case ".geojson", ".json":
		data, err := encodeGeoJSON(layer)
		if err != nil {
			return err
		}
		return k.fs.AtomicWrite(path, data, 0644)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func prjPath(shpPath string) string {
	return strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".prj"
}

func readShapefile(path string) (*Layer, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile %s: %w", path, err)
	}
	defer r.Close()

	crs := WGS84
	if prj, err := os.ReadFile(prjPath(path)); err == nil {
		crs = NormalizeCRS(strings.TrimSpace(string(prj)))
	}

	shpFields := r.Fields()
	layer := &Layer{CRS: crs, Fields: make([]Field, len(shpFields))}
	for i, f := range shpFields {
		layer.Fields[i] = Field{
			Name:      f.String(),
			Type:      fieldType(f.Fieldtype),
			Width:     int(f.Size),
			Precision: int(f.Precision),
		}
	}

	for r.Next() {
		n, shape := r.Shape()
		props := make(map[string]any, len(layer.Fields))
		for i, f := range layer.Fields {
			props[f.Name] = parseAttribute(f, r.ReadAttribute(n, i))
		}
		var g orb.Geometry
		if shape != nil {
			g = shapeToOrb(shape)
		}
		row := Row{Properties: props}
		if g != nil {
			row.Geometry = FromOrb(g, crs)
		}
		layer.Rows = append(layer.Rows, row)
	}
	return layer, nil
}

func fieldType(t byte) string {
	switch t {
	case 'N':
		return FieldInteger
	case 'F':
		return FieldReal
	case 'D':
		return FieldDate
	case 'L':
		return FieldLogical
	default:
		return FieldString
	}
}

func parseAttribute(f Field, raw string) any {
	raw = strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if raw == "" {
		return nil
	}
	switch f.Type {
	case FieldInteger:
		if f.Precision == 0 {
			if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return v
			}
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	case FieldReal:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	case FieldLogical:
		switch strings.ToUpper(raw) {
		case "T", "Y", "TRUE":
			return true
		case "F", "N", "FALSE":
			return false
		}
	}
	return raw
}

func splitParts(parts []int32, pts []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(pts))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		ring := make([]orb.Point, 0, end-start)
		for _, p := range pts[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		out = append(out, ring)
	}
	return out
}

func shapeToOrb(s shp.Shape) orb.Geometry {
	switch s := s.(type) {
	case *shp.Point:
		return orb.Point{s.X, s.Y}
	case *shp.PointZ:
		return orb.Point{s.X, s.Y}
	case *shp.MultiPoint:
		mp := make(orb.MultiPoint, len(s.Points))
		for i, p := range s.Points {
			mp[i] = orb.Point{p.X, p.Y}
		}
		return mp
	case *shp.PolyLine:
		return linesToOrb(splitParts(s.Parts, s.Points))
	case *shp.PolyLineZ:
		return linesToOrb(splitParts(s.Parts, s.Points))
	case *shp.Polygon:
		return ringsToOrb(splitParts(s.Parts, s.Points))
	case *shp.PolygonZ:
		return ringsToOrb(splitParts(s.Parts, s.Points))
	default:
		return nil
	}
}

func linesToOrb(lines [][]orb.Point) orb.Geometry {
	if len(lines) == 1 {
		return orb.LineString(lines[0])
	}
	mls := make(orb.MultiLineString, len(lines))
	for i, l := range lines {
		mls[i] = orb.LineString(l)
	}
	return mls
}

// ringsToOrb groups shapefile rings into polygons: clockwise rings start a
// new polygon, counter-clockwise rings are holes of the current one.
func ringsToOrb(rings [][]orb.Point) orb.Geometry {
	var mp orb.MultiPolygon
	for _, r := range rings {
		ring := orb.Ring(r)
		if len(mp) == 0 || ring.Orientation() == orb.CW {
			mp = append(mp, orb.Polygon{ring})
			continue
		}
		mp[len(mp)-1] = append(mp[len(mp)-1], ring)
	}
	if len(mp) == 1 {
		return mp[0]
	}
	return mp
}

func shapeType(rows []Row) (shp.ShapeType, error) {
	var kind string
	for _, r := range rows {
		if r.Geometry.IsEmpty() {
			continue
		}
		t := r.Geometry.Type()
		switch t {
		case "MultiLineString":
			t = "LineString"
		case "MultiPolygon":
			t = "Polygon"
		}
		if kind != "" && kind != t {
			return 0, fmt.Errorf("%w: shapefile cannot mix %s and %s", ErrInvalidGeometry, kind, t)
		}
		kind = t
	}
	switch kind {
	case "Point":
		return shp.POINT, nil
	case "MultiPoint":
		return shp.MULTIPOINT, nil
	case "LineString":
		return shp.POLYLINE, nil
	case "Polygon", "":
		return shp.POLYGON, nil
	default:
		return 0, fmt.Errorf("%w: shapefile cannot store %s", ErrInvalidGeometry, kind)
	}
}

func toShape(g orb.Geometry) shp.Shape {
	pts := func(ps []orb.Point) []shp.Point {
		out := make([]shp.Point, len(ps))
		for i, p := range ps {
			out[i] = shp.Point{X: p[0], Y: p[1]}
		}
		return out
	}
	switch g := g.(type) {
	case orb.Point:
		return &shp.Point{X: g[0], Y: g[1]}
	case orb.MultiPoint:
		points := pts(g)
		return &shp.MultiPoint{Box: shp.BBoxFromPoints(points), NumPoints: int32(len(points)), Points: points}
	case orb.LineString:
		return shp.NewPolyLine([][]shp.Point{pts(g)})
	case orb.MultiLineString:
		parts := make([][]shp.Point, len(g))
		for i, l := range g {
			parts[i] = pts(l)
		}
		return shp.NewPolyLine(parts)
	case orb.Polygon:
		return polygonShape(orb.MultiPolygon{g}, pts)
	case orb.MultiPolygon:
		return polygonShape(g, pts)
	default:
		return &shp.Null{}
	}
}

// polygonShape writes outer rings clockwise and holes counter-clockwise as
// the shapefile format requires.
func polygonShape(mp orb.MultiPolygon, pts func([]orb.Point) []shp.Point) shp.Shape {
	var parts [][]shp.Point
	for _, poly := range mp {
		for i, r := range poly {
			ring := append(orb.Ring(nil), r...)
			want := orb.CCW
			if i == 0 {
				want = orb.CW
			}
			if ring.Orientation() != want {
				ring.Reverse()
			}
			parts = append(parts, pts(ring))
		}
	}
	p := shp.Polygon(*shp.NewPolyLine(parts))
	return &p
}

func shpField(f Field) shp.Field {
	name := f.Name
	if len(name) > 10 {
		name = name[:10]
	}
	width := func(w, def int) uint8 {
		if w <= 0 {
			w = def
		}
		return uint8(min(w, 254))
	}
	switch f.Type {
	case FieldInteger:
		return shp.NumberField(name, width(f.Width, 18))
	case FieldReal:
		return shp.FloatField(name, width(f.Width, 24), uint8(min(max(f.Precision, 0), 15)))
	case FieldDate:
		return shp.DateField(name)
	default:
		return shp.StringField(name, width(f.Width, 80))
	}
}

func formatAttribute(f Field, v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "T"
		}
		return "F"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if f.Type == FieldInteger && v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', f.Precision, 64)
	default:
		return fmt.Sprint(v)
	}
}

func writeShapefile(path string, layer *Layer) error {
	st, err := shapeType(layer.Rows)
	if err != nil {
		return err
	}
	w, err := shp.Create(path, st)
	if err != nil {
		return fmt.Errorf("failed to create shapefile %s: %w", path, err)
	}
	defer w.Close()

	fields := make([]shp.Field, len(layer.Fields))
	for i, f := range layer.Fields {
		fields[i] = shpField(f)
	}
	w.SetFields(fields)

	for _, row := range layer.Rows {
		var shape shp.Shape = &shp.Null{}
		if !row.Geometry.IsEmpty() {
			shape = toShape(row.Geometry.g)
		}
		n := w.Write(shape)
		for i, f := range layer.Fields {
			if err := w.WriteAttribute(int(n), i, formatAttribute(f, row.Properties[f.Name])); err != nil {
				return fmt.Errorf("failed to write attribute %s: %w", f.Name, err)
			}
		}
	}
	return nil
}

// legacyCRS is the pre-RFC 7946 "crs" member, still written by many tools.
type legacyCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

func decodeGeoJSON(data []byte) (*Layer, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode GeoJSON: %w", err)
	}
	var head struct {
		CRS *legacyCRS `json:"crs"`
	}
	_ = json.Unmarshal(data, &head)
	crs := WGS84
	if head.CRS != nil && head.CRS.Properties.Name != "" {
		crs = NormalizeCRS(head.CRS.Properties.Name)
	}

	layer := &Layer{CRS: crs}
	types := make(map[string]string)
	var order []string
	for _, f := range fc.Features {
		props := make(map[string]any, len(f.Properties))
		for key, v := range f.Properties {
			props[key] = v
			if _, seen := types[key]; !seen {
				order = append(order, key)
				types[key] = ""
			}
			types[key] = mergeFieldType(types[key], v)
		}
		row := Row{Properties: props}
		if f.Geometry != nil {
			row.Geometry = FromOrb(f.Geometry, crs)
		}
		layer.Rows = append(layer.Rows, row)
	}
	sort.Strings(order)
	for _, key := range order {
		t := types[key]
		if t == "" {
			t = FieldString
		}
		layer.Fields = append(layer.Fields, Field{Name: key, Type: t})
	}
	return layer, nil
}

func mergeFieldType(current string, v any) string {
	var t string
	switch v := v.(type) {
	case nil:
		return current
	case bool:
		t = FieldLogical
	case float64:
		t = FieldReal
		if v == math.Trunc(v) {
			t = FieldInteger
		}
	default:
		t = FieldString
	}
	switch {
	case current == "" || current == t:
		return t
	case (current == FieldInteger && t == FieldReal) || (current == FieldReal && t == FieldInteger):
		return FieldReal
	default:
		return FieldString
	}
}

func encodeGeoJSON(layer *Layer) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, row := range layer.Rows {
		f := geojson.NewFeature(row.Geometry.Orb())
		for k, v := range row.Properties {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	if layer.CRS == "" || SameCRS(layer.CRS, WGS84) {
		return data, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	crs := legacyCRS{Type: "name"}
	crs.Properties.Name = layer.CRS
	doc["crs"] = crs
	return json.Marshal(doc)
}

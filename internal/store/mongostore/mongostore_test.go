package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/danieljhkim/geoengine/internal/clock"
	"github.com/danieljhkim/geoengine/internal/geo"
	"github.com/danieljhkim/geoengine/internal/hash"
	"github.com/danieljhkim/geoengine/internal/store"
)

// openTestStore connects to GEOENGINE_TEST_MONGO_URI with a throwaway
// database, or skips.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("GEOENGINE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("GEOENGINE_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := fmt.Sprintf("geoengine_test_%d", time.Now().UnixNano())
	s, err := Open(ctx, Options{URI: uri, Database: db}, hash.NewBlake2bHasher(), clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_ = s.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestOpen_Invalid(t *testing.T) {
	if _, err := Open(context.Background(), Options{}, hash.NewBlake2bHasher(), clock.NewRealClock()); err == nil {
		t.Error("expected error without URI and database")
	}
}

func TestStore_ImageExport(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	coll, err := s.UpsertImageCollection(ctx, "landsat/sp", map[string]any{"v": 1})
	if err != nil {
		t.Fatalf("UpsertImageCollection failed: %v", err)
	}
	again, err := s.UpsertImageCollection(ctx, "landsat/sp", map[string]any{"v": 2})
	if err != nil {
		t.Fatalf("UpsertImageCollection failed: %v", err)
	}
	if coll.ID != again.ID {
		t.Errorf("upsert created a second record")
	}

	img, err := s.UpsertImage(ctx, coll.ID, "a.tif", map[string]any{"CLOUD": 3})
	if err != nil {
		t.Fatalf("UpsertImage failed: %v", err)
	}
	for _, content := range []string{"one", "two"} {
		p := store.Payload{ContentType: store.ContentTypeGeoTIFF, Checksum: content, Size: int64(len(content))}
		if err := s.ReplaceImagePayload(ctx, img.ID, p, strings.NewReader(content)); err != nil {
			t.Fatalf("ReplaceImagePayload failed: %v", err)
		}
	}

	r, err := s.OpenImagePayload(ctx, img.ID)
	if err != nil {
		t.Fatalf("OpenImagePayload failed: %v", err)
	}
	defer func() { _ = r.Close() }()
	data, _ := io.ReadAll(r)
	if string(data) != "two" {
		t.Errorf("payload = %q, want %q", data, "two")
	}

	images, err := s.ListImages(ctx, coll.ID)
	if err != nil || len(images) != 1 || images[0].Checksum != "two" {
		t.Errorf("ListImages = %+v, %v", images, err)
	}
	if _, err := s.FindImage(ctx, coll.ID, "b.tif"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_FeatureExport(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fc, err := s.UpsertFeatureCollection(ctx, "roads", "FeatureCollection", nil, []geo.Field{{Name: "name", Type: geo.FieldString}})
	if err != nil {
		t.Fatalf("UpsertFeatureCollection failed: %v", err)
	}
	rows := []store.FeatureRecord{
		{Type: "Feature", Geometry: json.RawMessage(`{"type":"Point","coordinates":[1.5,2]}`), Properties: map[string]any{"name": "a"}},
		{Type: "Feature", Geometry: json.RawMessage(`{"type":"Point","coordinates":[3,4]}`), Properties: map[string]any{"name": "b"}},
	}
	if err := s.InsertFeatures(ctx, fc.ID, rows); err != nil {
		t.Fatalf("InsertFeatures failed: %v", err)
	}

	got, err := s.ListFeatures(ctx, fc.ID)
	if err != nil {
		t.Fatalf("ListFeatures failed: %v", err)
	}
	if len(got) != 2 || got[1].Properties["name"] != "b" {
		t.Fatalf("ListFeatures = %+v", got)
	}
	g, err := geo.FromGeoJSON(got[0].Geometry, geo.WGS84)
	if err != nil {
		t.Fatalf("stored geometry is not GeoJSON: %v", err)
	}
	if b := g.Bounds(); b[0] != 1.5 || b[1] != 2 {
		t.Errorf("bounds = %v", b)
	}

	n, err := s.DeleteFeatures(ctx, fc.ID)
	if err != nil || n != 2 {
		t.Errorf("DeleteFeatures = %d, %v", n, err)
	}
}

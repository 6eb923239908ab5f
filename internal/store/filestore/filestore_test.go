package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/danieljhkim/geoengine/internal/clock"
	"github.com/danieljhkim/geoengine/internal/fsops"
	"github.com/danieljhkim/geoengine/internal/geo"
	"github.com/danieljhkim/geoengine/internal/hash"
	"github.com/danieljhkim/geoengine/internal/store"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(t0)
	return New(fsops.NewRealFS(), hash.NewBlake2bHasher(), clk, t.TempDir()), clk
}

func TestStore_ImageCollections(t *testing.T) {
	ctx := context.Background()
	s, clk := setupStore(t)

	t.Run("missing collection", func(t *testing.T) {
		if _, err := s.FindImageCollection(ctx, "landsat/sp"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	first, err := s.UpsertImageCollection(ctx, "landsat/sp", map[string]any{"v": 1})
	if err != nil {
		t.Fatalf("UpsertImageCollection failed: %v", err)
	}
	clk.Advance(time.Minute)
	second, err := s.UpsertImageCollection(ctx, "landsat/sp", map[string]any{"v": 2})
	if err != nil {
		t.Fatalf("UpsertImageCollection failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("upsert created a second record: %s != %s", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(t0) || !second.UpdatedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("timestamps = %v / %v", second.CreatedAt, second.UpdatedAt)
	}

	found, err := s.FindImageCollection(ctx, "landsat/sp")
	if err != nil {
		t.Fatalf("FindImageCollection failed: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"v": float64(2)}, found.Properties); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.UpsertImageCollection(ctx, "../escape", nil); err == nil {
		t.Error("expected error for an unsafe path")
	}
}

func TestStore_Images(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	coll, err := s.UpsertImageCollection(ctx, "landsat/sp", nil)
	if err != nil {
		t.Fatalf("UpsertImageCollection failed: %v", err)
	}
	other, err := s.UpsertImageCollection(ctx, "sentinel/sp", nil)
	if err != nil {
		t.Fatalf("UpsertImageCollection failed: %v", err)
	}

	for _, name := range []string{"b.tif", "a.tif"} {
		if _, err := s.UpsertImage(ctx, coll.ID, name, map[string]any{"name": name}); err != nil {
			t.Fatalf("UpsertImage failed: %v", err)
		}
	}
	if _, err := s.UpsertImage(ctx, other.ID, "a.tif", nil); err != nil {
		t.Fatalf("UpsertImage failed: %v", err)
	}

	t.Run("list is scoped and ordered", func(t *testing.T) {
		images, err := s.ListImages(ctx, coll.ID)
		if err != nil {
			t.Fatalf("ListImages failed: %v", err)
		}
		var names []string
		for _, img := range images {
			names = append(names, img.Path)
		}
		if diff := cmp.Diff([]string{"a.tif", "b.tif"}, names); diff != "" {
			t.Errorf("names mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("payload", func(t *testing.T) {
		img, err := s.FindImage(ctx, coll.ID, "a.tif")
		if err != nil {
			t.Fatalf("FindImage failed: %v", err)
		}
		if _, err := s.OpenImagePayload(ctx, img.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound before the first payload, got %v", err)
		}

		for _, content := range []string{"first payload", "second"} {
			p := store.Payload{ContentType: store.ContentTypeGeoTIFF, Checksum: "sum-" + content, Size: int64(len(content))}
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
		if string(data) != "second" {
			t.Errorf("payload = %q, want %q", data, "second")
		}

		img, _ = s.FindImage(ctx, coll.ID, "a.tif")
		if img.Checksum != "sum-second" || img.Size != 6 || !img.HasPayload() {
			t.Errorf("payload metadata = %q %d", img.Checksum, img.Size)
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		img, _ := s.FindImage(ctx, coll.ID, "b.tif")
		if err := s.ReplaceImagePayload(ctx, img.ID, store.Payload{Size: 99}, strings.NewReader("short")); err == nil {
			t.Error("expected error for a truncated payload")
		}
	})

	t.Run("invalid names", func(t *testing.T) {
		if _, err := s.UpsertImage(ctx, coll.ID, "a/b.tif", nil); err == nil {
			t.Error("expected error for a name with a separator")
		}
		if _, err := s.FindImage(ctx, coll.ID, "missing.tif"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_Features(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	columns := []geo.Field{{Name: "name", Type: geo.FieldString, Width: 20}}
	fc, err := s.UpsertFeatureCollection(ctx, "roads", "FeatureCollection", map[string]any{"k": "v"}, columns)
	if err != nil {
		t.Fatalf("UpsertFeatureCollection failed: %v", err)
	}

	row := func(name string) store.FeatureRecord {
		return store.FeatureRecord{
			Type:       "Feature",
			Geometry:   json.RawMessage(`{"type":"Point","coordinates":[1,2]}`),
			Properties: map[string]any{"name": name},
		}
	}

	if err := s.InsertFeatures(ctx, fc.ID, []store.FeatureRecord{row("a"), row("b")}); err != nil {
		t.Fatalf("InsertFeatures failed: %v", err)
	}
	if err := s.InsertFeatures(ctx, fc.ID, []store.FeatureRecord{row("c")}); err != nil {
		t.Fatalf("InsertFeatures failed: %v", err)
	}

	rows, err := s.ListFeatures(ctx, fc.ID)
	if err != nil {
		t.Fatalf("ListFeatures failed: %v", err)
	}
	var names []any
	for i, r := range rows {
		if r.Seq != i || r.FeatureCollection != fc.ID || r.ID == "" {
			t.Errorf("row %d = seq %d, collection %q, id %q", i, r.Seq, r.FeatureCollection, r.ID)
		}
		names = append(names, r.Properties["name"])
	}
	if diff := cmp.Diff([]any{"a", "b", "c"}, names); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	found, err := s.FindFeatureCollection(ctx, "roads")
	if err != nil {
		t.Fatalf("FindFeatureCollection failed: %v", err)
	}
	if diff := cmp.Diff(columns, found.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}

	n, err := s.DeleteFeatures(ctx, fc.ID)
	if err != nil || n != 3 {
		t.Fatalf("DeleteFeatures = %d, %v; want 3", n, err)
	}
	rows, err = s.ListFeatures(ctx, fc.ID)
	if err != nil || len(rows) != 0 {
		t.Errorf("ListFeatures after delete = %d rows, %v", len(rows), err)
	}

	if _, err := s.FindFeatureCollection(ctx, "rivers"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

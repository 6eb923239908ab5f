// Package filestore implements store.Store with JSON files on disk.
//
// Layout under the root directory:
//
//	image_collections/<id>.json
//	images/<id>.json
//	payloads/<image id>.tif
//	feature_collections/<id>.json
//	features/<collection id>/<seq>.json
//
// Record IDs are keyed hashes of each record's unique key, so a lookup by
// key is a single file read. Every write goes through FS.AtomicWrite.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/danieljhkim/geoengine/internal/clock"
	"github.com/danieljhkim/geoengine/internal/fsops"
	"github.com/danieljhkim/geoengine/internal/geo"
	"github.com/danieljhkim/geoengine/internal/hash"
	"github.com/danieljhkim/geoengine/internal/store"
)

const (
	imageCollectionsDir   = "image_collections"
	imagesDir             = "images"
	payloadsDir           = "payloads"
	featureCollectionsDir = "feature_collections"
	featuresDir           = "features"
)

// Store implements store.Store using files on disk.
type Store struct {
	fs     fsops.FS
	hasher hash.Hasher
	clock  clock.Clock
	root   string
}

var _ store.Store = (*Store)(nil)

// New creates a Store rooted at root. The directory is created lazily.
func New(fs fsops.FS, hasher hash.Hasher, clk clock.Clock, root string) *Store {
	return &Store{fs: fs, hasher: hasher, clock: clk, root: root}
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

func (s *Store) recordPath(dir, id string) string {
	return filepath.Join(s.root, dir, id+".json")
}

func (s *Store) load(path string, v any) error {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to read record: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal record %s: %w", path, err)
	}
	return nil
}

func (s *Store) save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := s.fs.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// UpsertImageCollection creates or updates the collection at path.
func (s *Store) UpsertImageCollection(ctx context.Context, path string, props map[string]any) (*store.ImageCollectionRecord, error) {
	if err := s.fs.ValidateRelPath(path); err != nil {
		return nil, fmt.Errorf("invalid image collection path: %w", err)
	}
	id := s.hasher.Key(imageCollectionsDir, path)
	file := s.recordPath(imageCollectionsDir, id)

	now := s.clock.Now()
	rec := &store.ImageCollectionRecord{}
	if err := s.load(file, rec); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		rec = &store.ImageCollectionRecord{ID: id, Path: path, CreatedAt: now}
	}
	rec.Properties = props
	rec.UpdatedAt = now
	if err := s.save(file, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindImageCollection returns the collection at path.
func (s *Store) FindImageCollection(ctx context.Context, path string) (*store.ImageCollectionRecord, error) {
	rec := &store.ImageCollectionRecord{}
	if err := s.load(s.recordPath(imageCollectionsDir, s.hasher.Key(imageCollectionsDir, path)), rec); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("image collection %s: %w", path, err)
		}
		return nil, err
	}
	return rec, nil
}

// UpsertImage creates or updates the image (collectionID, path).
func (s *Store) UpsertImage(ctx context.Context, collectionID, path string, props map[string]any) (*store.ImageRecord, error) {
	if err := s.fs.ValidateIdentifier(path); err != nil {
		return nil, fmt.Errorf("invalid image name: %w", err)
	}
	id := s.hasher.Key(imagesDir, collectionID, path)
	file := s.recordPath(imagesDir, id)

	now := s.clock.Now()
	rec := &store.ImageRecord{}
	if err := s.load(file, rec); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		rec = &store.ImageRecord{ID: id, ImageCollection: collectionID, Path: path, CreatedAt: now}
	}
	rec.Properties = props
	rec.UpdatedAt = now
	if err := s.save(file, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindImage returns the image (collectionID, path).
func (s *Store) FindImage(ctx context.Context, collectionID, path string) (*store.ImageRecord, error) {
	rec := &store.ImageRecord{}
	if err := s.load(s.recordPath(imagesDir, s.hasher.Key(imagesDir, collectionID, path)), rec); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("image %s: %w", path, err)
		}
		return nil, err
	}
	return rec, nil
}

// ListImages returns the images of a collection ordered by path.
func (s *Store) ListImages(ctx context.Context, collectionID string) ([]store.ImageRecord, error) {
	names, err := s.fs.ReadDir(filepath.Join(s.root, imagesDir))
	if err != nil {
		return nil, err
	}
	var out []store.ImageRecord
	for _, name := range names {
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec store.ImageRecord
		if err := s.load(filepath.Join(s.root, imagesDir, name), &rec); err != nil {
			return nil, err
		}
		if rec.ImageCollection == collectionID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Store) loadImage(imageID string) (*store.ImageRecord, string, error) {
	if err := s.fs.ValidateIdentifier(imageID); err != nil {
		return nil, "", fmt.Errorf("invalid image ID: %w", err)
	}
	file := s.recordPath(imagesDir, imageID)
	rec := &store.ImageRecord{}
	if err := s.load(file, rec); err != nil {
		return nil, "", fmt.Errorf("image %s: %w", imageID, err)
	}
	return rec, file, nil
}

func (s *Store) payloadPath(imageID string) string {
	return filepath.Join(s.root, payloadsDir, imageID+".tif")
}

// ReplaceImagePayload streams r into the image's payload file.
func (s *Store) ReplaceImagePayload(ctx context.Context, imageID string, p store.Payload, r io.Reader) error {
	rec, file, err := s.loadImage(imageID)
	if err != nil {
		return err
	}
	n, err := s.fs.AtomicWriteFrom(s.payloadPath(imageID), r, 0644)
	if err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	if p.Size != 0 && n != p.Size {
		return fmt.Errorf("payload for image %s: wrote %d bytes, expected %d", imageID, n, p.Size)
	}
	rec.ContentType = p.ContentType
	rec.Checksum = p.Checksum
	rec.Size = n
	rec.UpdatedAt = s.clock.Now()
	return s.save(file, rec)
}

// OpenImagePayload opens the image's payload file.
func (s *Store) OpenImagePayload(ctx context.Context, imageID string) (io.ReadCloser, error) {
	rec, _, err := s.loadImage(imageID)
	if err != nil {
		return nil, err
	}
	if !rec.HasPayload() {
		return nil, fmt.Errorf("payload of image %s: %w", rec.Path, store.ErrNotFound)
	}
	f, err := s.fs.Open(s.payloadPath(imageID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("payload of image %s: %w", rec.Path, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open payload: %w", err)
	}
	return f, nil
}

// UpsertFeatureCollection creates or updates the collection with code.
func (s *Store) UpsertFeatureCollection(ctx context.Context, code, typ string, props map[string]any, columns []geo.Field) (*store.FeatureCollectionRecord, error) {
	if err := s.fs.ValidateRelPath(code); err != nil {
		return nil, fmt.Errorf("invalid feature collection code: %w", err)
	}
	id := s.hasher.Key(featureCollectionsDir, code)
	file := s.recordPath(featureCollectionsDir, id)

	now := s.clock.Now()
	rec := &store.FeatureCollectionRecord{}
	if err := s.load(file, rec); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		rec = &store.FeatureCollectionRecord{ID: id, Code: code, CreatedAt: now}
	}
	rec.Type = typ
	rec.Properties = props
	rec.Columns = columns
	rec.UpdatedAt = now
	if err := s.save(file, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindFeatureCollection returns the collection with code.
func (s *Store) FindFeatureCollection(ctx context.Context, code string) (*store.FeatureCollectionRecord, error) {
	rec := &store.FeatureCollectionRecord{}
	if err := s.load(s.recordPath(featureCollectionsDir, s.hasher.Key(featureCollectionsDir, code)), rec); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("feature collection %s: %w", code, err)
		}
		return nil, err
	}
	return rec, nil
}

func (s *Store) featuresDir(collectionID string) (string, error) {
	if err := s.fs.ValidateIdentifier(collectionID); err != nil {
		return "", fmt.Errorf("invalid feature collection ID: %w", err)
	}
	return filepath.Join(s.root, featuresDir, collectionID), nil
}

// InsertFeatures appends rows after the existing ones.
func (s *Store) InsertFeatures(ctx context.Context, collectionID string, rows []store.FeatureRecord) error {
	dir, err := s.featuresDir(collectionID)
	if err != nil {
		return err
	}
	existing, err := s.fs.ReadDir(dir)
	if err != nil {
		return err
	}
	seq := len(existing)
	now := s.clock.Now()
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		row.ID = s.hasher.Key(featuresDir, collectionID, strconv.Itoa(seq))
		row.FeatureCollection = collectionID
		row.Seq = seq
		row.CreatedAt = now
		if err := s.save(filepath.Join(dir, fmt.Sprintf("%09d.json", seq)), &row); err != nil {
			return fmt.Errorf("feature %d: %w", seq, err)
		}
		seq++
	}
	return nil
}

// ListFeatures returns the rows of a collection ordered by Seq.
func (s *Store) ListFeatures(ctx context.Context, collectionID string) ([]store.FeatureRecord, error) {
	dir, err := s.featuresDir(collectionID)
	if err != nil {
		return nil, err
	}
	names, err := s.fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]store.FeatureRecord, 0, len(names))
	for _, name := range names {
		var row store.FeatureRecord
		if err := s.load(filepath.Join(dir, name), &row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// DeleteFeatures removes every row of a collection.
func (s *Store) DeleteFeatures(ctx context.Context, collectionID string) (int, error) {
	dir, err := s.featuresDir(collectionID)
	if err != nil {
		return 0, err
	}
	names, err := s.fs.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	if err := s.fs.RemoveAll(dir); err != nil {
		return 0, fmt.Errorf("failed to delete features: %w", err)
	}
	return len(names), nil
}

// Close is a no-op.
func (s *Store) Close(ctx context.Context) error { return nil }

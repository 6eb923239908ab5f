// Package store defines the persisted records of exported images and
// feature collections and the Store interface every backend implements.
//
// Records are keyed the way exports are idempotent:
//   - ImageCollectionRecord: unique by path
//   - ImageRecord: unique by (image collection, path), one binary payload
//   - FeatureCollectionRecord: unique by code
//   - FeatureRecord: rows of a feature collection, ordered by Seq
//
// Backends live in the filestore (JSON on disk) and mongostore (MongoDB +
// GridFS) subpackages.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/danieljhkim/geoengine/internal/geo"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ContentTypeGeoTIFF is the content type of raster payloads.
const ContentTypeGeoTIFF = "image/tiff; application=geotiff"

// ImageCollectionRecord groups images under a path.
type ImageCollectionRecord struct {
	ID         string         `json:"id" bson:"_id"`
	Path       string         `json:"path" bson:"path"`
	Properties map[string]any `json:"properties" bson:"properties"`
	CreatedAt  time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// ImageRecord is one exported image. The payload is stored separately.
type ImageRecord struct {
	ID              string         `json:"id" bson:"_id"`
	ImageCollection string         `json:"imageCollection" bson:"imageCollection"`
	Path            string         `json:"path" bson:"path"`
	Properties      map[string]any `json:"properties" bson:"properties"`

	// Payload metadata, empty until the first payload is written.
	ContentType string `json:"contentType,omitempty" bson:"contentType,omitempty"`
	Checksum    string `json:"checksum,omitempty" bson:"checksum,omitempty"`
	Size        int64  `json:"size,omitempty" bson:"size,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// HasPayload reports whether a payload has been written.
func (r *ImageRecord) HasPayload() bool { return r.Checksum != "" }

// FeatureCollectionRecord is an exported feature collection and its schema.
type FeatureCollectionRecord struct {
	ID         string         `json:"id" bson:"_id"`
	Code       string         `json:"code" bson:"code"`
	Type       string         `json:"type" bson:"type"`
	Properties map[string]any `json:"properties" bson:"properties"`
	Columns    []geo.Field    `json:"columns" bson:"columns"`
	CreatedAt  time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// FeatureRecord is one row of a feature collection. Geometry is a GeoJSON
// geometry object.
type FeatureRecord struct {
	ID                string          `json:"id"`
	FeatureCollection string          `json:"featureCollection"`
	Seq               int             `json:"seq"`
	Type              string          `json:"type"`
	Geometry          json.RawMessage `json:"geometry"`
	Properties        map[string]any  `json:"properties"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// Payload describes a raster payload being written.
type Payload struct {
	ContentType string
	Checksum    string
	Size        int64
}

// Store persists export records.
type Store interface {
	// UpsertImageCollection creates the collection at path or replaces the
	// properties of the existing one.
	UpsertImageCollection(ctx context.Context, path string, props map[string]any) (*ImageCollectionRecord, error)

	// FindImageCollection returns the collection at path.
	FindImageCollection(ctx context.Context, path string) (*ImageCollectionRecord, error)

	// UpsertImage creates the image (collectionID, path) or replaces its
	// properties.
	UpsertImage(ctx context.Context, collectionID, path string, props map[string]any) (*ImageRecord, error)

	// FindImage returns the image (collectionID, path).
	FindImage(ctx context.Context, collectionID, path string) (*ImageRecord, error)

	// ListImages returns every image of a collection ordered by path.
	ListImages(ctx context.Context, collectionID string) ([]ImageRecord, error)

	// ReplaceImagePayload streams r as the image's payload, dropping any
	// previous one.
	ReplaceImagePayload(ctx context.Context, imageID string, p Payload, r io.Reader) error

	// OpenImagePayload opens the image's payload for reading.
	OpenImagePayload(ctx context.Context, imageID string) (io.ReadCloser, error)

	// UpsertFeatureCollection creates the collection with code or replaces
	// its type, properties and columns.
	UpsertFeatureCollection(ctx context.Context, code, typ string, props map[string]any, columns []geo.Field) (*FeatureCollectionRecord, error)

	// FindFeatureCollection returns the collection with code.
	FindFeatureCollection(ctx context.Context, code string) (*FeatureCollectionRecord, error)

	// InsertFeatures appends rows to a collection. Seq and ID are assigned
	// by the store, continuing after existing rows.
	InsertFeatures(ctx context.Context, collectionID string, rows []FeatureRecord) error

	// ListFeatures returns the rows of a collection ordered by Seq.
	ListFeatures(ctx context.Context, collectionID string) ([]FeatureRecord, error)

	// DeleteFeatures removes every row of a collection and returns how many
	// were removed.
	DeleteFeatures(ctx context.Context, collectionID string) (int, error)

	// Close releases the backend.
	Close(ctx context.Context) error
}

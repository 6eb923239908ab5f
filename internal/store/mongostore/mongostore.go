// Package mongostore implements store.Store on MongoDB. Raster payloads
// live in a GridFS bucket; feature geometries are stored as embedded
// GeoJSON documents.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/danieljhkim/geoengine/internal/clock"
	"github.com/danieljhkim/geoengine/internal/geo"
	"github.com/danieljhkim/geoengine/internal/hash"
	"github.com/danieljhkim/geoengine/internal/store"
)

// Collection names.
const (
	ImageCollections   = "imageCollections"
	Images             = "images"
	FeatureCollections = "featureCollections"
	Features           = "features"
	PayloadBucket      = "payloads"
)

// Options selects the server and database.
type Options struct {
	URI      string
	Database string
}

// Store implements store.Store on a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	bucket *gridfs.Bucket
	hasher hash.Hasher
	clock  clock.Clock
}

var _ store.Store = (*Store)(nil)

// Open connects, pings the primary and ensures the unique indexes.
func Open(ctx context.Context, opts Options, hasher hash.Hasher, clk clock.Clock) (*Store, error) {
	if opts.URI == "" || opts.Database == "" {
		return nil, fmt.Errorf("mongo store needs a URI and a database name")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.URI, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to reach %s: %w", opts.URI, err)
	}

	db := client.Database(opts.Database)
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(PayloadBucket))
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to open payload bucket: %w", err)
	}

	s := &Store{client: client, db: db, bucket: bucket, hasher: hasher, clock: clk}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		ImageCollections: {{
			Keys:    bson.D{{Key: "path", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		Images: {{
			Keys:    bson.D{{Key: "imageCollection", Value: 1}, {Key: "path", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		FeatureCollections: {{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		Features: {{
			Keys: bson.D{{Key: "featureCollection", Value: 1}, {Key: "seq", Value: 1}},
		}},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// upsert sets fields on the document with id, creating it when absent, and
// decodes the result into out.
func (s *Store) upsert(ctx context.Context, coll string, id string, onInsert, set bson.M, out any) error {
	now := s.clock.Now()
	onInsert["createdAt"] = now
	set["updatedAt"] = now
	update := bson.M{"$set": set, "$setOnInsert": onInsert}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	if err := s.db.Collection(coll).FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(out); err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", coll, id, err)
	}
	return nil
}

func (s *Store) findOne(ctx context.Context, coll string, filter bson.M, out any, what string) error {
	err := s.db.Collection(coll).FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to find %s: %w", what, err)
	}
	return nil
}

// UpsertImageCollection creates or updates the collection at path.
func (s *Store) UpsertImageCollection(ctx context.Context, path string, props map[string]any) (*store.ImageCollectionRecord, error) {
	rec := &store.ImageCollectionRecord{}
	id := s.hasher.Key("image_collections", path)
	if err := s.upsert(ctx, ImageCollections, id, bson.M{"path": path}, bson.M{"properties": props}, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindImageCollection returns the collection at path.
func (s *Store) FindImageCollection(ctx context.Context, path string) (*store.ImageCollectionRecord, error) {
	rec := &store.ImageCollectionRecord{}
	if err := s.findOne(ctx, ImageCollections, bson.M{"path": path}, rec, "image collection "+path); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpsertImage creates or updates the image (collectionID, path).
func (s *Store) UpsertImage(ctx context.Context, collectionID, path string, props map[string]any) (*store.ImageRecord, error) {
	rec := &store.ImageRecord{}
	id := s.hasher.Key("images", collectionID, path)
	onInsert := bson.M{"imageCollection": collectionID, "path": path}
	if err := s.upsert(ctx, Images, id, onInsert, bson.M{"properties": props}, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindImage returns the image (collectionID, path).
func (s *Store) FindImage(ctx context.Context, collectionID, path string) (*store.ImageRecord, error) {
	rec := &store.ImageRecord{}
	filter := bson.M{"imageCollection": collectionID, "path": path}
	if err := s.findOne(ctx, Images, filter, rec, "image "+path); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListImages returns the images of a collection ordered by path.
func (s *Store) ListImages(ctx context.Context, collectionID string) ([]store.ImageRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "path", Value: 1}})
	cur, err := s.db.Collection(Images).Find(ctx, bson.M{"imageCollection": collectionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	var out []store.ImageRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode images: %w", err)
	}
	return out, nil
}

// payloadFiles returns the GridFS file IDs attached to an image.
func (s *Store) payloadFiles(ctx context.Context, imageID string) ([]primitive.ObjectID, error) {
	cur, err := s.bucket.FindContext(ctx, bson.M{"metadata.image": imageID})
	if err != nil {
		return nil, fmt.Errorf("failed to find payload: %w", err)
	}
	var files []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("failed to decode payload files: %w", err)
	}
	ids := make([]primitive.ObjectID, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	return ids, nil
}

// ReplaceImagePayload uploads r to GridFS, then drops the previous files.
func (s *Store) ReplaceImagePayload(ctx context.Context, imageID string, p store.Payload, r io.Reader) error {
	rec := &store.ImageRecord{}
	if err := s.findOne(ctx, Images, bson.M{"_id": imageID}, rec, "image "+imageID); err != nil {
		return err
	}
	previous, err := s.payloadFiles(ctx, imageID)
	if err != nil {
		return err
	}

	meta := bson.M{"image": imageID, "contentType": p.ContentType, "checksum": p.Checksum}
	if _, err := s.bucket.UploadFromStream(rec.Path, r, options.GridFSUpload().SetMetadata(meta)); err != nil {
		return fmt.Errorf("failed to upload payload: %w", err)
	}
	for _, id := range previous {
		if err := s.bucket.DeleteContext(ctx, id); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("failed to delete previous payload: %w", err)
		}
	}

	set := bson.M{"contentType": p.ContentType, "checksum": p.Checksum, "size": p.Size, "updatedAt": s.clock.Now()}
	if _, err := s.db.Collection(Images).UpdateByID(ctx, imageID, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("failed to update image %s: %w", imageID, err)
	}
	return nil
}

// OpenImagePayload opens the image's GridFS file.
func (s *Store) OpenImagePayload(ctx context.Context, imageID string) (io.ReadCloser, error) {
	files, err := s.payloadFiles(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("payload of image %s: %w", imageID, store.ErrNotFound)
	}
	stream, err := s.bucket.OpenDownloadStream(files[len(files)-1])
	if err != nil {
		return nil, fmt.Errorf("failed to open payload: %w", err)
	}
	return stream, nil
}

// UpsertFeatureCollection creates or updates the collection with code.
func (s *Store) UpsertFeatureCollection(ctx context.Context, code, typ string, props map[string]any, columns []geo.Field) (*store.FeatureCollectionRecord, error) {
	rec := &store.FeatureCollectionRecord{}
	id := s.hasher.Key("feature_collections", code)
	set := bson.M{"type": typ, "properties": props, "columns": columns}
	if err := s.upsert(ctx, FeatureCollections, id, bson.M{"code": code}, set, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindFeatureCollection returns the collection with code.
func (s *Store) FindFeatureCollection(ctx context.Context, code string) (*store.FeatureCollectionRecord, error) {
	rec := &store.FeatureCollectionRecord{}
	if err := s.findOne(ctx, FeatureCollections, bson.M{"code": code}, rec, "feature collection "+code); err != nil {
		return nil, err
	}
	return rec, nil
}

// featureDoc is the stored form of a feature row. The geometry is kept as
// a document so it can be indexed as GeoJSON.
type featureDoc struct {
	ID                string         `bson:"_id"`
	FeatureCollection string         `bson:"featureCollection"`
	Seq               int            `bson:"seq"`
	Type              string         `bson:"type"`
	Geometry          bson.D         `bson:"geometry"`
	Properties        map[string]any `bson:"properties"`
	CreatedAt         time.Time      `bson:"createdAt"`
}

// InsertFeatures appends rows after the existing ones.
func (s *Store) InsertFeatures(ctx context.Context, collectionID string, rows []store.FeatureRecord) error {
	if len(rows) == 0 {
		return nil
	}
	coll := s.db.Collection(Features)
	n, err := coll.CountDocuments(ctx, bson.M{"featureCollection": collectionID})
	if err != nil {
		return fmt.Errorf("failed to count features: %w", err)
	}
	now := s.clock.Now()
	docs := make([]any, len(rows))
	for i, row := range rows {
		seq := int(n) + i
		var geom bson.D
		if err := bson.UnmarshalExtJSON(row.Geometry, false, &geom); err != nil {
			return fmt.Errorf("feature %d: invalid geometry: %w", seq, err)
		}
		docs[i] = featureDoc{
			ID:                s.hasher.Key("features", collectionID, strconv.Itoa(seq)),
			FeatureCollection: collectionID,
			Seq:               seq,
			Type:              row.Type,
			Geometry:          geom,
			Properties:        row.Properties,
			CreatedAt:         now,
		}
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert features: %w", err)
	}
	return nil
}

// ListFeatures returns the rows of a collection ordered by Seq.
func (s *Store) ListFeatures(ctx context.Context, collectionID string) ([]store.FeatureRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cur, err := s.db.Collection(Features).Find(ctx, bson.M{"featureCollection": collectionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list features: %w", err)
	}
	var docs []featureDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode features: %w", err)
	}
	out := make([]store.FeatureRecord, len(docs))
	for i, d := range docs {
		geom, err := bson.MarshalExtJSON(d.Geometry, false, false)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", d.Seq, err)
		}
		out[i] = store.FeatureRecord{
			ID:                d.ID,
			FeatureCollection: d.FeatureCollection,
			Seq:               d.Seq,
			Type:              d.Type,
			Geometry:          geom,
			Properties:        d.Properties,
			CreatedAt:         d.CreatedAt.UTC(),
		}
	}
	return out, nil
}

// DeleteFeatures removes every row of a collection.
func (s *Store) DeleteFeatures(ctx context.Context, collectionID string) (int, error) {
	res, err := s.db.Collection(Features).DeleteMany(ctx, bson.M{"featureCollection": collectionID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete features: %w", err)
	}
	return int(res.DeletedCount), nil
}

// Drop removes every collection and payload of the database.
func (s *Store) Drop(ctx context.Context) error {
	if err := s.bucket.DropContext(ctx); err != nil {
		return fmt.Errorf("failed to drop payloads: %w", err)
	}
	return s.db.Drop(ctx)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

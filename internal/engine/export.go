package engine

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/danieljhkim/geoengine/internal/geo"
	"github.com/danieljhkim/geoengine/internal/store"
	"github.com/danieljhkim/geoengine/internal/vector"
)

// ExportImage materializes req.Image and writes it to req.Target.
//
// A file target is written as GeoTIFF. A db://collection/name target
// upserts the image collection and the image record, then replaces the
// record's payload with the encoded raster. Exporting to the same target
// twice leaves one record holding the second export.
func (e *Engine) ExportImage(ctx context.Context, req *ExportImageRequest) (*ExportImageResult, error) {
	addr, err := e.resolve(req.Target)
	if err != nil {
		return nil, err
	}
	if err := addr.RequireCollection(); err != nil {
		return nil, err
	}
	log := e.log.WithFields(logrus.Fields{"op": "export_image", "target": addr.String()})

	log.WithField("phase", "materialize").Debug("materializing image")
	if req.Image.BandCount() == 0 {
		return nil, ErrEmptyImage
	}
	img, err := req.Image.GetInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to materialize image: %w", err)
	}
	ds, err := datasetFromImage(img)
	if err != nil {
		return nil, err
	}

	result := &ExportImageResult{Target: addr.String(), Bands: img.BandNames()}
	log = log.WithFields(logrus.Fields{"bands": len(ds.Bands), "type": ds.Type.String()})

	if !addr.IsStore() {
		log.WithField("phase", "write").Debug("writing raster file")
		if err := e.delegate.WriteRaster(addr.Path, ds); err != nil {
			return nil, err
		}
		log.Info("exported image")
		return result, nil
	}

	log.WithField("phase", "upsert").Debug("upserting image records")
	coll, err := e.store.UpsertImageCollection(ctx, addr.Collection, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert image collection %s: %w", addr.Collection, err)
	}
	rec, err := e.store.UpsertImage(ctx, coll.ID, addr.Name, img.Properties().ToMap())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert image %s: %w", addr, err)
	}
	result.CollectionID, result.ImageID = coll.ID, rec.ID

	log.WithField("phase", "payload").Debug("replacing image payload")
	payload, err := e.replacePayload(ctx, rec.ID, ds)
	if err != nil {
		return nil, err
	}
	result.Checksum, result.Size = payload.Checksum, payload.Size

	log.WithFields(logrus.Fields{"image_id": rec.ID, "size": payload.Size}).Info("exported image")
	return result, nil
}

// replacePayload encodes ds into a scoped temp dir and streams it to the
// store. The temp dir is removed on every path.
func (e *Engine) replacePayload(ctx context.Context, imageID string, ds *geo.Dataset) (store.Payload, error) {
	dir, cleanup, err := e.fs.TempDir("geoengine-export-*")
	if err != nil {
		return store.Payload{}, err
	}
	defer cleanup()

	path := filepath.Join(dir, imageID+".tif")
	if err := e.delegate.WriteRaster(path, ds); err != nil {
		return store.Payload{}, err
	}

	payload := store.Payload{ContentType: store.ContentTypeGeoTIFF}
	if payload.Checksum, payload.Size, err = e.sum(path); err != nil {
		return store.Payload{}, err
	}

	f, err := e.fs.Open(path)
	if err != nil {
		return store.Payload{}, fmt.Errorf("failed to open encoded payload: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := e.store.ReplaceImagePayload(ctx, imageID, payload, f); err != nil {
		return store.Payload{}, fmt.Errorf("failed to replace payload of image %s: %w", imageID, err)
	}
	return payload, nil
}

// sum returns the checksum and size of the file at path.
func (e *Engine) sum(path string) (string, int64, error) {
	r, err := e.fs.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open encoded payload: %w", err)
	}
	defer func() { _ = r.Close() }()

	cr := &countingReader{r: r}
	checksum, err := e.hasher.Sum(cr)
	if err != nil {
		return "", 0, err
	}
	return checksum, cr.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// ExportTable materializes req.Collection and writes it to req.Target.
//
// A file target is written as Shapefile or GeoJSON by extension. A db://code
// target upserts the feature collection and replaces all of its feature
// rows, so exporting the same collection twice stores it once.
func (e *Engine) ExportTable(ctx context.Context, req *ExportTableRequest) (*ExportTableResult, error) {
	addr, err := e.resolve(req.Target)
	if err != nil {
		return nil, err
	}
	log := e.log.WithFields(logrus.Fields{"op": "export_table", "target": addr.String()})

	log.WithField("phase", "materialize").Debug("materializing feature collection")
	fc := req.Collection
	info, err := fc.GetInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to materialize feature collection: %w", err)
	}
	result := &ExportTableResult{Target: addr.String(), Written: len(info.Features)}

	if !addr.IsStore() {
		log.WithField("phase", "write").Debug("writing vector file")
		if err := e.delegate.WriteVector(addr.Path, fc.Layer()); err != nil {
			return nil, err
		}
		log.WithField("features", result.Written).Info("exported feature collection")
		return result, nil
	}

	rows, err := e.featureRows(fc, info)
	if err != nil {
		return nil, err
	}

	log.WithField("phase", "upsert").Debug("upserting feature collection")
	rec, err := e.store.UpsertFeatureCollection(ctx, addr.Key, info.Type, info.Properties.ToMap(), info.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert feature collection %s: %w", addr.Key, err)
	}
	result.CollectionID = rec.ID

	log.WithField("phase", "replace").Debug("replacing feature rows")
	if result.Replaced, err = e.store.DeleteFeatures(ctx, rec.ID); err != nil {
		return nil, fmt.Errorf("failed to delete features of %s: %w", addr, err)
	}
	if err := e.store.InsertFeatures(ctx, rec.ID, rows); err != nil {
		return nil, fmt.Errorf("failed to insert features of %s: %w", addr, err)
	}

	log.WithFields(logrus.Fields{
		"collection_id": rec.ID,
		"features":      result.Written,
		"replaced":      result.Replaced,
	}).Info("exported feature collection")
	return result, nil
}

// featureRows converts materialized features to store rows. Stored
// geometry is GeoJSON in WGS84.
func (e *Engine) featureRows(fc vector.FeatureCollection, info *vector.Info) ([]store.FeatureRecord, error) {
	features := fc.Features()
	rows := make([]store.FeatureRecord, len(features))
	for i, f := range features {
		g, err := e.delegate.TransformGeometry(f.Geometry(), geo.WGS84)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		geom, err := g.GeoJSON()
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		rows[i] = store.FeatureRecord{
			Type:       info.Features[i].Type,
			Geometry:   geom,
			Properties: info.Features[i].Properties.ToMap(),
		}
	}
	return rows, nil
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/danieljhkim/geoengine/internal/address"
	"github.com/danieljhkim/geoengine/internal/collection"
	"github.com/danieljhkim/geoengine/internal/element"
	"github.com/danieljhkim/geoengine/internal/geo"
	"github.com/danieljhkim/geoengine/internal/raster"
	"github.com/danieljhkim/geoengine/internal/store"
	"github.com/danieljhkim/geoengine/internal/vector"
)

// LoadImage loads one image. A db://collection/name source reads the stored
// payload; anything else is a GeoTIFF file. The image id is the source.
func (e *Engine) LoadImage(ctx context.Context, source string) (raster.Image, error) {
	addr, err := e.resolve(source)
	if err != nil {
		return raster.Image{}, err
	}
	log := e.log.WithFields(logrus.Fields{"op": "load_image", "source": addr.String()})

	if !addr.IsStore() {
		if err := e.fileExists(addr); err != nil {
			return raster.Image{}, err
		}
		ds, err := e.delegate.OpenRaster(addr.Path)
		if err != nil {
			return raster.Image{}, err
		}
		log.WithField("bands", len(ds.Bands)).Debug("loaded raster file")
		return imageFromDataset(addr.String(), ds, nil)
	}

	if err := addr.RequireCollection(); err != nil {
		return raster.Image{}, err
	}
	coll, err := e.store.FindImageCollection(ctx, addr.Collection)
	if err != nil {
		return raster.Image{}, notFound(err, "image collection %s", addr.Collection)
	}
	rec, err := e.store.FindImage(ctx, coll.ID, addr.Name)
	if err != nil {
		return raster.Image{}, notFound(err, "image %s", addr)
	}
	img, err := e.loadImageRecord(ctx, addr.String(), rec)
	if err != nil {
		return raster.Image{}, err
	}
	log.WithFields(logrus.Fields{"image_id": rec.ID, "bands": img.BandCount()}).Debug("loaded stored image")
	return img, nil
}

func (e *Engine) loadImageRecord(ctx context.Context, id string, rec *store.ImageRecord) (raster.Image, error) {
	r, err := e.store.OpenImagePayload(ctx, rec.ID)
	if err != nil {
		return raster.Image{}, notFound(err, "payload of image %s", id)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return raster.Image{}, fmt.Errorf("failed to read payload of image %s: %w", id, err)
	}
	ds, err := e.delegate.DecodeRaster(data)
	if err != nil {
		return raster.Image{}, fmt.Errorf("failed to decode image %s: %w", id, err)
	}
	return imageFromDataset(id, ds, rec.Properties)
}

// LoadImageCollection loads every image stored under a db:// collection
// path, ordered by name. A local directory loads its .tif files in name
// order.
func (e *Engine) LoadImageCollection(ctx context.Context, source string) (raster.ImageCollection, error) {
	addr, err := e.resolve(source)
	if err != nil {
		return raster.ImageCollection{}, err
	}
	op := element.Operation{Func: "ImageCollection.load", Args: []any{addr.String()}}

	if !addr.IsStore() {
		return e.loadDirectory(ctx, addr, op)
	}

	coll, err := e.store.FindImageCollection(ctx, addr.Key)
	if err != nil {
		return raster.ImageCollection{}, notFound(err, "image collection %s", addr.Key)
	}
	records, err := e.store.ListImages(ctx, coll.ID)
	if err != nil {
		return raster.ImageCollection{}, fmt.Errorf("failed to list images of %s: %w", addr, err)
	}
	images := make([]raster.Image, 0, len(records))
	for i := range records {
		id := address.Scheme + coll.Path + "/" + records[i].Path
		img, err := e.loadImageRecord(ctx, id, &records[i])
		if err != nil {
			return raster.ImageCollection{}, err
		}
		images = append(images, img)
	}
	e.log.WithFields(logrus.Fields{"op": "load_collection", "source": addr.String(), "images": len(images)}).Debug("loaded stored image collection")

	ic := raster.ImageCollectionFromList(op, collection.New(images...))
	ic = raster.ImageCollection{Collection: ic.WithElement(ic.Element().WithID(addr.String()))}
	if len(coll.Properties) == 0 {
		return ic, nil
	}
	return ic.Set(coll.Properties)
}

func (e *Engine) loadDirectory(ctx context.Context, addr address.Address, op element.Operation) (raster.ImageCollection, error) {
	names, err := e.fs.ReadDir(addr.Path)
	if err != nil {
		return raster.ImageCollection{}, fmt.Errorf("failed to read %s: %w", addr.Path, err)
	}
	var sources []string
	for _, name := range names {
		switch strings.ToLower(filepath.Ext(name)) {
		case ".tif", ".tiff":
			sources = append(sources, filepath.Join(addr.Path, name))
		}
	}
	if len(sources) == 0 {
		return raster.ImageCollection{}, fmt.Errorf("%w: no rasters in %s", ErrSourceNotFound, addr.Path)
	}
	ic, err := e.ImageCollectionFrom(ctx, sources...)
	if err != nil {
		return raster.ImageCollection{}, err
	}
	return raster.ImageCollection{Collection: ic.WithElement(ic.Element().WithOperation(op).WithID(addr.Path))}, nil
}

// ImageCollectionFrom loads each source with LoadImage, in order.
func (e *Engine) ImageCollectionFrom(ctx context.Context, sources ...string) (raster.ImageCollection, error) {
	images := make([]raster.Image, 0, len(sources))
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return raster.ImageCollection{}, err
		}
		img, err := e.LoadImage(ctx, source)
		if err != nil {
			return raster.ImageCollection{}, err
		}
		images = append(images, img)
	}
	return raster.NewImageCollection(images...), nil
}

// LoadFeatureCollection loads a stored collection by code (db://code) or a
// Shapefile/GeoJSON file.
func (e *Engine) LoadFeatureCollection(ctx context.Context, source string) (vector.FeatureCollection, error) {
	addr, err := e.resolve(source)
	if err != nil {
		return vector.FeatureCollection{}, err
	}
	log := e.log.WithFields(logrus.Fields{"op": "load_table", "source": addr.String()})

	if !addr.IsStore() {
		if err := e.fileExists(addr); err != nil {
			return vector.FeatureCollection{}, err
		}
		layer, err := e.delegate.OpenVector(addr.Path)
		if err != nil {
			return vector.FeatureCollection{}, err
		}
		log.WithFields(logrus.Fields{"features": len(layer.Rows), "crs": layer.CRS}).Debug("loaded vector file")
		return vector.FromLayer(addr.String(), layer), nil
	}

	rec, err := e.store.FindFeatureCollection(ctx, addr.Key)
	if err != nil {
		return vector.FeatureCollection{}, notFound(err, "feature collection %s", addr.Key)
	}
	rows, err := e.store.ListFeatures(ctx, rec.ID)
	if err != nil {
		return vector.FeatureCollection{}, fmt.Errorf("failed to list features of %s: %w", addr, err)
	}
	features := make([]vector.Feature, len(rows))
	for i, row := range rows {
		g, err := geo.FromGeoJSON(row.Geometry, geo.WGS84)
		if err != nil {
			return vector.FeatureCollection{}, fmt.Errorf("feature %d of %s: %w", row.Seq, addr, err)
		}
		features[i] = vector.NewFeature(g, row.Properties).WithID(row.ID)
	}
	log.WithField("features", len(features)).Debug("loaded stored feature collection")

	return vector.NewFeatureCollection(vector.FeatureCollectionOptions{
		ID:         addr.String(),
		Type:       rec.Type,
		Columns:    rec.Columns,
		Features:   features,
		Properties: rec.Properties,
	}), nil
}

// notFound maps store.ErrNotFound to ErrSourceNotFound.
func notFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, what)
	}
	return fmt.Errorf("failed to find %s: %w", what, err)
}

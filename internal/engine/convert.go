package engine

import (
	"fmt"

	"github.com/danieljhkim/geoengine/internal/geo"
	"github.com/danieljhkim/geoengine/internal/raster"
)

// imageFromDataset builds an image whose bands are named B1..Bn.
func imageFromDataset(id string, ds *geo.Dataset, props map[string]any) (raster.Image, error) {
	bands := make([]raster.Band, len(ds.Bands))
	for i, data := range ds.Bands {
		b, err := raster.NewBand(raster.BandOptions{
			Name:      fmt.Sprintf("B%d", i+1),
			Type:      ds.Type,
			Cols:      ds.Cols,
			Rows:      ds.Rows,
			CRS:       ds.CRS,
			Transform: ds.Transform,
			Data:      data,
		})
		if err != nil {
			return raster.Image{}, fmt.Errorf("failed to load %s: %w", id, err)
		}
		bands[i] = b
	}
	img := raster.NewImage(bands...).WithID(id)
	if len(props) == 0 {
		return img, nil
	}
	return img.Set(props)
}

// datasetFromImage packs a materialized image into one raster. Bands must
// share size and georeference; constant bands are expanded to the grid.
func datasetFromImage(img raster.Image) (*geo.Dataset, error) {
	bands := img.Bands()
	if len(bands) == 0 {
		return nil, ErrEmptyImage
	}
	ref := bands[0]
	for _, b := range bands {
		if !b.IsConstant() {
			ref = b
			break
		}
	}

	ds := &geo.Dataset{
		Cols:      ref.Cols(),
		Rows:      ref.Rows(),
		CRS:       ref.CRS(),
		Transform: ref.Transform(),
		Bands:     make([][]float64, len(bands)),
	}
	types := make([]raster.SampleType, len(bands))
	for i, b := range bands {
		values, err := b.Values()
		if err != nil {
			return nil, err
		}
		switch {
		case b.IsConstant() && !ref.IsConstant():
			values = repeat(values[0], ds.Cols*ds.Rows)
		case b.Cols() != ds.Cols || b.Rows() != ds.Rows:
			return nil, fmt.Errorf("%w: band %s is %dx%d, band %s is %dx%d",
				ErrGridMismatch, b.Name(), b.Cols(), b.Rows(), ref.Name(), ds.Cols, ds.Rows)
		case !geo.SameCRS(b.CRS(), ds.CRS) || b.Transform() != ds.Transform:
			return nil, fmt.Errorf("%w: band %s has a different georeference than band %s",
				ErrGridMismatch, b.Name(), ref.Name())
		}
		ds.Bands[i] = values
		types[i] = b.Type()
	}
	ds.Type = raster.PromoteTypes(types...)
	return ds, nil
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

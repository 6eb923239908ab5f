package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/geoengine/internal/engine"
	"github.com/danieljhkim/geoengine/internal/raster"
)

var reduceReducer string

var reduceCmd = &cobra.Command{
	Use:   "reduce <target> <source>...",
	Short: "Reduce a stack of images band by band",
	Long: `Fold the images of a collection pixel by pixel with sum, min, max or mean
and export the result.

A single source that is not a raster file names a whole collection: a
db://collection path or a directory of GeoTIFFs. The first image supplies
band names, georeference and properties.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reducer, err := raster.ParseReducer(reduceReducer)
		if err != nil {
			return err
		}

		ctx := context.Background()
		eng, closeStore, err := newEngine(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		ic, err := loadCollection(ctx, eng, args[1:])
		if err != nil {
			return err
		}
		img, err := ic.Reduce(reducer)
		if err != nil {
			return err
		}
		return exportImage(ctx, eng, img, args[0])
	},
}

func init() {
	reduceCmd.Flags().StringVar(&reduceReducer, "reducer", "mean", "Reducer: sum, min, max or mean")
}

// loadCollection loads one collection source or a list of image sources.
func loadCollection(ctx context.Context, eng *engine.Engine, sources []string) (raster.ImageCollection, error) {
	if len(sources) == 1 {
		switch strings.ToLower(filepath.Ext(sources[0])) {
		case ".tif", ".tiff":
		default:
			return eng.LoadImageCollection(ctx, sources[0])
		}
	}
	return eng.ImageCollectionFrom(ctx, sources...)
}

package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/geoengine/internal/engine"
	"github.com/danieljhkim/geoengine/internal/geo"
	"github.com/danieljhkim/geoengine/internal/raster"
)

var (
	exportSelect string
	exportAs     string
	exportType   string
	exportBounds string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export images and feature collections",
	Long: `Load a source and write it to a file or to the record store.

Exporting to the same db:// key twice replaces the stored record, it never
creates a second one.`,
}

var exportImageCmd = &cobra.Command{
	Use:   "image <source> <target>",
	Short: "Export an image",
	Long: `Export an image as GeoTIFF (file target) or as a stored image record
(db://collection/name).

Bands can be selected and renamed with --select and --as, and cast to a
sample type with --type.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		eng, closeStore, err := newEngine(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		img, err := eng.LoadImage(ctx, args[0])
		if err != nil {
			return err
		}
		if img, err = shapeImage(img, exportSelect, exportAs, exportType); err != nil {
			return err
		}
		return exportImage(ctx, eng, img, args[1])
	},
}

var exportTableCmd = &cobra.Command{
	Use:   "table <source> <target>",
	Short: "Export a feature collection",
	Long: `Export a feature collection as Shapefile or GeoJSON (by target extension)
or as a stored collection (db://code).

--bounds keeps only the features intersecting the WGS84 rectangle
xmin,ymin,xmax,ymax.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		eng, closeStore, err := newEngine(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		fc, err := eng.LoadFeatureCollection(ctx, args[0])
		if err != nil {
			return err
		}
		if exportBounds != "" {
			rect, err := parseBounds(exportBounds)
			if err != nil {
				return err
			}
			if fc, err = fc.FilterBounds(eng.Delegate(), rect); err != nil {
				return err
			}
		}

		result, err := eng.ExportTable(ctx, &engine.ExportTableRequest{Collection: fc, Target: args[1]})
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(result)
		}
		PrintSuccess(fmt.Sprintf("Exported %s to %s", PrintCount(result.Written, "feature", "features"), result.Target))
		if result.Replaced > 0 {
			PrintWarning(fmt.Sprintf("Replaced %s", PrintCount(result.Replaced, "stored feature", "stored features")))
		}
		return nil
	},
}

func init() {
	exportImageCmd.Flags().StringVar(&exportSelect, "select", "", "Comma separated band names to keep, in order")
	exportImageCmd.Flags().StringVar(&exportAs, "as", "", "Comma separated new names for the selected bands")
	exportImageCmd.Flags().StringVar(&exportType, "type", "", "Sample type to cast to (int16, float32, ...)")
	exportTableCmd.Flags().StringVar(&exportBounds, "bounds", "", "Keep features intersecting xmin,ymin,xmax,ymax")

	exportCmd.AddCommand(exportImageCmd)
	exportCmd.AddCommand(exportTableCmd)
}

// shapeImage applies the --select, --as and --type flags.
func shapeImage(img raster.Image, selectFlag, asFlag, typeFlag string) (raster.Image, error) {
	var err error
	selectors, names := splitList(selectFlag), splitList(asFlag)
	switch {
	case len(selectors) > 0:
		if img, err = img.Select(selectors, names...); err != nil {
			return raster.Image{}, err
		}
	case len(names) > 0:
		if img, err = img.Rename(names...); err != nil {
			return raster.Image{}, err
		}
	}
	if typeFlag != "" {
		t, err := geo.ParseDataType(typeFlag)
		if err != nil {
			return raster.Image{}, err
		}
		if img, err = img.Cast(t); err != nil {
			return raster.Image{}, err
		}
	}
	return img, nil
}

// parseBounds parses xmin,ymin,xmax,ymax into a WGS84 rectangle.
func parseBounds(s string) (geo.Geometry, error) {
	parts := splitList(s)
	if len(parts) != 4 {
		return geo.Geometry{}, fmt.Errorf("bounds must be xmin,ymin,xmax,ymax, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return geo.Geometry{}, fmt.Errorf("invalid bounds value %q: %w", p, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return geo.Geometry{}, fmt.Errorf("bounds %q have min greater than max", s)
	}
	return geo.Rectangle(v[0], v[1], v[2], v[3]), nil
}

// exportImage exports img and reports the result.
func exportImage(ctx context.Context, eng *engine.Engine, img raster.Image, target string) error {
	result, err := eng.ExportImage(ctx, &engine.ExportImageRequest{Image: img, Target: target})
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(result)
	}
	PrintSuccess(fmt.Sprintf("Exported %s to %s", PrintCount(len(result.Bands), "band", "bands"), result.Target))
	if result.ImageID != "" {
		PrintLabelValue("Image", result.ImageID)
		PrintLabelValue("Checksum", result.Checksum)
		PrintLabelValue("Size", PrintCount(int(result.Size), "byte", "bytes"))
	}
	return nil
}

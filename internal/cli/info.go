package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/geoengine/internal/element"
	"github.com/danieljhkim/geoengine/internal/engine"
	"github.com/danieljhkim/geoengine/internal/geo"
	"github.com/danieljhkim/geoengine/internal/raster"
)

var infoTable bool

// bandInfo is the JSON form of one band.
type bandInfo struct {
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	Cols      int           `json:"cols"`
	Rows      int           `json:"rows"`
	CRS       string        `json:"crs"`
	Transform geo.Transform `json:"transform"`
}

// imageInfo is the JSON form of an image.
type imageInfo struct {
	ID         string             `json:"id"`
	Bands      []bandInfo         `json:"bands"`
	Properties element.Properties `json:"properties"`
}

func describeImage(img raster.Image) imageInfo {
	info := imageInfo{ID: img.ID(), Properties: img.Properties()}
	for _, b := range img.Bands() {
		info.Bands = append(info.Bands, bandInfo{
			Name:      b.Name(),
			Type:      b.Type().String(),
			Cols:      b.Cols(),
			Rows:      b.Rows(),
			CRS:       b.CRS(),
			Transform: b.Transform(),
		})
	}
	return info
}

var infoCmd = &cobra.Command{
	Use:   "info <source>",
	Short: "Describe an image or feature collection",
	Long: `Load a source and print its bands or columns and its properties.

Images are read from GeoTIFF files or db://collection/name keys. With --table
the source is read as a feature collection (Shapefile, GeoJSON or db://code).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		eng, closeStore, err := newEngine(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		if infoTable {
			return runTableInfo(ctx, eng, args[0])
		}
		return runImageInfo(ctx, eng, args[0])
	},
}

func init() {
	infoCmd.Flags().BoolVar(&infoTable, "table", false, "Read the source as a feature collection")
}

func runImageInfo(ctx context.Context, eng *engine.Engine, source string) error {
	img, err := eng.LoadImage(ctx, source)
	if err != nil {
		return err
	}
	info := describeImage(img)
	if jsonOutput {
		return outputJSON(info)
	}

	PrintSection(fmt.Sprintf("Image %s", info.ID))
	rows := make([][]string, 0, len(info.Bands))
	for _, b := range info.Bands {
		rows = append(rows, []string{b.Name, b.Type, fmt.Sprintf("%dx%d", b.Cols, b.Rows), b.CRS})
	}
	PrintTable([]string{"Band", "Type", "Size", "CRS"}, rows)
	printProperties(img.Properties().ToMap())
	return nil
}

func runTableInfo(ctx context.Context, eng *engine.Engine, source string) error {
	fc, err := eng.LoadFeatureCollection(ctx, source)
	if err != nil {
		return err
	}
	info, err := fc.GetInfo()
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(info)
	}

	PrintSection(fmt.Sprintf("Feature collection %s", source))
	PrintLabelValue("Type", info.Type)
	PrintLabelValue("Features", PrintCount(len(info.Features), "feature", "features"))
	if len(info.Columns) > 0 {
		rows := make([][]string, 0, len(info.Columns))
		for _, c := range info.Columns {
			rows = append(rows, []string{c.Name, c.Type})
		}
		_, _ = fmt.Fprintln(out)
		PrintTable([]string{"Column", "Type"}, rows)
	}
	printProperties(info.Properties.ToMap())
	return nil
}

func printProperties(props map[string]any) {
	PrintSection("Properties")
	if len(props) == 0 {
		PrintEmptyState("No properties")
		return
	}
	PrintList(formatProperties(props), 1)
}

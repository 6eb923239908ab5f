package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	ndviNIR string
	ndviRed string
)

var ndviCmd = &cobra.Command{
	Use:   "ndvi <source> <target>",
	Short: "Compute a normalized difference index",
	Long: `Compute (nir - red) / (nir + red) over the named bands of an image and
export the single-band result.

Loaded rasters name their bands B1..Bn, so a Landsat 8 scene uses
--nir B5 --red B4.`,
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
		ndvi, err := img.NormalizedDifference(ndviNIR, ndviRed)
		if err != nil {
			return err
		}
		if ndvi, err = ndvi.Rename("ndvi"); err != nil {
			return err
		}
		return exportImage(ctx, eng, ndvi, args[1])
	},
}

func init() {
	ndviCmd.Flags().StringVar(&ndviNIR, "nir", "", "Near infrared band name")
	ndviCmd.Flags().StringVar(&ndviRed, "red", "", "Red band name")
	_ = ndviCmd.MarkFlagRequired("nir")
	_ = ndviCmd.MarkFlagRequired("red")
}

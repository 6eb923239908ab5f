package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danieljhkim/geoengine/internal/config"
	"github.com/danieljhkim/geoengine/internal/engine"
	"github.com/danieljhkim/geoengine/internal/fsops"
	"github.com/danieljhkim/geoengine/internal/geo"
	"github.com/danieljhkim/geoengine/internal/vector"
)

var testTransform = geo.Transform{-47, 0.25, 0, -23, 0, -0.25}

// setupTestEnv points the data root at a temp dir and writes a two-band
// Int16 scene. It returns the temp dir and the scene path.
func setupTestEnv(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GEOENGINE_ROOT", filepath.Join(dir, "root"))
	t.Setenv(config.EnvDBHost, "")
	t.Setenv(config.EnvDBName, "")

	scene := filepath.Join(dir, "scene.tif")
	k := geo.NewKernel(fsops.NewRealFS())
	err := k.WriteRaster(scene, &geo.Dataset{
		Cols:      2,
		Rows:      1,
		CRS:       geo.WGS84,
		Transform: testTransform,
		Type:      geo.Int16,
		Bands:     [][]float64{{10, 20}, {30, 60}},
	})
	if err != nil {
		t.Fatalf("WriteRaster failed: %v", err)
	}
	return dir, scene
}

// run executes the CLI with args and fresh flag values.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput, configPath, infoTable = false, "", false
	exportSelect, exportAs, exportType, exportBounds = "", "", "", ""
	ndviNIR, ndviRed, reduceReducer = "", "", "mean"

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func readRaster(t *testing.T, path string) *geo.Dataset {
	t.Helper()
	ds, err := geo.NewKernel(fsops.NewRealFS()).OpenRaster(path)
	if err != nil {
		t.Fatalf("OpenRaster failed: %v", err)
	}
	return ds
}

func TestExportImageAndInfo(t *testing.T) {
	_, scene := setupTestEnv(t)

	if _, err := run(t, "export", "image", scene, "db://scenes/a.tif", "--select", "B2,B1", "--as", "nir,red", "--type", "float32"); err != nil {
		t.Fatalf("export image failed: %v", err)
	}
	// Second export must replace, not duplicate.
	if _, err := run(t, "export", "image", scene, "db://scenes/a.tif", "--select", "B2,B1", "--as", "nir,red", "--type", "float32"); err != nil {
		t.Fatalf("second export image failed: %v", err)
	}

	output, err := run(t, "info", "db://scenes/a.tif", "--json")
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	var info imageInfo
	if err := json.Unmarshal([]byte(output), &info); err != nil {
		t.Fatalf("info output is not JSON: %v\n%s", err, output)
	}
	var names, types []string
	for _, b := range info.Bands {
		names = append(names, b.Name)
		types = append(types, b.Type)
	}
	// Loaded rasters always name their bands B1..Bn.
	if diff := cmp.Diff([]string{"B1", "B2"}, names); diff != "" {
		t.Errorf("band names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Float32", "Float32"}, types); diff != "" {
		t.Errorf("band types mismatch (-want +got):\n%s", diff)
	}
	if info.Bands[0].Transform != testTransform {
		t.Errorf("transform = %v", info.Bands[0].Transform)
	}
}

func TestNDVI(t *testing.T) {
	dir, scene := setupTestEnv(t)
	target := filepath.Join(dir, "ndvi.tif")

	if _, err := run(t, "ndvi", scene, target, "--nir", "B2", "--red", "B1"); err != nil {
		t.Fatalf("ndvi failed: %v", err)
	}
	ds := readRaster(t, target)
	if ds.Type != geo.Float32 {
		t.Errorf("type = %v, want Float32", ds.Type)
	}
	if diff := cmp.Diff([][]float64{{0.5, 0.5}}, ds.Bands); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	if _, err := run(t, "ndvi", scene, target, "--nir", "B9", "--red", "B1"); err == nil {
		t.Error("expected error for unknown band")
	}
}

func TestReduce(t *testing.T) {
	dir, scene := setupTestEnv(t)
	target := filepath.Join(dir, "sum.tif")

	if _, err := run(t, "reduce", target, scene, scene, "--reducer", "sum"); err != nil {
		t.Fatalf("reduce failed: %v", err)
	}
	ds := readRaster(t, target)
	if diff := cmp.Diff([][]float64{{20, 40}, {60, 120}}, ds.Bands); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	t.Run("stored collection", func(t *testing.T) {
		for _, name := range []string{"a.tif", "b.tif"} {
			if _, err := run(t, "export", "image", scene, "db://stack/"+name); err != nil {
				t.Fatalf("export failed: %v", err)
			}
		}
		mean := filepath.Join(dir, "mean.tif")
		if _, err := run(t, "reduce", mean, "db://stack", "--reducer", "mean"); err != nil {
			t.Fatalf("reduce failed: %v", err)
		}
		if diff := cmp.Diff([][]float64{{10, 20}, {30, 60}}, readRaster(t, mean).Bands); diff != "" {
			t.Errorf("values mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown reducer", func(t *testing.T) {
		if _, err := run(t, "reduce", target, scene, "--reducer", "median"); err == nil {
			t.Error("expected error for unknown reducer")
		}
	})
}

func TestExportTable(t *testing.T) {
	dir, _ := setupTestEnv(t)
	source := filepath.Join(dir, "places.geojson")
	err := geo.NewKernel(fsops.NewRealFS()).WriteVector(source, &geo.Layer{
		CRS:    geo.WGS84,
		Fields: []geo.Field{{Name: "name", Type: geo.FieldString}},
		Rows: []geo.Row{
			{Geometry: geo.Point(0.5, 0.5), Properties: map[string]any{"name": "inside"}},
			{Geometry: geo.Point(5, 5), Properties: map[string]any{"name": "outside"}},
		},
	})
	if err != nil {
		t.Fatalf("WriteVector failed: %v", err)
	}

	if _, err := run(t, "export", "table", source, "db://places", "--bounds", "0,0,1,1"); err != nil {
		t.Fatalf("export table failed: %v", err)
	}
	output, err := run(t, "info", "db://places", "--table", "--json")
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	var info vector.Info
	if err := json.Unmarshal([]byte(output), &info); err != nil {
		t.Fatalf("info output is not JSON: %v\n%s", err, output)
	}
	if len(info.Features) != 1 {
		t.Fatalf("got %d features, want 1", len(info.Features))
	}
	if v, _ := info.Features[0].Properties.Get("name"); v != "inside" {
		t.Errorf("name = %v", v)
	}
}

func TestMissingSource(t *testing.T) {
	dir, _ := setupTestEnv(t)
	_, err := run(t, "info", filepath.Join(dir, "missing.tif"))
	if !errors.Is(err, engine.ErrSourceNotFound) {
		t.Errorf("expected ErrSourceNotFound, got %v", err)
	}
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/danieljhkim/geoengine/internal/clock"
	"github.com/danieljhkim/geoengine/internal/config"
	"github.com/danieljhkim/geoengine/internal/engine"
	"github.com/danieljhkim/geoengine/internal/fsops"
	"github.com/danieljhkim/geoengine/internal/geo"
	"github.com/danieljhkim/geoengine/internal/hash"
	"github.com/danieljhkim/geoengine/internal/store"
	"github.com/danieljhkim/geoengine/internal/store/filestore"
	"github.com/danieljhkim/geoengine/internal/store/mongostore"
)

// newEngine creates a new engine with real implementations of all
// dependencies. The returned func releases the store.
func newEngine(ctx context.Context) (*engine.Engine, func(), error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get config paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = paths.Config
	}
	fs := fsops.NewRealFS()
	cfg, err := config.Load(fs, cfgPath, paths)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return nil, nil, err
	}

	hasher := hash.NewBlake2bHasher()
	st, err := openStore(ctx, cfg.Store, fs, hasher, clock.NewRealClock())
	if err != nil {
		return nil, nil, err
	}
	logger.WithField("driver", cfg.Store.Driver).Debug("opened store")

	closeStore := func() {
		if err := st.Close(context.Background()); err != nil {
			logger.WithError(err).Warn("failed to close store")
		}
	}
	return engine.New(st, geo.NewKernel(fs), fs, hasher, logger), closeStore, nil
}

// openStore opens the record store selected by the config driver.
func openStore(ctx context.Context, cfg config.StoreConfig, fs fsops.FS, hasher hash.Hasher, clk clock.Clock) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		st, err := mongostore.Open(ctx, mongostore.Options{URI: cfg.URI, Database: cfg.Database}, hasher, clk)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverFile:
		return filestore.New(fs, hasher, clk, cfg.Path), nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", config.ErrInvalidConfig, cfg.Driver)
	}
}

// splitList splits a comma separated flag value, dropping empty items.
func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// formatProperties renders a property map as sorted key=value lines.
func formatProperties(m map[string]any) []string {
	lines := make([]string, 0, len(m))
	for k, v := range m {
		lines = append(lines, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(lines)
	return lines
}

// formatJSON formats a value as JSON.
func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// formatError formats an error for display.
func formatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON outputs a value as JSON.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/danieljhkim/geoengine/internal/fsops"
)

// Store drivers.
const (
	DriverFile  = "file"
	DriverMongo = "mongo"
)

// Environment overrides for the store connection. Setting ENGINE_DB_HOST
// selects the mongo driver.
const (
	EnvDBHost = "ENGINE_DB_HOST"
	EnvDBName = "ENGINE_DB_NAME"
)

// ErrInvalidConfig is returned for configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the decoded config.hcl:
//
//	store {
//	  driver   = "mongo"
//	  uri      = "mongodb://${env.DB_HOST}:27017"
//	  database = "geoengine"
//	}
//
//	log {
//	  level  = "debug"
//	  format = "json"
//	}
type Config struct {
	Store StoreConfig `hcl:"store,block"`
	Log   LogConfig   `hcl:"log,block"`
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	Driver   string `hcl:"driver,optional"`
	Path     string `hcl:"path,optional"`
	URI      string `hcl:"uri,optional"`
	Database string `hcl:"database,optional"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"`
}

// file mirrors Config with optional blocks for decoding.
type file struct {
	Store *StoreConfig `hcl:"store,block"`
	Log   *LogConfig   `hcl:"log,block"`
}

// Default returns the configuration used when no file exists.
func Default(paths *Paths) *Config {
	return &Config{
		Store: StoreConfig{Driver: DriverFile, Path: paths.Store, Database: "geoengine"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path through fs (a missing file yields the defaults), applies
// the environment overrides and validates the result.
func Load(fs fsops.FS, path string, paths *Paths) (*Config, error) {
	cfg := Default(paths)

	data, err := fs.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(cfg, path, data); err != nil {
			return nil, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(cfg *Config, path string, data []byte) error {
	f, diags := hclparse.NewParser().ParseHCL(data, path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse config %s: %w", path, diags)
	}

	var parsed file
	if diags := gohcl.DecodeBody(f.Body, evalContext(), &parsed); diags.HasErrors() {
		return fmt.Errorf("failed to decode config %s: %w", path, diags)
	}
	if s := parsed.Store; s != nil {
		cfg.Store.Driver = pick(s.Driver, cfg.Store.Driver)
		cfg.Store.Path = pick(s.Path, cfg.Store.Path)
		cfg.Store.URI = pick(s.URI, cfg.Store.URI)
		cfg.Store.Database = pick(s.Database, cfg.Store.Database)
	}
	if l := parsed.Log; l != nil {
		cfg.Log.Level = pick(l.Level, cfg.Log.Level)
		cfg.Log.Format = pick(l.Format, cfg.Log.Format)
	}
	return nil
}

// evalContext exposes the process environment as env.NAME.
func evalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && hclIdentifier(k) {
			env[k] = cty.StringVal(v)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(env)},
	}
}

func hclIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return s != ""
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func (c *Config) applyEnv() {
	if host := os.Getenv(EnvDBHost); host != "" {
		c.Store.Driver = DriverMongo
		c.Store.URI = host
		if !strings.Contains(host, "://") {
			c.Store.URI = "mongodb://" + host
		}
	}
	if name := os.Getenv(EnvDBName); name != "" {
		c.Store.Database = name
	}
}

// Validate rejects unknown drivers, levels and formats and incomplete store
// settings.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverFile:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store path is required for the file driver", ErrInvalidConfig)
		}
	case DriverMongo:
		if c.Store.URI == "" || c.Store.Database == "" {
			return fmt.Errorf("%w: store uri and database are required for the mongo driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

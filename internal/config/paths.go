// Package config manages geoengine configuration and filesystem paths.
//
// The data root defaults to ~/.geoengine and can be moved with
// GEOENGINE_ROOT. It holds the local record store (store/) and the optional
// config.hcl file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the filesystem paths used by geoengine.
type Paths struct {
	// Root is the base directory for all geoengine data (default: ~/.geoengine)
	Root string

	// Store is the directory of the local record store
	Store string

	// Config is the path to the config file
	Config string
}

// DefaultPaths returns the default paths for geoengine.
// Paths can be overridden with environment variables:
// - GEOENGINE_ROOT: Override the root directory
func DefaultPaths() (*Paths, error) {
	root := os.Getenv("GEOENGINE_ROOT")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		root = filepath.Join(home, ".geoengine")
	}
	return PathsAt(root), nil
}

// PathsAt returns the paths under root.
func PathsAt(root string) *Paths {
	return &Paths{
		Root:   root,
		Store:  filepath.Join(root, "store"),
		Config: filepath.Join(root, "config.hcl"),
	}
}

// EnsureDirectories creates all necessary directories if they don't exist.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.Root, p.Store} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

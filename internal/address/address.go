// Package address parses data source and export target strings.
//
// A "db://a/b/c" address selects the store: the key is "a/b/c", the
// collection is everything before the last segment and the name is the last
// segment. Anything else is a local file path.
package address

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/danieljhkim/geoengine/internal/fsops"
)

// Scheme prefixes store addresses.
const Scheme = "db://"

// ErrInvalidAddress is returned for empty or malformed addresses.
var ErrInvalidAddress = errors.New("invalid address")

// Kind tells store keys from file paths.
type Kind int

const (
	File Kind = iota
	Store
)

func (k Kind) String() string {
	if k == Store {
		return "store"
	}
	return "file"
}

// Address is a parsed source or target.
type Address struct {
	Kind Kind
	// Path is the local file path (File only).
	Path string
	// Key is the full store key, Collection/Name its two halves (Store only).
	Key        string
	Collection string
	Name       string
}

// Parse classifies s. Store keys must be clean, safe relative paths. A
// single-segment key has an empty Collection.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if !strings.HasPrefix(s, Scheme) {
		return Address{Kind: File, Path: filepath.Clean(s)}, nil
	}

	key := strings.Trim(strings.TrimPrefix(s, Scheme), "/")
	if err := fsops.NewRealFS().ValidateRelPath(key); err != nil {
		return Address{}, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, s, err)
	}
	if path.Clean(key) != key {
		return Address{}, fmt.Errorf("%w: %s is not a clean key", ErrInvalidAddress, s)
	}
	collection, name := path.Split(key)
	collection = strings.TrimSuffix(collection, "/")
	return Address{Kind: Store, Key: key, Collection: collection, Name: name}, nil
}

// RequireCollection fails unless a is a store key with a collection part.
func (a Address) RequireCollection() error {
	if a.Kind == Store && a.Collection == "" {
		return fmt.Errorf("%w: %s needs a collection and a name", ErrInvalidAddress, a)
	}
	return nil
}

// IsStore reports whether a addresses the store.
func (a Address) IsStore() bool { return a.Kind == Store }

// Ext returns the lower-cased file extension of a file address.
func (a Address) Ext() string { return strings.ToLower(filepath.Ext(a.Path)) }

func (a Address) String() string {
	if a.Kind == Store {
		return Scheme + a.Key
	}
	return a.Path
}

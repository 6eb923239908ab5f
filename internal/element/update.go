package element

import (
	"fmt"
	"sort"
)

// UpdateKind tags how a PropertyUpdate was given by the caller.
type UpdateKind int

const (
	// UpdateSingle is a batch built from one property map.
	UpdateSingle UpdateKind = iota + 1
	// UpdatePairs is a batch built from a key, value, key, value... list.
	UpdatePairs
)

// String returns the kind name.
func (k UpdateKind) String() string {
	switch k {
	case UpdateSingle:
		return "single"
	case UpdatePairs:
		return "pairs"
	default:
		return "unknown"
	}
}

// Property is one key/value pair.
type Property struct {
	Key   string
	Value any
}

// PropertyUpdate is an ordered batch of property writes.
//
// It is the only representation Elements work with below the call
// boundary; ParseUpdate is where loosely shaped arguments are turned into one.
type PropertyUpdate struct {
	kind  UpdateKind
	pairs []Property
}

// Single builds an update from a property map. Keys are applied in lexical
// order so the resulting property order is deterministic.
func Single(m map[string]any) PropertyUpdate {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]Property, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, Property{Key: k, Value: m[k]})
	}
	return PropertyUpdate{kind: UpdateSingle, pairs: pairs}
}

// Pairs builds an update from an alternating key/value list. An empty list
// is an empty update.
func Pairs(kv ...any) (PropertyUpdate, error) {
	if len(kv)%2 != 0 {
		return PropertyUpdate{}, fmt.Errorf("%w: expected an even number of key/value arguments, got %d",
			ErrInvalidPropertyArgument, len(kv))
	}

	pairs := make([]Property, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return PropertyUpdate{}, fmt.Errorf("%w: key at position %d is %T, not a string",
				ErrInvalidPropertyArgument, i, kv[i])
		}
		pairs = append(pairs, Property{Key: key, Value: kv[i+1]})
	}
	return PropertyUpdate{kind: UpdatePairs, pairs: pairs}, nil
}

// ParseUpdate resolves the argument shapes accepted by Set: exactly one
// map[string]any (or Properties), or an even-length key/value list.
func ParseUpdate(args ...any) (PropertyUpdate, error) {
	if len(args) == 1 {
		switch v := args[0].(type) {
		case map[string]any:
			return Single(v), nil
		case Properties:
			pairs := make([]Property, 0, v.Len())
			for _, k := range v.keys {
				pairs = append(pairs, Property{Key: k, Value: v.values[k]})
			}
			return PropertyUpdate{kind: UpdateSingle, pairs: pairs}, nil
		case PropertyUpdate:
			return v, nil
		default:
			return PropertyUpdate{}, fmt.Errorf("%w: a single argument must be a property map, got %T",
				ErrInvalidPropertyArgument, args[0])
		}
	}
	return Pairs(args...)
}

// Kind reports how the update was built.
func (u PropertyUpdate) Kind() UpdateKind { return u.kind }

// Len returns the number of writes in the batch.
func (u PropertyUpdate) Len() int { return len(u.pairs) }

// Pairs returns the writes in application order.
func (u PropertyUpdate) Pairs() []Property {
	out := make([]Property, len(u.pairs))
	copy(out, u.pairs)
	return out
}

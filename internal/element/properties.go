package element

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Properties is an immutable, insertion-ordered property map.
//
// The zero value is an empty map ready to use. Every method that changes
// the map returns a new Properties; the receiver is never modified, so two
// Elements can safely share the same Properties value.
type Properties struct {
	keys   []string
	values map[string]any
}

// NewProperties builds a Properties from a plain map. Keys are ordered
// lexically because Go maps carry no order of their own.
func NewProperties(m map[string]any) Properties {
	if len(m) == 0 {
		return Properties{}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make(map[string]any, len(m))
	for k, v := range m {
		values[k] = v
	}
	return Properties{keys: keys, values: values}
}

// Len returns the number of properties.
func (p Properties) Len() int { return len(p.keys) }

// Keys returns the property keys in insertion order.
func (p Properties) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Get returns the value stored under key and whether it was present.
func (p Properties) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// With returns a copy of p with key set to value. An existing key keeps its
// position; a new key is appended.
func (p Properties) With(key string, value any) Properties {
	return p.apply([]Property{{Key: key, Value: value}})
}

// ToMap returns a plain copy of the properties.
func (p Properties) ToMap() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// apply returns a copy of p with every pair in order applied.
func (p Properties) apply(pairs []Property) Properties {
	keys := make([]string, len(p.keys), len(p.keys)+len(pairs))
	copy(keys, p.keys)
	values := make(map[string]any, len(p.values)+len(pairs))
	for k, v := range p.values {
		values[k] = v
	}

	for _, pair := range pairs {
		if _, exists := values[pair.Key]; !exists {
			keys = append(keys, pair.Key)
		}
		values[pair.Key] = pair.Value
	}

	return Properties{keys: keys, values: values}
}

// MarshalJSON encodes the properties as a JSON object in key order.
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal property %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the document's key order.
func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = Properties{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties must be a JSON object")
	}

	var pairs []Property
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected property key %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode property %q: %w", key, err)
		}
		pairs = append(pairs, Property{Key: key, Value: value})
	}

	*p = Properties{}.apply(pairs)
	return nil
}

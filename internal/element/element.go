// Package element provides the immutable base entity shared by images,
// bands, features and collections.
//
// An Element carries an optional identity, an ordered property bag and a
// description of the operation that produced it. Elements are values: every
// setter returns a new Element and leaves the receiver untouched.
//
// Key components:
//   - Element: identity + properties + producing Operation
//   - Properties: immutable insertion-ordered property map
//   - PropertyUpdate: the single internal form of a property write batch
package element

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPropertyArgument is returned when Set receives an argument shape
// other than one property map or an even-length key/value list.
var ErrInvalidPropertyArgument = errors.New("invalid property argument")

// Operation describes the function that produced an Element and the
// arguments it was called with.
type Operation struct {
	Func string
	Args []any
}

// String renders the operation as Func(arg, ...).
func (o Operation) String() string {
	args := make([]string, len(o.Args))
	for i, a := range o.Args {
		args[i] = fmt.Sprintf("%v", a)
	}
	return o.Func + "(" + strings.Join(args, ", ") + ")"
}

// Element is the immutable base value.
type Element struct {
	id    string
	props Properties
	op    Operation
}

// New creates an Element produced by op with no id and no properties.
func New(op Operation) Element {
	return Element{op: op}
}

// ID returns the element identity, or "" when it has none.
func (e Element) ID() string { return e.id }

// WithID returns a copy of e with the given identity.
func (e Element) WithID(id string) Element {
	e.id = id
	return e
}

// Operation returns the operation that produced e.
func (e Element) Operation() Operation { return e.op }

// WithOperation returns a copy of e carrying a different operation
// descriptor and the same properties.
func (e Element) WithOperation(op Operation) Element {
	e.op = op
	return e
}

// Properties returns the property bag.
func (e Element) Properties() Properties { return e.props }

// Get returns the property stored under key.
func (e Element) Get(key string) (any, bool) {
	return e.props.Get(key)
}

// Set parses args with ParseUpdate and applies the result.
func (e Element) Set(args ...any) (Element, error) {
	update, err := ParseUpdate(args...)
	if err != nil {
		return Element{}, err
	}
	return e.Apply(update), nil
}

// Apply returns a copy of e with the update applied to its properties.
// The operation descriptor is kept.
func (e Element) Apply(update PropertyUpdate) Element {
	e.props = e.props.apply(update.pairs)
	return e
}

// CopyProperties returns a copy of e whose property bag is replaced
// wholesale by source's. Nothing of the receiver's bag survives.
func (e Element) CopyProperties(source Element) Element {
	e.props = source.props
	return e
}

// WithProperties returns a copy of e with the given property bag.
func (e Element) WithProperties(props Properties) Element {
	e.props = props
	return e
}

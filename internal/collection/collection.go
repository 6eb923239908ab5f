package collection

import (
	"github.com/danieljhkim/geoengine/internal/element"
)

// Collection is an ordered container of elements plus the operation that
// produced it. Map and Reduce are eager.
type Collection[T any] struct {
	elem  element.Element
	items List[T]
}

// NewCollection wraps items produced by op.
func NewCollection[T any](op element.Operation, items ...T) Collection[T] {
	return Collection[T]{elem: element.New(op), items: New(items...)}
}

// FromList wraps an existing List.
func FromList[T any](op element.Operation, items List[T]) Collection[T] {
	return Collection[T]{elem: element.New(op), items: items}
}

// Element returns the collection's own element (id, properties, operation).
func (c Collection[T]) Element() element.Element { return c.elem }

// WithElement returns a copy of c carrying elem.
func (c Collection[T]) WithElement(elem element.Element) Collection[T] {
	c.elem = elem
	return c
}

// List returns the underlying List.
func (c Collection[T]) List() List[T] { return c.items }

// Size returns the number of elements.
func (c Collection[T]) Size() int { return c.items.Len() }

// First returns the first element.
func (c Collection[T]) First() (T, error) {
	var zero T
	if c.items.Len() == 0 {
		return zero, ErrEmpty
	}
	return c.items.Get(0)
}

// Last returns the last element.
func (c Collection[T]) Last() (T, error) {
	var zero T
	if c.items.Len() == 0 {
		return zero, ErrEmpty
	}
	return c.items.Get(c.items.Len() - 1)
}

// Limit returns at most max elements from the start of the collection.
func (c Collection[T]) Limit(max int) List[T] {
	return c.items.Slice(0, max)
}

// ToList returns count elements starting at offset, clipped to the
// collection length.
func (c Collection[T]) ToList(count, offset int) List[T] {
	offset = min(max(offset, 0), c.Size())
	return c.items.Slice(offset, offset+min(count, c.Size()))
}

// Map applies fn to every element in order and returns a new collection
// that keeps the receiver's properties.
func (c Collection[T]) Map(fn func(T) (T, error)) (Collection[T], error) {
	mapped, err := Map(c.items, fn)
	if err != nil {
		return Collection[T]{}, err
	}
	op := element.Operation{Func: "Collection.map", Args: []any{c.elem.Operation().Func}}
	return Collection[T]{elem: c.elem.WithOperation(op), items: mapped}, nil
}

// Reduce folds fn left to right over the elements.
func (c Collection[T]) Reduce(fn func(acc, x T) (T, error)) (T, error) {
	return c.items.Reduce(fn)
}

// Set parses args into a property update applied to the collection.
func (c Collection[T]) Set(args ...any) (Collection[T], error) {
	elem, err := c.elem.Set(args...)
	if err != nil {
		return Collection[T]{}, err
	}
	c.elem = elem
	return c, nil
}

// Get returns a collection property.
func (c Collection[T]) Get(key string) (any, bool) { return c.elem.Get(key) }

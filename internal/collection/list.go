// Package collection provides the immutable ordered containers used by the
// image and feature models.
//
// List is a copy-on-write sequence: Add, Insert and Slice return new Lists
// whose backing arrays are never shared with the receiver. Collection pairs
// a List with the element.Element that describes where it came from.
package collection

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned when an index is outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrEmpty is returned when an operation needs at least one element.
	ErrEmpty = errors.New("empty list")
)

// List is an immutable ordered sequence of T.
type List[T any] struct {
	items []T
}

// New creates a List holding a copy of items.
func New[T any](items ...T) List[T] {
	return List[T]{items: clone(items)}
}

// Len returns the number of elements.
func (l List[T]) Len() int { return len(l.items) }

// Get returns the element at index.
func (l List[T]) Get(index int) (T, error) {
	var zero T
	if index < 0 || index >= len(l.items) {
		return zero, fmt.Errorf("%w: %d (length %d)", ErrIndexOutOfRange, index, len(l.items))
	}
	return l.items[index], nil
}

// All returns a copy of the elements.
func (l List[T]) All() []T { return clone(l.items) }

// Add returns a new List with x appended.
func (l List[T]) Add(x T) List[T] {
	items := make([]T, len(l.items), len(l.items)+1)
	copy(items, l.items)
	return List[T]{items: append(items, x)}
}

// Insert returns a new List with x placed at index, replacing the element
// currently there. Index Len() appends.
func (l List[T]) Insert(index int, x T) (List[T], error) {
	if index == len(l.items) {
		return l.Add(x), nil
	}
	if index < 0 || index > len(l.items) {
		return List[T]{}, fmt.Errorf("%w: %d (length %d)", ErrIndexOutOfRange, index, len(l.items))
	}
	items := clone(l.items)
	items[index] = x
	return List[T]{items: items}, nil
}

// Slice returns elements [start, end) as a new List. Bounds are clipped to
// the list, so an over-long end is not an error.
func (l List[T]) Slice(start, end int) List[T] {
	if start < 0 {
		start = 0
	}
	if end > len(l.items) {
		end = len(l.items)
	}
	if start >= end {
		return List[T]{}
	}
	return List[T]{items: clone(l.items[start:end])}
}

// Reduce folds fn left to right over the elements, starting from the first
// one. Associativity of fn is the caller's concern.
func (l List[T]) Reduce(fn func(acc, x T) (T, error)) (T, error) {
	var zero T
	if len(l.items) == 0 {
		return zero, ErrEmpty
	}
	acc := l.items[0]
	for i, x := range l.items[1:] {
		var err error
		acc, err = fn(acc, x)
		if err != nil {
			return zero, fmt.Errorf("reduce at index %d: %w", i+1, err)
		}
	}
	return acc, nil
}

// Map applies fn to every element in order and collects the results.
func Map[T, U any](l List[T], fn func(T) (U, error)) (List[U], error) {
	out := make([]U, 0, len(l.items))
	for i, x := range l.items {
		u, err := fn(x)
		if err != nil {
			return List[U]{}, fmt.Errorf("map at index %d: %w", i, err)
		}
		out = append(out, u)
	}
	return List[U]{items: out}, nil
}

// Fold folds fn left to right starting from init.
func Fold[T, A any](l List[T], init A, fn func(A, T) A) A {
	acc := init
	for _, x := range l.items {
		acc = fn(acc, x)
	}
	return acc
}

func clone[T any](items []T) []T {
	if len(items) == 0 {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

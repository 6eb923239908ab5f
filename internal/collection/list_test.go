package collection

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danieljhkim/geoengine/internal/element"
)

func TestList_CopyOnWrite(t *testing.T) {
	base := New(1, 2, 3)

	t.Run("add", func(t *testing.T) {
		added := base.Add(4)
		if diff := cmp.Diff([]int{1, 2, 3}, base.All()); diff != "" {
			t.Errorf("receiver changed (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]int{1, 2, 3, 4}, added.All()); diff != "" {
			t.Errorf("Add mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("insert replaces in place", func(t *testing.T) {
		got, err := base.Insert(1, 9)
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if diff := cmp.Diff([]int{1, 9, 3}, got.All()); diff != "" {
			t.Errorf("Insert mismatch (-want +got):\n%s", diff)
		}
		if v, _ := base.Get(1); v != 2 {
			t.Errorf("receiver changed: Get(1) = %d", v)
		}
	})

	t.Run("insert at length appends", func(t *testing.T) {
		got, err := base.Insert(3, 4)
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if got.Len() != 4 {
			t.Errorf("Len = %d, want 4", got.Len())
		}
	})

	t.Run("insert out of range", func(t *testing.T) {
		if _, err := base.Insert(5, 0); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("expected ErrIndexOutOfRange, got %v", err)
		}
	})

	t.Run("add after slice does not leak into the source", func(t *testing.T) {
		s := base.Slice(0, 2)
		_ = s.Add(42)
		if v, _ := base.Get(2); v != 3 {
			t.Errorf("slice shares backing array: Get(2) = %d", v)
		}
	})
}

func TestList_Get(t *testing.T) {
	l := New("a", "b")
	if _, err := l.Get(2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := l.Get(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestList_Slice(t *testing.T) {
	l := New(0, 1, 2, 3, 4)
	tests := []struct {
		start, end int
		want       []int
	}{
		{1, 3, []int{1, 2}},
		{3, 99, []int{3, 4}},
		{-2, 1, []int{0}},
		{4, 2, nil},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d:%d", tt.start, tt.end), func(t *testing.T) {
			if diff := cmp.Diff(tt.want, l.Slice(tt.start, tt.end).All()); diff != "" {
				t.Errorf("Slice mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestList_Reduce(t *testing.T) {
	got, err := New(1, 2, 3).Reduce(func(a, b int) (int, error) { return a - b, nil })
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}
	// left fold: (1 - 2) - 3
	if got != -4 {
		t.Errorf("Reduce = %d, want -4", got)
	}

	if _, err := New[int]().Reduce(func(a, b int) (int, error) { return a + b, nil }); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestCollection(t *testing.T) {
	c := NewCollection(element.Operation{Func: "Collection.load"}, 1, 2, 3, 4, 5)

	t.Run("map is eager and ordered", func(t *testing.T) {
		doubled, err := c.Map(func(n int) (int, error) { return n * 2, nil })
		if err != nil {
			t.Fatalf("Map failed: %v", err)
		}
		if diff := cmp.Diff([]int{2, 4, 6, 8, 10}, doubled.List().All()); diff != "" {
			t.Errorf("Map mismatch (-want +got):\n%s", diff)
		}
		if c.List().All()[0] != 1 {
			t.Error("Map modified the receiver")
		}
	})

	t.Run("map stops at the first error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := c.Map(func(n int) (int, error) {
			if n == 3 {
				return 0, boom
			}
			return n, nil
		})
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})

	t.Run("toList clips to length", func(t *testing.T) {
		if diff := cmp.Diff([]int{4, 5}, c.ToList(10, 3).All()); diff != "" {
			t.Errorf("ToList mismatch (-want +got):\n%s", diff)
		}
		if got := c.ToList(math.MaxInt, 1).Len(); got != 4 {
			t.Errorf("ToList(MaxInt, 1).Len() = %d, want 4", got)
		}
		if got := c.ToList(2, math.MaxInt).Len(); got != 0 {
			t.Errorf("ToList(2, MaxInt).Len() = %d, want 0", got)
		}
		if c.Limit(2).Len() != 2 {
			t.Errorf("Limit(2).Len() = %d", c.Limit(2).Len())
		}
	})

	t.Run("first and last", func(t *testing.T) {
		first, _ := c.First()
		last, _ := c.Last()
		if first != 1 || last != 5 {
			t.Errorf("First/Last = %d/%d, want 1/5", first, last)
		}
		empty := NewCollection[int](element.Operation{Func: "empty"})
		if _, err := empty.First(); !errors.Is(err, ErrEmpty) {
			t.Errorf("expected ErrEmpty, got %v", err)
		}
	})

	t.Run("reduce folds directly", func(t *testing.T) {
		sum, err := c.Reduce(func(a, b int) (int, error) { return a + b, nil })
		if err != nil || sum != 15 {
			t.Errorf("Reduce = %d, %v; want 15", sum, err)
		}
	})
}

package element

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestElement_Set(t *testing.T) {
	base := New(Operation{Func: "Image.load", Args: []any{"a.tif"}})

	t.Run("single map argument", func(t *testing.T) {
		got, err := base.Set(map[string]any{"cloud": 12, "sensor": "OLI"})
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if diff := cmp.Diff([]string{"cloud", "sensor"}, got.Properties().Keys()); diff != "" {
			t.Errorf("keys mismatch (-want +got):\n%s", diff)
		}
		if v, _ := got.Get("cloud"); v != 12 {
			t.Errorf("cloud = %v, want 12", v)
		}
	})

	t.Run("key value pairs", func(t *testing.T) {
		got, err := base.Set("b", 2, "a", 1)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if diff := cmp.Diff([]string{"b", "a"}, got.Properties().Keys()); diff != "" {
			t.Errorf("insertion order not kept (-want +got):\n%s", diff)
		}
	})

	t.Run("keeps the operation descriptor", func(t *testing.T) {
		got, err := base.Set("k", "v")
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if got.Operation().Func != "Image.load" {
			t.Errorf("Operation = %s, want Image.load", got.Operation())
		}
	})

	t.Run("does not modify the receiver", func(t *testing.T) {
		first, _ := base.Set("k", 1)
		second, _ := first.Set("k", 2)
		if v, _ := first.Get("k"); v != 1 {
			t.Errorf("receiver changed: k = %v, want 1", v)
		}
		if v, _ := second.Get("k"); v != 2 {
			t.Errorf("k = %v, want 2", v)
		}
		if second.Properties().Len() != 1 {
			t.Errorf("overwrite duplicated key: Len = %d", second.Properties().Len())
		}
	})

	t.Run("no arguments is a no-op", func(t *testing.T) {
		first, err := base.Set("a", 1)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := first.Set()
		if err != nil {
			t.Fatalf("Set() failed: %v", err)
		}
		if diff := cmp.Diff(first.Properties().ToMap(), got.Properties().ToMap()); diff != "" {
			t.Errorf("properties changed (-want +got):\n%s", diff)
		}
		u, err := ParseUpdate()
		if err != nil || u.Kind() != UpdatePairs || u.Len() != 0 {
			t.Errorf("ParseUpdate() = %v/%d, %v; want empty pairs update", u.Kind(), u.Len(), err)
		}
	})

	invalid := []struct {
		name string
		args []any
	}{
		{name: "odd pair count", args: []any{"a", 1, "b"}},
		{name: "single non-map", args: []any{"a"}},
		{name: "non-string key", args: []any{1, "a"}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := base.Set(tt.args...)
			if !errors.Is(err, ErrInvalidPropertyArgument) {
				t.Errorf("expected ErrInvalidPropertyArgument, got %v", err)
			}
		})
	}
}

func TestParseUpdate_Kind(t *testing.T) {
	u, err := ParseUpdate(map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("ParseUpdate failed: %v", err)
	}
	if u.Kind() != UpdateSingle {
		t.Errorf("Kind = %s, want single", u.Kind())
	}

	u, err = ParseUpdate("a", 1)
	if err != nil {
		t.Fatalf("ParseUpdate failed: %v", err)
	}
	if u.Kind() != UpdatePairs || u.Len() != 1 {
		t.Errorf("got kind %s len %d, want pairs len 1", u.Kind(), u.Len())
	}
}

func TestElement_CopyProperties(t *testing.T) {
	src, _ := New(Operation{Func: "src"}).Set("a", 1)
	dst, _ := New(Operation{Func: "dst"}).Set("b", 2)

	got := dst.CopyProperties(src)
	if _, ok := got.Get("b"); ok {
		t.Error("CopyProperties merged instead of replacing")
	}
	if v, ok := got.Get("a"); !ok || v != 1 {
		t.Errorf("a = %v, %v; want 1, true", v, ok)
	}
	if got.Operation().Func != "dst" {
		t.Errorf("Operation = %s, want dst", got.Operation())
	}
}

func TestProperties_JSON(t *testing.T) {
	p := Properties{}.With("z", 1.5).With("a", "x")

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"z":1.5,"a":"x"}` {
		t.Errorf("Marshal = %s", data)
	}

	var back Properties
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if diff := cmp.Diff(p.Keys(), back.Keys()); diff != "" {
		t.Errorf("key order lost (-want +got):\n%s", diff)
	}
}

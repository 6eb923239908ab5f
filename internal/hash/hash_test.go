package hash

import (
	"bytes"
	"strings"
	"testing"
)

func TestBlake2bHasher_Sum(t *testing.T) {
	hasher := NewBlake2bHasher()

	t.Run("stable for equal content", func(t *testing.T) {
		h1, err := hasher.Sum(strings.NewReader("raster payload"))
		if err != nil {
			t.Fatalf("Sum failed: %v", err)
		}
		h2, err := hasher.Sum(bytes.NewReader([]byte("raster payload")))
		if err != nil {
			t.Fatalf("Sum failed on second call: %v", err)
		}
		if h1 != h2 {
			t.Errorf("Sum inconsistent: got %s and %s", h1, h2)
		}
		if len(h1) != 64 {
			t.Errorf("Sum length = %d, want 64 hex chars", len(h1))
		}
	})

	t.Run("different content has different sums", func(t *testing.T) {
		h1, _ := hasher.Sum(strings.NewReader("content A"))
		h2, _ := hasher.Sum(strings.NewReader("content B"))
		if h1 == h2 {
			t.Error("different content produced the same sum")
		}
	})

	t.Run("empty content", func(t *testing.T) {
		// BLAKE2b-256 of the empty string
		const want = "0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8"
		got, err := hasher.Sum(strings.NewReader(""))
		if err != nil {
			t.Fatalf("Sum failed: %v", err)
		}
		if got != want {
			t.Errorf("Sum(\"\") = %s, want %s", got, want)
		}
	})
}

func TestBlake2bHasher_Key(t *testing.T) {
	hasher := NewBlake2bHasher()

	id := hasher.Key("landsat/2021", "scene.tif")
	if len(id) != 24 {
		t.Errorf("Key length = %d, want 24", len(id))
	}
	if again := hasher.Key("landsat/2021", "scene.tif"); again != id {
		t.Errorf("Key not deterministic: %s vs %s", id, again)
	}

	// the separator keeps part boundaries significant
	if hasher.Key("ab", "c") == hasher.Key("a", "bc") {
		t.Error("Key ignores part boundaries")
	}
	if hasher.Key("x") == hasher.Key("y") {
		t.Error("different keys produced the same ID")
	}
}

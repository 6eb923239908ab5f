package geo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	// WGS84 is the default CRS of constructed geometries.
	WGS84 = "EPSG:4326"

	// WebMercator is the spherical mercator CRS.
	WebMercator = "EPSG:3857"
)

var (
	epsgPattern      = regexp.MustCompile(`(?i)^\s*EPSG:(\d+)\s*$`)
	authorityPattern = regexp.MustCompile(`(?i)AUTHORITY\["EPSG",\s*"(\d+)"\]\s*\]\s*$`)
)

// ParseEPSG extracts the EPSG code from an "EPSG:n" string or from the
// outermost AUTHORITY clause of a WKT definition.
func ParseEPSG(crs string) (int, bool) {
	m := epsgPattern.FindStringSubmatch(crs)
	if m == nil {
		m = authorityPattern.FindStringSubmatch(strings.TrimSpace(crs))
	}
	if m == nil {
		return 0, false
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return code, true
}

// NormalizeCRS returns "EPSG:n" for recognizable definitions and crs
// unchanged otherwise.
func NormalizeCRS(crs string) string {
	if code, ok := ParseEPSG(crs); ok {
		return fmt.Sprintf("EPSG:%d", code)
	}
	return crs
}

// SameCRS reports whether a and b name the same reference system.
func SameCRS(a, b string) bool {
	if a == b {
		return true
	}
	ca, okA := ParseEPSG(a)
	cb, okB := ParseEPSG(b)
	return okA && okB && ca == cb
}

// projection returns the point mapping from one CRS to another.
func projection(from, to string) (orb.Projection, error) {
	if SameCRS(from, to) {
		return func(p orb.Point) orb.Point { return p }, nil
	}
	src, _ := ParseEPSG(from)
	dst, _ := ParseEPSG(to)
	switch {
	case src == 4326 && dst == 3857:
		return project.WGS84.ToMercator, nil
	case src == 3857 && dst == 4326:
		return project.Mercator.ToWGS84, nil
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupportedCRS, from, to)
}

// Package units parses the length expressions typed into tool diameter and
// offset inputs, such as "6 mm", "0.25 in" or "1 1/4\"". Values are returned
// in millimetres.
package units

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultUnit applies to expressions without a unit suffix.
const DefaultUnit = "mm"

var scale = map[string]float64{
	"mm": 1,
	"cm": 10,
	"m":  1000,
	"in": 25.4,
	`"`:  25.4,
	"ft": 304.8,
	"'":  304.8,
}

var lengthPattern = regexp.MustCompile(`^([+-]?)\s*(\d+(?:\.\d*)?|\.\d+)(?:\s+(\d+)/(\d+)|/(\d+))?\s*([a-zA-Z"']*)$`)

// ParseLength converts a length expression to millimetres.
func ParseLength(expr string) (float64, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return 0, fmt.Errorf("units: empty length")
	}
	m := lengthPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("units: cannot parse length %q", expr)
	}

	v, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, fmt.Errorf("units: %q: %w", expr, err)
	}
	switch {
	case m[3] != "":
		// mixed number: "1 1/4"
		num, _ := strconv.ParseFloat(m[3], 64)
		den, _ := strconv.ParseFloat(m[4], 64)
		if den == 0 {
			return 0, fmt.Errorf("units: %q: zero denominator", expr)
		}
		v += num / den
	case m[5] != "":
		den, _ := strconv.ParseFloat(m[5], 64)
		if den == 0 {
			return 0, fmt.Errorf("units: %q: zero denominator", expr)
		}
		v /= den
	}

	unit := strings.ToLower(m[6])
	if unit == "" {
		unit = DefaultUnit
	}
	f, ok := scale[unit]
	if !ok {
		return 0, fmt.Errorf("units: %q: unknown unit %q", expr, m[6])
	}
	if m[1] == "-" {
		v = -v
	}
	return v * f, nil
}

// FormatMM renders a millimetre value as an expression ParseLength accepts.
func FormatMM(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " mm"
}

package dto

import (
	"fmt"
	"strconv"
)

// ParseLimit reads a ?limit= value. Empty yields def; values above max are
// clamped.
func ParseLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer, got: %q", raw)
	}
	if n > max {
		n = max
	}
	return n, nil
}

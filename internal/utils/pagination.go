// Package utils holds small helpers shared by the transport and service
// layers. Nothing here knows about orders.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int, returning def when s is empty or
// not a valid int. Whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageBounds normalizes a 1-based page request: page below 1 becomes 1,
// a non-positive size becomes def, and size is capped at max. offset is the
// number of rows to skip.
func PageBounds(page, size, def, max int) (p, s, offset int) {
	p, s = page, size
	if p < 1 {
		p = 1
	}
	if s <= 0 {
		s = def
	}
	if max > 0 && s > max {
		s = max
	}
	return p, s, (p - 1) * s
}

// Package jsonptr builds RFC 6901 JSON Pointers used to locate failures
// inside nested values.
package jsonptr

import (
	"strconv"
	"strings"
)

var escaper = strings.NewReplacer("~", "~0", "/", "~1")

// Key appends an object member to base.
func Key(base, key string) string {
	return base + "/" + escaper.Replace(key)
}

// Index appends an array index to base.
func Index(base string, i int) string {
	return base + "/" + strconv.Itoa(i)
}

// OrRoot returns "/" for the empty (whole document) pointer.
func OrRoot(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

package ratelimit

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category identifies a class of outgoing requests that can be rate limited
// independently.
type Category string

// Known categories. CategoryAll applies to every request.
const (
	CategoryAll    Category = ""
	CategoryBeacon Category = "beacon"
	CategoryReplay Category = "replay"
)

// String returns the category formatted for debugging.
func (c Category) String() string {
	if c == CategoryAll {
		return "CategoryAll"
	}
	caser := cases.Title(language.English)
	rv := "Category"
	for _, w := range strings.Fields(string(c)) {
		rv += caser.String(w)
	}
	return rv
}

package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// DefaultRetryAfter is used when a 429 response carries no usable
// Retry-After header.
const DefaultRetryAfter = time.Second * 60

// Deadline is the point in time until which a category is disabled.
type Deadline time.Time

// After reports whether d is after other.
func (d Deadline) After(other Deadline) bool {
	return time.Time(d).After(time.Time(other))
}

// Equal reports whether d and other represent the same instant.
func (d Deadline) Equal(other Deadline) bool {
	return time.Time(d).Equal(time.Time(other))
}

// String formats the deadline in RFC3339.
func (d Deadline) String() string {
	return time.Time(d).Format(time.RFC3339)
}

// Map maps categories to rate limit deadlines.
//
// A rate limit is in effect for a given category if either the category's
// deadline or the deadline for CategoryAll has not yet expired.
type Map map[Category]Deadline

// IsRateLimited returns true if the category is currently rate limited.
func (m Map) IsRateLimited(c Category) bool {
	return m.isRateLimited(c, time.Now())
}

func (m Map) isRateLimited(c Category, now time.Time) bool {
	return m.Deadline(c).After(Deadline(now))
}

// Deadline returns the deadline when the rate limit for the given category
// expires.
func (m Map) Deadline(c Category) Deadline {
	if c == CategoryAll {
		return m[CategoryAll]
	}
	d := m[c]
	if all := m[CategoryAll]; all.After(d) {
		return all
	}
	return d
}

// Merge merges the other map into m, keeping the later deadline per category.
func (m Map) Merge(other Map) {
	for c, d := range other {
		if d.After(m[c]) {
			m[c] = d
		}
	}
}

// FromResponse returns the rate limits announced by an HTTP response.
// Only 429 responses disable sending.
func FromResponse(r *http.Response) Map {
	return fromResponse(r, time.Now())
}

func fromResponse(r *http.Response, now time.Time) Map {
	if r == nil || r.StatusCode != http.StatusTooManyRequests {
		return Map{}
	}
	return Map{CategoryAll: Deadline(now.Add(RetryAfter(now, r)))}
}

// RetryAfter parses the Retry-After header as either a delay in seconds or an
// HTTP date, falling back to DefaultRetryAfter.
func RetryAfter(now time.Time, r *http.Response) time.Duration {
	header := r.Header.Get("Retry-After")
	if header == "" {
		return DefaultRetryAfter
	}

	if date, err := time.Parse(time.RFC1123, header); err == nil {
		return date.Sub(now)
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Second * time.Duration(seconds)
	}

	return DefaultRetryAfter
}

package weather

import "errors"

var (
	// ErrEmptyQuery is returned for a blank search query. No request is made.
	ErrEmptyQuery = errors.New("empty query")

	// ErrNotFound is returned when geocoding yields no result.
	ErrNotFound = errors.New("location not found")

	// ErrFetch wraps transport failures, non-2xx statuses and responses
	// missing required fields.
	ErrFetch = errors.New("fetch failed")

	// ErrUnknownUnit is returned by ParseUnit for anything but celsius or fahrenheit.
	ErrUnknownUnit = errors.New("unknown temperature unit")
)

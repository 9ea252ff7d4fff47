package crawler

import "errors"

// Page fetch errors.
var (
	// ErrBadStatus is returned when a page request answers with a non-2xx status.
	ErrBadStatus = errors.New("unexpected HTTP status")

	// ErrNotHTML is returned when a page is served with a non-HTML content type.
	ErrNotHTML = errors.New("page is not HTML")

	// ErrInvalidSeed is returned when a seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid seed URL")
)

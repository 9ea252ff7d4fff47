package download

import "errors"

// Download errors.
var (
	// ErrBadStatus is returned when the image request answers with a non-2xx status.
	ErrBadStatus = errors.New("unexpected HTTP status")

	// ErrNotImage is returned when the body cannot be decoded as an image.
	ErrNotImage = errors.New("content is not a decodable image")

	// ErrImageTooLarge is returned when the body or the decoded dimensions
	// exceed the configured limits.
	ErrImageTooLarge = errors.New("image too large")
)

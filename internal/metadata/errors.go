package metadata

import "errors"

// ErrCorruptMetadata is returned when the metadata file cannot be parsed.
var ErrCorruptMetadata = errors.New("corrupt metadata file")

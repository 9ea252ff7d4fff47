package config

import "errors"

// Configuration validation errors.
// These are returned by Config.Validate and the seed loader so that callers
// can tell usage errors apart with errors.Is before any crawling starts.
var (
	// ErrNoSeedFile is returned when the seed list file does not exist or
	// cannot be read.
	ErrNoSeedFile = errors.New("seed list file not found")

	// ErrEmptySeedList is returned when the seed list file contains no URLs.
	ErrEmptySeedList = errors.New("seed list is empty")

	// ErrNoSeeds is returned by Validate when no seed URLs were loaded.
	ErrNoSeeds = errors.New("no seed URLs to crawl")

	// ErrInvalidThreads is returned when the worker count is not positive.
	ErrInvalidThreads = errors.New("invalid thread count: must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidThrottle is returned when the per-download delay is negative.
	ErrInvalidThrottle = errors.New("invalid throttle: must be non-negative")

	// ErrInvalidRate is returned when the global request rate is negative.
	ErrInvalidRate = errors.New("invalid rate: must be non-negative")

	// ErrInvalidProxyAddress is returned when --proxy is not in host:port form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port")

	// ErrPasswordWithoutUsername is returned when a password is given but no
	// username to go with it.
	ErrPasswordWithoutUsername = errors.New("password given without username")

	// ErrInvalidMaxSize is returned when a body size limit is negative.
	ErrInvalidMaxSize = errors.New("invalid size limit: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)

package feed

import "errors"

// Sentinel errors for feed retrieval.
var (
	ErrNoResource        = errors.New("no csv or json resource in dataset")
	ErrUnsupportedFormat = errors.New("unsupported feed format")
	ErrMalformedFeed     = errors.New("malformed feed")
	ErrFetch             = errors.New("feed fetch failed")
)

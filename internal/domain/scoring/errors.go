package scoring

import "errors"

// Sentinel errors for malformed provider responses.
var (
	ErrShortBatch  = errors.New("embedding batch size mismatch")
	ErrEmptyVector = errors.New("empty embedding vector")
)

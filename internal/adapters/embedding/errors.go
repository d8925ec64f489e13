package embedding

import "errors"

// Sentinel errors for embedding setup and responses.
var (
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
	ErrMissingAPIKey       = errors.New("openai api key required")
	ErrCountMismatch       = errors.New("embedding count mismatch")
)

package summarizer

import "errors"

var (
	ErrUnsupportedProvider = errors.New("unsupported llm provider")
	ErrMissingAPIKey       = errors.New("openai api key required")
	ErrEmptyResponse       = errors.New("empty llm response")
	ErrBadSelection        = errors.New("unparseable llm selection")
)

package weather

import "errors"

var (
	ErrUnavailable = errors.New("forecast service unavailable")
	ErrMalformed   = errors.New("malformed forecast response")
)

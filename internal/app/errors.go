package service

import "errors"

var (
	ErrNotConfigured = errors.New("pipeline source or scorer not configured")
	ErrFetch         = errors.New("feed fetch failed")
	ErrPublish       = errors.New("digest publish failed")
)

package cache

import "errors"

// Sentinel errors for vector stores.
var (
	ErrStoreRead       = errors.New("vector store read failed")
	ErrStoreWrite      = errors.New("vector store write failed")
	ErrCorruptSnapshot = errors.New("vector store corrupt")
)

package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

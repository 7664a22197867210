package domain

import "errors"

// Store-level sentinel errors. Storage implementations wrap these so callers
// can classify failures with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrInvalidInput    = errors.New("invalid input")
)

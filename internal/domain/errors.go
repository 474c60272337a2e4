package domain

import "errors"

// Error kinds shared by every layer. Wrap them with fmt.Errorf("%w: ...")
// and test with errors.Is; anything else is treated as internal.
var (
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
)

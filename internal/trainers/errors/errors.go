package errors

import "errors"

var (
	ErrNotFound = errors.New("trainer not found")

	ErrDirectoryUnavailable = errors.New("trainer directory unavailable")

	ErrInvalidWindow = errors.New("invalid availability window")

	ErrOverlappingWindows = errors.New("availability windows overlap")
)

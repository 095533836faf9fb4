package timers

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when a running timer already exists for the user and case
	ErrConflict = errors.New("timer already running")
	// ErrNotFound is returned when no timer exists for the user and case
	ErrNotFound = errors.New("timer not found")

	// ErrValidation is wrapped by every input validation error
	ErrValidation      = errors.New("validation failed")
	ErrInvalidUser     = fmt.Errorf("%w: user id is required", ErrValidation)
	ErrInvalidCase     = fmt.Errorf("%w: case number must be between 1 and 4", ErrValidation)
	ErrInvalidDuration = fmt.Errorf("%w: duration is out of range", ErrValidation)
)

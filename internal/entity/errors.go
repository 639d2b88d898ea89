package entity

import "errors"

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrAlreadyTerminal   = errors.New("job already finished")
	ErrInvalidTransition = errors.New("invalid status transition")
)

package service

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyAssigned       = errors.New("technician already assigned")
	ErrTechnicianUnavailable = errors.New("technician unavailable for requested window")
	ErrUpstreamUnavailable   = errors.New("upstream appointments source unavailable")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InvalidTransitionError names both the current and the requested
// status so the caller can re-read state instead of blind-retrying.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

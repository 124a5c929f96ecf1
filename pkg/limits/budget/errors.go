package budget

import "errors"

var (
	// ErrReservationClosed is returned when a reservation is committed or
	// released twice.
	ErrReservationClosed = errors.New("reservation already closed")

	// ErrAlreadyRunning is returned by Start on a running Guardrails.
	ErrAlreadyRunning = errors.New("guardrails already running")
)

package service

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the computation engine.
var (
	// ErrComputationInProgress means a run is already active. Callers
	// should back off and retry; attempts are rejected, never queued.
	ErrComputationInProgress = errors.New("computation already in progress")

	// ErrInvalidDateRange means the analysis window could not be resolved.
	ErrInvalidDateRange = errors.New("invalid analysis date range")

	// ErrNoDataAvailable is reserved for callers that require a minimum
	// data volume. The pipeline itself tolerates empty windows.
	ErrNoDataAvailable = errors.New("not enough data for analysis")
)

// DatabaseError wraps any store failure that aborted a run.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

func dbErr(op string, err error) error {
	return &DatabaseError{Op: op, Err: err}
}

package service

import "errors"

// Sentinel errors the transport layer maps to HTTP statuses.
var (
	// ErrNotFound wraps a missing course, pathway, or run.
	ErrNotFound = errors.New("not found")
	// ErrStageActive rejects a stage start while another run is in flight
	// for the same course.
	ErrStageActive = errors.New("a stage is already running for this course")
	// ErrResultNotReady rejects a result fetch before the run reached a
	// state with usable results.
	ErrResultNotReady = errors.New("stage result not ready")
)

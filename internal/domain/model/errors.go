package model

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrContractViolation marks a SourceScore whose fields escaped their
	// declared domain. It indicates a collector bug, never bad user input.
	ErrContractViolation = errors.New("source score contract violation")

	// ErrAllSourcesFailed marks an evaluation where every collector failed,
	// leaving nothing to aggregate. Partial failure is not an error.
	ErrAllSourcesFailed = errors.New("all sources failed")
)

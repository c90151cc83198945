package repository

import "errors"

// Sentinel kinds for history store errors.
var (
	ErrNotFound     = errors.New("no snapshots for subject")
	ErrInvalidLimit = errors.New("invalid history limit")
	ErrClosed       = errors.New("history store closed")
)

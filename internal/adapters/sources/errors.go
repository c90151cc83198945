package sources

import "errors"

// Sentinel kinds for source ingestion errors.
var (
	ErrUnknownSource = errors.New("unknown source")
	ErrInvalidFact   = errors.New("invalid fact")
)

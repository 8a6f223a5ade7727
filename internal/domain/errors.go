package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned by a store when an insert hits one of the
	// unique identity keys (source+source_id or fingerprint).
	ErrDuplicate = errors.New("duplicate posting")

	// ErrRunFinalized is returned when a completed run is written again.
	ErrRunFinalized = errors.New("ingest run already finalized")

	// ErrFetch marks failures of the external fetch. They abort the whole run.
	ErrFetch = errors.New("fetch failed")
)

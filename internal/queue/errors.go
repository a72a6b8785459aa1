package queue

import (
	"errors"
	"fmt"
)

// ErrStore marks persistence failures so callers can tell them apart from
// domain errors with errors.Is.
var ErrStore = errors.New("store failure")

// ErrAlreadyQueued reports an enqueue for a job id that already exists.
var ErrAlreadyQueued = errors.New("job already queued")

func storeErr(operation string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, operation, err)
}

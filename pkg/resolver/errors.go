package resolver

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrWouldConflict = errors.New("mutation would introduce a hard conflict")

// StaleSuggestionError is returned when a suggestion no longer fits the grid it is applied to; the caller must
// propose again against the current grid
type StaleSuggestionError struct {
	Suggestion uuid.UUID
	Reason     string
	Err        error
}

func (err *StaleSuggestionError) Error() string {
	return fmt.Sprintf("stale suggestion %v: %v", err.Suggestion, err.Reason)
}

func (err *StaleSuggestionError) Unwrap() error {
	return err.Err
}

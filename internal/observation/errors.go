package observation

import (
	"errors"
	"fmt"
)

// Reasons a lookup fails, testable with errors.Is.
var (
	ErrCatalogUnavailable = errors.New("station catalog unavailable")
	ErrNoStations         = errors.New("no station available for date")
	ErrArchiveUnavailable = errors.New("station archive unavailable")
	ErrNoMetadata         = errors.New("no station metadata valid for date")
	ErrInvalidQuery       = errors.New("invalid query")
)

// LookupError represents a failed station or observation lookup
type LookupError struct {
	Reason  error
	Message string
	Err     error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *LookupError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// NewLookupError creates a new lookup error
func NewLookupError(reason error, message string, err error) *LookupError {
	return &LookupError{
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}

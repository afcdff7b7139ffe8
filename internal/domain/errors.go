package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by stores and caches for missing rows/keys.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientOverlap marks a pair excluded by the minimum-overlap
	// gate. It is a soft exclusion, not a failure: no statistics were run.
	ErrInsufficientOverlap = errors.New("insufficient overlap")
	// ErrDegenerateStatistic marks an undefined statistic (zero variance,
	// zero rolling std). It is a "no signal" marker, never coerced to zero.
	ErrDegenerateStatistic = errors.New("degenerate statistic")
	// ErrInsufficientHistory is returned when an instrument has too few
	// observations for the requested computation.
	ErrInsufficientHistory = errors.New("insufficient history")
)

// DataError reports malformed input for one instrument: non-monotonic or
// duplicated timestamps, missing fields. It aborts the affected computation
// with enough context to locate the offending rows.
type DataError struct {
	Instrument string
	Timestamp  time.Time
	Reason     string
}

// Error implements the error interface.
func (e *DataError) Error() string {
	if e.Timestamp.IsZero() {
		return fmt.Sprintf("data error: instrument %s: %s", e.Instrument, e.Reason)
	}
	return fmt.Sprintf("data error: instrument %s at %s: %s",
		e.Instrument, e.Timestamp.UTC().Format(time.RFC3339Nano), e.Reason)
}

package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during evaluation operations.
var (
	// ErrNoVerdicts indicates that verdict aggregation was invoked with
	// zero candidate verdicts. Aggregation over an empty vote has no
	// defined winner, so callers must surface this per question rather
	// than silently defaulting.
	ErrNoVerdicts = errors.New("no candidate verdicts to aggregate")

	// ErrInsufficientData indicates that a human-readable summary was
	// requested for a run with zero scored questions. Raw metric
	// results still exist in that case, with NaN accuracies.
	ErrInsufficientData = errors.New("insufficient data: no scored questions")

	// ErrMalformedRecord indicates that a record failed structural
	// validation. Pipeline stages skip and count such records instead
	// of aborting the run.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrUnmatchedReference indicates that a record's question ID has
	// no entry in the reference set. Such records are excluded from
	// metric denominators and reported as skipped.
	ErrUnmatchedReference = errors.New("no reference answer for question")

	// ErrUnknownDomain indicates a domain outside the supported set.
	ErrUnknownDomain = errors.New("unknown domain")
)

// RecordError annotates a stage error with the question it occurred on,
// so skipped records remain traceable in logs without aborting the run.
type RecordError struct {
	// ID is the question ID of the offending record, when known.
	ID string

	// Stage names the pipeline stage that rejected the record.
	Stage string

	// Err is the underlying error that caused the record to be skipped.
	Err error
}

// Error implements the error interface for RecordError.
func (e *RecordError) Error() string {
	return fmt.Sprintf("record error: stage=%s, id=%s, err=%v", e.Stage, e.ID, e.Err)
}

// Unwrap returns the underlying error, supporting Go 1.13+ error unwrapping.
func (e *RecordError) Unwrap() error { return e.Err }

// NewRecordError creates a new RecordError with the given details.
func NewRecordError(id, stage string, err error) *RecordError {
	return &RecordError{
		ID:    id,
		Stage: stage,
		Err:   err,
	}
}

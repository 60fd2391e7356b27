package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an engine failure.
type ErrorKind string

const (
	KindInputValidation     ErrorKind = "input_validation"
	KindInsufficientData    ErrorKind = "insufficient_data"
	KindInvalidWeight       ErrorKind = "invalid_weight"
	KindMissingInput        ErrorKind = "missing_input"
	KindEmptyHistory        ErrorKind = "empty_history"
	KindInsufficientLabels  ErrorKind = "insufficient_labels"
	KindInsufficientOverlap ErrorKind = "insufficient_overlap"
)

// Error is the single error type produced by the analytics components.
// Component names the stage that failed and RecordID the document id, date or
// series the failure is attributable to.
type Error struct {
	Kind      ErrorKind
	Component string
	RecordID  string
	Message   string
	Cause     error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInputValidation     = &Error{Kind: KindInputValidation}
	ErrInsufficientData    = &Error{Kind: KindInsufficientData}
	ErrInvalidWeight       = &Error{Kind: KindInvalidWeight}
	ErrMissingInput        = &Error{Kind: KindMissingInput}
	ErrEmptyHistory        = &Error{Kind: KindEmptyHistory}
	ErrInsufficientLabels  = &Error{Kind: KindInsufficientLabels}
	ErrInsufficientOverlap = &Error{Kind: KindInsufficientOverlap}
)

func (e *Error) Error() string {
	where := e.Component
	if e.RecordID != "" {
		where = fmt.Sprintf("%s(%s)", e.Component, e.RecordID)
	}
	msg := fmt.Sprintf("[%s] %s: %s", e.Kind, where, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports kind equality so wrapped errors match the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds a classified error.
func NewError(kind ErrorKind, component, recordID, format string, args ...any) *Error {
	return &Error{
		Kind:      kind,
		Component: component,
		RecordID:  recordID,
		Message:   fmt.Sprintf(format, args...),
	}
}

// WrapError builds a classified error around a cause.
func WrapError(kind ErrorKind, component, recordID string, cause error, format string, args ...any) *Error {
	e := NewError(kind, component, recordID, format, args...)
	e.Cause = cause
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Failure records one failed item of a batch.
type Failure struct {
	RecordID  string `json:"record_id"`
	Component string `json:"component"`
	Err       error  `json:"-"`
	Message   string `json:"error"`
}

// NewFailure captures the record id and component carried by err when present.
func NewFailure(recordID string, err error) Failure {
	f := Failure{RecordID: recordID, Err: err, Message: err.Error()}
	var e *Error
	if errors.As(err, &e) {
		f.Component = e.Component
		if e.RecordID != "" {
			f.RecordID = e.RecordID
		}
	}
	return f
}

// FailedIDs lists the record ids of failures in order.
func FailedIDs(failures []Failure) []string {
	ids := make([]string, 0, len(failures))
	for _, f := range failures {
		ids = append(ids, f.RecordID)
	}
	return ids
}

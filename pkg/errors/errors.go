// Package errors defines the engine's failure taxonomy and its HTTP mapping
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// Kind classifies an engine failure
type Kind string

const (
	KindConfiguration    Kind = "configuration"
	KindNotFound         Kind = "not_found"
	KindPrecondition     Kind = "precondition"
	KindExternalIO       Kind = "external_io"
	KindMalformedHistory Kind = "malformed_history"
)

var statusByKind = map[Kind]int{
	KindConfiguration:    http.StatusBadRequest,
	KindNotFound:         http.StatusNotFound,
	KindPrecondition:     http.StatusConflict,
	KindExternalIO:       http.StatusBadGateway,
	KindMalformedHistory: http.StatusUnprocessableEntity,
}

// Error is a classified engine failure
type Error struct {
	Kind     Kind
	Message  string
	RecordID string
	MergeID  string
	Fields   []string
	cause    error
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewConfigurationError(format string, args ...any) *Error {
	return newError(KindConfiguration, format, args...)
}

func NewNotFoundError(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func NewPreconditionError(format string, args ...any) *Error {
	return newError(KindPrecondition, format, args...)
}

func NewMalformedHistoryError(format string, args ...any) *Error {
	return newError(KindMalformedHistory, format, args...)
}

// WrapExternalIO classifies a store failure. Nil stays nil.
func WrapExternalIO(err error, op string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindExternalIO, Message: fmt.Sprintf("%s: %v", op, err), cause: err}
}

func (e *Error) Error() string {
	path := []string{}
	if e.RecordID != "" {
		path = append(path, fmt.Sprintf("record '%s'", e.RecordID))
	}
	if e.MergeID != "" {
		path = append(path, fmt.Sprintf("merge '%s'", e.MergeID))
	}
	if len(path) == 0 {
		return e.Message
	}
	return strings.Join(path, " -> ") + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) WithRecord(id string) *Error {
	e.RecordID = id
	return e
}

func (e *Error) WithMerge(id string) *Error {
	e.MergeID = id
	return e
}

func (e *Error) WithFields(fields ...string) *Error {
	e.Fields = append(e.Fields, fields...)
	return e
}

func (e *Error) ToHTTPError() *httperror.HTTPError {
	status, ok := statusByKind[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	herr := httperror.NewHTTPError(status, e.Error()).AddMetaValue("kind", string(e.Kind))
	if e.RecordID != "" {
		herr = herr.AddMetaValue("record_id", e.RecordID)
	}
	if e.MergeID != "" {
		herr = herr.AddMetaValue("merge_id", e.MergeID)
	}
	if len(e.Fields) > 0 {
		herr = herr.AddMetaValue("fields", strings.Join(e.Fields, ","))
	}
	return herr
}

// KindOf returns the kind of a classified error, or "" for anything else
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// FieldsOf returns the fields a classified error names
func FieldsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

func IsConfiguration(err error) bool    { return KindOf(err) == KindConfiguration }
func IsNotFound(err error) bool         { return KindOf(err) == KindNotFound }
func IsPrecondition(err error) bool     { return KindOf(err) == KindPrecondition }
func IsExternalIO(err error) bool       { return KindOf(err) == KindExternalIO }
func IsMalformedHistory(err error) bool { return KindOf(err) == KindMalformedHistory }

// ToHTTP converts classified errors for the API error handler; others pass through
func ToHTTP(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.ToHTTPError()
	}
	return err
}

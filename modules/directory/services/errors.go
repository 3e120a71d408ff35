package services

import (
	"errors"
	"fmt"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
)

type ErrorKind string

const (
	KindFetch      ErrorKind = "fetch"
	KindValidation ErrorKind = "validation"
	KindWrite      ErrorKind = "write"
	KindExport     ErrorKind = "export"
)

// Sentinels matched by errors.Is against any *SyncError of the same kind.
var (
	ErrFetch      = errors.New("fetch error")
	ErrValidation = errors.New("validation error")
	ErrWrite      = errors.New("write error")
	ErrExport     = errors.New("export error")
)

var kindSentinels = map[ErrorKind]error{
	KindFetch:      ErrFetch,
	KindValidation: ErrValidation,
	KindWrite:      ErrWrite,
	KindExport:     ErrExport,
}

// SyncError is a failure scoped to one entity type, or to one row for
// validation errors. None of them aborts a run.
type SyncError struct {
	Kind   ErrorKind
	Entity entity.Type
	Source entity.Source
	// Reason is the quarantine reason of validation errors.
	Reason string
	Err    error
}

func (e *SyncError) Error() string {
	scope := string(e.Entity)
	if e.Source != "" {
		scope = fmt.Sprintf("%s/%s", e.Source, e.Entity)
	}
	msg := e.Reason
	if e.Err != nil {
		if msg != "" {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		} else {
			msg = e.Err.Error()
		}
	}
	if scope == "" {
		return fmt.Sprintf("%s error: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Kind, scope, msg)
}

func (e *SyncError) Unwrap() error { return e.Err }

func (e *SyncError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

func fetchError(src entity.Source, typ entity.Type, err error) *SyncError {
	return &SyncError{Kind: KindFetch, Entity: typ, Source: src, Err: err}
}

func validationError(typ entity.Type, reason string, err error) *SyncError {
	return &SyncError{Kind: KindValidation, Entity: typ, Reason: reason, Err: err}
}

func writeError(typ entity.Type, err error) *SyncError {
	return &SyncError{Kind: KindWrite, Entity: typ, Err: err}
}

func exportError(err error) *SyncError {
	return &SyncError{Kind: KindExport, Err: err}
}

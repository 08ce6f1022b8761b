package tracker

import (
	"errors"
	"fmt"
)

// Kind categorizes a failed sync operation.
type Kind string

const (
	KindLoadFailed   Kind = "LOAD_FAILED"
	KindCreateFailed Kind = "CREATE_FAILED"
	KindUpdateFailed Kind = "UPDATE_FAILED"
	KindDeleteFailed Kind = "DELETE_FAILED"
)

// User-facing messages for each failure kind.
const (
	MsgLoadFailed   = "Failed to load events."
	MsgCreateFailed = "Cannot create event."
	MsgUpdateFailed = "Could not update event."
	MsgDeleteFailed = "Could not delete event."
)

// SyncError is the terminal failure of one sync operation. The event store
// is left unchanged whenever a SyncError is returned.
type SyncError struct {
	Kind Kind
	// Message is safe to show to the user.
	Message string
	// Err is the underlying transport, decoding or state error.
	Err error
}

func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a SyncError of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// UserMessage returns the user-facing message carried by err, or err's text
// when it is not a SyncError.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *SyncError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

func newLoadError(err error) *SyncError {
	return &SyncError{Kind: KindLoadFailed, Message: MsgLoadFailed, Err: err}
}

func newCreateError(err error) *SyncError {
	return &SyncError{Kind: KindCreateFailed, Message: MsgCreateFailed, Err: err}
}

func newUpdateError(err error) *SyncError {
	return &SyncError{Kind: KindUpdateFailed, Message: MsgUpdateFailed, Err: err}
}

func newDeleteError(err error) *SyncError {
	return &SyncError{Kind: KindDeleteFailed, Message: MsgDeleteFailed, Err: err}
}

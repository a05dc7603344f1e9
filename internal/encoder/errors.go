package encoder

import (
	"errors"
	"fmt"
)

// Kind classifies an encode failure so callers can react without parsing
// message text.
type Kind string

const (
	// KindInitialization means the engine failed to load. Recoverable by
	// retrying; the session resets itself.
	KindInitialization Kind = "INITIALIZATION"
	// KindBusy means another encode was already in flight and the busy
	// policy rejects concurrent requests.
	KindBusy Kind = "BUSY"
	// KindEngineExecution means the engine reported a failed command on
	// either pass. Not retried automatically.
	KindEngineExecution Kind = "ENGINE_EXECUTION"
	// KindOutputValidation means the engine reported success but the output
	// slot was empty or lacked the GIF signature. Kept distinct from
	// execution failure: the engine can fail silently.
	KindOutputValidation Kind = "OUTPUT_VALIDATION"
	// KindInput means the request itself was malformed.
	KindInput Kind = "INPUT"
)

// Error is a classified encode failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds a classified error wrapping an underlying cause.
func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the failure classification from an error chain, or ""
// if the error did not come from the encoder.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

package cycle

import (
	"errors"
	"fmt"
)

// Kind classifies why a cycle failed
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindCredentialInvalid Kind = "credential_invalid"
	KindModelInvocation   Kind = "model_invocation"
	KindDecisionParse     Kind = "decision_parse"
	KindStore             Kind = "store"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrNotFound          = errors.New("not found")
	ErrCredentialInvalid = errors.New("credential invalid")
	ErrModelInvocation   = errors.New("model invocation failed")
	ErrDecisionParse     = errors.New("decision parse failed")
	ErrStore             = errors.New("store failure")
)

var sentinels = map[Kind]error{
	KindNotFound:          ErrNotFound,
	KindCredentialInvalid: ErrCredentialInvalid,
	KindModelInvocation:   ErrModelInvocation,
	KindDecisionParse:     ErrDecisionParse,
	KindStore:             ErrStore,
}

// Error is the single error type returned by RunCycle
type Error struct {
	Kind      Kind
	PersonaID string
	Message   string
	Err       error
}

func newError(kind Kind, personaID, message string, err error) *Error {
	return &Error{Kind: kind, PersonaID: personaID, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("cycle %s: %s", e.Kind, e.Message)
	if e.PersonaID != "" {
		msg = fmt.Sprintf("cycle %s (persona %s): %s", e.Kind, e.PersonaID, e.Message)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of e's kind
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind of a cycle error, or "" for other errors
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

package transport

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a rejected transport step.
type Kind string

const (
	// KindSequencing: the step is not valid for the current document state.
	KindSequencing Kind = "sequencing"
	// KindAuthorization: the identity may not perform the final update.
	KindAuthorization Kind = "authorization"
	// KindEligibility: the submission has empty or failing questions.
	KindEligibility Kind = "eligibility"
	// KindLookup: a read was requested before any document exists.
	KindLookup Kind = "lookup"
)

// Error is a local, synchronous rejection. No API call is made and nothing is
// written to the ledger when a step returns one.
type Error struct {
	Kind        Kind
	Message     string
	QuestionIDs []string
}

func (e *Error) Error() string {
	if len(e.QuestionIDs) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.QuestionIDs, ", "))
}

func sequencingError(msg string) *Error {
	return &Error{Kind: KindSequencing, Message: msg}
}

// IsKind reports whether err is a transport Error of kind k.
func IsKind(err error, k Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == k
}

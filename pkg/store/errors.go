package store

import "fmt"

// ErrorKind classifies pipeline failures. The set is closed: new failure
// modes must map onto one of these kinds.
type ErrorKind int

const (
	// KindUpstreamUnavailable covers transport-level failures against the
	// vector store, the embedding service, the LLM, or Redis.
	KindUpstreamUnavailable ErrorKind = iota + 1

	// KindMalformedJudgment means an LLM judgment response could not be
	// parsed into the expected structure.
	KindMalformedJudgment

	// KindInvalidQuery is an empty or whitespace-only query. The only kind
	// that surfaces to the HTTP caller.
	KindInvalidQuery

	// KindSessionInconsistency marks corrupted or undecodable session state.
	KindSessionInconsistency
)

func (k ErrorKind) String() string {
	switch k {
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindMalformedJudgment:
		return "malformed_judgment"
	case KindInvalidQuery:
		return "invalid_query"
	case KindSessionInconsistency:
		return "session_inconsistency"
	default:
		return "unknown"
	}
}

// Error carries a classified failure with the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and operation name.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the kind from an error chain, or 0 if unclassified.
func KindOf(err error) ErrorKind {
	for err != nil {
		if se, ok := err.(*Error); ok {
			return se.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0
		}
		err = u.Unwrap()
	}
	return 0
}

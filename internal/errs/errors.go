// Package errs provides the error type returned by the migration engine.
//
// Three failure classes matter to callers: a merge action whose
// preconditions are unsafe (Validation), a statement rejected by the
// database (Execution) and a model or catalog that cannot be turned into a
// diff at all (Configuration). Catalog read failures are reported as Query.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorises an error.
type Kind int

const (
	KindUnknown       Kind = iota
	KindValidation         // an action's preconditions are unsafe
	KindExecution          // the database rejected a rendered statement
	KindConfiguration      // unresolved object id, unmapped type, bad descriptor
	KindQuery              // catalog query failed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindExecution:
		return "execution"
	case KindConfiguration:
		return "configuration"
	case KindQuery:
		return "query"
	default:
		return "unknown"
	}
}

// Error is the single error type surfaced by the engine.
type Error struct {
	Kind    Kind
	Message string
	// Action is the description of the merge action involved, if any.
	Action string
	// SQL is the offending statement for execution errors.
	SQL string
	// Details lists every validation message of a blocked batch.
	Details []string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	if e.Action != "" {
		fmt.Fprintf(&b, " (action: %s)", e.Action)
	}
	if len(e.Details) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Details, "; "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// Configuration creates a configuration error.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Validation creates an error listing the validation messages that blocked
// a batch.
func Validation(msg string, details []string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

// Execution wraps a database failure together with the statement and the
// action that produced it.
func Execution(action, sql string, cause error) *Error {
	return &Error{Kind: KindExecution, Message: "statement failed", Action: action, SQL: sql, Cause: cause}
}

// Query wraps a catalog query failure.
func Query(msg string, cause error) *Error {
	return &Error{Kind: KindQuery, Message: msg, Cause: cause}
}

// --- Predicates ---

func IsValidation(err error) bool    { return kindOf(err) == KindValidation }
func IsExecution(err error) bool     { return kindOf(err) == KindExecution }
func IsConfiguration(err error) bool { return kindOf(err) == KindConfiguration }
func IsQuery(err error) bool         { return kindOf(err) == KindQuery }

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func kindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

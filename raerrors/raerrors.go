// Package raerrors defines the error vocabulary shared by the parser and
// evaluator, following the go-errors.v1 "kind" pattern: a package-level
// *errors.Kind describes a class of failure, instantiated with .New(...)
// at the failure site and identified later with kind.Is(err).
package raerrors

import (
	"fmt"

	errors "gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrParse is raised by the RA parser and the predicate parser for any
	// malformed input. Callers should prefer the richer *ParseError value
	// returned alongside it when position information is needed.
	ErrParse = errors.NewKind("parse error: %s")

	// ErrUnknownRelation is raised when a Relation(name) node names a
	// relation absent from the environment.
	ErrUnknownRelation = errors.NewKind("unknown relation %q (available: %s)")

	// ErrMissingAttribute is raised when an operator references an
	// attribute absent from its input schema.
	ErrMissingAttribute = errors.NewKind("attribute %q not found in schema %s")

	// ErrRenameCollision is raised when a rename's new name already exists.
	ErrRenameCollision = errors.NewKind("rename target %q already exists in schema")

	// ErrSchemaCollision is raised when a join would otherwise produce two
	// attributes with the same name and no disambiguation rule applies.
	ErrSchemaCollision = errors.NewKind("schema collision on attribute %q")

	// ErrUnionIncompatible is raised when ∪ operands do not share a schema.
	ErrUnionIncompatible = errors.NewKind("union requires identical schemas: %s vs %s")

	// ErrDifferenceIncompatible is raised when − operands do not share a schema.
	ErrDifferenceIncompatible = errors.NewKind("difference requires identical schemas: %s vs %s")

	// ErrIntersectionIncompatible is raised when ∩ operands do not share a schema.
	ErrIntersectionIncompatible = errors.NewKind("intersection requires identical schemas: %s vs %s")

	// ErrDivisionIncompatible is raised when the divisor's schema is not a
	// subset of the dividend's schema.
	ErrDivisionIncompatible = errors.NewKind("division requires divisor schema %s to be a subset of dividend schema %s")

	// ErrDivisionEmptyQuotient is raised when A÷B leaves no quotient attributes.
	ErrDivisionEmptyQuotient = errors.NewKind("division requires the divisor to exclude at least one dividend attribute")

	// ErrAmbiguousAttribute is raised when an unqualified identifier
	// resolves against more than one alias.
	ErrAmbiguousAttribute = errors.NewKind("ambiguous attribute %q: bound by more than one alias")

	// ErrUndefinedAttribute is raised when an identifier resolves against
	// no binding at all.
	ErrUndefinedAttribute = errors.NewKind("undefined attribute %q")

	// ErrUnsupportedOperator is raised by the predicate evaluator for any
	// construct outside its closed grammar.
	ErrUnsupportedOperator = errors.NewKind("unsupported operator %q")

	// ErrPredicate wraps a ParseError or EvalError raised while evaluating
	// a σ or θ-join condition, attributing it to the containing node.
	ErrPredicate = errors.NewKind("predicate error: %s")

	// ErrRowLimitExceeded is raised when an intermediate relation grows
	// past the caller-configured Config.MaxRows bound.
	ErrRowLimitExceeded = errors.NewKind("result exceeds configured row limit of %d rows")
)

// ParseError carries the position of the first offending token, following
// spec §6's wire shape: {message, line, column, context}.
type ParseError struct {
	Message string
	Line    int
	Column  int
	Context string
	cause   error
}

// NewParseError builds a ParseError. Its Unwrap yields an ErrParse
// instance, so ErrParse.Is(perr.Unwrap()) holds for any parser failure.
func NewParseError(message string, line, column int, context string) *ParseError {
	return &ParseError{Message: message, Line: line, Column: column, Context: context}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at %d:%d\n%s", e.Message, e.Line, e.Column, e.Context)
}

// Unwrap returns the underlying cause, or a new ErrParse instance carrying
// Message when no cause is set.
func (e *ParseError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return ErrParse.New(e.Message)
}

// Caret renders a one-line excerpt with a caret marker under the offending
// column, matching spec §6's "context is a one-line excerpt with a caret
// marker".
func Caret(line string, column int) string {
	if column < 1 {
		column = 1
	}
	pad := column - 1
	if pad > len(line) {
		pad = len(line)
	}
	marker := make([]byte, pad)
	for i := range marker {
		if line[i] == '\t' {
			marker[i] = '\t'
		} else {
			marker[i] = ' '
		}
	}
	return line + "\n" + string(marker) + "^"
}

package engine

import (
	"context"
	"errors"

	"invquery/schema"
	"invquery/storedquery"
	"invquery/traversal"
)

var (
	// ErrUnknownStoredQuery is returned when an invocation names a query
	// the catalog does not hold
	ErrUnknownStoredQuery = errors.New("unknown stored query")
	// ErrInvalidPredicate is returned when the start predicate names a
	// node type or property the node-type schema does not declare
	ErrInvalidPredicate = errors.New("invalid start predicate")
	// ErrInvalidInvocation is returned when an invocation names neither or
	// both of a stored query and a relation request
	ErrInvalidInvocation = errors.New("invalid invocation")
)

const (
	outcomeOK               = "ok"
	outcomeUnknownQuery     = "unknown_query"
	outcomeMissingParameter = "missing_parameter"
	outcomeRuleError        = "rule_error"
	outcomeSyntaxError      = "syntax_error"
	outcomeInvalid          = "invalid"
	outcomeCanceled         = "canceled"
	outcomeStoreError       = "store_error"
)

// outcome classifies an invocation error for metrics and logs
func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrUnknownStoredQuery):
		return outcomeUnknownQuery
	case errors.Is(err, storedquery.ErrMissingRequiredParameter):
		return outcomeMissingParameter
	case errors.Is(err, schema.ErrNoEdgeRule), errors.Is(err, schema.ErrAmbiguousEdgeRule):
		return outcomeRuleError
	case errors.Is(err, traversal.ErrTemplateSyntax), errors.Is(err, storedquery.ErrTemplate):
		return outcomeSyntaxError
	case errors.Is(err, ErrInvalidPredicate), errors.Is(err, ErrInvalidInvocation), errors.Is(err, traversal.ErrInvalidRequest),
		errors.Is(err, storedquery.ErrInvalidParameter):
		return outcomeInvalid
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCanceled
	default:
		return outcomeStoreError
	}
}

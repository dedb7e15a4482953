package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoEdgeRule is returned when no rule connects a node-type pair
	// under the requested classification and label.
	ErrNoEdgeRule = errors.New("no edge rule")
	// ErrAmbiguousEdgeRule is returned when several rules match and none,
	// or more than one, is marked default.
	ErrAmbiguousEdgeRule = errors.New("ambiguous edge rule")
	// ErrInvalidRule is returned for rule documents that fail validation.
	ErrInvalidRule = errors.New("invalid edge rule")
	// ErrUnknownNodeType is returned when a node type is not declared.
	ErrUnknownNodeType = errors.New("unknown node type")
	// ErrUndeclaredProperty is returned when a property is not declared
	// for its node type or carries the wrong value type.
	ErrUndeclaredProperty = errors.New("undeclared property")
)

// RuleError reports a failed rule resolution for a node-type pair
type RuleError struct {
	From  string
	To    string
	Type  Classification
	Label string
	Err   error
}

func (e *RuleError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v between %s and %s", e.Err, e.From, e.To)
	var quals []string
	if e.Type != "" {
		quals = append(quals, "type "+string(e.Type))
	}
	if e.Label != "" {
		quals = append(quals, "label "+e.Label)
	}
	if len(quals) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(quals, ", "))
	}
	return b.String()
}

func (e *RuleError) Unwrap() error { return e.Err }

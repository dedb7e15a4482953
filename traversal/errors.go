package traversal

import (
	"errors"
	"fmt"
)

var (
	// ErrTemplateSyntax is returned when a rendered template cannot be parsed
	ErrTemplateSyntax = errors.New("template syntax error")
	// ErrInvalidRequest is returned for structured relation requests that
	// cannot be composed
	ErrInvalidRequest = errors.New("invalid relation request")
)

// SyntaxError locates a template parse failure
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%v at offset %d: %s", ErrTemplateSyntax, e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrTemplateSyntax }

func syntaxErrorf(pos int, format string, args ...interface{}) error {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

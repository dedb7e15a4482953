package storedquery

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedCatalog is returned when a stored-query document cannot be parsed
	ErrMalformedCatalog = errors.New("malformed stored query catalog")
	// ErrMissingRequiredParameter is returned when an invocation omits a
	// required property or leaves a mandatory placeholder unbound
	ErrMissingRequiredParameter = errors.New("missing required parameter")
	// ErrTemplate is returned for templates with unbalanced delimiters
	ErrTemplate = errors.New("invalid query template")
	// ErrNoCatalog is returned when a loader succeeds without producing a catalog
	ErrNoCatalog = errors.New("no stored query catalog")
	// ErrInvalidParameter is returned when a value cannot be spliced into
	// an unquoted template position
	ErrInvalidParameter = errors.New("invalid parameter value")
)

// MissingParameterError names the parameter an invocation failed to supply
type MissingParameterError struct {
	Query string
	Name  string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("stored query %s: %v: %s", e.Query, ErrMissingRequiredParameter, e.Name)
}

func (e *MissingParameterError) Unwrap() error { return ErrMissingRequiredParameter }

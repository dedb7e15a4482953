package graphdb

import "errors"

var (
	// ErrVertexNotFound is returned when a vertex id is not indexed or inactive
	ErrVertexNotFound = errors.New("vertex not found")

	// ErrEdgeNotFound is returned when an edge id is not indexed or inactive
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrDanglingEdge is returned when an edge references a missing endpoint
	ErrDanglingEdge = errors.New("edge endpoint does not exist")

	// ErrClosed is returned by operations on a closed GraphDB
	ErrClosed = errors.New("graph database is closed")
)

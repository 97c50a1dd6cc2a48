package orm

import "errors"

var (
	// ErrNotFound is returned by First when no row matches.
	ErrNotFound = errors.New("orm: not found")

	// ErrUnscopedDelete is returned by Delete when the query has no WHERE
	// clause.
	ErrUnscopedDelete = errors.New("orm: Delete without WHERE clause is not allowed")

	// ErrMissingPK is returned by Update when the row carries no primary
	// key value.
	ErrMissingPK = errors.New("orm: primary key value is required for Update")
)

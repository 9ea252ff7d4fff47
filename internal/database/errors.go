package database

import "errors"

var (
	// ErrDatabaseNotFound is returned by Open when the database file does not
	// exist and CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("history database not found")

	// ErrRunNotFound is returned when a run ID has no row.
	ErrRunNotFound = errors.New("run not found")
)

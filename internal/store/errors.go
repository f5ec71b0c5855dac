package store

import "errors"

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

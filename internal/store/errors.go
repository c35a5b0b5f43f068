package store

import "errors"

// ErrNotFound is returned when a referenced job, pending audio or graph
// node does not exist. Callers decide whether that is an error.
var ErrNotFound = errors.New("not found")

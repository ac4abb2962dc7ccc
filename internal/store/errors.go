package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrIDConflict is returned when an insert collides with an existing
// primary key. The users_react identity sequence can drift below
// max(id) after bulk imports; callers repair the sequence and retry once.
var ErrIDConflict = errors.New("id conflict")

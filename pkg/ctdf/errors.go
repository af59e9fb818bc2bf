package ctdf

import "errors"

var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a stored document changed since it was loaded
var ErrConflict = errors.New("version conflict")

package orchestrator

import "errors"

// ErrFormNotFound is returned when a form ID is not in the catalog.
var ErrFormNotFound = errors.New("form not found")

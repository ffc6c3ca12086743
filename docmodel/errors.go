package docmodel

import "errors"

var (
	// ErrNoData is returned by accessors that were not wired.
	ErrNoData = errors.New("no data accessor")
	// ErrNotFound is returned by Resources.Lookup for unbound names.
	ErrNotFound = errors.New("xobject not found")
	// ErrNotImage is returned by Resources.Replace when the name is bound
	// to a form.
	ErrNotImage = errors.New("xobject is not an image")
)

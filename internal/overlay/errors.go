package overlay

import "errors"

var (
	// ErrFileNotFound is returned when the overlay list file cannot be opened.
	ErrFileNotFound = errors.New("overlay list does not exist or is unreadable")
	// ErrInvalidDocument is returned when the document is not well-formed XML
	// or carries values that cannot be interpreted.
	ErrInvalidDocument = errors.New("overlay list is not a valid document")
	// ErrMissingName is returned when an overlay entry has no name.
	ErrMissingName = errors.New(`overlay is missing a "name" entry`)
	// ErrMissingSource is returned when an overlay entry has no source.
	ErrMissingSource = errors.New(`overlay is missing a "source" entry`)
	// ErrMissingOwner is returned when an overlay entry has no owner email.
	ErrMissingOwner = errors.New(`overlay is missing an "owner.email" entry`)
	// ErrMissingDescription is returned when an overlay entry has no description.
	ErrMissingDescription = errors.New(`overlay is missing a "description" entry`)
	// ErrDuplicateName is returned when two overlays share the same name.
	ErrDuplicateName = errors.New("overlay name is declared twice")
)

package dictionary

import "errors"

var (
	// ErrUnknownFormat is returned for files whose extension maps to no snapshot format
	ErrUnknownFormat = errors.New("unknown snapshot format")
	// ErrEmptyPayload is returned when a payload decodes to nothing usable
	ErrEmptyPayload = errors.New("empty payload")
)

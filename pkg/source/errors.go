package source

import "errors"

var (
	// ErrNoEndpoint is returned by an HTTP source without a vocabulary URL
	ErrNoEndpoint = errors.New("no vocabulary endpoint configured")
	// ErrBadStatus wraps non-2xx responses from the data provider
	ErrBadStatus = errors.New("unexpected response status")
	// ErrNoPath is returned by a file source without a snapshot path
	ErrNoPath = errors.New("no snapshot path configured")
)

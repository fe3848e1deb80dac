package engine

import "errors"

var (
	// ErrNoSnapshot is returned before the first successful refresh
	ErrNoSnapshot = errors.New("no data snapshot loaded")
	// ErrSourceRequired is returned by New without a data source
	ErrSourceRequired = errors.New("data source required")
)

// Package source is the boundary to the data provider. It fetches loosely
// typed records from snapshot files or HTTP endpoints and coerces them into
// vocabulary terms and rankable candidates.
package source

import (
	"context"
	"time"

	"github.com/mariohealth/marioserve/pkg/dictionary"
	"github.com/mariohealth/marioserve/pkg/rank"
)

// Snapshot is one complete fetch from the data provider
type Snapshot struct {
	Version    string
	FetchedAt  time.Time
	Terms      []dictionary.Term
	Candidates []rank.Candidate
	// Issues counts repaired payloads, dropped entries and coerced fields
	Issues int
}

// Source fetches snapshots. Implementations must honor ctx.
type Source interface {
	Fetch(ctx context.Context) (*Snapshot, error)
	Name() string
}

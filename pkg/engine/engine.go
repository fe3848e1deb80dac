// Package engine ties the vocabulary, suggestion index, resolver, spell
// matcher and ranker to one data snapshot, and swaps snapshots atomically
// when the data provider is refreshed.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mariohealth/marioserve/internal/utils"
	"github.com/mariohealth/marioserve/pkg/dictionary"
	"github.com/mariohealth/marioserve/pkg/fuzzy"
	"github.com/mariohealth/marioserve/pkg/rank"
	"github.com/mariohealth/marioserve/pkg/resolve"
	"github.com/mariohealth/marioserve/pkg/source"
	"github.com/mariohealth/marioserve/pkg/suggest"
)

// Options configures the engine's components
type Options struct {
	Suggest          suggest.Options
	Ranker           rank.Config
	SpellThreshold   float64
	SpellMinInputLen int
	// RefreshInterval drives Run; 0 disables periodic refresh
	RefreshInterval time.Duration
}

// DefaultOptions returns the component defaults
func DefaultOptions() Options {
	return Options{
		Suggest:          suggest.DefaultOptions(),
		Ranker:           rank.DefaultConfig(),
		SpellThreshold:   fuzzy.DefaultThreshold,
		SpellMinInputLen: fuzzy.DefaultMinInputLen,
	}
}

// Snapshot is everything built from one fetch. It is immutable.
type Snapshot struct {
	Version    string
	LoadedAt   time.Time
	Vocabulary *dictionary.Vocabulary
	Index      *suggest.Index
	Resolver   *resolve.Resolver
	Matcher    *fuzzy.Matcher
	Candidates []rank.Candidate
	Issues     int
}

// Engine serves lookups from the current snapshot. Readers never block on
// a refresh and never observe a partially built snapshot.
type Engine struct {
	src    source.Source
	opts   Options
	ranker *rank.Ranker

	snap      atomic.Pointer[Snapshot]
	refreshMu sync.Mutex
	refreshes atomic.Int64
	failures  atomic.Int64
}

// New creates an engine reading from src. Call Refresh before serving.
func New(src source.Source, opts Options) (*Engine, error) {
	if src == nil {
		return nil, ErrSourceRequired
	}
	return &Engine{
		src:    src,
		opts:   opts,
		ranker: rank.NewRanker(opts.Ranker),
	}, nil
}

// Build turns fetched data into a snapshot without publishing it
func (e *Engine) Build(data *source.Snapshot) *Snapshot {
	vocab := dictionary.NewVocabulary(data.Terms)
	cands := make([]rank.Candidate, len(data.Candidates))
	for i, c := range data.Candidates {
		cands[i] = c.Sanitized()
	}

	return &Snapshot{
		Version:    data.Version,
		LoadedAt:   time.Now(),
		Vocabulary: vocab,
		Index:      suggest.NewIndex(vocab, e.opts.Suggest),
		Resolver:   resolve.NewResolver(vocab),
		Matcher: fuzzy.NewMatcher(vocab.Texts(),
			fuzzy.WithThreshold(e.opts.SpellThreshold),
			fuzzy.WithMinInputLen(e.opts.SpellMinInputLen)),
		Candidates: cands,
		Issues:     data.Issues,
	}
}

// Load builds data and publishes it as the current snapshot
func (e *Engine) Load(data *source.Snapshot) *Snapshot {
	snap := e.Build(data)
	e.snap.Store(snap)
	return snap
}

// Refresh fetches from the source and swaps in the new snapshot. On error
// the previous snapshot stays in place.
func (e *Engine) Refresh(ctx context.Context) error {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	start := time.Now()
	data, err := e.src.Fetch(ctx)
	if err != nil {
		e.failures.Add(1)
		if e.snap.Load() != nil {
			log.Warnf("Refresh from %s failed, keeping previous snapshot: %v", e.src.Name(), err)
		}
		return fmt.Errorf("refresh from %s: %w", e.src.Name(), err)
	}

	snap := e.Load(data)
	e.refreshes.Add(1)
	log.Infof("Loaded %d terms and %d candidates from %s in %v",
		snap.Vocabulary.Len(), len(snap.Candidates), e.src.Name(), time.Since(start))
	return nil
}

// Run refreshes every RefreshInterval until ctx is done. Failed refreshes
// are logged and retried on the next tick.
func (e *Engine) Run(ctx context.Context) error {
	if e.opts.RefreshInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(e.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Refresh(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("Periodic refresh failed: %v", err)
			}
		}
	}
}

// Current returns the published snapshot
func (e *Engine) Current() (*Snapshot, error) {
	snap := e.snap.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Ranker returns the engine's ranker
func (e *Engine) Ranker() *rank.Ranker {
	return e.ranker
}

// Suggest returns autocomplete suggestions. Without a snapshot it returns
// an empty slice.
func (e *Engine) Suggest(query string, limit int) []suggest.Suggestion {
	snap := e.snap.Load()
	if snap == nil {
		return []suggest.Suggestion{}
	}
	return snap.Index.Suggest(query, limit)
}

// Resolve classifies a submitted query
func (e *Engine) Resolve(query string) resolve.Resolved {
	snap := e.snap.Load()
	if snap == nil {
		return resolve.Resolved{Kind: resolve.KindNone, Query: query}
	}
	return snap.Resolver.Resolve(query)
}

// Spell returns a "did you mean" correction for query, if one exists
func (e *Engine) Spell(query string) (string, bool) {
	snap := e.snap.Load()
	if snap == nil {
		return query, false
	}
	return snap.Matcher.SuggestCorrection(query)
}

// Rank filters, orders and pages the snapshot's candidates
func (e *Engine) Rank(spec rank.FilterSpec, page rank.PageRequest) rank.Page {
	var cands []rank.Candidate
	if snap := e.snap.Load(); snap != nil {
		cands = snap.Candidates
	}
	return e.ranker.Rank(cands, spec, page)
}

// Search resolves query and ranks what it resolved to. A collection ranks
// its providers, an entity ranks itself, and an unresolved query ranks the
// snapshot candidates whose name or specialty contains it.
func (e *Engine) Search(query string, spec rank.FilterSpec, page rank.PageRequest) (resolve.Resolved, rank.Page) {
	res := e.Resolve(query)

	var cands []rank.Candidate
	switch res.Kind {
	case resolve.KindCollection:
		cands = rank.FromTerms(res.Items)
	case resolve.KindEntity:
		if c, ok := rank.FromTerm(*res.Entity); ok {
			cands = []rank.Candidate{c}
		}
	default:
		cands = e.matchCandidates(query)
	}
	return res, e.ranker.Rank(cands, spec, page)
}

func (e *Engine) matchCandidates(query string) []rank.Candidate {
	snap := e.snap.Load()
	q := utils.Normalize(query)
	if snap == nil || q == "" {
		return nil
	}
	var out []rank.Candidate
	for _, c := range snap.Candidates {
		if strings.Contains(utils.Normalize(c.Name), q) || strings.Contains(utils.Normalize(c.Specialty), q) {
			out = append(out, c)
		}
	}
	return out
}

// Stats reports snapshot sizes and refresh counters
func (e *Engine) Stats() map[string]int {
	stats := map[string]int{
		"refreshes":       int(e.refreshes.Load()),
		"refreshFailures": int(e.failures.Load()),
	}
	snap := e.snap.Load()
	if snap == nil {
		return stats
	}
	for k, v := range snap.Vocabulary.Stats() {
		stats[k] = v
	}
	for k, v := range snap.Index.Stats() {
		stats[k] = v
	}
	stats["candidates"] = len(snap.Candidates)
	stats["dataIssues"] = snap.Issues
	stats["spellWords"] = snap.Matcher.Len()
	return stats
}

package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mariohealth/marioserve/pkg/dictionary"
	"github.com/mariohealth/marioserve/pkg/rank"
	"github.com/mariohealth/marioserve/pkg/resolve"
	"github.com/mariohealth/marioserve/pkg/source"
)

type stubSource struct {
	mu    sync.Mutex
	snaps []*source.Snapshot
	err   error
	calls atomic.Int32
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(ctx context.Context) (*source.Snapshot, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	snap := s.snaps[0]
	if len(s.snaps) > 1 {
		s.snaps = s.snaps[1:]
	}
	return snap, nil
}

func (s *stubSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func provider(id, name, specialty string, price, savings float64) dictionary.Term {
	return dictionary.Term{
		ID: id, Text: name, Category: dictionary.CategoryProvider,
		Provider: &dictionary.ProviderInfo{
			Specialty: specialty, Price: price, SavingsPercent: savings,
			Distance: 3, Network: dictionary.NetworkIn, Rating: 4.5,
		},
	}
}

func orthoSnapshot() *source.Snapshot {
	return &source.Snapshot{
		Version: "v1",
		Terms: []dictionary.Term{
			provider("d1", "Dr. Sarah Johnson", "Orthopedic Surgery", 425, 35),
			provider("d2", "Dr. Amir Patel", "Orthopedic Surgery", 400, 5),
			provider("d3", "Dr. Lee Chen", "Cardiology", 240, 8),
			{ID: "s1", Text: "Orthopedic Surgery", Category: dictionary.CategorySpecialty},
			{ID: "s2", Text: "Cardiology", Category: dictionary.CategorySpecialty},
			{ID: "m1", Text: "Lipitor 20 mg", Category: dictionary.CategoryMedication,
				Medication: &dictionary.MedicationInfo{CashPrice: 14, SavingsPercent: 36}},
		},
		Candidates: []rank.Candidate{
			{ID: "a", Name: "Bay Imaging Center", Specialty: "Radiology", Price: 450, SavingsPercent: 20, Distance: 4, Network: dictionary.NetworkIn},
			{ID: "b", Name: "Valley MRI", Specialty: "Radiology", Price: 600, SavingsPercent: 5, Distance: 30, Network: dictionary.NetworkOut},
			{ID: "c", Name: "City Cardiology", Specialty: "Cardiology", Price: 200, SavingsPercent: 40, Distance: 2, Network: dictionary.NetworkIn},
		},
	}
}

func newEngine(t *testing.T, src source.Source) *Engine {
	t.Helper()
	e, err := New(src, DefaultOptions())
	require.NoError(t, err)
	return e
}

func TestNewRequiresSource(t *testing.T) {
	_, err := New(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrSourceRequired)
}

func TestEngineBeforeRefreshIsTotal(t *testing.T) {
	e := newEngine(t, &stubSource{snaps: []*source.Snapshot{orthoSnapshot()}})

	_, err := e.Current()
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.Empty(t, e.Suggest("ortho", 5))
	assert.NotNil(t, e.Suggest("ortho", 5))
	assert.Equal(t, resolve.KindNone, e.Resolve("ortho").Kind)
	got, ok := e.Spell("cardiolgy")
	assert.False(t, ok)
	assert.Equal(t, "cardiolgy", got)

	page := e.Rank(rank.DefaultFilterSpec(), rank.PageRequest{})
	assert.Empty(t, page.Items)
	assert.Zero(t, page.TotalCount)
	assert.Equal(t, 0, e.Stats()["refreshes"])
}

func TestEngineServesSnapshot(t *testing.T) {
	e := newEngine(t, &stubSource{snaps: []*source.Snapshot{orthoSnapshot()}})
	require.NoError(t, e.Refresh(context.Background()))

	suggestions := e.Suggest("ortho", 5)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "Dr. Sarah Johnson", suggestions[0].Text)

	res := e.Resolve("orthopedic")
	assert.Equal(t, resolve.KindCollection, res.Kind)
	assert.Len(t, res.Items, 2)

	correction, ok := e.Spell("cardiolgy")
	assert.True(t, ok)
	assert.Equal(t, "Cardiology", correction)

	page := e.Rank(rank.DefaultFilterSpec(), rank.PageRequest{Limit: 10})
	assert.Equal(t, 2, page.TotalCount, "Valley MRI is beyond the default radius")
	assert.Equal(t, "c", page.Items[0].ID)

	stats := e.Stats()
	assert.Equal(t, 6, stats["totalTerms"])
	assert.Equal(t, 3, stats["candidates"])
	assert.Equal(t, 1, stats["refreshes"])
}

func TestEngineSearch(t *testing.T) {
	e := newEngine(t, &stubSource{snaps: []*source.Snapshot{orthoSnapshot()}})
	require.NoError(t, e.Refresh(context.Background()))

	res, page := e.Search("orthopedic surgery", rank.DefaultFilterSpec(), rank.PageRequest{})
	assert.Equal(t, resolve.KindCollection, res.Kind)
	require.Equal(t, 2, page.TotalCount)
	// 425 at 35% beats 400 at 5% on best value
	assert.Equal(t, []string{"d1", "d2"}, []string{page.Items[0].ID, page.Items[1].ID})

	res, page = e.Search("lipitor", rank.DefaultFilterSpec().WithMaxDistance(100), rank.PageRequest{})
	assert.Equal(t, resolve.KindEntity, res.Kind)
	require.Equal(t, 1, page.TotalCount)
	assert.Equal(t, rank.KindMedication, page.Items[0].Kind)

	res, page = e.Search("radiology", rank.DefaultFilterSpec().WithMaxDistance(100), rank.PageRequest{})
	assert.Equal(t, resolve.KindNone, res.Kind)
	assert.Equal(t, 2, page.TotalCount)

	_, page = e.Search("", rank.DefaultFilterSpec(), rank.PageRequest{})
	assert.Zero(t, page.TotalCount)
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	src := &stubSource{snaps: []*source.Snapshot{orthoSnapshot()}}
	e := newEngine(t, src)
	require.NoError(t, e.Refresh(context.Background()))
	before, err := e.Current()
	require.NoError(t, err)

	boom := errors.New("provider unavailable")
	src.fail(boom)
	err = e.Refresh(context.Background())
	assert.ErrorIs(t, err, boom)

	after, err := e.Current()
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.NotEmpty(t, e.Suggest("ortho", 5))
	assert.Equal(t, 1, e.Stats()["refreshFailures"])
}

func TestRefreshSwapsSnapshot(t *testing.T) {
	second := &source.Snapshot{Version: "v2", Terms: []dictionary.Term{
		{ID: "s9", Text: "Dermatology", Category: dictionary.CategorySpecialty},
	}}
	e := newEngine(t, &stubSource{snaps: []*source.Snapshot{orthoSnapshot(), second}})

	require.NoError(t, e.Refresh(context.Background()))
	require.NoError(t, e.Refresh(context.Background()))

	snap, err := e.Current()
	require.NoError(t, err)
	assert.Equal(t, "v2", snap.Version)
	assert.Empty(t, e.Suggest("ortho", 5))
	assert.Equal(t, "Dermatology", e.Suggest("derma", 5)[0].Text)
}

func TestConcurrentReadsDuringRefresh(t *testing.T) {
	e := newEngine(t, &stubSource{snaps: []*source.Snapshot{orthoSnapshot()}})
	require.NoError(t, e.Refresh(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.NotEmpty(t, e.Suggest("ortho", 5))
				e.Rank(rank.DefaultFilterSpec(), rank.PageRequest{})
			}
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, e.Refresh(context.Background()))
	}
	wg.Wait()
}

func TestRunRefreshesPeriodically(t *testing.T) {
	src := &stubSource{snaps: []*source.Snapshot{orthoSnapshot()}}
	opts := DefaultOptions()
	opts.RefreshInterval = 5 * time.Millisecond
	e, err := New(src, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return e.Stats()["refreshes"] >= 2 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestEngineWithFileSource(t *testing.T) {
	src := source.NewFileSource(filepath.Join("..", "dictionary", "testdata", "vocabulary.json"), nil)
	e := newEngine(t, src)
	require.NoError(t, e.Refresh(context.Background()))

	res := e.Resolve("mri")
	require.Equal(t, resolve.KindEntity, res.Kind)
	assert.Equal(t, dictionary.CategoryProcedure, res.Category)

	_, page := e.Search("mri", rank.DefaultFilterSpec(), rank.PageRequest{})
	require.Equal(t, 1, page.TotalCount)
	assert.Equal(t, "Bay Imaging Center", page.Items[0].Name)
	assert.Equal(t, rank.KindFacility, page.Items[0].Kind)
}

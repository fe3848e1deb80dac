package source

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mariohealth/marioserve/pkg/dictionary"
	"github.com/mariohealth/marioserve/pkg/rank"
)

func collect() (*Coercer, func() []Warning) {
	var mu sync.Mutex
	var got []Warning
	c := NewCoercer(func(w Warning) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, w)
	})
	return c, func() []Warning {
		mu.Lock()
		defer mu.Unlock()
		return append([]Warning(nil), got...)
	}
}

func TestCoerceProviderTerm(t *testing.T) {
	c, warnings := collect()
	term, ok := c.Term(dictionary.Record{
		"id":        "doctor-0",
		"name":      "Dr. Sarah Johnson",
		"type":      "doctor",
		"specialty": "Orthopedic Surgery",
		"price":     "$425",
		"savings":   "35% below average",
		"rating":    "4.9",
		"reviews":   "127",
		"distance":  "2.1 mi",
		"network":   "In-Network",
		"marioPick": true,
		"rewards":   "50 pts",
	})
	require.True(t, ok)
	assert.Empty(t, warnings())

	assert.Equal(t, dictionary.CategoryProvider, term.Category)
	assert.Equal(t, []string{"Orthopedic Surgery"}, term.Keywords)
	require.NotNil(t, term.Provider)
	assert.Equal(t, dictionary.ProviderInfo{
		Specialty:      "Orthopedic Surgery",
		Price:          425,
		SavingsPercent: 35,
		Rating:         4.9,
		ReviewCount:    127,
		Distance:       2.1,
		Network:        dictionary.NetworkIn,
		IsFeaturedPick: true,
		Points:         50,
	}, *term.Provider)
}

func TestCoerceProcedureAndMedication(t *testing.T) {
	c := NewCoercer(nil)

	proc, ok := c.Term(dictionary.Record{
		"name": "MRI Scan – Brain", "type": "procedure", "facility": "Bay Imaging Center",
		"price": "$450", "originalPrice": "$1,200", "savings": "62% off",
	})
	require.True(t, ok)
	require.NotNil(t, proc.Procedure)
	assert.Equal(t, "Bay Imaging Center", proc.Procedure.Facility)
	assert.Equal(t, 450.0, proc.Procedure.Price)
	assert.Equal(t, 1200.0, proc.Procedure.OriginalPrice)
	assert.Equal(t, 62.0, proc.Procedure.SavingsPercent)

	med, ok := c.Term(dictionary.Record{
		"name": "Lipitor 20 mg", "type": "medication", "cashPrice": "$14",
		"insurancePrice": "$22", "savings": "$8 (36% off)",
	})
	require.True(t, ok)
	require.NotNil(t, med.Medication)
	assert.Equal(t, 14.0, med.Medication.CashPrice)
	assert.Equal(t, 22.0, med.Medication.InsurancePrice)
	assert.Equal(t, 36.0, med.Medication.SavingsPercent)
}

func TestCoerceTermRejectsUnusable(t *testing.T) {
	c, warnings := collect()

	_, ok := c.Term(dictionary.Record{"type": "doctor"})
	assert.False(t, ok)
	_, ok = c.Term(dictionary.Record{"name": "Somebody", "type": "astronaut"})
	assert.False(t, ok)
	assert.Len(t, warnings(), 2)
	assert.Equal(t, int64(2), c.Warnings())
}

func TestCoerceCandidateWireShape(t *testing.T) {
	c, warnings := collect()
	cand, ok := c.Candidate(dictionary.Record{
		"provider_id":            "p1",
		"provider_name":          "Bay Imaging Center",
		"pricing":                map[string]any{"min_price": 450.0, "max_price": 900.0, "avg_price": 610.0},
		"nearest_distance_miles": 4.2,
		"rating":                 4.8,
		"review_count":           210,
		"in_network":             true,
		"marios_pick":            false,
		"savings":                30,
	})
	require.True(t, ok)
	assert.Empty(t, warnings())
	assert.Equal(t, rank.Candidate{
		ID:             "p1",
		Name:           "Bay Imaging Center",
		Kind:           rank.KindProvider,
		Price:          450,
		OriginalPrice:  900,
		SavingsPercent: 30,
		Distance:       4.2,
		Rating:         4.8,
		ReviewCount:    210,
		Network:        dictionary.NetworkIn,
	}, cand)
}

func TestCoerceFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		rec      dictionary.Record
		warnings int
		check    func(t *testing.T, c rank.Candidate)
	}{
		{
			name:     "non-finite price becomes zero",
			rec:      dictionary.Record{"name": "A", "price": math.Inf(1), "rating": math.NaN()},
			warnings: 2,
			check: func(t *testing.T, c rank.Candidate) {
				assert.Zero(t, c.Price)
				assert.Zero(t, c.Rating)
			},
		},
		{
			name:     "text without digits",
			rec:      dictionary.Record{"name": "A", "price": "call for pricing"},
			warnings: 1,
			check:    func(t *testing.T, c rank.Candidate) { assert.Zero(t, c.Price) },
		},
		{
			name:     "review count beyond int range",
			rec:      dictionary.Record{"name": "A", "review_count": 1e30, "points": -1e19},
			warnings: 2,
			check: func(t *testing.T, c rank.Candidate) {
				assert.Zero(t, c.ReviewCount)
				assert.Zero(t, c.Points)
			},
		},
		{
			name:     "signed display strings keep the sign",
			rec:      dictionary.Record{"name": "A", "price": "-45", "original_price": "-$60.50"},
			warnings: 2,
			check: func(t *testing.T, c rank.Candidate) {
				assert.Equal(t, -45.0, c.Price)
				assert.Equal(t, -60.5, c.OriginalPrice)
			},
		},
		{
			name:     "display strings",
			rec:      dictionary.Record{"name": "A", "price": "$45.99", "reviews": "1,250.7 reviews", "points": "150 pts"},
			warnings: 0,
			check: func(t *testing.T, c rank.Candidate) {
				assert.Equal(t, 45.99, c.Price)
				assert.Equal(t, 1250, c.ReviewCount)
				assert.Equal(t, 150, c.Points)
			},
		},
		{
			name:     "missing fields are silent",
			rec:      dictionary.Record{"name": "A"},
			warnings: 0,
			check: func(t *testing.T, c rank.Candidate) {
				assert.Zero(t, c.Price)
				assert.Empty(t, c.Network)
				assert.False(t, c.IsFeaturedPick)
			},
		},
		{
			name:     "out of network string",
			rec:      dictionary.Record{"name": "A", "network": "Out-of-Network"},
			warnings: 0,
			check:    func(t *testing.T, c rank.Candidate) { assert.Equal(t, dictionary.NetworkOut, c.Network) },
		},
		{
			name:     "unknown network",
			rec:      dictionary.Record{"name": "A", "network": "maybe"},
			warnings: 1,
			check:    func(t *testing.T, c rank.Candidate) { assert.Empty(t, c.Network) },
		},
		{
			name:     "non-array keywords",
			rec:      dictionary.Record{"name": "A", "keywords": "ortho"},
			warnings: 0,
			check:    func(t *testing.T, c rank.Candidate) { assert.Equal(t, "A", c.Name) },
		},
		{
			name:     "facility kind",
			rec:      dictionary.Record{"name": "Clinic", "type": "facility"},
			warnings: 0,
			check:    func(t *testing.T, c rank.Candidate) { assert.Equal(t, rank.KindFacility, c.Kind) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, warnings := collect()
			cand, ok := c.Candidate(tt.rec)
			require.True(t, ok)
			assert.Len(t, warnings(), tt.warnings)
			tt.check(t, cand)
		})
	}
}

func TestCoerceKeywordsNotArray(t *testing.T) {
	c, warnings := collect()
	term, ok := c.Term(dictionary.Record{"name": "Cardiology", "type": "specialty", "keywords": "heart"})
	require.True(t, ok)
	assert.Empty(t, term.Keywords)
	assert.Len(t, warnings(), 1)
}

func TestCandidatesFillMissingIDs(t *testing.T) {
	c := NewCoercer(nil)
	cands := c.Candidates([]dictionary.Record{
		{"name": "A"},
		{"id": "x", "name": "B"},
		{"price": 10},
		{"name": "C"},
	})
	require.Len(t, cands, 3)
	assert.Equal(t, "candidate-0", cands[0].ID)
	assert.Equal(t, "x", cands[1].ID)
	assert.Equal(t, "candidate-2", cands[2].ID)
}

func TestFileSource(t *testing.T) {
	src := NewFileSource(filepath.Join("..", "dictionary", "testdata", "vocabulary.json"), nil)
	snap, err := src.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2025-11-09", snap.Version)
	assert.Len(t, snap.Terms, 6)
	require.Len(t, snap.Candidates, 1)
	assert.Equal(t, "p1", snap.Candidates[0].ID)
	assert.Equal(t, 1, snap.Issues, "the string entry is dropped")
}

func TestFileSourceErrors(t *testing.T) {
	_, err := NewFileSource("", nil).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoPath)

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing.json"), nil).Fetch(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewFileSource("whatever.json", nil).Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func providerServer(t *testing.T, vocab, cands http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/vocabulary", vocab)
	if cands != nil {
		mux.HandleFunc("/search", cands)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSourceFetch(t *testing.T) {
	srv := providerServer(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"name": "Cardiology", "type": "specialty"}, {"name": "Dr. Lee Chen", "type": "doctor", "specialty": "Cardiology"}]`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/msgpack")
			data, err := msgpack.Marshal(map[string]any{
				"results": []any{map[string]any{"provider_id": "p1", "provider_name": "Dr. Lee Chen", "best_price": 240}},
			})
			require.NoError(t, err)
			_, _ = w.Write(data)
		},
	)

	src := NewHTTPSource(HTTPConfig{BaseURL: srv.URL, VocabularyEndpoint: "vocabulary", CandidatesEndpoint: "/search"}, nil)
	snap, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Terms, 2)
	require.Len(t, snap.Candidates, 1)
	assert.Equal(t, 240.0, snap.Candidates[0].Price)
	assert.Equal(t, "closed", src.BreakerState())
}

func TestHTTPSourceRepairsJSON(t *testing.T) {
	srv := providerServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [{"name": "Cardiology", "type": "specialty",}]`))
	}, nil)

	snap, err := NewHTTPSource(HTTPConfig{BaseURL: srv.URL, VocabularyEndpoint: "vocabulary"}, nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Terms, 1)
	assert.Equal(t, 1, snap.Issues)
}

func TestHTTPSourceBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := providerServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, nil)

	src := NewHTTPSource(HTTPConfig{
		BaseURL:            srv.URL,
		VocabularyEndpoint: "vocabulary",
		FailureThreshold:   2,
		OpenTimeout:        time.Minute,
	}, nil)

	for i := 0; i < 2; i++ {
		_, err := src.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrBadStatus)
	}
	assert.Equal(t, "open", src.BreakerState())

	_, err := src.Fetch(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(2), hits.Load(), "open breaker does not reach the server")
}

func TestHTTPSourceRequiresEndpoint(t *testing.T) {
	_, err := NewHTTPSource(HTTPConfig{BaseURL: "http://localhost"}, nil).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestHTTPSourceCandidateFailureFailsFetch(t *testing.T) {
	srv := providerServer(t,
		func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`[]`)) },
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
	)
	_, err := NewHTTPSource(HTTPConfig{BaseURL: srv.URL, VocabularyEndpoint: "vocabulary", CandidatesEndpoint: "search"}, nil).
		Fetch(context.Background())
	assert.ErrorIs(t, err, ErrBadStatus)
}

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/mariohealth/marioserve/pkg/dictionary"
)

// maxBodySize caps a single endpoint payload
const maxBodySize = 32 << 20

// HTTPConfig describes the data provider's endpoints
type HTTPConfig struct {
	BaseURL            string
	VocabularyEndpoint string
	// CandidatesEndpoint is optional
	CandidatesEndpoint string
	Timeout            time.Duration
	// Client defaults to an http.Client with Timeout
	Client *http.Client
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Defaults to 3.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open. Defaults to 30s.
	OpenTimeout time.Duration
}

// HTTPSource fetches vocabulary and candidates from the data provider's
// endpoints concurrently, behind a circuit breaker
type HTTPSource struct {
	cfg     HTTPConfig
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	coercer *Coercer
}

// NewHTTPSource creates a source for cfg. coercer may be nil.
func NewHTTPSource(cfg HTTPConfig, coercer *Coercer) *HTTPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if coercer == nil {
		coercer = NewCoercer(nil)
	}

	threshold := cfg.FailureThreshold
	st := gobreaker.Settings{
		Name:        "data-provider",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				log.Errorf("Circuit breaker '%s' changed from %s to %s, pausing requests for %s", name, from, to, cfg.OpenTimeout)
				return
			}
			log.Infof("Circuit breaker '%s' changed from %s to %s", name, from, to)
		},
	}

	return &HTTPSource{
		cfg:     cfg,
		client:  client,
		cb:      gobreaker.NewCircuitBreaker(st),
		coercer: coercer,
	}
}

// Name returns the base URL
func (s *HTTPSource) Name() string {
	return "http:" + s.cfg.BaseURL
}

// BreakerState reports the circuit breaker state ("closed", "open", "half-open")
func (s *HTTPSource) BreakerState() string {
	return s.cb.State().String()
}

// Fetch requests both endpoints concurrently. Any failure fails the whole
// fetch so a partial snapshot is never published.
func (s *HTTPSource) Fetch(ctx context.Context) (*Snapshot, error) {
	if s.cfg.VocabularyEndpoint == "" {
		return nil, ErrNoEndpoint
	}

	var (
		terms, cands []dictionary.Record
		termIssues   int
		candIssues   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		terms, termIssues, err = s.fetchRecords(gctx, s.cfg.VocabularyEndpoint)
		return err
	})
	if s.cfg.CandidatesEndpoint != "" {
		g.Go(func() error {
			var err error
			cands, candIssues, err = s.fetchRecords(gctx, s.cfg.CandidatesEndpoint)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("http source: %w", err)
	}

	before := s.coercer.Warnings()
	snap := &Snapshot{
		FetchedAt:  time.Now(),
		Terms:      s.coercer.Terms(terms),
		Candidates: s.coercer.Candidates(cands),
		Issues:     termIssues + candIssues,
	}
	snap.Issues += int(s.coercer.Warnings() - before)
	log.Debugf("Fetched %d terms and %d candidates from %s", len(snap.Terms), len(snap.Candidates), s.cfg.BaseURL)
	return snap, nil
}

func (s *HTTPSource) fetchRecords(ctx context.Context, endpoint string) ([]dictionary.Record, int, error) {
	type result struct {
		records []dictionary.Record
		issues  int
	}
	v, err := s.cb.Execute(func() (interface{}, error) {
		body, format, err := s.get(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		records, issues, err := dictionary.DecodeRecords(body, format)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", endpoint, err)
		}
		return result{records, issues}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	r := v.(result)
	return r.records, r.issues, nil
}

func (s *HTTPSource) get(ctx context.Context, endpoint string) ([]byte, dictionary.FileFormat, error) {
	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, dictionary.FormatUnknown, fmt.Errorf("build request %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json, application/msgpack")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, dictionary.FormatUnknown, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, dictionary.FormatUnknown, fmt.Errorf("%w: GET %s returned %d", ErrBadStatus, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, dictionary.FormatUnknown, fmt.Errorf("read %s: %w", url, err)
	}

	format := dictionary.FormatJSON
	if strings.Contains(resp.Header.Get("Content-Type"), "msgpack") {
		format = dictionary.FormatMsgpack
	}
	return body, format, nil
}

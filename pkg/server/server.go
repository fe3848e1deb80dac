package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mariohealth/marioserve/internal/utils"
	"github.com/mariohealth/marioserve/pkg/async"
	"github.com/mariohealth/marioserve/pkg/config"
	"github.com/mariohealth/marioserve/pkg/engine"
	"github.com/mariohealth/marioserve/pkg/rank"
	"github.com/mariohealth/marioserve/pkg/suggest"
)

const (
	defaultSession = "default"
	// configReloadEvery is the number of requests between config reloads
	configReloadEvery = 500
	refreshTimeout    = 30 * time.Second
)

type session struct {
	ctrl *async.Controller[[]suggest.Suggestion]

	mu      sync.Mutex
	ids     map[async.Token]string
	applied async.Token
}

// Server handles msgpack IPC for one client
type Server struct {
	engine     *engine.Engine
	config     *config.Config
	configPath string
	pool       *ants.Pool

	reader  io.Reader
	writeMu sync.Mutex
	enc     *msgpack.Encoder

	sessMu   sync.Mutex
	sessions map[string]*session

	requestCount int
}

// NewServer creates a server speaking over stdin and stdout
func NewServer(eng *engine.Engine, cfg *config.Config, configPath string) (*Server, error) {
	return NewServerWithIO(eng, cfg, configPath, os.Stdin, os.Stdout)
}

// NewServerWithIO creates a server over explicit streams
func NewServerWithIO(eng *engine.Engine, cfg *config.Config, configPath string, r io.Reader, w io.Writer) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	pool, err := ants.NewPool(max(cfg.Server.SessionPoolSize, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup pool: %w", err)
	}
	return &Server{
		engine:     eng,
		config:     cfg,
		configPath: configPath,
		pool:       pool,
		reader:     bufio.NewReader(r),
		enc:        msgpack.NewEncoder(w),
		sessions:   make(map[string]*session),
	}, nil
}

// Start signals readiness and serves requests until the input ends or ctx
// is cancelled. ctx is checked between requests.
func (s *Server) Start(ctx context.Context) error {
	log.Debug("Starting IPC server")
	s.send(StatusResponse{Status: "ready"})

	dec := msgpack.NewDecoder(s.reader)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var req Request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug("Input closed, stopping IPC server")
				return nil
			}
			s.sendError("", "Invalid msgpack request", 400)
			return fmt.Errorf("decoding request: %w", err)
		}
		s.handleRequest(ctx, req)
	}
}

// Close cancels pending keystrokes and waits for running lookups
func (s *Server) Close() {
	s.sessMu.Lock()
	for _, sess := range s.sessions {
		sess.ctrl.Cancel()
	}
	s.sessMu.Unlock()
	if err := s.pool.ReleaseTimeout(time.Second); err != nil {
		log.Warnf("Lookup pool did not drain: %v", err)
	}
}

func (s *Server) handleRequest(ctx context.Context, req Request) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	s.requestCount++
	if s.requestCount%configReloadEvery == 0 {
		s.reloadConfig()
	}

	switch req.Command {
	case "suggest":
		s.handleSuggest(req)
	case "type":
		s.handleType(req)
	case "cancel":
		s.handleCancel(req)
	case "resolve":
		s.handleResolve(req)
	case "rank":
		s.handleRank(req)
	case "spell":
		s.handleSpell(req)
	case "refresh":
		s.handleRefresh(ctx, req)
	case "health":
		s.send(StatusResponse{ID: req.ID, Status: "ok", Stats: s.engine.Stats()})
	default:
		s.sendError(req.ID, fmt.Sprintf("Unknown command: %s", req.Command), 400)
	}
}

// validateQuery enforces the configured query length bounds
func (s *Server) validateQuery(req Request) bool {
	n := utf8.RuneCountInString(req.Query)
	switch {
	case req.Query == "":
		s.sendError(req.ID, "Missing 'q' parameter", 400)
		return false
	case n < s.config.Server.MinQuery:
		s.sendError(req.ID, fmt.Sprintf("Query must be at least %d characters", s.config.Server.MinQuery), 400)
		return false
	case n > s.config.Server.MaxQuery:
		s.sendError(req.ID, fmt.Sprintf("Query exceeds maximum length of %d characters", s.config.Server.MaxQuery), 400)
		return false
	}
	return true
}

func (s *Server) limit(requested int) int {
	if requested <= 0 {
		requested = s.config.Suggest.DefaultLimit
	}
	return min(requested, s.config.Server.MaxLimit)
}

func (s *Server) handleSuggest(req Request) {
	if !s.validateQuery(req) {
		return
	}
	start := time.Now()
	suggestions := s.engine.Suggest(req.Query, s.limit(req.Limit))
	s.send(s.suggestResponse(req.ID, "", 0, req.Query, suggestions, time.Since(start)))
}

func (s *Server) suggestResponse(id, sid string, tok async.Token, query string, suggestions []suggest.Suggestion, took time.Duration) SuggestResponse {
	ranks := utils.CreateRankList(len(suggestions))
	items := make([]SuggestionItem, len(suggestions))
	for i, sg := range suggestions {
		items[i] = SuggestionItem{
			ID:       sg.ID,
			Text:     sg.Text,
			Category: string(sg.Category),
			Icon:     sg.Icon,
			Rank:     ranks[i],
			Matches:  sg.Matches,
		}
	}
	return SuggestResponse{
		ID:          id,
		Session:     sid,
		Token:       uint64(tok),
		Query:       query,
		Suggestions: items,
		Count:       len(items),
		TimeTaken:   took.Microseconds(),
	}
}

func (s *Server) session(sid string) *session {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()

	if sess, ok := s.sessions[sid]; ok {
		return sess
	}
	sess := &session{ids: make(map[async.Token]string)}
	limit := s.limit(0)
	lookup := func(ctx context.Context, query string) ([]suggest.Suggestion, error) {
		return s.engine.Suggest(query, limit), ctx.Err()
	}
	onApply := func(tok async.Token, query string, result []suggest.Suggestion) {
		sess.mu.Lock()
		id := sess.ids[tok]
		sess.applied = tok
		for t := range sess.ids {
			if t <= tok {
				delete(sess.ids, t)
			}
		}
		sess.mu.Unlock()
		s.send(s.suggestResponse(id, sid, tok, query, result, 0))
	}
	sess.ctrl = async.NewController(lookup, onApply,
		async.WithDebounce(s.config.Debounce()),
		async.WithTimeout(s.config.LookupTimeout()),
		async.WithExecutor(s.pool))
	s.sessions[sid] = sess
	log.Debugf("Opened keystroke session %q", sid)
	return sess
}

func (s *Server) handleType(req Request) {
	if utf8.RuneCountInString(req.Query) > s.config.Server.MaxQuery {
		s.sendError(req.ID, fmt.Sprintf("Query exceeds maximum length of %d characters", s.config.Server.MaxQuery), 400)
		return
	}
	sid := req.Session
	if sid == "" {
		sid = defaultSession
	}
	sess := s.session(sid)

	tok := sess.ctrl.Submit(req.Query)
	// with no debounce the result may already be out; clients match on the token
	sess.mu.Lock()
	if tok > sess.applied {
		sess.ids[tok] = req.ID
	}
	sess.mu.Unlock()

	s.send(TypeAck{ID: req.ID, Session: sid, Token: uint64(tok), Status: "pending"})
}

func (s *Server) handleCancel(req Request) {
	sid := req.Session
	if sid == "" {
		sid = defaultSession
	}
	s.sessMu.Lock()
	sess, ok := s.sessions[sid]
	s.sessMu.Unlock()

	status := "idle"
	if ok && sess.ctrl.Cancel() {
		status = "cancelled"
	}
	s.send(StatusResponse{ID: req.ID, Status: status})
}

func (s *Server) handleResolve(req Request) {
	if !s.validateQuery(req) {
		return
	}
	start := time.Now()
	res := s.engine.Resolve(req.Query)
	s.send(ResolveResponse{ID: req.ID, Result: res, TimeTaken: time.Since(start).Microseconds()})
}

// filterSpec applies the request's overrides on top of the configured defaults
func (s *Server) filterSpec(f *FilterRequest) rank.FilterSpec {
	spec := s.config.FilterSpec()
	if f == nil {
		return spec
	}
	if f.Network != "" {
		spec = spec.WithNetwork(f.Network)
	}
	if f.MaxDistance != nil {
		spec = spec.WithMaxDistance(*f.MaxDistance)
	}
	lo, hi := spec.PriceRange[0], spec.PriceRange[1]
	if f.MinPrice != nil {
		lo = *f.MinPrice
	}
	if f.MaxPrice != nil {
		hi = *f.MaxPrice
	}
	spec = spec.WithPriceRange(lo, hi)
	if f.SortBy != "" {
		spec = spec.WithSortBy(rank.ParseSortBy(f.SortBy))
	}
	return spec
}

func (s *Server) handleRank(req Request) {
	start := time.Now()
	spec := s.filterSpec(req.Filter)
	page := rank.PageRequest{Offset: req.Offset, Limit: req.Limit}

	resp := RankResponse{ID: req.ID}
	if req.Query != "" {
		if !s.validateQuery(req) {
			return
		}
		res, p := s.engine.Search(req.Query, spec, page)
		resp.Resolved = &res
		resp.Page = p
	} else {
		resp.Page = s.engine.Rank(spec, page)
	}
	resp.TimeTaken = time.Since(start).Microseconds()
	s.send(resp)
}

func (s *Server) handleSpell(req Request) {
	if !s.validateQuery(req) {
		return
	}
	correction, changed := s.engine.Spell(req.Query)
	resp := SpellResponse{ID: req.ID, Query: req.Query, Changed: changed}
	if changed {
		resp.Correction = correction
	}
	s.send(resp)
}

func (s *Server) handleRefresh(ctx context.Context, req Request) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	if err := s.engine.Refresh(ctx); err != nil {
		s.send(StatusResponse{ID: req.ID, Status: "error", Error: err.Error()})
		return
	}
	s.send(StatusResponse{ID: req.ID, Status: "ok", Stats: s.engine.Stats()})
}

// reloadConfig picks up edited IPC limits without a restart. Keystroke
// sessions keep the debounce they were opened with.
func (s *Server) reloadConfig() {
	if s.configPath == "" {
		return
	}
	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		log.Warnf("Config reload failed, keeping current config: %v", err)
		return
	}
	s.config = cfg
	log.Debugf("Reloaded config from %s", s.configPath)
}

// send writes one response. Keystroke results arrive from pool goroutines,
// so writes are serialized.
func (s *Server) send(v any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.enc.Encode(v); err != nil {
		log.Errorf("Encoding response: %v", err)
	}
}

func (s *Server) sendError(id, message string, code int) {
	s.send(ErrorResponse{ID: id, Error: message, Code: code})
}

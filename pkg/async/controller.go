// Package async debounces lookups driven by keystrokes and applies only the
// result of the most recent, non-cancelled request.
package async

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultDebounce is the delay between the last keystroke and the lookup
const DefaultDebounce = 300 * time.Millisecond

// historySize bounds how many finished request states StateOf remembers
const historySize = 64

// State of a request
type State int

const (
	Idle State = iota
	Pending
	Settled
	Superseded
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Settled:
		return "settled"
	case Superseded:
		return "superseded"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Token identifies a request. Tokens increase monotonically per controller;
// the zero token is never issued.
type Token uint64

// LookupFunc performs the lookup for a query. It should honor ctx, but the
// controller does not rely on it: late results are discarded by token.
type LookupFunc[T any] func(ctx context.Context, query string) (T, error)

// ApplyFunc receives each result that becomes visible, in token order
type ApplyFunc[T any] func(tok Token, query string, result T)

// Executor runs lookups. *ants.Pool satisfies it.
type Executor interface {
	Submit(task func()) error
}

type goExecutor struct{}

func (goExecutor) Submit(task func()) error {
	go task()
	return nil
}

type config struct {
	debounce time.Duration
	timeout  time.Duration
	executor Executor
}

// Option configures a Controller
type Option func(*config)

// WithDebounce sets the quiet period before a lookup starts; 0 starts it at once
func WithDebounce(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

// WithTimeout bounds each lookup. A timed out lookup counts as cancelled.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithExecutor runs lookups on e instead of fresh goroutines
func WithExecutor(e Executor) Option {
	return func(c *config) {
		if e != nil {
			c.executor = e
		}
	}
}

type request struct {
	token  Token
	query  string
	state  State
	ctx    context.Context
	cancel context.CancelFunc
	timer  *time.Timer
}

// Controller owns the debounce timer, request identity and cancellation of
// one input field. It is safe for concurrent use.
type Controller[T any] struct {
	lookup  LookupFunc[T]
	onApply ApplyFunc[T]
	cfg     config

	mu       sync.Mutex
	applyMu  sync.Mutex
	latest   Token
	current  *request
	finished map[Token]State

	visible      T
	visibleToken Token
	visibleQuery string
	lastErr      error
}

// NewController creates a controller around lookup. onApply may be nil.
func NewController[T any](lookup LookupFunc[T], onApply ApplyFunc[T], opts ...Option) *Controller[T] {
	cfg := config{debounce: DefaultDebounce, executor: goExecutor{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Controller[T]{
		lookup:   lookup,
		onApply:  onApply,
		cfg:      cfg,
		finished: make(map[Token]State),
	}
}

// Submit supersedes any pending request and schedules a lookup for query
// after the debounce delay. It returns the new request's token.
func (c *Controller[T]) Submit(query string) Token {
	c.mu.Lock()
	c.supersedeLocked()

	c.latest++
	ctx, cancel := context.WithCancel(context.Background())
	req := &request{token: c.latest, query: query, state: Pending, ctx: ctx, cancel: cancel}
	c.current = req

	if c.cfg.debounce > 0 {
		req.timer = time.AfterFunc(c.cfg.debounce, func() { c.fire(req) })
		c.mu.Unlock()
	} else {
		c.mu.Unlock()
		c.fire(req)
	}
	return req.token
}

// Cancel moves the pending request, if any, to Cancelled and suppresses its
// result even though it is still the latest. It reports whether anything
// was pending.
func (c *Controller[T]) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := c.current
	if req == nil || req.state != Pending {
		return false
	}
	c.finishLocked(req, Cancelled)
	log.Debugf("Cancelled request %d", req.token)
	return true
}

// State returns the state of the latest request, or Idle before the first
func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Idle
	}
	return c.current.state
}

// StateOf returns the state of a recent request. Unknown or forgotten
// tokens report Idle.
func (c *Controller[T]) StateOf(tok Token) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.token == tok {
		return c.current.state
	}
	if s, ok := c.finished[tok]; ok {
		return s
	}
	return Idle
}

// Latest returns the most recently issued token
func (c *Controller[T]) Latest() Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// Visible returns the last applied result, its token and query.
// ok is false until a result has been applied.
func (c *Controller[T]) Visible() (result T, tok Token, query string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible, c.visibleToken, c.visibleQuery, c.visibleToken != 0
}

// LastErr returns the error of the most recent failed lookup, if any
func (c *Controller[T]) LastErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller[T]) supersedeLocked() {
	if c.current != nil && c.current.state == Pending {
		c.finishLocked(c.current, Superseded)
	}
}

// finishLocked moves req to a terminal state and releases its resources
func (c *Controller[T]) finishLocked(req *request, s State) {
	req.state = s
	if req.timer != nil {
		req.timer.Stop()
	}
	req.cancel()
	c.finished[req.token] = s
	if req.token > historySize {
		delete(c.finished, req.token-historySize)
	}
}

// fire runs once the debounce period elapsed
func (c *Controller[T]) fire(req *request) {
	c.mu.Lock()
	if c.current != req || req.state != Pending {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.cfg.executor.Submit(func() { c.run(req) }); err != nil {
		log.Warnf("Lookup for request %d not scheduled: %v", req.token, err)
		c.fail(req, err)
	}
}

func (c *Controller[T]) run(req *request) {
	ctx := req.ctx
	if c.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.timeout)
		defer cancel()
	}

	result, err := c.lookup(ctx, req.query)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		c.fail(req, err)
		return
	}
	c.apply(req, result)
}

// fail treats a failed or timed out lookup like a cancellation; visible
// state is left as it was.
func (c *Controller[T]) fail(req *request, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != req || req.state != Pending {
		return
	}
	c.finishLocked(req, Cancelled)
	if !errors.Is(err, context.Canceled) {
		c.lastErr = err
	}
	log.Debugf("Request %d failed: %v", req.token, err)
}

// apply publishes result if req is still the latest pending request.
// applyMu is held across the check and the callback so callbacks observe
// results in token order; mu is never held while waiting for applyMu.
func (c *Controller[T]) apply(req *request, result T) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	if c.current != req || req.state != Pending {
		c.mu.Unlock()
		log.Debugf("Discarding stale result for request %d", req.token)
		return
	}
	c.finishLocked(req, Settled)
	c.visible = result
	c.visibleToken = req.token
	c.visibleQuery = req.query
	c.lastErr = nil
	c.mu.Unlock()

	if c.onApply != nil {
		c.onApply(req.token, req.query, result)
	}
}

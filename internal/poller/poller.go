// Package poller long-polls the Bot API for updates and feeds them, in
// order, to a single handler.
package poller

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/tgplug/internal/metrics"
	"github.com/flemzord/tgplug/internal/telegram"
)

// Defaults for the getUpdates request and the failure penalty.
const (
	DefaultTimeout = 30
	DefaultLimit   = 10
	DefaultPenalty = 5 * time.Second
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("poller: already started")

// ErrStopped is returned by Start once Stop has been called.
var ErrStopped = errors.New("poller: stopped")

// Fetcher retrieves updates. *telegram.Client implements it.
type Fetcher interface {
	GetUpdates(ctx context.Context, req telegram.GetUpdates) ([]telegram.Update, error)
}

// Handler receives every update exactly once, in update_id order.
type Handler interface {
	OnUpdate(ctx context.Context, u *telegram.Update) (bool, error)
}

// Config tunes the polling loop. Zero values select the defaults.
type Config struct {
	// Timeout is the long-poll timeout in seconds sent with getUpdates.
	Timeout int
	// Limit caps the number of updates per batch.
	Limit int
	// Penalty is the pause applied after a failed poll.
	Penalty time.Duration
	// AllowedUpdates restricts the update kinds the server returns.
	AllowedUpdates []string
}

// Status is a point-in-time view of the poller.
type Status struct {
	Polling   bool          `json:"polling"`
	Offset    int64         `json:"offset"`
	Backoff   time.Duration `json:"backoff"`
	LastPoll  time.Time     `json:"last_poll"`
	LastError string        `json:"last_error,omitempty"`
}

type batch struct {
	updates []telegram.Update
	done    chan struct{}
}

// Poller runs the long-polling loop. The offset is advanced past each
// update before the handler sees it, so an update is delivered at most
// once even if the handler fails.
type Poller struct {
	fetcher Fetcher
	handler Handler
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	// suspend waits d or until stop is closed. Replaced in tests.
	suspend func(stop <-chan struct{}, d time.Duration)

	started atomic.Bool
	stopped atomic.Bool
	polling atomic.Bool

	mu        sync.Mutex
	offset    int64
	backoff   time.Duration
	lastPoll  time.Time
	lastError error

	runCtx   context.Context
	cancel   context.CancelFunc
	batches  chan batch
	stopCh   chan struct{}
	stopOnce sync.Once
	dispDone chan struct{}
	done     chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the poller logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// WithMetrics records poll counters and gauges on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

// New creates a Poller that fetches through f and delivers to h.
func New(f Fetcher, h Handler, cfg Config, opts ...Option) *Poller {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Limit == 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Penalty == 0 {
		cfg.Penalty = DefaultPenalty
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		fetcher:  f,
		handler:  h,
		config:   cfg,
		logger:   slog.Default(),
		suspend:  sleep,
		runCtx:   ctx,
		cancel:   cancel,
		batches:  make(chan batch),
		stopCh:   make(chan struct{}),
		dispDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the polling and dispatch goroutines. A Poller can be
// started once, and not at all after Stop.
func (p *Poller) Start() error {
	if !p.started.CompareAndSwap(false, true) {
		if p.stopped.Load() {
			return ErrStopped
		}
		return ErrAlreadyStarted
	}
	p.polling.Store(true)
	go p.dispatchLoop()
	go p.loop()
	return nil
}

// Stop asks the loop to finish after the current iteration and waits for
// it. An in-flight getUpdates request and the batch being dispatched are
// left to complete; only when ctx expires first are they cancelled, and
// ctx's error is returned.
func (p *Poller) Stop(ctx context.Context) error {
	p.stopped.Store(true)
	p.polling.Store(false)
	p.stopOnce.Do(func() { close(p.stopCh) })
	// Claiming the start slot keeps a later Start from running the loop.
	if p.started.CompareAndSwap(false, true) {
		p.cancel()
		close(p.done)
		return nil
	}

	select {
	case <-p.done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.logger.Warn("poller did not drain in time, cancelling in-flight work")
		p.cancel()
		return ctx.Err()
	}
}

// Offset returns the next update_id to request, or 0 while unset.
func (p *Poller) Offset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

// Status returns the current loop state.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Status{
		Polling:  p.polling.Load(),
		Offset:   p.offset,
		Backoff:  p.backoff,
		LastPoll: p.lastPoll,
	}
	if p.lastError != nil {
		s.LastError = p.lastError.Error()
	}
	return s
}

func (p *Poller) loop() {
	defer func() {
		close(p.batches)
		<-p.dispDone
		close(p.done)
	}()

	for p.polling.Load() {
		p.pollUpdates()

		p.mu.Lock()
		backoff := p.backoff
		p.mu.Unlock()

		if backoff > 0 {
			p.logger.Info("backing off before next poll", "backoff", backoff)
		}
		p.metrics.SetBackoff(backoff)
		p.suspend(p.stopCh, backoff)

		p.mu.Lock()
		p.backoff = 0
		p.mu.Unlock()
	}
	p.logger.Info("polling stopped", "offset", p.Offset())
}

func (p *Poller) pollUpdates() {
	req := telegram.GetUpdates{
		Offset:         p.Offset(),
		Limit:          p.config.Limit,
		Timeout:        p.config.Timeout,
		AllowedUpdates: p.config.AllowedUpdates,
	}

	updates, err := p.fetcher.GetUpdates(p.runCtx, req)
	p.metrics.RecordPoll(err)

	p.mu.Lock()
	p.lastPoll = time.Now()
	p.lastError = err
	p.mu.Unlock()

	if err != nil {
		p.handleUpdatesError(err)
		return
	}
	if len(updates) == 0 {
		return
	}
	p.metrics.RecordUpdates(len(updates))

	b := batch{updates: updates, done: make(chan struct{})}
	p.batches <- b
	<-b.done
}

func (p *Poller) handleUpdatesError(err error) {
	if !p.polling.Load() {
		p.logger.Debug("getUpdates interrupted by stop", "error", err)
		return
	}
	p.logger.Error("getUpdates failed", "error", err)

	p.mu.Lock()
	p.backoff = p.config.Penalty
	p.mu.Unlock()
}

func (p *Poller) dispatchLoop() {
	defer close(p.dispDone)
	for b := range p.batches {
		p.handleUpdatesResult(b.updates)
		close(b.done)
	}
}

func (p *Poller) handleUpdatesResult(updates []telegram.Update) {
	slices.SortStableFunc(updates, func(a, b telegram.Update) int {
		return cmp.Compare(a.UpdateID, b.UpdateID)
	})

	for i := range updates {
		u := &updates[i]
		p.advance(u.UpdateID + 1)
		p.handle(u)
	}
}

func (p *Poller) advance(next int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if next > p.offset {
		p.offset = next
		p.metrics.SetOffset(next)
	}
}

func (p *Poller) handle(u *telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("update handler panicked",
				"update_id", u.UpdateID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if _, err := p.handler.OnUpdate(p.runCtx, u); err != nil {
		p.logger.Error("update handler failed",
			"update_id", u.UpdateID,
			"error", err,
		)
	}
}

func sleep(stop <-chan struct{}, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
	case <-timer.C:
	}
}

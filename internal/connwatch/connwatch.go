// Package connwatch keeps an eye on external services the assistant
// depends on, LLM providers above all. A watcher probes its service
// with exponential backoff while the service is coming up, then drops
// to slow background polling and reports ready/down transitions.
//
// httpkit's retry handles sub-second dial races; connwatch covers the
// multi-second to multi-minute outages: restarts, network partitions,
// hosts that boot slowly.
package connwatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ProbeFunc checks one service. nil means healthy. Must be safe for
// concurrent use.
type ProbeFunc func(ctx context.Context) error

// Backoff controls probe timing.
type Backoff struct {
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // ceiling for backoff growth
	Multiplier   float64       // delay growth factor
	MaxRetries   int           // startup probe attempts before giving up
	PollInterval time.Duration // background check interval
	ProbeTimeout time.Duration // per-probe deadline
}

// DefaultBackoff is 2s, 4s, 8s, ... capped at 60s, ten startup
// attempts, then a 60-second poll.
func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		MaxRetries:   10,
		PollInterval: 60 * time.Second,
		ProbeTimeout: 10 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultBackoff.
func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.InitialDelay <= 0 {
		b.InitialDelay = d.InitialDelay
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = d.MaxDelay
	}
	if b.Multiplier <= 0 {
		b.Multiplier = d.Multiplier
	}
	if b.MaxRetries <= 0 {
		b.MaxRetries = d.MaxRetries
	}
	if b.PollInterval <= 0 {
		b.PollInterval = d.PollInterval
	}
	if b.ProbeTimeout <= 0 {
		b.ProbeTimeout = d.ProbeTimeout
	}
	return b
}

// WatcherConfig describes one watched service.
type WatcherConfig struct {
	// Name identifies the service in logs, e.g. "ollama".
	Name string

	// Probe checks the service.
	Probe ProbeFunc

	// Backoff timing; zero fields take defaults.
	Backoff Backoff

	// OnReady fires on the not-ready to ready transition, OnDown on the
	// reverse. Both run on their own goroutine and may be nil.
	OnReady func()
	OnDown  func(err error)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// ServiceStatus is a point-in-time health snapshot, JSON-ready for
// health endpoints.
type ServiceStatus struct {
	Name      string    `json:"name"`
	Ready     bool      `json:"ready"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

// Watcher monitors one service until its context ends or Stop is
// called.
type Watcher struct {
	cfg    WatcherConfig
	ready  atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	lastErr   error
	lastCheck time.Time
}

// IsReady reports whether the service answered its most recent probe.
func (w *Watcher) IsReady() bool { return w.ready.Load() }

// LastError returns the latest probe error, nil when healthy.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Status snapshots the watcher state.
func (w *Watcher) Status() ServiceStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := ServiceStatus{
		Name:      w.cfg.Name,
		Ready:     w.ready.Load(),
		LastCheck: w.lastCheck,
	}
	if w.lastErr != nil {
		s.LastError = w.lastErr.Error()
	}
	return s
}

// Wait blocks until the watcher goroutine exits.
func (w *Watcher) Wait() { <-w.done }

// Stop cancels the watcher and waits for it to exit.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
}

// check runs one probe under the configured timeout and records the
// outcome.
func (w *Watcher) check(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, w.cfg.Backoff.ProbeTimeout)
	err := w.cfg.Probe(probeCtx)
	cancel()

	w.mu.Lock()
	w.lastErr = err
	w.lastCheck = time.Now()
	w.mu.Unlock()
	return err
}

// setReady flips the ready flag and fires the matching transition
// callback when the state actually changed.
func (w *Watcher) setReady(up bool, err error) {
	if w.ready.Swap(up) == up {
		return
	}
	switch {
	case up:
		w.cfg.Logger.Info("service connected", "service", w.cfg.Name)
		if w.cfg.OnReady != nil {
			go w.cfg.OnReady()
		}
	default:
		w.cfg.Logger.Info("service became unreachable", "service", w.cfg.Name, "error", err)
		if w.cfg.OnDown != nil {
			go w.cfg.OnDown(err)
		}
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	b := w.cfg.Backoff

	// Startup: back off exponentially until the service answers or the
	// retry budget runs out.
	delay := b.InitialDelay
	for attempt := 1; ; attempt++ {
		if err := w.check(ctx); err == nil {
			w.setReady(true, nil)
			break
		} else if attempt >= b.MaxRetries {
			w.cfg.Logger.Info("startup connection failed, polling in background",
				"service", w.cfg.Name, "attempts", attempt, "error", err)
			break
		} else {
			w.cfg.Logger.Debug("startup probe failed",
				"service", w.cfg.Name, "attempt", attempt,
				"next_delay", delay.String(), "error", err)
		}

		if !sleep(ctx, delay) {
			return
		}
		if delay = time.Duration(float64(delay) * b.Multiplier); delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}

	// Steady state: poll and surface transitions.
	ticker := time.NewTicker(b.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := w.check(ctx)
			w.setReady(err == nil, err)
			if err != nil {
				w.cfg.Logger.Debug("service still unreachable",
					"service", w.cfg.Name, "error", err)
			}
		}
	}
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Manager owns a set of watchers.
type Manager struct {
	mu       sync.RWMutex
	watchers map[string]*Watcher
	logger   *slog.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{watchers: make(map[string]*Watcher), logger: logger}
}

// Watch starts a watcher goroutine for cfg and registers it under
// cfg.Name. An empty Name or nil Probe is a programming error.
func (m *Manager) Watch(ctx context.Context, cfg WatcherConfig) *Watcher {
	if cfg.Name == "" || cfg.Probe == nil {
		panic(fmt.Sprintf("connwatch: invalid watcher config %+v", cfg))
	}
	if cfg.Logger == nil {
		cfg.Logger = m.logger
	}
	cfg.Backoff = cfg.Backoff.withDefaults()

	watchCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{cfg: cfg, cancel: cancel, done: make(chan struct{})}
	go w.run(watchCtx)

	m.mu.Lock()
	m.watchers[cfg.Name] = w
	m.mu.Unlock()
	return w
}

// Status reports every watched service.
func (m *Manager) Status() map[string]ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]ServiceStatus, len(m.watchers))
	for name, w := range m.watchers {
		out[name] = w.Status()
	}
	return out
}

// Stop shuts every watcher down and waits for them.
func (m *Manager) Stop() {
	m.mu.RLock()
	watchers := make([]*Watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mu.RUnlock()

	for _, w := range watchers {
		w.Stop()
	}
}

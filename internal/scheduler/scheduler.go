package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/doridoridoriand/latencybar/internal/config"
	"github.com/doridoridoriand/latencybar/internal/log"
	"github.com/doridoridoriand/latencybar/internal/ping"
	"github.com/doridoridoriand/latencybar/internal/state"
)

// Scheduler drives periodic probe execution.
type Scheduler interface {
	Run(ctx context.Context) error
	Reconfigure(settings config.Settings)
	Reset()
	Stop()
}

// State is the scheduler lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Impl provides a default scheduler implementation.
type Impl struct {
	mu       sync.RWMutex
	settings config.Settings
	prober   ping.Prober
	store    *state.Store
	renderer Renderer
	logger   *log.Logger
	restart  chan struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc

	// notifyMu serializes store changes with renderer calls, so updates
	// arrive in the order they were applied.
	notifyMu sync.Mutex
}

// NewScheduler constructs a scheduler instance.
func NewScheduler(settings config.Settings, prober ping.Prober, store *state.Store, renderer Renderer, logger *log.Logger) *Impl {
	if renderer == nil {
		renderer = RendererFunc(func(Update) {})
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Impl{
		settings: settings,
		prober:   prober,
		store:    store,
		renderer: renderer,
		logger:   logger,
		restart:  make(chan struct{}, 1),
	}
}

// Run probes immediately, then once per interval, until ctx is cancelled or
// Stop is called. It waits for in-flight probes before returning.
func (s *Impl) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	select {
	case <-s.restart:
	default:
	}

	defer func() {
		cancel()
		s.wg.Wait()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	for {
		interval := s.spawn(runCtx)
		if interval <= 0 {
			interval = config.DefaultInterval
		}
		ticker := time.NewTicker(interval)
		restarted := false
		for !restarted {
			select {
			case <-runCtx.Done():
				ticker.Stop()
				return runCtx.Err()
			case <-s.restart:
				restarted = true
			case <-ticker.C:
				s.spawn(runCtx)
			}
		}
		ticker.Stop()
	}
}

// Reconfigure switches target or interval. Collected samples are dropped and
// the timer restarts. Probes already in flight are discarded when they finish.
func (s *Impl) Reconfigure(settings config.Settings) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if settings == s.settings {
		s.mu.Unlock()
		return
	}
	prev := s.settings
	s.settings = settings
	gen := s.store.Reset()
	s.mu.Unlock()

	s.logger.Info("probe settings changed", map[string]interface{}{
		"host":          settings.Host,
		"interval":      settings.Interval.String(),
		"prev_host":     prev.Host,
		"prev_interval": prev.Interval.String(),
		"generation":    gen,
	})

	select {
	case s.restart <- struct{}{}:
	default:
	}
	s.renderer.Render(newUpdate(settings, s.store.Snapshot()))
}

// Reset clears statistics and history without touching the timer.
func (s *Impl) Reset() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	settings := s.settings
	s.store.Reset()
	s.mu.Unlock()

	s.renderer.Render(newUpdate(settings, s.store.Snapshot()))
}

// Stop cancels the running loop.
func (s *Impl) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// State reports whether Run is active.
func (s *Impl) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cancel != nil {
		return StateRunning
	}
	return StateIdle
}

// Settings returns the current probe settings.
func (s *Impl) Settings() config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// spawn starts one probe worker and returns the interval in effect.
func (s *Impl) spawn(ctx context.Context) time.Duration {
	s.mu.RLock()
	settings := s.settings
	gen := s.store.Generation()
	s.mu.RUnlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.probeOnce(ctx, settings, gen)
	}()
	return settings.Interval
}

func (s *Impl) probeOnce(ctx context.Context, settings config.Settings, gen uint64) {
	sample, err := s.prober.Probe(ctx, settings.Host)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.logger.Debug("probe attempt failed", map[string]interface{}{
			"host":  settings.Host,
			"kind":  ping.KindOf(err).String(),
			"error": err.Error(),
		})
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	snap, ok := s.store.Apply(gen, sample)
	if !ok {
		s.logger.Debug("discarding sample from previous settings", map[string]interface{}{
			"host":       settings.Host,
			"generation": gen,
		})
		return
	}
	s.renderer.Render(newUpdate(settings, snap))
}

func newUpdate(settings config.Settings, snap state.Snapshot) Update {
	return Update{
		Stats:         snap.Stats,
		History:       snap.History,
		HasConnection: len(snap.History) == 0 || snap.Stats.Current.OK,
		Host:          settings.Host,
		Interval:      settings.Interval,
	}
}

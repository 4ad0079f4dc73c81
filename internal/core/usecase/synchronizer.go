package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

const DefaultPollInterval = 5 * time.Second

// Refresher is the part of the collection the synchronizer drives.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Synchronizer refreshes the collection on a fixed cadence while started and
// on explicit triggers. Ticks and triggers are never coalesced.
type Synchronizer struct {
	refresher Refresher
	interval  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewSynchronizer(refresher Refresher, interval time.Duration, logger *slog.Logger) *Synchronizer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		refresher: refresher,
		interval:  interval,
		logger:    logger.With("component", "synchronizer"),
	}
}

// Start refreshes immediately and then every interval until Stop or until
// parent is cancelled.
func (s *Synchronizer) Start(parent context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	ctx, cancel := context.WithCancel(parent)
	s.ctx = ctx
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(ctx)
	s.logger.Info("synchronizer started", "interval", s.interval)
}

func (s *Synchronizer) loop(ctx context.Context) {
	defer s.wg.Done()

	s.refresh(ctx, "mount")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx, "interval")
		}
	}
}

// Trigger starts an asynchronous refresh. It is a no-op while stopped.
func (s *Synchronizer) Trigger(reason string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Debug("refresh_trigger_ignored", "reason", reason)
		return
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.refresh(ctx, reason)
	}()
}

// RefreshNow runs one refresh synchronously and returns its outcome. The
// call is also cancelled by Stop.
func (s *Synchronizer) RefreshNow(ctx context.Context, reason string) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return domain.WrapError(domain.ErrTemporary, "refresh now", errors.New("synchronizer is not running"))
	}
	runCtx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, cancel)
	defer stop()

	s.logger.Debug("refresh_requested", "reason", reason)
	return s.refresher.Refresh(ctx)
}

// Stop cancels the ticker and every in-flight refresh, and waits for them.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("synchronizer stopped")
}

func (s *Synchronizer) refresh(ctx context.Context, reason string) {
	start := time.Now()
	err := s.refresher.Refresh(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("refresh_failed", "reason", reason, "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Debug("refresh_completed", "reason", reason, "duration", time.Since(start))
}

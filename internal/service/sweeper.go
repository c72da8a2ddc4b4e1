package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type deadlineSweep interface {
	Expire(ctx context.Context) (int, error)
}

// Sweeper periodically asks the deadline engine to expire overdue windows.
// The engine's sweep is idempotent, so the interval only bounds expiry lag.
type Sweeper struct {
	engine   deadlineSweep
	interval time.Duration
	logger   *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewSweeper constructs the scheduler.
func NewSweeper(engine deadlineSweep, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{engine: engine, interval: interval, logger: logger}
}

// Start launches the sweep loop. Safe to call once.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop()
	s.started = true
	s.logger.Sugar().Infow("deadline sweeper started", "interval", s.interval)
}

// Stop cancels the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("deadline sweeper stopped")
}

func (s *Sweeper) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	count, err := s.engine.Expire(s.ctx)
	if err != nil {
		// The engine retries unclaimed rows on the next pass.
		s.logger.Warn("deadline sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		s.logger.Info("deadline sweep expired windows", zap.Int("count", count))
	}
}

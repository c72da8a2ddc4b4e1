package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event names emitted by the case lifecycle and ballot gate.
const (
	ChallengeFiled    = "challenge.filed"
	DefenseSubmitted  = "challenge.defense_submitted"
	DefenseWaived     = "challenge.defense_waived"
	RulingRendered    = "challenge.ruling_rendered"
	AppealFiled       = "challenge.appeal_filed"
	ChallengeArchived = "challenge.archived"
	DeadlineExpired   = "deadline.expired"
	DeadlineExtended  = "deadline.extended"
	BallotCast        = "ballot.cast"
)

// Event is a domain occurrence published to subscribers. Delivery to external
// channels (email, push) is a consumer concern; the bus only dispatches.
type Event struct {
	Name        string
	ChallengeID string
	ElectionID  string
	Phase       string
	Payload     map[string]string
	OccurredAt  time.Time
}

// Handler consumes a published event.
type Handler func(context.Context, Event) error

// BusConfig sizes the dispatch worker pool.
type BusConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Bus is an in-process asynchronous event dispatcher backed by goroutines.
type Bus struct {
	handler Handler

	workers    int
	bufferSize int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	events  chan envelope
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

type envelope struct {
	event   Event
	attempt int
}

// NewBus builds a bus delivering to the provided handler.
func NewBus(handler Handler, cfg BusConfig) *Bus {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 8
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Bus{
		handler:    handler,
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		events:     make(chan envelope, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.ctx, b.cancel = context.WithCancel(ctx)
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	b.started = true
	b.logger.Sugar().Infow("event bus started", "workers", b.workers)
}

// Stop cancels workers and waits for them to exit.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.cancel()
	b.mu.Unlock()
	b.wg.Wait()
	b.logger.Sugar().Infow("event bus stopped")
}

// Publish enqueues an event for asynchronous dispatch.
func (b *Bus) Publish(event Event) error {
	b.mu.Lock()
	ctx := b.ctx
	started := b.started
	b.mu.Unlock()

	if !started {
		return fmt.Errorf("event bus not started")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("event bus stopped: %w", ctx.Err())
	case b.events <- envelope{event: event}:
		return nil
	}
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case env := <-b.events:
			if err := b.handler(b.ctx, env.event); err != nil {
				b.handleFailure(env, err)
			}
		}
	}
}

func (b *Bus) handleFailure(env envelope, err error) {
	env.attempt++
	if env.attempt > b.maxRetries {
		b.logger.Sugar().Errorw("event exceeded retries",
			"event", env.event.Name, "challenge_id", env.event.ChallengeID, "error", err)
		return
	}
	b.logger.Sugar().Warnw("event dispatch failed, retrying",
		"event", env.event.Name, "attempt", env.attempt, "error", err)

	go func(e envelope) {
		timer := time.NewTimer(b.retryDelay)
		defer timer.Stop()
		select {
		case <-b.ctx.Done():
			return
		case <-timer.C:
			select {
			case <-b.ctx.Done():
			case b.events <- e:
			}
		}
	}(env)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/conselho-dev/eleicao-api/internal/models"
	"github.com/conselho-dev/eleicao-api/pkg/clock"
	"github.com/conselho-dev/eleicao-api/pkg/config"
	appErrors "github.com/conselho-dev/eleicao-api/pkg/errors"
	"github.com/conselho-dev/eleicao-api/pkg/events"
)

// BusinessDayFunc answers whether a date counts toward prazo arithmetic.
// The holiday calendar behind it is an external collaborator.
type BusinessDayFunc func(time.Time) bool

// Weekdays is the default calendar: weekends are skipped, no holidays.
func Weekdays(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

type deadlineStore interface {
	GetByID(ctx context.Context, id string) (*models.Deadline, error)
	ListByChallenge(ctx context.Context, challengeID string) ([]models.Deadline, error)
	GetActive(ctx context.Context, challengeID string, phase models.DeadlinePhase) (*models.Deadline, error)
	Extend(ctx context.Context, id string, newEnd time.Time) error
	ExpireDue(ctx context.Context, now time.Time) ([]models.Deadline, error)
}

type eventPublisher interface {
	Publish(event events.Event) error
}

// ExpiryHandler reacts to a deadline the sweep just expired. The case state
// machine registers one to apply system-triggered transitions.
type ExpiryHandler func(ctx context.Context, deadline models.Deadline) error

// DeadlineService computes, tracks, and expires prazo windows.
type DeadlineService struct {
	repo          deadlineStore
	clock         clock.Clock
	isBusinessDay BusinessDayFunc
	policy        config.DeadlineConfig
	bus           eventPublisher
	logger        *zap.Logger

	handlers []ExpiryHandler
	metrics  *MetricsService
}

// SetMetrics attaches the optional Prometheus observer.
func (s *DeadlineService) SetMetrics(m *MetricsService) { s.metrics = m }

// NewDeadlineService constructs the engine.
func NewDeadlineService(repo deadlineStore, clk clock.Clock, calendar BusinessDayFunc, policy config.DeadlineConfig, bus eventPublisher, logger *zap.Logger) *DeadlineService {
	if clk == nil {
		clk = clock.System()
	}
	if calendar == nil {
		calendar = Weekdays
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.DefenseDays <= 0 {
		policy.DefenseDays = 5
	}
	if policy.JudgmentDays <= 0 {
		policy.JudgmentDays = 10
	}
	if policy.AppealDays <= 0 {
		policy.AppealDays = 3
	}
	if policy.ExtensionDays <= 0 {
		policy.ExtensionDays = 2
	}
	return &DeadlineService{
		repo:          repo,
		clock:         clk,
		isBusinessDay: calendar,
		policy:        policy,
		bus:           bus,
		logger:        logger,
	}
}

// OnExpiry registers a handler invoked for every deadline the sweep claims.
func (s *DeadlineService) OnExpiry(handler ExpiryHandler) {
	if handler != nil {
		s.handlers = append(s.handlers, handler)
	}
}

// AddBusinessDays returns the instant n business days after start, preserving
// the time of day. A window of 5 business days opened on a Friday closes on
// the following Friday.
func (s *DeadlineService) AddBusinessDays(start time.Time, n int) time.Time {
	d := start
	for added := 0; added < n; {
		d = d.AddDate(0, 0, 1)
		if s.isBusinessDay(d) {
			added++
		}
	}
	return d
}

func (s *DeadlineService) phaseDays(phase models.DeadlinePhase) int {
	switch phase {
	case models.DeadlinePhaseDefense:
		return s.policy.DefenseDays
	case models.DeadlinePhaseJudgment:
		return s.policy.JudgmentDays
	case models.DeadlinePhaseAppeal:
		return s.policy.AppealDays
	default:
		return s.policy.DefenseDays
	}
}

// Build computes the ACTIVE window for a phase opening on a challenge.
// Appeal windows are fixed by law and never extendable. The row is persisted
// by the case transition that opens the phase, inside the same transaction
// as the status change.
func (s *DeadlineService) Build(challengeID string, phase models.DeadlinePhase, start time.Time) *models.Deadline {
	return &models.Deadline{
		ChallengeID: challengeID,
		Phase:       phase,
		WindowStart: start,
		WindowEnd:   s.AddBusinessDays(start, s.phaseDays(phase)),
		Status:      models.DeadlineStatusActive,
		Extendable:  phase != models.DeadlinePhaseAppeal,
	}
}

// GetActive returns the single ACTIVE deadline for the challenge phase.
func (s *DeadlineService) GetActive(ctx context.Context, challengeID string, phase models.DeadlinePhase) (*models.Deadline, error) {
	deadline, err := s.repo.GetActive(ctx, challengeID, phase)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active deadline")
	}
	return deadline, nil
}

// ListByChallenge returns every deadline of a challenge.
func (s *DeadlineService) ListByChallenge(ctx context.Context, challengeID string) ([]models.Deadline, error) {
	deadlines, err := s.repo.ListByChallenge(ctx, challengeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deadlines")
	}
	return deadlines, nil
}

// Extend grants the single allowed extension on an ACTIVE extendable deadline.
func (s *DeadlineService) Extend(ctx context.Context, id string) (*models.Deadline, error) {
	deadline, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deadline")
	}
	if deadline.Status != models.DeadlineStatusActive || !deadline.Extendable || deadline.Extended {
		return nil, appErrors.ErrNotExtendable
	}
	newEnd := s.AddBusinessDays(deadline.WindowEnd, s.policy.ExtensionDays)
	if err := s.repo.Extend(ctx, id, newEnd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the race against the sweep or another extension.
			return nil, appErrors.ErrNotExtendable
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to extend deadline")
	}
	deadline.WindowEnd = newEnd
	deadline.Extended = true
	s.publish(events.Event{
		Name:        events.DeadlineExtended,
		ChallengeID: deadline.ChallengeID,
		Phase:       string(deadline.Phase),
	})
	return deadline, nil
}

// Expire sweeps every ACTIVE deadline past its window end. The claim is a
// single atomic update, so concurrent sweeps split the rows and a repeated
// sweep on the same state is a no-op. A failed claim leaves the row ACTIVE
// for the next pass; handler failures are logged and never abort the sweep.
func (s *DeadlineService) Expire(ctx context.Context) (int, error) {
	now := s.clock.Now()
	expired, err := s.repo.ExpireDue(ctx, now)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "deadline sweep failed")
	}
	for _, deadline := range expired {
		for _, handler := range s.handlers {
			if err := handler(ctx, deadline); err != nil {
				s.logger.Warn("deadline expiry handler failed",
					zap.String("deadline_id", deadline.ID),
					zap.String("challenge_id", deadline.ChallengeID),
					zap.String("phase", string(deadline.Phase)),
					zap.Error(err))
			}
		}
		if s.metrics != nil {
			s.metrics.ObserveExpiredDeadline(string(deadline.Phase))
		}
		s.publish(events.Event{
			Name:        events.DeadlineExpired,
			ChallengeID: deadline.ChallengeID,
			Phase:       string(deadline.Phase),
			OccurredAt:  now,
		})
	}
	return len(expired), nil
}

func (s *DeadlineService) publish(event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(event); err != nil {
		s.logger.Warn("failed to publish deadline event", zap.String("event", event.Name), zap.Error(err))
	}
}

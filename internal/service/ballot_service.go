package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/conselho-dev/eleicao-api/internal/dto"
	"github.com/conselho-dev/eleicao-api/internal/models"
	"github.com/conselho-dev/eleicao-api/pkg/clock"
	appErrors "github.com/conselho-dev/eleicao-api/pkg/errors"
	"github.com/conselho-dev/eleicao-api/pkg/events"
)

type ballotStore interface {
	Insert(ctx context.Context, ballot *models.Ballot) (bool, error)
	Get(ctx context.Context, electionID, voterID string) (*models.Ballot, error)
}

type electionCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// EligibilityFunc is the external roll of professionals in good standing.
// Its answer is authoritative and final for a vote attempt.
type EligibilityFunc func(ctx context.Context, electionID, voterID string) (bool, error)

// BallotService is the eligibility and single-vote gate in front of the
// ballot store. The already-voted check is the insert itself, never a
// read-then-write.
type BallotService struct {
	ballots     ballotStore
	elections   electionReader
	cache       electionCache
	eligibility EligibilityFunc
	clock       clock.Clock
	bus         eventPublisher
	validator   *validator.Validate
	logger      *zap.Logger
	cacheTTL    time.Duration
	metrics     *MetricsService
}

// SetMetrics attaches the optional Prometheus observer.
func (s *BallotService) SetMetrics(m *MetricsService) { s.metrics = m }

// NewBallotService constructs the gate. A nil eligibility predicate admits
// every voter, which is only acceptable in tests.
func NewBallotService(ballots ballotStore, elections electionReader, cache electionCache, eligibility EligibilityFunc, clk clock.Clock, bus eventPublisher, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *BallotService {
	if clk == nil {
		clk = clock.System()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &BallotService{
		ballots:     ballots,
		elections:   elections,
		cache:       cache,
		eligibility: eligibility,
		clock:       clk,
		bus:         bus,
		validator:   validate,
		logger:      logger,
		cacheTTL:    cacheTTL,
	}
}

// CastBallot validates the gate conditions and records the vote. On any
// failure no ballot row exists for this attempt.
func (s *BallotService) CastBallot(ctx context.Context, req dto.CastBallotRequest, voterID string) (*models.BallotReceipt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if voterID == "" {
		return nil, appErrors.ErrUnauthorized
	}

	election, err := s.loadElection(ctx, req.ElectionID)
	if err != nil {
		return nil, err
	}
	if election.Status != models.ElectionStatusActive {
		return nil, appErrors.ErrElectionNotOpen
	}

	if s.eligibility != nil {
		eligible, err := s.eligibility(ctx, req.ElectionID, voterID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrDependencyUnavailable.Code, appErrors.ErrDependencyUnavailable.Status, "eligibility roll unavailable")
		}
		if !eligible {
			return nil, appErrors.ErrIneligibleVoter
		}
	}

	ballot := &models.Ballot{
		ElectionID: req.ElectionID,
		VoterID:    voterID,
		SlateID:    req.SlateID,
		CastAt:     s.clock.Now(),
	}
	inserted, err := s.ballots.Insert(ctx, ballot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record ballot")
	}
	if !inserted {
		s.observe("already_voted")
		return nil, appErrors.ErrAlreadyVoted
	}
	s.observe("cast")

	if s.bus != nil {
		if err := s.bus.Publish(events.Event{
			Name:       events.BallotCast,
			ElectionID: req.ElectionID,
			OccurredAt: ballot.CastAt,
		}); err != nil {
			s.logger.Warn("failed to publish ballot event", zap.Error(err))
		}
	}
	return &models.BallotReceipt{BallotID: ballot.ID, CastAt: ballot.CastAt}, nil
}

// GetReceipt returns the receipt for a ballot the voter already cast.
func (s *BallotService) GetReceipt(ctx context.Context, electionID, voterID string) (*models.BallotReceipt, error) {
	ballot, err := s.ballots.Get(ctx, electionID, voterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ballot")
	}
	return &models.BallotReceipt{BallotID: ballot.ID, CastAt: ballot.CastAt}, nil
}

func (s *BallotService) observe(result string) {
	if s.metrics != nil {
		s.metrics.ObserveBallot(result)
	}
}

func (s *BallotService) loadElection(ctx context.Context, electionID string) (*models.Election, error) {
	key := fmt.Sprintf("election:%s", electionID)
	if s.cache != nil {
		var cached models.Election
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}
	election, err := s.elections.GetByID(ctx, electionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "election not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load election")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, election, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache election", zap.String("election_id", electionID), zap.Error(err))
		}
	}
	return election, nil
}

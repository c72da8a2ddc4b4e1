package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conselho-dev/eleicao-api/internal/dto"
	"github.com/conselho-dev/eleicao-api/internal/models"
	"github.com/conselho-dev/eleicao-api/internal/repository"
	"github.com/conselho-dev/eleicao-api/pkg/clock"
	appErrors "github.com/conselho-dev/eleicao-api/pkg/errors"
	"github.com/conselho-dev/eleicao-api/pkg/events"
)

type challengeStore interface {
	NextProtocol(ctx context.Context, year int) (string, error)
	GetByID(ctx context.Context, id string) (*models.Challenge, error)
	GetByProtocol(ctx context.Context, protocol string) (*models.Challenge, error)
	List(ctx context.Context, filter models.ChallengeFilter) ([]models.Challenge, int, error)
	ExecuteTransition(ctx context.Context, writes repository.TransitionWrites) error
	ListRulings(ctx context.Context, challengeID string) ([]models.Ruling, error)
	AddDocument(ctx context.Context, doc *models.Document) error
	TombstoneDocument(ctx context.Context, challengeID, documentID string) error
	ListDocuments(ctx context.Context, challengeID string) ([]models.Document, error)
}

type deadlineEngine interface {
	Build(challengeID string, phase models.DeadlinePhase, start time.Time) *models.Deadline
	GetActive(ctx context.Context, challengeID string, phase models.DeadlinePhase) (*models.Deadline, error)
	ListByChallenge(ctx context.Context, challengeID string) ([]models.Deadline, error)
}

type electionReader interface {
	GetByID(ctx context.Context, id string) (*models.Election, error)
}

// ChallengeService owns the impugnação lifecycle. All mutation flows through
// its transition methods; every transition commits its row writes in one
// repository transaction, and transitions on the same challenge are
// serialized by the optimistic version with bounded retry.
type ChallengeService struct {
	repo       challengeStore
	deadlines  deadlineEngine
	elections  electionReader
	clock      clock.Clock
	bus        eventPublisher
	validator  *validator.Validate
	logger     *zap.Logger
	maxRetries int
	metrics    *MetricsService
}

// SetMetrics attaches the optional Prometheus observer.
func (s *ChallengeService) SetMetrics(m *MetricsService) { s.metrics = m }

// NewChallengeService constructs the service and hooks the system-triggered
// transitions onto the deadline engine's expiry stream.
func NewChallengeService(repo challengeStore, deadlines *DeadlineService, elections electionReader, clk clock.Clock, bus eventPublisher, validate *validator.Validate, logger *zap.Logger, maxRetries int) *ChallengeService {
	if clk == nil {
		clk = clock.System()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	svc := &ChallengeService{
		repo:       repo,
		deadlines:  deadlines,
		elections:  elections,
		clock:      clk,
		bus:        bus,
		validator:  validate,
		logger:     logger,
		maxRetries: maxRetries,
	}
	_ = svc.validator.RegisterValidation("challengetype", func(fl validator.FieldLevel) bool {
		switch models.ChallengeType(strings.ToUpper(fl.Field().String())) {
		case models.ChallengeTypeSlate, models.ChallengeTypeMember, models.ChallengeTypeDocument:
			return true
		default:
			return false
		}
	})
	if deadlines != nil {
		deadlines.OnExpiry(svc.handleDeadlineExpired)
	}
	return svc
}

// FileChallenge opens a case and immediately opens the defense window, per
// the system-triggered "open defense window" transition. The case row and
// its window commit in one transaction, so a half-filed case with no ACTIVE
// defense deadline cannot exist.
func (s *ChallengeService) FileChallenge(ctx context.Context, req dto.FileChallengeRequest, filerID string) (*models.Challenge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if filerID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if _, err := s.elections.GetByID(ctx, req.ElectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "election not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrDependencyUnavailable.Code, appErrors.ErrDependencyUnavailable.Status, "failed to resolve election")
	}

	now := s.clock.Now()
	protocol, err := s.repo.NextProtocol(ctx, now.Year())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign protocol")
	}

	challenge := &models.Challenge{
		ID:         uuid.NewString(),
		Protocol:   protocol,
		ElectionID: req.ElectionID,
		Type:       models.ChallengeType(strings.ToUpper(req.Type)),
		TargetKind: strings.ToLower(strings.TrimSpace(req.TargetKind)),
		TargetID:   req.TargetID,
		Status:     models.ChallengeStatusFiled,
		Instance:   1,
		Version:    1,
		FilerID:    filerID,
		Grounds:    req.Grounds,
		Reasoning:  req.Reasoning,
		CreatedAt:  now,
	}
	deadline := s.deadlines.Build(challenge.ID, models.DeadlinePhaseDefense, now)
	err = s.repo.ExecuteTransition(ctx, repository.TransitionWrites{
		Insert: challenge,
		Update: repository.UpdateChallengeParams{
			ID:       challenge.ID,
			Version:  challenge.Version,
			Status:   models.ChallengeStatusAwaitingDefense,
			Instance: challenge.Instance,
		},
		OpenDeadline: deadline,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "protocol already assigned")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to file challenge")
	}
	challenge.Status = models.ChallengeStatusAwaitingDefense
	challenge.Version++
	challenge.Deadlines = []models.Deadline{*deadline}

	s.publish(events.Event{
		Name:        events.ChallengeFiled,
		ChallengeID: challenge.ID,
		ElectionID:  challenge.ElectionID,
		Payload:     map[string]string{"protocol": challenge.Protocol, "type": string(challenge.Type)},
	})
	return challenge, nil
}

// SubmitDefense records the rebuttal while the defense window is open. A
// retried request carrying the same deadline and text is answered with the
// already-applied challenge instead of an error.
func (s *ChallengeService) SubmitDefense(ctx context.Context, challengeID string, req dto.SubmitDefenseRequest) (*models.Challenge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		challenge, err := s.load(ctx, challengeID)
		if err != nil {
			return nil, err
		}

		if challenge.Defense != nil {
			if *challenge.Defense == req.Defense {
				return challenge, nil // replay of a committed submission
			}
			return nil, appErrors.InvalidTransition(string(challenge.Status), "submit defense", "defense already recorded")
		}
		if challenge.Status != models.ChallengeStatusAwaitingDefense {
			return nil, appErrors.InvalidTransition(string(challenge.Status), "submit defense", "defense window is not open")
		}

		deadline, err := s.deadlines.GetActive(ctx, challengeID, models.DeadlinePhaseDefense)
		if err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				return nil, appErrors.Clone(appErrors.ErrDeadlineExpired, "defense window has closed")
			}
			return nil, err
		}
		if deadline.ID != req.DeadlineID {
			return nil, appErrors.InvalidTransition(string(challenge.Status), "submit defense", "request targets a different deadline")
		}
		now := s.clock.Now()
		if now.After(deadline.WindowEnd) {
			return nil, appErrors.Clone(appErrors.ErrDeadlineExpired, "defense window has closed")
		}

		defense := req.Defense
		err = s.repo.ExecuteTransition(ctx, repository.TransitionWrites{
			Update: repository.UpdateChallengeParams{
				ID:        challenge.ID,
				Version:   challenge.Version,
				Status:    models.ChallengeStatusDefenseSubmitted,
				Instance:  challenge.Instance,
				Defense:   &defense,
				DefenseAt: &now,
			},
			ClaimDeadline: deadline.ID,
			OpenDeadline:  s.deadlines.Build(challenge.ID, models.DeadlinePhaseJudgment, now),
		})
		switch {
		case errors.Is(err, repository.ErrDeadlineNotActive):
			return nil, appErrors.Clone(appErrors.ErrDeadlineExpired, "defense window has closed")
		case errors.Is(err, sql.ErrNoRows):
			continue // version moved, reload and retry
		case err != nil:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record defense")
		}

		s.publish(events.Event{
			Name:        events.DefenseSubmitted,
			ChallengeID: challenge.ID,
			ElectionID:  challenge.ElectionID,
		})
		return s.load(ctx, challengeID)
	}
	return nil, appErrors.ErrConcurrencyConflict
}

// RenderRuling records the decision for the current instance. The unique
// (challenge, instance) ruling row is the serialization point: of two
// concurrent calls exactly one inserts, the other observes the duplicate.
func (s *ChallengeService) RenderRuling(ctx context.Context, challengeID string, req dto.RenderRulingRequest, judgeRef string) (*models.Challenge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if judgeRef == "" {
		return nil, appErrors.ErrUnauthorized
	}

	outcome := models.RulingOutcome(strings.ToUpper(req.Outcome))
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		challenge, err := s.load(ctx, challengeID)
		if err != nil {
			return nil, err
		}

		if existing := rulingForInstance(challenge.Rulings, challenge.Instance); existing != nil {
			if existing.Outcome == outcome && existing.Reasoning == req.Reasoning && existing.JudgeRef == judgeRef &&
				(challenge.Status == models.ChallengeStatusUpheld || challenge.Status == models.ChallengeStatusDenied) {
				return challenge, nil // replay of a committed ruling
			}
			return nil, appErrors.InvalidTransition(string(challenge.Status), "render ruling", "instance already judged")
		}
		if challenge.Status != models.ChallengeStatusDefenseSubmitted && challenge.Status != models.ChallengeStatusUnderJudgment {
			return nil, appErrors.InvalidTransition(string(challenge.Status), "render ruling", "case is not ready for judgment")
		}

		// The ruling commits together with its window claim, so a MET
		// judgment window without a ruling cannot exist: no ACTIVE window
		// means the sweep expired it.
		window, err := s.deadlines.GetActive(ctx, challengeID, models.DeadlinePhaseJudgment)
		if err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				return nil, appErrors.Clone(appErrors.ErrDeadlineExpired, "judgment window has closed")
			}
			return nil, err
		}

		ruling := &models.Ruling{
			ChallengeID: challenge.ID,
			Instance:    challenge.Instance,
			Outcome:     outcome,
			Reasoning:   req.Reasoning,
			JudgeRef:    judgeRef,
			Penalty:     req.Penalty,
			// Appellate decisions are final: instance 2 is never appealable.
			Appealable: req.Appealable && challenge.Instance < models.MaxInstance,
			JudgedAt:   s.clock.Now(),
		}
		status := models.ChallengeStatusDenied
		if outcome == models.RulingOutcomeUpheld {
			status = models.ChallengeStatusUpheld
		}
		writes := repository.TransitionWrites{
			Update: repository.UpdateChallengeParams{
				ID:       challenge.ID,
				Version:  challenge.Version,
				Status:   status,
				Instance: challenge.Instance,
			},
			Ruling:        ruling,
			ClaimDeadline: window.ID,
		}
		if ruling.Appealable {
			writes.OpenDeadline = s.deadlines.Build(challenge.ID, models.DeadlinePhaseAppeal, ruling.JudgedAt)
		}
		err = s.repo.ExecuteTransition(ctx, writes)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.InvalidTransition(string(challenge.Status), "render ruling", "instance already judged")
		case errors.Is(err, repository.ErrDeadlineNotActive):
			return nil, appErrors.Clone(appErrors.ErrDeadlineExpired, "judgment window has closed")
		case errors.Is(err, sql.ErrNoRows):
			continue
		case err != nil:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply ruling")
		}

		s.publish(events.Event{
			Name:        events.RulingRendered,
			ChallengeID: challenge.ID,
			ElectionID:  challenge.ElectionID,
			Payload:     map[string]string{"outcome": string(outcome), "instance": strconv.Itoa(challenge.Instance)},
		})
		return s.load(ctx, challengeID)
	}
	return nil, appErrors.ErrConcurrencyConflict
}

// FileAppeal escalates an appealable ruling to the appellate instance.
func (s *ChallengeService) FileAppeal(ctx context.Context, challengeID string, req dto.FileAppealRequest, actor *models.JWTClaims) (*models.Challenge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		challenge, err := s.load(ctx, challengeID)
		if err != nil {
			return nil, err
		}

		if challenge.Status == models.ChallengeStatusUnderJudgment && challenge.Instance == models.MaxInstance {
			return challenge, nil // replay: appeal already applied
		}
		if challenge.Status != models.ChallengeStatusUpheld && challenge.Status != models.ChallengeStatusDenied {
			return nil, appErrors.InvalidTransition(string(challenge.Status), "file appeal", "case has no ruling to appeal")
		}
		ruling := challenge.CurrentRuling()
		if ruling == nil || !ruling.Appealable {
			return nil, appErrors.InvalidTransition(string(challenge.Status), "file appeal", "ruling is not appealable")
		}
		if challenge.Instance >= models.MaxInstance {
			return nil, appErrors.InvalidTransition(string(challenge.Status), "file appeal", "appellate instance already exhausted")
		}
		if !s.isAppealParty(challenge, actor) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "caller is not an eligible appeal party")
		}

		deadline, err := s.deadlines.GetActive(ctx, challengeID, models.DeadlinePhaseAppeal)
		if err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				return nil, appErrors.Clone(appErrors.ErrDeadlineExpired, "appeal window has closed")
			}
			return nil, err
		}
		now := s.clock.Now()
		if now.After(deadline.WindowEnd) {
			return nil, appErrors.Clone(appErrors.ErrDeadlineExpired, "appeal window has closed")
		}

		err = s.repo.ExecuteTransition(ctx, repository.TransitionWrites{
			Update: repository.UpdateChallengeParams{
				ID:       challenge.ID,
				Version:  challenge.Version,
				Status:   models.ChallengeStatusUnderJudgment,
				Instance: challenge.Instance + 1,
			},
			ClaimDeadline: deadline.ID,
			OpenDeadline:  s.deadlines.Build(challenge.ID, models.DeadlinePhaseJudgment, now),
		})
		switch {
		case errors.Is(err, repository.ErrDeadlineNotActive):
			return nil, appErrors.Clone(appErrors.ErrDeadlineExpired, "appeal window has closed")
		case errors.Is(err, sql.ErrNoRows):
			continue
		case err != nil:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to file appeal")
		}

		s.publish(events.Event{
			Name:        events.AppealFiled,
			ChallengeID: challenge.ID,
			ElectionID:  challenge.ElectionID,
			Payload:     map[string]string{"instance": strconv.Itoa(challenge.Instance + 1)},
		})
		return s.load(ctx, challengeID)
	}
	return nil, appErrors.ErrConcurrencyConflict
}

// Archive closes a judged case once no appeal is legally available.
func (s *ChallengeService) Archive(ctx context.Context, challengeID string) (*models.Challenge, error) {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		challenge, err := s.load(ctx, challengeID)
		if err != nil {
			return nil, err
		}

		if challenge.Status == models.ChallengeStatusArchived {
			return challenge, nil
		}
		if challenge.Status != models.ChallengeStatusUpheld && challenge.Status != models.ChallengeStatusDenied {
			return nil, appErrors.InvalidTransition(string(challenge.Status), "archive", "case has no final ruling")
		}
		ruling := challenge.CurrentRuling()
		if ruling != nil && ruling.Appealable && challenge.Instance < models.MaxInstance {
			if deadline, err := s.deadlines.GetActive(ctx, challengeID, models.DeadlinePhaseAppeal); err == nil {
				if !s.clock.Now().After(deadline.WindowEnd) {
					return nil, appErrors.InvalidTransition(string(challenge.Status), "archive", "appeal window is still open")
				}
			} else if !errors.Is(err, appErrors.ErrNotFound) {
				return nil, err
			}
		}

		err = s.repo.ExecuteTransition(ctx, repository.TransitionWrites{
			Update: repository.UpdateChallengeParams{
				ID:       challenge.ID,
				Version:  challenge.Version,
				Status:   models.ChallengeStatusArchived,
				Instance: challenge.Instance,
			},
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive challenge")
		}
		s.publish(events.Event{
			Name:        events.ChallengeArchived,
			ChallengeID: challenge.ID,
			ElectionID:  challenge.ElectionID,
		})
		return s.load(ctx, challengeID)
	}
	return nil, appErrors.ErrConcurrencyConflict
}

// Get returns the challenge with rulings, documents, and deadlines loaded.
func (s *ChallengeService) Get(ctx context.Context, challengeID string) (*models.Challenge, error) {
	return s.load(ctx, challengeID)
}

// GetByProtocol resolves a challenge by its protocol number.
func (s *ChallengeService) GetByProtocol(ctx context.Context, protocol string) (*models.Challenge, error) {
	challenge, err := s.repo.GetByProtocol(ctx, protocol)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load challenge")
	}
	return s.load(ctx, challenge.ID)
}

// List returns challenges matching the closed filter set.
func (s *ChallengeService) List(ctx context.Context, query dto.ChallengeQuery) ([]models.Challenge, *models.Pagination, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	filter := models.ChallengeFilter{
		ElectionID: query.ElectionID,
		Status:     query.Status,
		Type:       query.Type,
		FilerID:    query.FilerID,
		Limit:      size,
		Offset:     (page - 1) * size,
	}
	challenges, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list challenges")
	}
	pagination := &models.Pagination{
		Page:       page,
		PageSize:   size,
		TotalItems: total,
		TotalPages: (total + size - 1) / size,
	}
	return challenges, pagination, nil
}

// ListDeadlines returns the prazo history of a challenge.
func (s *ChallengeService) ListDeadlines(ctx context.Context, challengeID string) ([]models.Deadline, error) {
	if _, err := s.repo.GetByID(ctx, challengeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load challenge")
	}
	return s.deadlines.ListByChallenge(ctx, challengeID)
}

// AddDocument appends a document reference to an open case.
func (s *ChallengeService) AddDocument(ctx context.Context, challengeID string, req dto.AddDocumentRequest, actorID string) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	challenge, err := s.load(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if challenge.Status == models.ChallengeStatusArchived {
		return nil, appErrors.InvalidTransition(string(challenge.Status), "add document", "archived cases are immutable")
	}
	doc := &models.Document{
		ChallengeID:   challenge.ID,
		Kind:          strings.ToLower(strings.TrimSpace(req.Kind)),
		Name:          req.Name,
		StorageHandle: req.StorageHandle,
		SizeBytes:     req.SizeBytes,
		MimeType:      req.MimeType,
		AddedBy:       actorID,
		AddedAt:       s.clock.Now(),
	}
	if err := s.repo.AddDocument(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach document")
	}
	return doc, nil
}

// RemoveDocument tombstones a document reference; the row is never deleted.
func (s *ChallengeService) RemoveDocument(ctx context.Context, challengeID, documentID string) error {
	if err := s.repo.TombstoneDocument(ctx, challengeID, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found or already removed")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove document")
	}
	return nil
}

// handleDeadlineExpired applies the system-triggered transitions from the
// expiry stream: an unanswered defense window waives the defense, an
// unanswered appeal window archives the case.
func (s *ChallengeService) handleDeadlineExpired(ctx context.Context, deadline models.Deadline) error {
	switch deadline.Phase {
	case models.DeadlinePhaseDefense:
		return s.waiveDefense(ctx, deadline.ChallengeID)
	case models.DeadlinePhaseAppeal:
		_, err := s.Archive(ctx, deadline.ChallengeID)
		if err != nil && appErrors.FromError(err).Code == appErrors.ErrInvalidTransition.Code {
			return nil // already appealed or archived
		}
		return err
	default:
		// Judgment windows have no automatic transition; lateness is
		// visible through the expired deadline itself.
		return nil
	}
}

func (s *ChallengeService) waiveDefense(ctx context.Context, challengeID string) error {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		challenge, err := s.load(ctx, challengeID)
		if err != nil {
			return err
		}
		if challenge.Status != models.ChallengeStatusAwaitingDefense {
			return nil // defense arrived first or waiver already applied
		}
		err = s.repo.ExecuteTransition(ctx, repository.TransitionWrites{
			Update: repository.UpdateChallengeParams{
				ID:       challenge.ID,
				Version:  challenge.Version,
				Status:   models.ChallengeStatusDefenseSubmitted,
				Instance: challenge.Instance,
			},
			OpenDeadline: s.deadlines.Build(challenge.ID, models.DeadlinePhaseJudgment, s.clock.Now()),
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return err
		}
		s.publish(events.Event{
			Name:        events.DefenseWaived,
			ChallengeID: challenge.ID,
			ElectionID:  challenge.ElectionID,
		})
		return nil
	}
	return appErrors.ErrConcurrencyConflict
}

func (s *ChallengeService) isAppealParty(challenge *models.Challenge, actor *models.JWTClaims) bool {
	if actor.Role == models.RoleAdmin || actor.Role == models.RoleCommission {
		return true
	}
	return actor.UserID == challenge.FilerID
}

func (s *ChallengeService) load(ctx context.Context, challengeID string) (*models.Challenge, error) {
	challenge, err := s.repo.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load challenge")
	}
	if challenge.Rulings, err = s.repo.ListRulings(ctx, challengeID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rulings")
	}
	if challenge.Documents, err = s.repo.ListDocuments(ctx, challengeID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	if challenge.Deadlines, err = s.deadlines.ListByChallenge(ctx, challengeID); err != nil {
		return nil, err
	}
	return challenge, nil
}

func (s *ChallengeService) publish(event events.Event) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(event.Name)
	}
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(event); err != nil {
		s.logger.Warn("failed to publish challenge event", zap.String("event", event.Name), zap.Error(err))
	}
}

func rulingForInstance(rulings []models.Ruling, instance int) *models.Ruling {
	for i := range rulings {
		if rulings[i].Instance == instance {
			return &rulings[i]
		}
	}
	return nil
}


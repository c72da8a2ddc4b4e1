package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conselho-dev/eleicao-api/internal/dto"
	"github.com/conselho-dev/eleicao-api/internal/models"
	"github.com/conselho-dev/eleicao-api/internal/repository"
	"github.com/conselho-dev/eleicao-api/pkg/clock"
	appErrors "github.com/conselho-dev/eleicao-api/pkg/errors"
	"github.com/conselho-dev/eleicao-api/pkg/events"
)

// memChallengeStore is an in-memory challengeStore with the same optimistic
// version, unique-ruling, and all-or-nothing transition semantics as the
// Postgres repository.
type memChallengeStore struct {
	mu          sync.Mutex
	challenges  map[string]*models.Challenge
	rulings     []models.Ruling
	documents   map[string]*models.Document
	deadlines   *memDeadlineStore
	protocolSeq int64
	seq         int

	failNext   error  // next ExecuteTransition fails without committing
	beforeExec func() // runs before ExecuteTransition takes the lock
}

func newMemChallengeStore(deadlines *memDeadlineStore) *memChallengeStore {
	return &memChallengeStore{
		challenges: make(map[string]*models.Challenge),
		documents:  make(map[string]*models.Document),
		deadlines:  deadlines,
	}
}

func (m *memChallengeStore) NextProtocol(_ context.Context, year int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.protocolSeq++
	return fmt.Sprintf("IMP-%d-%06d", year, m.protocolSeq), nil
}

// ExecuteTransition applies a transition with the repository's commit
// semantics: every guard is checked before any row mutates, so a failed
// write never leaves partial state behind.
func (m *memChallengeStore) ExecuteTransition(_ context.Context, writes repository.TransitionWrites) error {
	if m.beforeExec != nil {
		m.beforeExec()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}

	if writes.Ruling != nil {
		for _, existing := range m.rulings {
			if existing.ChallengeID == writes.Ruling.ChallengeID && existing.Instance == writes.Ruling.Instance {
				return repository.ErrDuplicate
			}
		}
	}
	var target *models.Challenge
	if writes.Insert != nil {
		m.seq++
		cp := *writes.Insert
		if cp.ID == "" {
			cp.ID = fmt.Sprintf("chal-%d", m.seq)
		}
		if cp.Instance == 0 {
			cp.Instance = 1
		}
		if cp.Version == 0 {
			cp.Version = 1
		}
		cp.Rulings, cp.Documents, cp.Deadlines = nil, nil, nil
		writes.Insert.ID = cp.ID
		target = &cp
	} else {
		target = m.challenges[writes.Update.ID]
	}
	if target == nil || target.Version != writes.Update.Version {
		return sql.ErrNoRows
	}
	if writes.ClaimDeadline != "" {
		if err := m.deadlines.claimMet(writes.ClaimDeadline); err != nil {
			return err
		}
	}

	if writes.Insert != nil {
		m.challenges[target.ID] = target
	}
	target.Status = writes.Update.Status
	target.Instance = writes.Update.Instance
	if writes.Update.Defense != nil {
		target.Defense = writes.Update.Defense
		target.DefenseAt = writes.Update.DefenseAt
	}
	target.Version++
	if writes.Ruling != nil {
		m.seq++
		if writes.Ruling.ID == "" {
			writes.Ruling.ID = fmt.Sprintf("ruling-%d", m.seq)
		}
		m.rulings = append(m.rulings, *writes.Ruling)
	}
	if writes.OpenDeadline != nil {
		m.deadlines.create(writes.OpenDeadline)
	}
	return nil
}

func (m *memChallengeStore) GetByID(_ context.Context, id string) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.challenges[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (m *memChallengeStore) GetByProtocol(_ context.Context, protocol string) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.challenges {
		if row.Protocol == protocol {
			cp := *row
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memChallengeStore) List(_ context.Context, filter models.ChallengeFilter) ([]models.Challenge, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Challenge
	for _, row := range m.challenges {
		if filter.ElectionID != "" && row.ElectionID != filter.ElectionID {
			continue
		}
		out = append(out, *row)
	}
	return out, len(out), nil
}

func (m *memChallengeStore) ListRulings(_ context.Context, challengeID string) ([]models.Ruling, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ruling
	for _, r := range m.rulings {
		if r.ChallengeID == challengeID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memChallengeStore) AddDocument(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("doc-%d", m.seq)
	}
	cp := *doc
	m.documents[doc.ID] = &cp
	return nil
}

func (m *memChallengeStore) TombstoneDocument(_ context.Context, challengeID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[documentID]
	if !ok || doc.ChallengeID != challengeID || doc.RemovedAt != nil {
		return sql.ErrNoRows
	}
	now := time.Now().UTC()
	doc.RemovedAt = &now
	return nil
}

func (m *memChallengeStore) ListDocuments(_ context.Context, challengeID string) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, doc := range m.documents {
		if doc.ChallengeID == challengeID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

type memElections struct {
	rows map[string]*models.Election
}

func (m *memElections) GetByID(_ context.Context, id string) (*models.Election, error) {
	row, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

type challengeFixture struct {
	svc       *ChallengeService
	deadlines *DeadlineService
	store     *memChallengeStore
	dstore    *memDeadlineStore
	clk       *clock.Fake
	recorder  *eventRecorder
}

func newChallengeFixture(t *testing.T) *challengeFixture {
	t.Helper()
	// Monday morning, far from any weekend boundary surprises.
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	recorder := &eventRecorder{}
	dstore := newMemDeadlineStore()
	store := newMemChallengeStore(dstore)
	deadlines := NewDeadlineService(dstore, clk, Weekdays, testPolicy(), recorder, zap.NewNop())
	elections := &memElections{rows: map[string]*models.Election{
		"election-1": {ID: "election-1", Name: "Conselho 2026", Status: models.ElectionStatusActive},
	}}
	svc := NewChallengeService(store, deadlines, elections, clk, recorder, nil, zap.NewNop(), 3)
	return &challengeFixture{svc: svc, deadlines: deadlines, store: store, dstore: dstore, clk: clk, recorder: recorder}
}

func fileRequest() dto.FileChallengeRequest {
	return dto.FileChallengeRequest{
		ElectionID: "election-1",
		Type:       "CHAPA",
		TargetKind: "slate",
		TargetID:   "slate-9",
		Grounds:    "ineligible candidate",
		Reasoning:  "candidate suspended by ethics board",
	}
}

func (f *challengeFixture) file(t *testing.T) *models.Challenge {
	t.Helper()
	challenge, err := f.svc.FileChallenge(context.Background(), fileRequest(), "prof-1")
	require.NoError(t, err)
	return challenge
}

func (f *challengeFixture) activeDeadline(t *testing.T, challengeID string, phase models.DeadlinePhase) *models.Deadline {
	t.Helper()
	deadline, err := f.deadlines.GetActive(context.Background(), challengeID, phase)
	require.NoError(t, err)
	return deadline
}

func (f *challengeFixture) submitDefense(t *testing.T, challengeID string) *models.Challenge {
	t.Helper()
	deadline := f.activeDeadline(t, challengeID, models.DeadlinePhaseDefense)
	challenge, err := f.svc.SubmitDefense(context.Background(), challengeID, dto.SubmitDefenseRequest{
		DeadlineID: deadline.ID,
		Defense:    "the candidate was reinstated in january",
	})
	require.NoError(t, err)
	return challenge
}

func TestFileChallengeOpensDefenseWindow(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)

	assert.Equal(t, models.ChallengeStatusAwaitingDefense, challenge.Status)
	assert.Equal(t, 1, challenge.Instance)
	assert.Equal(t, "IMP-2026-000001", challenge.Protocol)

	deadline := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseDefense)
	assert.True(t, deadline.Extendable)
	assert.Equal(t, f.clk.Now().AddDate(0, 0, 7), deadline.WindowEnd) // 5 business days over one weekend
	assert.Contains(t, f.recorder.names(), events.ChallengeFiled)
}

func TestFileChallengeUnknownElection(t *testing.T) {
	f := newChallengeFixture(t)
	req := fileRequest()
	req.ElectionID = "election-missing"

	_, err := f.svc.FileChallenge(context.Background(), req, "prof-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFileChallengeFailedWriteLeavesNoCase(t *testing.T) {
	f := newChallengeFixture(t)
	f.store.failNext = fmt.Errorf("connection reset by peer")

	_, err := f.svc.FileChallenge(context.Background(), fileRequest(), "prof-1")
	require.Error(t, err)

	// The rolled-back filing left neither a case row nor a defense window.
	assert.Empty(t, f.store.challenges)
	assert.Empty(t, f.dstore.rows)

	// A fresh filing starts clean.
	challenge := f.file(t)
	assert.Equal(t, models.ChallengeStatusAwaitingDefense, challenge.Status)
	window := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseDefense)
	assert.Equal(t, models.DeadlineStatusActive, window.Status)
}

func TestSubmitDefenseFailedWriteKeepsWindowOpen(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	deadline := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseDefense)

	f.store.failNext = fmt.Errorf("connection reset by peer")
	_, err := f.svc.SubmitDefense(context.Background(), challenge.ID, dto.SubmitDefenseRequest{
		DeadlineID: deadline.ID,
		Defense:    "first attempt lost to a dropped connection",
	})
	require.Error(t, err)

	// Nothing of the failed transition stuck: the case still awaits the
	// defense and the window is still open, so a retry can land.
	current, err := f.svc.Get(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusAwaitingDefense, current.Status)
	assert.Nil(t, current.Defense)
	still := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseDefense)
	assert.Equal(t, models.DeadlineStatusActive, still.Status)

	updated := f.submitDefense(t, challenge.ID)
	assert.Equal(t, models.ChallengeStatusDefenseSubmitted, updated.Status)
	judgment := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseJudgment)
	assert.Equal(t, models.DeadlineStatusActive, judgment.Status)
}

func TestSubmitDefenseLosingSweepRaceIsDeadlineExpired(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	deadline := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseDefense)

	// The sweep claims the window after the in-window check has passed; the
	// guarded MET claim inside the transition resolves the race to the sweep.
	f.store.beforeExec = func() {
		f.store.beforeExec = nil
		f.dstore.mu.Lock()
		f.dstore.rows[deadline.ID].Status = models.DeadlineStatusExpired
		f.dstore.mu.Unlock()
	}
	_, err := f.svc.SubmitDefense(context.Background(), challenge.ID, dto.SubmitDefenseRequest{
		DeadlineID: deadline.ID,
		Defense:    "filed while the sweep was claiming the window",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDeadlineExpired.Code, appErrors.FromError(err).Code)

	current, err := f.svc.Get(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusAwaitingDefense, current.Status)
	assert.Nil(t, current.Defense)
}

func TestSubmitDefenseWithinWindow(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)

	f.clk.Advance(48 * time.Hour)
	updated := f.submitDefense(t, challenge.ID)

	assert.Equal(t, models.ChallengeStatusDefenseSubmitted, updated.Status)
	require.NotNil(t, updated.Defense)
	assert.Equal(t, "the candidate was reinstated in january", *updated.Defense)

	// The defense window is consumed and the judgment window is open.
	_, err := f.deadlines.GetActive(context.Background(), challenge.ID, models.DeadlinePhaseDefense)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	judgment := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseJudgment)
	assert.Equal(t, models.DeadlineStatusActive, judgment.Status)
}

func TestSubmitDefenseAtExactWindowEndIsInTime(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	deadline := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseDefense)

	f.clk.Set(deadline.WindowEnd)
	updated, err := f.svc.SubmitDefense(context.Background(), challenge.ID, dto.SubmitDefenseRequest{
		DeadlineID: deadline.ID,
		Defense:    "filed at the last possible instant",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusDefenseSubmitted, updated.Status)
}

func TestSubmitDefenseAfterWindowEndRejected(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	deadline := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseDefense)

	f.clk.Set(deadline.WindowEnd.Add(time.Second))
	_, err := f.svc.SubmitDefense(context.Background(), challenge.ID, dto.SubmitDefenseRequest{
		DeadlineID: deadline.ID,
		Defense:    "one second too late",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDeadlineExpired.Code, appErrors.FromError(err).Code)
}

func TestSubmitDefenseReplayReturnsCommittedState(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	deadline := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseDefense)
	req := dto.SubmitDefenseRequest{DeadlineID: deadline.ID, Defense: "original rebuttal"}

	first, err := f.svc.SubmitDefense(context.Background(), challenge.ID, req)
	require.NoError(t, err)

	replay, err := f.svc.SubmitDefense(context.Background(), challenge.ID, req)
	require.NoError(t, err)
	assert.Equal(t, first.Status, replay.Status)
	assert.Equal(t, *first.Defense, *replay.Defense)

	// A different text is not a replay.
	_, err = f.svc.SubmitDefense(context.Background(), challenge.ID, dto.SubmitDefenseRequest{
		DeadlineID: deadline.ID,
		Defense:    "a second, different rebuttal",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestDefenseExpiryWaivesDefense(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	deadline := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseDefense)

	f.clk.Set(deadline.WindowEnd.Add(time.Minute))
	expired, err := f.deadlines.Expire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	updated, err := f.svc.Get(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusDefenseSubmitted, updated.Status)
	assert.Nil(t, updated.Defense, "a waived defense records no text")
	assert.Contains(t, f.recorder.names(), events.DefenseWaived)

	judgment := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseJudgment)
	assert.Equal(t, models.DeadlineStatusActive, judgment.Status)

	// The sweep is idempotent: the judgment window is not yet due.
	expired, err = f.deadlines.Expire(context.Background())
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestFullAppealLifecycle(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	f.submitDefense(t, challenge.ID)

	// First instance: denied but appealable.
	denied, err := f.svc.RenderRuling(context.Background(), challenge.ID, dto.RenderRulingRequest{
		Outcome:    "DENIED",
		Reasoning:  "grounds not proven",
		Appealable: true,
	}, "commission-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusDenied, denied.Status)
	require.NotNil(t, denied.CurrentRuling())
	assert.True(t, denied.CurrentRuling().Appealable)

	appealWindow := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseAppeal)
	assert.False(t, appealWindow.Extendable)

	// The filer appeals in time.
	appealed, err := f.svc.FileAppeal(context.Background(), challenge.ID, dto.FileAppealRequest{
		Reasoning: "new evidence of suspension",
	}, &models.JWTClaims{UserID: "prof-1", Role: models.RoleProfessional})
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusUnderJudgment, appealed.Status)
	assert.Equal(t, models.MaxInstance, appealed.Instance)

	// Appellate instance: the requested appealable flag is overridden.
	final, err := f.svc.RenderRuling(context.Background(), challenge.ID, dto.RenderRulingRequest{
		Outcome:    "UPHELD",
		Reasoning:  "suspension confirmed",
		Appealable: true,
	}, "commission-2")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusUpheld, final.Status)
	assert.False(t, final.CurrentRuling().Appealable, "appellate decisions are final")
	assert.Len(t, final.Rulings, 2)

	archived, err := f.svc.Archive(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusArchived, archived.Status)
}

func TestSecondAppealRejected(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	f.submitDefense(t, challenge.ID)

	_, err := f.svc.RenderRuling(context.Background(), challenge.ID, dto.RenderRulingRequest{
		Outcome: "DENIED", Reasoning: "grounds not proven", Appealable: true,
	}, "commission-1")
	require.NoError(t, err)
	_, err = f.svc.FileAppeal(context.Background(), challenge.ID, dto.FileAppealRequest{Reasoning: "appeal"},
		&models.JWTClaims{UserID: "prof-1", Role: models.RoleProfessional})
	require.NoError(t, err)
	_, err = f.svc.RenderRuling(context.Background(), challenge.ID, dto.RenderRulingRequest{
		Outcome: "DENIED", Reasoning: "confirmed", Appealable: true,
	}, "commission-2")
	require.NoError(t, err)

	_, err = f.svc.FileAppeal(context.Background(), challenge.ID, dto.FileAppealRequest{Reasoning: "again"},
		&models.JWTClaims{UserID: "prof-1", Role: models.RoleProfessional})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestFileAppealByStrangerForbidden(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	f.submitDefense(t, challenge.ID)
	_, err := f.svc.RenderRuling(context.Background(), challenge.ID, dto.RenderRulingRequest{
		Outcome: "DENIED", Reasoning: "grounds not proven", Appealable: true,
	}, "commission-1")
	require.NoError(t, err)

	_, err = f.svc.FileAppeal(context.Background(), challenge.ID, dto.FileAppealRequest{Reasoning: "appeal"},
		&models.JWTClaims{UserID: "someone-else", Role: models.RoleProfessional})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestFileAppealAfterWindowClosedRejected(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	f.submitDefense(t, challenge.ID)
	_, err := f.svc.RenderRuling(context.Background(), challenge.ID, dto.RenderRulingRequest{
		Outcome: "DENIED", Reasoning: "grounds not proven", Appealable: true,
	}, "commission-1")
	require.NoError(t, err)

	appealWindow := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseAppeal)
	f.clk.Set(appealWindow.WindowEnd.Add(time.Second))

	_, err = f.svc.FileAppeal(context.Background(), challenge.ID, dto.FileAppealRequest{Reasoning: "late"},
		&models.JWTClaims{UserID: "prof-1", Role: models.RoleProfessional})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDeadlineExpired.Code, appErrors.FromError(err).Code)
}

func TestArchiveBlockedWhileAppealWindowOpen(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	f.submitDefense(t, challenge.ID)
	_, err := f.svc.RenderRuling(context.Background(), challenge.ID, dto.RenderRulingRequest{
		Outcome: "DENIED", Reasoning: "grounds not proven", Appealable: true,
	}, "commission-1")
	require.NoError(t, err)

	_, err = f.svc.Archive(context.Background(), challenge.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestAppealExpiryArchivesCase(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	f.submitDefense(t, challenge.ID)
	_, err := f.svc.RenderRuling(context.Background(), challenge.ID, dto.RenderRulingRequest{
		Outcome: "DENIED", Reasoning: "grounds not proven", Appealable: true,
	}, "commission-1")
	require.NoError(t, err)

	appealWindow := f.activeDeadline(t, challenge.ID, models.DeadlinePhaseAppeal)
	f.clk.Set(appealWindow.WindowEnd.Add(time.Minute))

	expired, err := f.deadlines.Expire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	archived, err := f.svc.Get(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusArchived, archived.Status)

	// Archiving an archived case is a no-op replay.
	again, err := f.svc.Archive(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusArchived, again.Status)
}

func TestRenderRulingDuplicateInstanceRejected(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	f.submitDefense(t, challenge.ID)

	_, err := f.svc.RenderRuling(context.Background(), challenge.ID, dto.RenderRulingRequest{
		Outcome: "DENIED", Reasoning: "grounds not proven",
	}, "commission-1")
	require.NoError(t, err)

	// Same instance, different decision text: not a replay.
	_, err = f.svc.RenderRuling(context.Background(), challenge.ID, dto.RenderRulingRequest{
		Outcome: "UPHELD", Reasoning: "changed my mind",
	}, "commission-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestRenderRulingReplayReturnsCommittedState(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	f.submitDefense(t, challenge.ID)

	req := dto.RenderRulingRequest{Outcome: "DENIED", Reasoning: "grounds not proven"}
	first, err := f.svc.RenderRuling(context.Background(), challenge.ID, req, "commission-1")
	require.NoError(t, err)

	replay, err := f.svc.RenderRuling(context.Background(), challenge.ID, req, "commission-1")
	require.NoError(t, err)
	assert.Equal(t, first.Status, replay.Status)
	assert.Len(t, replay.Rulings, 1)
}

func TestConcurrentRulingsExactlyOneWins(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	f.submitDefense(t, challenge.ID)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	reasons := []string{"first commissioner's view", "second commissioner's view"}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.RenderRuling(context.Background(), challenge.ID, dto.RenderRulingRequest{
				Outcome:   "DENIED",
				Reasoning: reasons[i],
			}, fmt.Sprintf("commission-%d", i+1))
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	require.Equal(t, 1, successes, "exactly one concurrent ruling must win")

	final, err := f.svc.Get(context.Background(), challenge.ID)
	require.NoError(t, err)
	assert.Len(t, final.Rulings, 1)
	assert.Equal(t, models.ChallengeStatusDenied, final.Status)
}

func TestDocumentsTombstoneSemantics(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)

	doc, err := f.svc.AddDocument(context.Background(), challenge.ID, dto.AddDocumentRequest{
		Kind:          "evidence",
		Name:          "suspension-order.pdf",
		StorageHandle: "s3://evidence/suspension-order.pdf",
		SizeBytes:     2048,
		MimeType:      "application/pdf",
	}, "prof-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveDocument(context.Background(), challenge.ID, doc.ID))

	// The tombstoned row is still listed, and cannot be removed twice.
	loaded, err := f.svc.Get(context.Background(), challenge.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Documents, 1)
	assert.NotNil(t, loaded.Documents[0].RemovedAt)

	err = f.svc.RemoveDocument(context.Background(), challenge.ID, doc.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAddDocumentBlockedOnArchivedCase(t *testing.T) {
	f := newChallengeFixture(t)
	challenge := f.file(t)
	f.submitDefense(t, challenge.ID)
	_, err := f.svc.RenderRuling(context.Background(), challenge.ID, dto.RenderRulingRequest{
		Outcome: "DENIED", Reasoning: "grounds not proven",
	}, "commission-1")
	require.NoError(t, err)
	_, err = f.svc.Archive(context.Background(), challenge.ID)
	require.NoError(t, err)

	_, err = f.svc.AddDocument(context.Background(), challenge.ID, dto.AddDocumentRequest{
		Kind:          "evidence",
		Name:          "late.pdf",
		StorageHandle: "s3://evidence/late.pdf",
		SizeBytes:     1,
		MimeType:      "application/pdf",
	}, "prof-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

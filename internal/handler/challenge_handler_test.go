package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conselho-dev/eleicao-api/internal/dto"
	"github.com/conselho-dev/eleicao-api/internal/middleware"
	"github.com/conselho-dev/eleicao-api/internal/models"
	appErrors "github.com/conselho-dev/eleicao-api/pkg/errors"
)

type challengeServiceMock struct {
	challenge *models.Challenge
	err       error
	lastFiler string
}

func (m *challengeServiceMock) FileChallenge(_ context.Context, _ dto.FileChallengeRequest, filerID string) (*models.Challenge, error) {
	m.lastFiler = filerID
	return m.challenge, m.err
}

func (m *challengeServiceMock) SubmitDefense(_ context.Context, _ string, _ dto.SubmitDefenseRequest) (*models.Challenge, error) {
	return m.challenge, m.err
}

func (m *challengeServiceMock) RenderRuling(_ context.Context, _ string, _ dto.RenderRulingRequest, _ string) (*models.Challenge, error) {
	return m.challenge, m.err
}

func (m *challengeServiceMock) FileAppeal(_ context.Context, _ string, _ dto.FileAppealRequest, _ *models.JWTClaims) (*models.Challenge, error) {
	return m.challenge, m.err
}

func (m *challengeServiceMock) Archive(_ context.Context, _ string) (*models.Challenge, error) {
	return m.challenge, m.err
}

func (m *challengeServiceMock) Get(_ context.Context, _ string) (*models.Challenge, error) {
	return m.challenge, m.err
}

func (m *challengeServiceMock) GetByProtocol(_ context.Context, _ string) (*models.Challenge, error) {
	return m.challenge, m.err
}

func (m *challengeServiceMock) List(_ context.Context, _ dto.ChallengeQuery) ([]models.Challenge, *models.Pagination, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return []models.Challenge{*m.challenge}, &models.Pagination{Page: 1, PageSize: 50, TotalItems: 1, TotalPages: 1}, nil
}

func (m *challengeServiceMock) ListDeadlines(_ context.Context, _ string) ([]models.Deadline, error) {
	return nil, m.err
}

func (m *challengeServiceMock) AddDocument(_ context.Context, _ string, _ dto.AddDocumentRequest, _ string) (*models.Document, error) {
	return &models.Document{ID: "doc-1"}, m.err
}

func (m *challengeServiceMock) RemoveDocument(_ context.Context, _, _ string) error {
	return m.err
}

type exporterMock struct{}

func (exporterMock) Render(_ *models.Challenge) ([]byte, error) { return []byte("%PDF-1.4"), nil }

func newChallengeTestContext(t *testing.T, method, path string, payload interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return w, c
}

func TestChallengeHandlerFile(t *testing.T) {
	mock := &challengeServiceMock{challenge: &models.Challenge{ID: "chal-1", Protocol: "IMP-2026-000001", Status: models.ChallengeStatusAwaitingDefense}}
	h := NewChallengeHandler(mock, exporterMock{})

	w, c := newChallengeTestContext(t, http.MethodPost, "/challenges", dto.FileChallengeRequest{
		ElectionID: "election-1", Type: "CHAPA", TargetKind: "slate", TargetID: "slate-9",
		Grounds: "g", Reasoning: "r",
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "prof-1", Role: models.RoleProfessional})

	h.File(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "prof-1", mock.lastFiler)
}

func TestChallengeHandlerFileWithoutClaims(t *testing.T) {
	h := NewChallengeHandler(&challengeServiceMock{}, exporterMock{})
	w, c := newChallengeTestContext(t, http.MethodPost, "/challenges", nil)

	h.File(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChallengeHandlerRulingRequiresCommissionRole(t *testing.T) {
	h := NewChallengeHandler(&challengeServiceMock{}, exporterMock{})
	w, c := newChallengeTestContext(t, http.MethodPost, "/challenges/chal-1/ruling", dto.RenderRulingRequest{
		Outcome: "DENIED", Reasoning: "grounds not proven",
	})
	c.Params = gin.Params{{Key: "id", Value: "chal-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "prof-1", Role: models.RoleProfessional})

	h.RenderRuling(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestChallengeHandlerDefenseMapsDeadlineExpired(t *testing.T) {
	h := NewChallengeHandler(&challengeServiceMock{err: appErrors.ErrDeadlineExpired}, exporterMock{})
	w, c := newChallengeTestContext(t, http.MethodPost, "/challenges/chal-1/defense", dto.SubmitDefenseRequest{
		DeadlineID: "dl-1", Defense: "too late",
	})
	c.Params = gin.Params{{Key: "id", Value: "chal-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "prof-2", Role: models.RoleProfessional})

	h.SubmitDefense(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrDeadlineExpired.Code, envelope.Error.Code)
}

func TestChallengeHandlerExportRulingNoRuling(t *testing.T) {
	mock := &challengeServiceMock{challenge: &models.Challenge{ID: "chal-1", Status: models.ChallengeStatusAwaitingDefense}}
	h := NewChallengeHandler(mock, exporterMock{})
	w, c := newChallengeTestContext(t, http.MethodGet, "/challenges/chal-1/ruling/export", nil)
	c.Params = gin.Params{{Key: "id", Value: "chal-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "prof-1", Role: models.RoleCommission})

	h.ExportRuling(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChallengeHandlerExportRulingPDF(t *testing.T) {
	mock := &challengeServiceMock{challenge: &models.Challenge{
		ID:       "chal-1",
		Protocol: "IMP-2026-000001",
		Status:   models.ChallengeStatusDenied,
		Instance: 1,
		Rulings:  []models.Ruling{{Instance: 1, Outcome: models.RulingOutcomeDenied}},
	}}
	h := NewChallengeHandler(mock, exporterMock{})
	w, c := newChallengeTestContext(t, http.MethodGet, "/challenges/chal-1/ruling/export", nil)
	c.Params = gin.Params{{Key: "id", Value: "chal-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "prof-1", Role: models.RoleCommission})

	h.ExportRuling(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "IMP-2026-000001")
}

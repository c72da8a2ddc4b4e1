package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conselho-dev/eleicao-api/internal/dto"
	"github.com/conselho-dev/eleicao-api/internal/middleware"
	"github.com/conselho-dev/eleicao-api/internal/models"
	appErrors "github.com/conselho-dev/eleicao-api/pkg/errors"
)

type ballotServiceMock struct {
	castErr    error
	receipt    *models.BallotReceipt
	receiptErr error
	lastVoter  string
}

func (m *ballotServiceMock) CastBallot(_ context.Context, req dto.CastBallotRequest, voterID string) (*models.BallotReceipt, error) {
	m.lastVoter = voterID
	if m.castErr != nil {
		return nil, m.castErr
	}
	return &models.BallotReceipt{BallotID: "ballot-1", CastAt: time.Now()}, nil
}

func (m *ballotServiceMock) GetReceipt(_ context.Context, electionID, voterID string) (*models.BallotReceipt, error) {
	if m.receiptErr != nil {
		return nil, m.receiptErr
	}
	return m.receipt, nil
}

func TestBallotHandlerCastTakesVoterFromClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &ballotServiceMock{}
	h := NewBallotHandler(mock)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.CastBallotRequest{ElectionID: "election-1", SlateID: "slate-2"})
	req, _ := http.NewRequest(http.MethodPost, "/ballots", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "prof-1", Role: models.RoleProfessional})

	h.Cast(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "prof-1", mock.lastVoter)
}

func TestBallotHandlerCastWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewBallotHandler(&ballotServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/ballots", bytes.NewReader([]byte(`{}`)))
	c.Request = req

	h.Cast(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBallotHandlerCastMapsDomainErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewBallotHandler(&ballotServiceMock{castErr: appErrors.ErrAlreadyVoted})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.CastBallotRequest{ElectionID: "election-1", SlateID: "slate-2"})
	req, _ := http.NewRequest(http.MethodPost, "/ballots", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "prof-1", Role: models.RoleProfessional})

	h.Cast(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrAlreadyVoted.Code, envelope.Error.Code)
}

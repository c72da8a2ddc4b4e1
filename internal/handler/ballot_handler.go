package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/conselho-dev/eleicao-api/internal/dto"
	"github.com/conselho-dev/eleicao-api/internal/models"
	appErrors "github.com/conselho-dev/eleicao-api/pkg/errors"
	"github.com/conselho-dev/eleicao-api/pkg/response"
)

type ballotService interface {
	CastBallot(ctx context.Context, req dto.CastBallotRequest, voterID string) (*models.BallotReceipt, error)
	GetReceipt(ctx context.Context, electionID, voterID string) (*models.BallotReceipt, error)
}

// BallotHandler exposes the voting gate endpoints.
type BallotHandler struct {
	service ballotService
}

// NewBallotHandler constructs the handler.
func NewBallotHandler(service ballotService) *BallotHandler {
	return &BallotHandler{service: service}
}

// Cast godoc
// @Summary Cast a ballot in an open election
// @Tags Ballots
// @Accept json
// @Produce json
// @Param payload body dto.CastBallotRequest true "Ballot payload"
// @Success 201 {object} response.Envelope
// @Router /ballots [post]
func (h *BallotHandler) Cast(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CastBallotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid ballot payload"))
		return
	}
	receipt, err := h.service.CastBallot(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

// Receipt godoc
// @Summary Fetch the caller's ballot receipt for an election
// @Tags Ballots
// @Produce json
// @Param electionId path string true "Election ID"
// @Success 200 {object} response.Envelope
// @Router /ballots/{electionId}/receipt [get]
func (h *BallotHandler) Receipt(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	receipt, err := h.service.GetReceipt(c.Request.Context(), c.Param("electionId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}

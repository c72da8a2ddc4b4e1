package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/conselho-dev/eleicao-api/internal/dto"
	"github.com/conselho-dev/eleicao-api/internal/models"
	appErrors "github.com/conselho-dev/eleicao-api/pkg/errors"
	"github.com/conselho-dev/eleicao-api/pkg/response"
)

type challengeService interface {
	FileChallenge(ctx context.Context, req dto.FileChallengeRequest, filerID string) (*models.Challenge, error)
	SubmitDefense(ctx context.Context, challengeID string, req dto.SubmitDefenseRequest) (*models.Challenge, error)
	RenderRuling(ctx context.Context, challengeID string, req dto.RenderRulingRequest, judgeRef string) (*models.Challenge, error)
	FileAppeal(ctx context.Context, challengeID string, req dto.FileAppealRequest, actor *models.JWTClaims) (*models.Challenge, error)
	Archive(ctx context.Context, challengeID string) (*models.Challenge, error)
	Get(ctx context.Context, challengeID string) (*models.Challenge, error)
	GetByProtocol(ctx context.Context, protocol string) (*models.Challenge, error)
	List(ctx context.Context, query dto.ChallengeQuery) ([]models.Challenge, *models.Pagination, error)
	ListDeadlines(ctx context.Context, challengeID string) ([]models.Deadline, error)
	AddDocument(ctx context.Context, challengeID string, req dto.AddDocumentRequest, actorID string) (*models.Document, error)
	RemoveDocument(ctx context.Context, challengeID, documentID string) error
}

type rulingExporter interface {
	Render(challenge *models.Challenge) ([]byte, error)
}

// ChallengeHandler exposes REST endpoints for the impugnação lifecycle.
type ChallengeHandler struct {
	service  challengeService
	exporter rulingExporter
}

// NewChallengeHandler constructs the handler.
func NewChallengeHandler(service challengeService, exporter rulingExporter) *ChallengeHandler {
	return &ChallengeHandler{service: service, exporter: exporter}
}

// File godoc
// @Summary File a new electoral challenge
// @Tags Challenges
// @Accept json
// @Produce json
// @Param payload body dto.FileChallengeRequest true "Challenge payload"
// @Success 201 {object} response.Envelope
// @Router /challenges [post]
func (h *ChallengeHandler) File(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.FileChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid challenge payload"))
		return
	}
	challenge, err := h.service.FileChallenge(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, challenge)
}

// SubmitDefense godoc
// @Summary Submit the defense for a challenge
// @Tags Challenges
// @Accept json
// @Produce json
// @Param id path string true "Challenge ID"
// @Param payload body dto.SubmitDefenseRequest true "Defense payload"
// @Success 200 {object} response.Envelope
// @Router /challenges/{id}/defense [post]
func (h *ChallengeHandler) SubmitDefense(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitDefenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid defense payload"))
		return
	}
	challenge, err := h.service.SubmitDefense(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, challenge, nil)
}

// RenderRuling godoc
// @Summary Render a ruling on a challenge
// @Tags Challenges
// @Accept json
// @Produce json
// @Param id path string true "Challenge ID"
// @Param payload body dto.RenderRulingRequest true "Ruling payload"
// @Success 200 {object} response.Envelope
// @Router /challenges/{id}/ruling [post]
func (h *ChallengeHandler) RenderRuling(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if claims.Role != models.RoleAdmin && claims.Role != models.RoleCommission {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	var req dto.RenderRulingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid ruling payload"))
		return
	}
	challenge, err := h.service.RenderRuling(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, challenge, nil)
}

// FileAppeal godoc
// @Summary Appeal a ruling to the second instance
// @Tags Challenges
// @Accept json
// @Produce json
// @Param id path string true "Challenge ID"
// @Param payload body dto.FileAppealRequest true "Appeal payload"
// @Success 200 {object} response.Envelope
// @Router /challenges/{id}/appeal [post]
func (h *ChallengeHandler) FileAppeal(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.FileAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid appeal payload"))
		return
	}
	challenge, err := h.service.FileAppeal(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, challenge, nil)
}

// Archive godoc
// @Summary Archive a judged challenge
// @Tags Challenges
// @Produce json
// @Param id path string true "Challenge ID"
// @Success 200 {object} response.Envelope
// @Router /challenges/{id}/archive [post]
func (h *ChallengeHandler) Archive(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if claims.Role != models.RoleAdmin && claims.Role != models.RoleCommission {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	challenge, err := h.service.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, challenge, nil)
}

// Get godoc
// @Summary Get challenge detail
// @Tags Challenges
// @Produce json
// @Param id path string true "Challenge ID"
// @Success 200 {object} response.Envelope
// @Router /challenges/{id} [get]
func (h *ChallengeHandler) Get(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	challenge, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, challenge, nil)
}

// GetByProtocol godoc
// @Summary Get challenge detail by protocol number
// @Tags Challenges
// @Produce json
// @Param protocol path string true "Protocol number"
// @Success 200 {object} response.Envelope
// @Router /challenges/protocol/{protocol} [get]
func (h *ChallengeHandler) GetByProtocol(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	challenge, err := h.service.GetByProtocol(c.Request.Context(), c.Param("protocol"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, challenge, nil)
}

// List godoc
// @Summary List challenges
// @Tags Challenges
// @Produce json
// @Param electionId query string false "Election ID"
// @Param status query string false "Comma separated statuses"
// @Param type query string false "Challenge type"
// @Success 200 {object} response.Envelope
// @Router /challenges [get]
func (h *ChallengeHandler) List(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.ChallengeQuery{
		ElectionID: strings.TrimSpace(c.Query("electionId")),
		FilerID:    strings.TrimSpace(c.Query("filerId")),
	}
	if rawType := c.Query("type"); rawType != "" {
		query.Type = models.ChallengeType(strings.ToUpper(rawType))
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.ChallengeStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.ChallengeStatus(part))
		}
		query.Status = statuses
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	challenges, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, challenges, pagination)
}

// ListDeadlines godoc
// @Summary List the prazo history of a challenge
// @Tags Challenges
// @Produce json
// @Param id path string true "Challenge ID"
// @Success 200 {object} response.Envelope
// @Router /challenges/{id}/deadlines [get]
func (h *ChallengeHandler) ListDeadlines(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	deadlines, err := h.service.ListDeadlines(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deadlines, nil)
}

// AddDocument godoc
// @Summary Attach a document reference to a challenge
// @Tags Challenges
// @Accept json
// @Produce json
// @Param id path string true "Challenge ID"
// @Param payload body dto.AddDocumentRequest true "Document reference"
// @Success 201 {object} response.Envelope
// @Router /challenges/{id}/documents [post]
func (h *ChallengeHandler) AddDocument(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AddDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid document payload"))
		return
	}
	doc, err := h.service.AddDocument(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// RemoveDocument godoc
// @Summary Tombstone a document reference
// @Tags Challenges
// @Param id path string true "Challenge ID"
// @Param docId path string true "Document ID"
// @Success 204
// @Router /challenges/{id}/documents/{docId} [delete]
func (h *ChallengeHandler) RemoveDocument(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.RemoveDocument(c.Request.Context(), c.Param("id"), c.Param("docId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportRuling godoc
// @Summary Download the decision record as PDF
// @Tags Challenges
// @Produce application/pdf
// @Param id path string true "Challenge ID"
// @Success 200
// @Router /challenges/{id}/ruling/export [get]
func (h *ChallengeHandler) ExportRuling(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	challenge, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if challenge.CurrentRuling() == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "challenge has no ruling"))
		return
	}
	pdf, err := h.exporter.Render(challenge)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render decision record"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+challenge.Protocol+`-ruling.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

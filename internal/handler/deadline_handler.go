package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/conselho-dev/eleicao-api/internal/models"
	appErrors "github.com/conselho-dev/eleicao-api/pkg/errors"
	"github.com/conselho-dev/eleicao-api/pkg/response"
)

type deadlineService interface {
	Extend(ctx context.Context, id string) (*models.Deadline, error)
	Expire(ctx context.Context) (int, error)
}

// DeadlineHandler exposes prazo administration endpoints.
type DeadlineHandler struct {
	service deadlineService
}

// NewDeadlineHandler constructs the handler.
func NewDeadlineHandler(service deadlineService) *DeadlineHandler {
	return &DeadlineHandler{service: service}
}

// Extend godoc
// @Summary Extend an active deadline by the configured number of business days
// @Tags Deadlines
// @Produce json
// @Param id path string true "Deadline ID"
// @Success 200 {object} response.Envelope
// @Router /deadlines/{id}/extend [post]
func (h *DeadlineHandler) Extend(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if claims.Role != models.RoleAdmin && claims.Role != models.RoleCommission {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	deadline, err := h.service.Extend(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deadline, nil)
}

// Sweep godoc
// @Summary Run a deadline expiry sweep immediately
// @Tags Deadlines
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /deadlines/sweep [post]
func (h *DeadlineHandler) Sweep(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if claims.Role != models.RoleAdmin {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	expired, err := h.service.Expire(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"expired": expired}, nil)
}

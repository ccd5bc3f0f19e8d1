package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coverage-api/internal/models"
	"github.com/noah-isme/coverage-api/pkg/response"
)

type offerService interface {
	ListForCandidate(ctx context.Context, candidateID string, scope *models.RequestScope) ([]models.OpenOffer, error)
}

// OfferHandler lists outstanding offers.
type OfferHandler struct {
	service offerService
}

// NewOfferHandler builds a new handler.
func NewOfferHandler(service offerService) *OfferHandler {
	return &OfferHandler{service: service}
}

// List godoc
// @Summary Open offers for a substitute
// @Tags Coverage
// @Produce json
// @Param substitute_id query string false "Candidate ID (defaults to caller)"
// @Success 200 {object} response.Envelope
// @Router /substitutes/offers [get]
func (h *OfferHandler) List(c *gin.Context) {
	scope := scopeFromContext(c)
	candidateID := c.Query("substitute_id")
	if candidateID == "" && scope != nil {
		candidateID = scope.UserID
	}
	items, err := h.service.ListForCandidate(c.Request.Context(), candidateID, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

package webhook

import (
	"net/http"

	"callops_backend/platform/httpkit"
	"callops_backend/platform/logger"
	"callops_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler exposes the provider webhook endpoint.
type Handler struct {
	service  *Service
	validate *validator.Validator
	log      *logger.Logger
}

// NewHandler creates the webhook handler.
func NewHandler(service *Service, validate *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{service: service, validate: validate, log: log}
}

// HandleCallEvent receives one delivery. Returns 200 for handled or
// intentionally ignored events, 5xx only when the provider should retry.
func (h *Handler) HandleCallEvent(c *gin.Context) {
	var env Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		// Malformed payloads will never parse on retry.
		httpkit.Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if err := h.validate.Struct(env); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "missing event tag", nil)
		return
	}

	if err := h.service.HandleEvent(c.Request.Context(), env); err != nil {
		h.log.Error("webhook processing failed", "event", env.Event, "error", err)
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

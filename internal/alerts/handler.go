package alerts

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/soc-relay/internal/domain"
	"github.com/bissquit/soc-relay/internal/pkg/ctxlog"
	"github.com/bissquit/soc-relay/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for the alert ingest endpoint.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new ingest handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers the ingest route. Auth (if any) is applied
// by the caller's middleware stack.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/ingest", h.Ingest)
}

// IngestRequest is the inbound alert submission body.
type IngestRequest struct {
	Summary  string         `json:"summary" validate:"omitempty,max=512"`
	Severity *int           `json:"severity"`
	Details  map[string]any `json:"details"`
	Tags     []string       `json:"tags" validate:"omitempty,max=16,dive,max=64"`
}

// IngestResponse is the aggregated verdict returned to the submitter.
type IngestResponse struct {
	Accepted  bool             `json:"accepted"`
	Forwarded bool             `json:"forwarded"`
	Reason    string           `json:"reason,omitempty"`
	AlertID   string           `json:"alert_id"`
	Results   []DeliveryResult `json:"results,omitempty"`
}

// Ingest handles POST /v1/ingest.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	alertID := uuid.NewString()
	logger := ctxlog.FromContext(r.Context()).With("alert_id", alertID)

	alert := domain.NewAlert(req.Summary, req.Severity, req.Details, req.Tags)
	result, err := h.service.Ingest(ctxlog.WithLogger(r.Context(), logger), alert)
	if err != nil {
		logger.Error("ingest failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	httputil.JSON(w, http.StatusOK, IngestResponse{
		Accepted:  true,
		Forwarded: result.Forwarded,
		Reason:    result.Reason,
		AlertID:   alertID,
		Results:   result.Results,
	})
}

package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"empgate/internal/details/models"
	dErrors "empgate/pkg/domain-errors"
	"empgate/pkg/platform/httputil"
	"empgate/pkg/requestcontext"
)

// sessionHeader carries the caller's session id on employee endpoints.
const sessionHeader = "X-Session-ID"

// DetailsService is the slice of the aggregation layer the transport needs.
type DetailsService interface {
	FetchAggregate(ctx context.Context, subjectID, sessionID string) (*models.Aggregate, error)
	UpdateEmployee(ctx context.Context, subjectID string, req models.UpdateEmployeeRequest, sessionID string) error
	DeleteEmployee(ctx context.Context, subjectID, sessionID string) error
	InvalidateAggregate(subjectID string) int
}

// EmployeeHandler wires employee endpoints to the aggregation service.
type EmployeeHandler struct {
	service DetailsService
	logger  *slog.Logger
}

func NewEmployeeHandler(service DetailsService, logger *slog.Logger) *EmployeeHandler {
	return &EmployeeHandler{service: service, logger: logger}
}

// Register mounts employee endpoints on the router.
func (h *EmployeeHandler) Register(r chi.Router) {
	r.Get("/employees/{id}", h.HandleGet)
	r.Put("/employees/{id}", h.HandleUpdate)
	r.Delete("/employees/{id}", h.HandleDelete)
	r.Post("/employees/{id}/cache/invalidate", h.HandleInvalidateCache)
}

// HandleGet handles GET /employees/{id} requests.
func (h *EmployeeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	subjectID := chi.URLParam(r, "id")

	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	agg, err := h.service.FetchAggregate(ctx, subjectID, sessionID)
	if err != nil {
		h.logger.WarnContext(ctx, "aggregate fetch failed",
			"request_id", requestID,
			"subject_id", subjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, agg)
}

type updateEmployeeRequest struct {
	Name       string `json:"name" valid:"required"`
	Department string `json:"department" valid:"required"`
	Email      string `json:"email" valid:"required,email"`
	Phone      string `json:"phone"`
}

// HandleUpdate handles PUT /employees/{id} requests.
func (h *EmployeeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	subjectID := chi.URLParam(r, "id")

	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[updateEmployeeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	err := h.service.UpdateEmployee(ctx, subjectID, models.UpdateEmployeeRequest{
		Name:       req.Name,
		Department: req.Department,
		Email:      req.Email,
		Phone:      req.Phone,
	}, sessionID)
	if err != nil {
		h.logger.WarnContext(ctx, "employee update failed",
			"request_id", requestID,
			"subject_id", subjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete handles DELETE /employees/{id} requests.
func (h *EmployeeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	subjectID := chi.URLParam(r, "id")

	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteEmployee(ctx, subjectID, sessionID); err != nil {
		h.logger.WarnContext(ctx, "employee delete failed",
			"request_id", requestID,
			"subject_id", subjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type invalidateCacheResponse struct {
	Removed int `json:"removed"`
}

// HandleInvalidateCache handles POST /employees/{id}/cache/invalidate.
func (h *EmployeeHandler) HandleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "id")
	removed := h.service.InvalidateAggregate(subjectID)
	httputil.WriteJSON(w, http.StatusOK, invalidateCacheResponse{Removed: removed})
}

func (h *EmployeeHandler) requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "missing "+sessionHeader+" header"))
		return "", false
	}
	return sessionID, true
}

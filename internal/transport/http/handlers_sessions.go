package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"empgate/internal/security/models"
	dErrors "empgate/pkg/domain-errors"
	"empgate/pkg/platform/httputil"
	"empgate/pkg/requestcontext"
	"empgate/pkg/sentinel"
)

// SessionService is the slice of the session authority the transport needs.
type SessionService interface {
	Create(ctx context.Context, userID, securityLevel, sessionID string) (*models.SecurityContext, error)
	Validate(ctx context.Context, sessionID, requiredPermission string) bool
	Invalidate(ctx context.Context, sessionID string) error
}

// SessionHandler wires session endpoints to the session authority.
type SessionHandler struct {
	service SessionService
	logger  *slog.Logger
}

func NewSessionHandler(service SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, logger: logger}
}

// Register mounts session endpoints on the router.
func (h *SessionHandler) Register(r chi.Router) {
	r.Post("/sessions", h.HandleCreate)
	r.Post("/sessions/{id}/validate", h.HandleValidate)
	r.Delete("/sessions/{id}", h.HandleInvalidate)
}

type createSessionRequest struct {
	UserID        string `json:"user_id" valid:"required"`
	SecurityLevel string `json:"security_level" valid:"required,in(BASIC|MANAGER|ADMIN)"`
}

type createSessionResponse struct {
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id"`
	SecurityLevel string    `json:"security_level"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// HandleCreate handles POST /sessions requests.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[createSessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sc, err := h.service.Create(ctx, req.UserID, req.SecurityLevel, uuid.NewString())
	if err != nil {
		h.logger.ErrorContext(ctx, "session creation failed",
			"request_id", requestID,
			"user_id", req.UserID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "session created",
		"request_id", requestID,
		"user_id", sc.UserID,
		"session_id", sc.SessionID,
	)
	httputil.WriteJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:     sc.SessionID,
		UserID:        sc.UserID,
		SecurityLevel: sc.SecurityLevel,
		ExpiresAt:     sc.ExpiresAt,
	})
}

type validateSessionRequest struct {
	Permission string `json:"permission"`
}

type validateSessionResponse struct {
	Valid bool `json:"valid"`
}

// HandleValidate handles POST /sessions/{id}/validate requests.
func (h *SessionHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	sessionID := chi.URLParam(r, "id")

	// An empty body means a liveness-only check with no permission required.
	var req validateSessionRequest
	if r.ContentLength != 0 {
		var ok bool
		req, ok = httputil.DecodeAndPrepare[validateSessionRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
	}

	valid := h.service.Validate(ctx, sessionID, req.Permission)
	httputil.WriteJSON(w, http.StatusOK, validateSessionResponse{Valid: valid})
}

// HandleInvalidate handles DELETE /sessions/{id} requests. Invalidating an
// unknown session succeeds; the end state is the same.
func (h *SessionHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	sessionID := chi.URLParam(r, "id")

	if err := h.service.Invalidate(ctx, sessionID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		h.logger.ErrorContext(ctx, "session invalidation failed",
			"request_id", requestID,
			"session_id", sessionID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeStoreFailure, "invalidating session"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

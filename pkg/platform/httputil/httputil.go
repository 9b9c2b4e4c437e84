// Package httputil centralizes JSON response writing and request decoding
// for the HTTP transport.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"

	dErrors "empgate/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error to an HTTP response. Internal
// failures are reported without detail; everything else carries the
// domain message as the error description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)

	var status int
	var wire string
	describe := true

	switch code {
	case dErrors.CodeUnauthorized:
		status, wire = http.StatusForbidden, "unauthorized"
	case dErrors.CodeNotFound:
		status, wire = http.StatusNotFound, "not_found"
	case dErrors.CodeBadRequest:
		status, wire = http.StatusBadRequest, "bad_request"
	case dErrors.CodeUpstream:
		status, wire = http.StatusServiceUnavailable, "upstream_unavailable"
	default:
		status, wire = http.StatusInternalServerError, "internal_error"
		describe = false
	}

	body := errorBody{Error: wire}
	if describe {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body.Description = de.Message
		}
	}
	WriteJSON(w, status, body)
}

// DecodeAndPrepare decodes the request body into T and runs struct
// validation. On failure it writes a bad_request response and returns
// ok=false; the caller should bail out.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID, "error", err)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return req, false
	}
	if _, err := govalidator.ValidateStruct(req); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"request_id", requestID, "error", err)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return req, false
	}
	return req, true
}

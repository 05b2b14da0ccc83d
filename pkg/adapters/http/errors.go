package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/waypoint/pkg/domain"
)

var errInvalidRequest = errors.New("invalid request")

// ErrorResponse is the JSON envelope of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// errorResponse maps an error returned by the service onto a status code and envelope.
func errorResponse(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: err.Error(), Retryable: domain.IsRetryable(err)}

	var (
		ve *domain.ValidationError
		ge *domain.TransitionGuardFailedError
		ae *domain.ActionDispatchFailedError
	)
	switch {
	case errors.Is(err, errInvalidRequest):
		resp.Code = "invalid_request"
		return http.StatusBadRequest, resp
	case errors.Is(err, ErrForbidden):
		resp.Code = "forbidden"
		return http.StatusForbidden, resp
	case errors.As(err, &ve):
		resp.Code = "validation_failed"
		resp.Details = ve.Violations
		return http.StatusUnprocessableEntity, resp
	case errors.As(err, &ge):
		resp.Code = "guard_failed"
		resp.Details = ge.Evaluation
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, domain.ErrTransitionNotFound):
		resp.Code = "transition_not_found"
		return http.StatusNotFound, resp
	case errors.Is(err, domain.ErrNotFound):
		resp.Code = "not_found"
		return http.StatusNotFound, resp
	case errors.Is(err, domain.ErrConcurrentModification):
		resp.Code = "concurrent_modification"
		return http.StatusConflict, resp
	case errors.Is(err, domain.ErrConfigNotActive):
		resp.Code = "config_not_active"
		return http.StatusConflict, resp
	case errors.Is(err, domain.ErrInvalidState):
		resp.Code = "invalid_state"
		return http.StatusConflict, resp
	case errors.Is(err, domain.ErrAlreadyExists):
		resp.Code = "already_exists"
		return http.StatusConflict, resp
	case errors.Is(err, domain.ErrConfigInUse):
		resp.Code = "config_in_use"
		return http.StatusConflict, resp
	case errors.As(err, &ae):
		resp.Code = "action_dispatch_failed"
		resp.Details = map[string]any{
			"action_id":   ae.ActionID,
			"action_type": ae.ActionType,
			"phase":       ae.Phase,
		}
		return http.StatusBadGateway, resp
	}
	resp.Code = "internal"
	resp.Error = "internal error"
	return http.StatusInternalServerError, resp
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := errorResponse(err)
	log := loggerFrom(r)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, r, status, resp)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		loggerFrom(r).Error("response encode failed", "path", r.URL.Path, "error", err)
	}
}

type loggerKey struct{}

func loggerFrom(r *http.Request) *slog.Logger {
	if l, ok := r.Context().Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

package rest

import (
	"errors"
	"net/http"

	"github.com/citypulse/event-service/internal/domain"
	appCtx "github.com/citypulse/event-service/internal/pkg/context"
	"github.com/citypulse/event-service/internal/transport/rest/response"
)

func handleErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		fail(w, r, http.StatusBadRequest, "request.invalid", err.Error(), nil)

	case errors.Is(err, domain.ErrUserNotFound):
		fail(w, r, http.StatusNotFound, "user.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrCategoryNotFound):
		fail(w, r, http.StatusNotFound, "category.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrEventNotFound):
		fail(w, r, http.StatusNotFound, "event.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrRequestNotFound):
		fail(w, r, http.StatusNotFound, "request.not_found", err.Error(), nil)

	case errors.Is(err, domain.ErrEventPublished):
		fail(w, r, http.StatusConflict, "event.frozen", err.Error(), nil)
	case errors.Is(err, domain.ErrEventNotPending):
		fail(w, r, http.StatusConflict, "event.not_pending", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidAction):
		fail(w, r, http.StatusConflict, "event.invalid_action", err.Error(), nil)

	case errors.Is(err, domain.ErrOwnEvent):
		fail(w, r, http.StatusConflict, "request.own_event", err.Error(), nil)
	case errors.Is(err, domain.ErrEventNotPublished):
		fail(w, r, http.StatusConflict, "request.event_not_published", err.Error(), nil)
	case errors.Is(err, domain.ErrLimitReached):
		fail(w, r, http.StatusConflict, "request.limit_reached", err.Error(), nil)
	case errors.Is(err, domain.ErrDuplicateRequest):
		fail(w, r, http.StatusConflict, "request.duplicate", err.Error(), nil)
	case errors.Is(err, domain.ErrModerationDisabled):
		fail(w, r, http.StatusConflict, "request.moderation_disabled", err.Error(), nil)

	case errors.Is(err, domain.ErrNotInitiator):
		fail(w, r, http.StatusForbidden, "auth.forbidden", err.Error(), nil)
	case errors.Is(err, domain.ErrNotRequester):
		fail(w, r, http.StatusForbidden, "auth.forbidden", err.Error(), nil)

	default:
		// Do not leak internals.
		fail(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	reqID := appCtx.GetRequestID(r.Context())
	if reqID == "" {
		reqID = "no-request-id"
	}
	response.Fail(w, status, code, message, meta, reqID)
}

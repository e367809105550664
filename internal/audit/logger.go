package audit

import (
	"context"

	"github.com/citypulse/event-service/internal/domain"
	appCtx "github.com/citypulse/event-service/internal/pkg/context"
	"github.com/rs/zerolog"
)

// Logger provides structured audit logging for business events
type Logger struct {
	log zerolog.Logger
}

// New creates a new audit logger
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// EventCreated logs a freshly submitted event.
func (l *Logger) EventCreated(ctx context.Context, eventID, initiatorID int64) {
	l.log.Info().
		Str("action", "event_created").
		Int64("event_id", eventID).
		Int64("initiator_id", initiatorID).
		Str("trace_id", appCtx.GetRequestID(ctx)).
		Msg("Event submitted for review")
}

// EventStateChanged logs a state machine transition.
func (l *Logger) EventStateChanged(ctx context.Context, eventID int64, from, to domain.EventState, actor string) {
	l.log.Info().
		Str("action", "event_state_changed").
		Int64("event_id", eventID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor", actor).
		Str("trace_id", appCtx.GetRequestID(ctx)).
		Msg("Event state changed")
}

// RequestAdmitted logs a new participation request and its initial status.
func (l *Logger) RequestAdmitted(ctx context.Context, requestID, eventID, requesterID int64, status domain.RequestStatus) {
	l.log.Info().
		Str("action", "request_admitted").
		Int64("request_id", requestID).
		Int64("event_id", eventID).
		Int64("requester_id", requesterID).
		Str("status", string(status)).
		Str("trace_id", appCtx.GetRequestID(ctx)).
		Msg("Participation request created")
}

// RequestCanceled logs a requester withdrawing their own request.
func (l *Logger) RequestCanceled(ctx context.Context, requestID, requesterID int64) {
	l.log.Info().
		Str("action", "request_canceled").
		Int64("request_id", requestID).
		Int64("requester_id", requesterID).
		Str("trace_id", appCtx.GetRequestID(ctx)).
		Msg("Participation request canceled")
}

// BatchModerated logs the outcome of a moderation batch.
func (l *Logger) BatchModerated(ctx context.Context, eventID, initiatorID int64, confirmed, rejected int) {
	l.log.Info().
		Str("action", "batch_moderated").
		Int64("event_id", eventID).
		Int64("initiator_id", initiatorID).
		Int("confirmed", confirmed).
		Int("rejected", rejected).
		Str("trace_id", appCtx.GetRequestID(ctx)).
		Msg("Participation requests moderated")
}

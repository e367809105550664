package postgres

import (
	"context"

	"github.com/citypulse/event-service/internal/domain"
)

// Moderate runs the capacity-constrained batch confirm/reject algorithm as a
// single transaction:
//
//  1. lock the event row,
//  2. verify the caller owns a moderated event,
//  3. read the confirmed count under the lock (whole batch fails if full),
//  4. load the batch's still-PENDING requests in ascending id order,
//  5. plan the partition (overflow cascades to rejection),
//  6. persist and queue outbox messages.
//
// Re-running a processed batch finds no PENDING rows and returns an empty
// result, not an error.
func (r *Repository) Moderate(ctx context.Context, traceID string, initiatorID, eventID int64, requestIDs []int64, target domain.RequestStatus) (*domain.ModerationResult, error) {
	if target != domain.RequestConfirmed && target != domain.RequestRejected {
		return nil, domain.ErrInvalidAction
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	event, err := lockEvent(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}
	if event.InitiatorID != initiatorID {
		return nil, domain.ErrNotInitiator
	}
	if !event.RequestModeration {
		return nil, domain.ErrModerationDisabled
	}

	confirmed, err := countConfirmedTx(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}
	vacancies := domain.Vacancies(event, confirmed)
	if event.ParticipantLimit > 0 && vacancies == 0 {
		return nil, domain.ErrLimitReached
	}

	// Only the batch's own PENDING requests for this event; ids that do not
	// match are silently dropped. Ascending id keeps slot assignment
	// deterministic.
	rows, err := tx.Query(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE id = ANY($1) AND event_id = $2 AND status = $3
		ORDER BY id ASC
		FOR UPDATE
	`, requestIDs, eventID, string(domain.RequestPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pending, err := collectRequests(rows)
	if err != nil {
		return nil, err
	}

	res, err := domain.PlanAdmission(pending, vacancies, target)
	if err != nil {
		return nil, err
	}

	for _, req := range res.Confirmed {
		if _, err := tx.Exec(ctx,
			`UPDATE requests SET status = $2 WHERE id = $1`,
			req.ID, string(domain.RequestConfirmed),
		); err != nil {
			return nil, err
		}
		insertOutbox(ctx, tx, traceID, "request.confirmed", requestMessage(&req))
	}
	for _, req := range res.Rejected {
		if _, err := tx.Exec(ctx,
			`UPDATE requests SET status = $2 WHERE id = $1`,
			req.ID, string(domain.RequestRejected),
		); err != nil {
			return nil, err
		}
		insertOutbox(ctx, tx, traceID, "request.rejected", requestMessage(&req))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/citypulse/event-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

const requestColumns = `id, event_id, requester_id, status, created`

func scanRequest(row pgx.Row) (*domain.ParticipationRequest, error) {
	var req domain.ParticipationRequest
	var status string
	err := row.Scan(&req.ID, &req.EventID, &req.RequesterID, &status, &req.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}
	req.Status = domain.RequestStatus(status)
	return &req, nil
}

// lockEvent loads the event row under FOR UPDATE; every admission decision
// for the event serializes behind this lock.
func lockEvent(ctx context.Context, tx pgx.Tx, eventID int64) (*domain.Event, error) {
	return scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID))
}

func countConfirmedTx(ctx context.Context, tx pgx.Tx, eventID int64) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM requests
		WHERE event_id = $1 AND status = $2
	`, eventID, string(domain.RequestConfirmed)).Scan(&n)
	return n, err
}

// Admit creates a participation request after the eligibility checks pass.
// The event row is locked first so the capacity check and the insert commit
// atomically with respect to concurrent admissions.
func (r *Repository) Admit(ctx context.Context, traceID string, requesterID, eventID int64) (*domain.ParticipationRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	event, err := lockEvent(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}

	// A canceled request does not block re-requesting.
	var dup bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM requests
			WHERE event_id = $1 AND requester_id = $2 AND status <> $3
		)
	`, eventID, requesterID, string(domain.RequestCanceled)).Scan(&dup)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, domain.ErrDuplicateRequest
	}

	if event.InitiatorID == requesterID {
		return nil, domain.ErrOwnEvent
	}
	if event.State != domain.EventPublished {
		return nil, domain.ErrEventNotPublished
	}

	if event.ParticipantLimit > 0 {
		confirmed, err := countConfirmedTx(ctx, tx, eventID)
		if err != nil {
			return nil, err
		}
		if confirmed >= event.ParticipantLimit {
			return nil, domain.ErrLimitReached
		}
	}

	status := domain.InitialRequestStatus(event)
	req, err := scanRequest(tx.QueryRow(ctx, `
		INSERT INTO requests (event_id, requester_id, status, created)
		VALUES ($1, $2, $3, NOW())
		RETURNING `+requestColumns,
		eventID, requesterID, string(status),
	))
	if err != nil {
		return nil, err
	}

	insertOutbox(ctx, tx, traceID, "request.created", requestMessage(req))

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

// Cancel sets the requester's own request to CANCELED from any prior status.
func (r *Repository) Cancel(ctx context.Context, traceID string, requesterID, requestID int64) (*domain.ParticipationRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	req, err := scanRequest(tx.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1 FOR UPDATE`, requestID))
	if err != nil {
		return nil, err
	}
	if req.RequesterID != requesterID {
		return nil, domain.ErrNotRequester
	}

	req, err = scanRequest(tx.QueryRow(ctx, `
		UPDATE requests SET status = $2 WHERE id = $1
		RETURNING `+requestColumns,
		requestID, string(domain.RequestCanceled),
	))
	if err != nil {
		return nil, err
	}

	insertOutbox(ctx, tx, traceID, "request.canceled", requestMessage(req))

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *Repository) CountConfirmed(ctx context.Context, eventID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM requests
		WHERE event_id = $1 AND status = $2
	`, eventID, string(domain.RequestConfirmed)).Scan(&n)
	return n, err
}

func (r *Repository) ListByRequester(ctx context.Context, requesterID int64) ([]domain.ParticipationRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE requester_id = $1
		ORDER BY id ASC
	`, requesterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (r *Repository) ListByEventInitiator(ctx context.Context, eventID, initiatorID int64) ([]domain.ParticipationRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.event_id, r.requester_id, r.status, r.created
		FROM requests r
		JOIN events e ON e.id = r.event_id
		WHERE r.event_id = $1 AND e.initiator = $2
		ORDER BY r.id ASC
	`, eventID, initiatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]domain.ParticipationRequest, error) {
	var out []domain.ParticipationRequest
	for rows.Next() {
		var req domain.ParticipationRequest
		var status string
		if err := rows.Scan(&req.ID, &req.EventID, &req.RequesterID, &status, &req.Created); err != nil {
			return nil, err
		}
		req.Status = domain.RequestStatus(status)
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func requestMessage(req *domain.ParticipationRequest) map[string]any {
	return map[string]any{
		"request_id":   req.ID,
		"event_id":     req.EventID,
		"requester_id": req.RequesterID,
		"status":       req.Status,
		"created":      req.Created.UTC().Format(time.RFC3339Nano),
	}
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/citypulse/event-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the event and request stores on a shared pgx pool.
//
// Deadlock policy: every transaction that touches per-event admission state
// locks the events row (FOR UPDATE) before reading the confirmed count or any
// requests rows for that event. This serializes Admit/Moderate/Update per
// event and is what keeps the confirmed count under the participant limit.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `
	id, initiator, category, title, annotation, description,
	event_date, lat, lon, paid, participant_limit, request_moderation,
	state, created_on, published_on`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	var state string
	err := row.Scan(
		&e.ID, &e.InitiatorID, &e.CategoryID, &e.Title, &e.Annotation, &e.Description,
		&e.EventDate, &e.Lat, &e.Lon, &e.Paid, &e.ParticipantLimit, &e.RequestModeration,
		&state, &e.CreatedOn, &e.PublishedOn,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, err
	}
	e.State = domain.EventState(state)
	return &e, nil
}

func (r *Repository) Create(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO events (
			initiator, category, title, annotation, description,
			event_date, lat, lon, paid, participant_limit, request_moderation,
			state, created_on, published_on
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NULL)
		RETURNING `+eventColumns,
		e.InitiatorID, e.CategoryID, e.Title, e.Annotation, e.Description,
		e.EventDate, e.Lat, e.Lon, e.Paid, e.ParticipantLimit, e.RequestModeration,
		string(e.State), e.CreatedOn,
	)
	return scanEvent(row)
}

// Update replaces the stored record. It runs in a transaction that locks the
// row first, re-checks that the state is still the one the caller read, and
// emits outbox messages when the state machine moved the event into PUBLISHED
// or CANCELED. The re-check keeps a concurrent publish from being overwritten
// by a writer holding a stale copy.
func (r *Repository) Update(ctx context.Context, e *domain.Event, prev domain.EventState) (*domain.Event, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prevState string
	err = tx.QueryRow(ctx, `SELECT state FROM events WHERE id = $1 FOR UPDATE`, e.ID).Scan(&prevState)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, err
	}
	if domain.EventState(prevState) != prev {
		if domain.EventState(prevState) == domain.EventPublished {
			return nil, domain.ErrEventPublished
		}
		return nil, domain.ErrEventNotPending
	}

	row := tx.QueryRow(ctx, `
		UPDATE events
		SET category = $2,
		    title = $3,
		    annotation = $4,
		    description = $5,
		    event_date = $6,
		    lat = $7,
		    lon = $8,
		    paid = $9,
		    participant_limit = $10,
		    request_moderation = $11,
		    state = $12,
		    published_on = $13
		WHERE id = $1
		RETURNING `+eventColumns,
		e.ID, e.CategoryID, e.Title, e.Annotation, e.Description,
		e.EventDate, e.Lat, e.Lon, e.Paid, e.ParticipantLimit, e.RequestModeration,
		string(e.State), e.PublishedOn,
	)
	updated, err := scanEvent(row)
	if err != nil {
		return nil, err
	}

	if prev := domain.EventState(prevState); prev != updated.State {
		switch updated.State {
		case domain.EventPublished:
			insertOutbox(ctx, tx, "", "event.published", eventMessage(updated))
		case domain.EventCanceled:
			insertOutbox(ctx, tx, "", "event.canceled", eventMessage(updated))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

func (r *Repository) GetByIDAndInitiator(ctx context.Context, id, initiatorID int64) (*domain.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 AND initiator = $2`, id, initiatorID))
}

func (r *Repository) GetPublishedByID(ctx context.Context, id int64) (*domain.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 AND state = $2`, id, string(domain.EventPublished)))
}

func eventMessage(e *domain.Event) map[string]any {
	return map[string]any{
		"event_id":          e.ID,
		"initiator_id":      e.InitiatorID,
		"title":             e.Title,
		"state":             e.State,
		"participant_limit": e.ParticipantLimit,
	}
}

// insertOutbox queues a message inside the caller's transaction; the outbox
// worker publishes it asynchronously.
func insertOutbox(ctx context.Context, tx pgx.Tx, traceID, routingKey string, payload map[string]any) {
	body, _ := json.Marshal(payload)
	_, _ = tx.Exec(ctx, `
		INSERT INTO outbox (message_id, trace_id, routing_key, payload, occurred_at, status)
		VALUES ($1, $2, $3, $4, NOW(), 'pending')
	`, uuid.New(), traceID, routingKey, body)
}

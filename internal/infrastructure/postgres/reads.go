package postgres

import (
	"context"
	"fmt"

	"github.com/citypulse/event-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

func clampSize(size int) int {
	if size <= 0 {
		return 10
	}
	if size > 100 {
		return 100
	}
	return size
}

func (r *Repository) ListByInitiator(ctx context.Context, initiatorID int64, from, size int) ([]domain.Event, error) {
	if from < 0 {
		from = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE initiator = $1
		ORDER BY event_date ASC, id ASC
		OFFSET $2 LIMIT $3
	`, initiatorID, from, clampSize(size))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListAdmin filters events for the admin surface. Empty filter slices mean
// "any"; unset range bounds leave the date open-ended.
func (r *Repository) ListAdmin(ctx context.Context, f domain.AdminEventFilter) ([]domain.Event, error) {
	where := "WHERE TRUE"
	args := []any{}
	argN := 1

	if len(f.InitiatorIDs) > 0 {
		where += fmt.Sprintf(" AND initiator = ANY($%d)", argN)
		args = append(args, f.InitiatorIDs)
		argN++
	}
	if len(f.States) > 0 {
		states := make([]string, len(f.States))
		for i, s := range f.States {
			states[i] = string(s)
		}
		where += fmt.Sprintf(" AND state = ANY($%d)", argN)
		args = append(args, states)
		argN++
	}
	if len(f.CategoryIDs) > 0 {
		where += fmt.Sprintf(" AND category = ANY($%d)", argN)
		args = append(args, f.CategoryIDs)
		argN++
	}
	if f.RangeStart != nil {
		where += fmt.Sprintf(" AND event_date >= $%d", argN)
		args = append(args, *f.RangeStart)
		argN++
	}
	if f.RangeEnd != nil {
		where += fmt.Sprintf(" AND event_date <= $%d", argN)
		args = append(args, *f.RangeEnd)
		argN++
	}

	from := f.From
	if from < 0 {
		from = 0
	}
	q := fmt.Sprintf(`
		SELECT %s FROM events
		%s
		ORDER BY event_date ASC, id ASC
		OFFSET %d LIMIT %d
	`, eventColumns, where, from, clampSize(f.Size))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]domain.Event, error) {
	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var state string
		if err := rows.Scan(
			&e.ID, &e.InitiatorID, &e.CategoryID, &e.Title, &e.Annotation, &e.Description,
			&e.EventDate, &e.Lat, &e.Lon, &e.Paid, &e.ParticipantLimit, &e.RequestModeration,
			&state, &e.CreatedOn, &e.PublishedOn,
		); err != nil {
			return nil, err
		}
		e.State = domain.EventState(state)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/citypulse/event-service/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPendingBatch(t *testing.T, pool *pgxpool.Pool, repo interface {
	Admit(ctx context.Context, traceID string, requesterID, eventID int64) (*domain.ParticipationRequest, error)
}, eventID int64, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		uid := seedUser(t, pool, fmt.Sprintf("joiner-%d-%d", eventID, i))
		req, err := repo.Admit(ctx, "seed", uid, eventID)
		require.NoError(t, err)
		require.Equal(t, domain.RequestPending, req.Status)
		ids = append(ids, req.ID)
	}
	return ids
}

func TestModerate_OverflowCascadesToRejection(t *testing.T) {
	repo, pool := setupRepo(t)
	ctx := context.Background()

	owner := seedUser(t, pool, "owner")
	cat := seedCategory(t, pool, "workshops")
	eventID := seedEvent(t, pool, seedEventOpts{
		initiator: owner, category: cat, state: domain.EventPublished, limit: 2, moderation: true,
	})

	ids := seedPendingBatch(t, pool, repo, eventID, 5)

	res, err := repo.Moderate(ctx, "t1", owner, eventID, ids, domain.RequestConfirmed)
	require.NoError(t, err)

	// two slots, ascending id order; the other three cascade to rejection
	require.Len(t, res.Confirmed, 2)
	require.Len(t, res.Rejected, 3)
	assert.Equal(t, ids[0], res.Confirmed[0].ID)
	assert.Equal(t, ids[1], res.Confirmed[1].ID)

	var confirmed int
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT count(*) FROM requests WHERE event_id=$1 AND status='CONFIRMED'", eventID).Scan(&confirmed))
	assert.Equal(t, 2, confirmed)
}

func TestModerate_RejectTargetsWholeBatch(t *testing.T) {
	repo, pool := setupRepo(t)
	ctx := context.Background()

	owner := seedUser(t, pool, "owner")
	cat := seedCategory(t, pool, "lectures")
	eventID := seedEvent(t, pool, seedEventOpts{
		initiator: owner, category: cat, state: domain.EventPublished, limit: 10, moderation: true,
	})

	ids := seedPendingBatch(t, pool, repo, eventID, 3)

	res, err := repo.Moderate(ctx, "t1", owner, eventID, ids, domain.RequestRejected)
	require.NoError(t, err)
	assert.Empty(t, res.Confirmed)
	assert.Len(t, res.Rejected, 3)
}

func TestModerate_GuardsAndIdempotence(t *testing.T) {
	repo, pool := setupRepo(t)
	ctx := context.Background()

	owner := seedUser(t, pool, "owner")
	stranger := seedUser(t, pool, "stranger")
	cat := seedCategory(t, pool, "markets")

	t.Run("non-initiator forbidden", func(t *testing.T) {
		eventID := seedEvent(t, pool, seedEventOpts{
			initiator: owner, category: cat, state: domain.EventPublished, limit: 5, moderation: true,
		})
		ids := seedPendingBatch(t, pool, repo, eventID, 1)

		_, err := repo.Moderate(ctx, "t1", stranger, eventID, ids, domain.RequestConfirmed)
		assert.ErrorIs(t, err, domain.ErrNotInitiator)
	})

	t.Run("moderation disabled", func(t *testing.T) {
		eventID := seedEvent(t, pool, seedEventOpts{
			initiator: owner, category: cat, state: domain.EventPublished, limit: 5, moderation: false,
		})
		_, err := repo.Moderate(ctx, "t2", owner, eventID, []int64{1}, domain.RequestConfirmed)
		assert.ErrorIs(t, err, domain.ErrModerationDisabled)
	})

	t.Run("full event fails the whole batch", func(t *testing.T) {
		eventID := seedEvent(t, pool, seedEventOpts{
			initiator: owner, category: cat, state: domain.EventPublished, limit: 1, moderation: true,
		})
		ids := seedPendingBatch(t, pool, repo, eventID, 2)

		res, err := repo.Moderate(ctx, "t3", owner, eventID, ids[:1], domain.RequestConfirmed)
		require.NoError(t, err)
		require.Len(t, res.Confirmed, 1)

		_, err = repo.Moderate(ctx, "t4", owner, eventID, ids[1:], domain.RequestConfirmed)
		assert.ErrorIs(t, err, domain.ErrLimitReached)
	})

	t.Run("re-running a processed batch is a no-op", func(t *testing.T) {
		eventID := seedEvent(t, pool, seedEventOpts{
			initiator: owner, category: cat, state: domain.EventPublished, limit: 5, moderation: true,
		})
		ids := seedPendingBatch(t, pool, repo, eventID, 2)

		first, err := repo.Moderate(ctx, "t5", owner, eventID, ids, domain.RequestConfirmed)
		require.NoError(t, err)
		require.Len(t, first.Confirmed, 2)

		second, err := repo.Moderate(ctx, "t6", owner, eventID, ids, domain.RequestConfirmed)
		require.NoError(t, err)
		assert.Empty(t, second.Confirmed)
		assert.Empty(t, second.Rejected)
	})

	t.Run("invalid target status", func(t *testing.T) {
		eventID := seedEvent(t, pool, seedEventOpts{
			initiator: owner, category: cat, state: domain.EventPublished, limit: 5, moderation: true,
		})
		_, err := repo.Moderate(ctx, "t7", owner, eventID, []int64{1}, domain.RequestCanceled)
		assert.ErrorIs(t, err, domain.ErrInvalidAction)
	})
}

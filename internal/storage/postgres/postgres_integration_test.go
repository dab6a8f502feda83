package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umbra-research/umbra-interface/internal/storage/postgres"
	"github.com/umbra-research/umbra-interface/internal/types"
)

func TestStore_SaveAndList(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := postgres.New(pool)
	require.NoError(t, store.EnsureSchema(ctx))
	_, _ = pool.Exec(ctx, "TRUNCATE submission_records")

	at := time.Now().UTC().Truncate(time.Millisecond)
	rec := types.SubmissionRecord{
		ReceiptID:   "rcpt-int-1",
		Direction:   types.DirectionSend,
		Cluster:     types.ClusterDevnet,
		Signature:   "SIG1",
		SubmittedAt: at,
		Tier:        types.TierSubmitted,
	}
	require.NoError(t, store.Save(ctx, rec))

	rec.Tier = types.TierConfirmed
	rec.TimedOut = true
	rec.Error = "confirmation timed out"
	require.NoError(t, store.Save(ctx, rec))

	require.NoError(t, store.Save(ctx, types.SubmissionRecord{
		ReceiptID:   "rcpt-int-0",
		Direction:   types.DirectionClaim,
		Cluster:     types.ClusterDevnet,
		Signature:   "SIGA",
		SubmittedAt: at.Add(-time.Minute),
		Tier:        types.TierFailed,
		Error:       "on-chain execution failed",
	}))

	got, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "rcpt-int-1", got[0].ReceiptID)
	assert.Equal(t, types.TierConfirmed, got[0].Tier)
	assert.True(t, got[0].TimedOut)
	assert.Equal(t, "confirmation timed out", got[0].Error)
	assert.True(t, at.Equal(got[0].SubmittedAt))

	assert.Equal(t, types.TierFailed, got[1].Tier)
	assert.Equal(t, types.DirectionClaim, got[1].Direction)
}

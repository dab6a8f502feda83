package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umbra-research/umbra-interface/internal/types"
)

func TestStore_SaveReplacesAndListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, types.SubmissionRecord{ReceiptID: "rcpt-1", Signature: "A", SubmittedAt: base, Tier: types.TierSubmitted}))
	require.NoError(t, s.Save(ctx, types.SubmissionRecord{ReceiptID: "rcpt-2", Signature: "B", SubmittedAt: base.Add(time.Minute), Tier: types.TierFailed}))
	require.NoError(t, s.Save(ctx, types.SubmissionRecord{ReceiptID: "rcpt-1", Signature: "A", SubmittedAt: base, Tier: types.TierFinalized}))

	got, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "rcpt-2", got[0].ReceiptID)
	assert.Equal(t, types.TierFailed, got[0].Tier, "failed records are kept")
	assert.Equal(t, types.TierFinalized, got[1].Tier)

	got, err = s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

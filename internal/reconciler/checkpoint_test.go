package reconciler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lootex/aggregatord/internal/opensea"
	"github.com/lootex/aggregatord/internal/store"
)

func openTestCheckpoints(t *testing.T) *Checkpoints {
	t.Helper()
	chk, err := OpenCheckpoints(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { chk.Close() })
	return chk
}

func TestCheckpointLastEvent(t *testing.T) {
	chk := openTestCheckpoints(t)

	_, ok := chk.LastEvent(137, "0xabc")
	assert.False(t, ok)

	t1 := time.Unix(1_700_000_000, 0)
	require.NoError(t, chk.SetLastEvent(137, "0xabc", t1))
	got, ok := chk.LastEvent(137, "0xabc")
	require.True(t, ok)
	assert.Equal(t, t1, got)

	// Older timestamps never move the checkpoint backwards.
	require.NoError(t, chk.SetLastEvent(137, "0xabc", t1.Add(-time.Hour)))
	got, _ = chk.LastEvent(137, "0xabc")
	assert.Equal(t, t1, got)

	t2 := t1.Add(time.Hour)
	require.NoError(t, chk.SetLastEvent(137, "0xabc", t2))
	got, _ = chk.LastEvent(137, "0xabc")
	assert.Equal(t, t2, got)

	// Keys are scoped per chain and collection.
	_, ok = chk.LastEvent(1, "0xabc")
	assert.False(t, ok)
}

func TestCheckpointStopFlags(t *testing.T) {
	chk := openTestCheckpoints(t)

	assert.False(t, chk.Stopped("job-1"))
	require.NoError(t, chk.RequestStop("job-1"))
	assert.True(t, chk.Stopped("job-1"))
	assert.False(t, chk.Stopped("job-2"))

	require.NoError(t, chk.ClearStop("job-1"))
	assert.False(t, chk.Stopped("job-1"))
}

func newCheckpointedReconciler(t *testing.T) (*Reconciler, *fakeAPI, *Checkpoints) {
	t.Helper()
	r, _, api := newTestReconciler(t)
	chk := openTestCheckpoints(t)
	r.chk = chk
	return r, api, chk
}

func TestBackfillResumesFromCheckpoint(t *testing.T) {
	r, api, chk := newCheckpointedReconciler(t)
	ctx := context.Background()
	token := strings.ToLower(testNFT.Hex())

	require.NoError(t, r.store.Watch().Upsert(ctx, &store.WatchedCollection{
		ChainID: testChainID, Token: token, Slug: "cool-cats", Selected: true,
	}))
	require.NoError(t, r.ReloadWatched(ctx))

	last := time.Unix(1_700_000_000, 0)
	require.NoError(t, chk.SetLastEvent(testChainID, token, last))

	now := last.Add(6 * time.Hour)
	r.now = func() time.Time { return now }

	require.NoError(t, r.Backfill(ctx))
	assert.Equal(t, last.Unix(), api.lastAfter.Unix())
	assert.Equal(t, now.Unix(), api.lastBefore.Unix())

	advanced, ok := chk.LastEvent(testChainID, token)
	require.True(t, ok)
	assert.Equal(t, now.Unix(), advanced.Unix())
}

func TestBackfillWindowWithoutCheckpoint(t *testing.T) {
	r, api, _ := newCheckpointedReconciler(t)
	ctx := context.Background()
	token := strings.ToLower(testNFT.Hex())

	require.NoError(t, r.store.Watch().Upsert(ctx, &store.WatchedCollection{
		ChainID: testChainID, Token: token, Slug: "cool-cats", Selected: true,
	}))
	require.NoError(t, r.ReloadWatched(ctx))

	now := time.Unix(1_700_100_000, 0)
	r.now = func() time.Time { return now }

	require.NoError(t, r.Backfill(ctx))
	assert.Equal(t, now.Add(-r.opts.BackfillWindow).Unix(), api.lastAfter.Unix())
}

func TestImportCollectionHonorsStopFlag(t *testing.T) {
	r, api, chk := newCheckpointedReconciler(t)
	ctx := context.Background()

	api.bestPages["cool-cats"] = [][]opensea.Listing{
		{*nativeListing(hashA, "42", "1000", farFuture())},
	}
	require.NoError(t, chk.RequestStop("job-stop"))

	jobID, err := r.ImportCollection(ctx, "cool-cats", "job-stop")
	require.NoError(t, err)
	assert.Equal(t, "job-stop", jobID)

	exists, err := r.store.Orders().Exists(ctx, testChainID, hashA)
	require.NoError(t, err)
	assert.False(t, exists)

	// The flag is cleared once the job exits; a rerun imports.
	assert.False(t, chk.Stopped("job-stop"))
	_, err = r.ImportCollection(ctx, "cool-cats", "")
	require.NoError(t, err)
	exists, err = r.store.Orders().Exists(ctx, testChainID, hashA)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSweepRepairs(t *testing.T) {
	r, api, _ := newCheckpointedReconciler(t)
	ctx := context.Background()
	token := strings.ToLower(testNFT.Hex())

	require.NoError(t, r.store.Watch().Upsert(ctx, &store.WatchedCollection{
		ChainID: testChainID, Token: token, Slug: "cool-cats", Selected: true,
	}))
	require.NoError(t, r.ReloadWatched(ctx))

	repair := &store.RepairLog{
		ChainID:  testChainID,
		Token:    token,
		FromTime: 1_700_000_000,
		ToTime:   1_700_003_600,
		Status:   "pending",
	}
	require.NoError(t, r.store.Watch().InsertRepair(ctx, repair))

	require.NoError(t, r.SweepRepairs(ctx))

	assert.Equal(t, repair.FromTime, api.lastAfter.Unix())
	assert.Equal(t, repair.ToTime, api.lastBefore.Unix())

	pending, err := r.store.Watch().PendingRepairs(ctx, testChainID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

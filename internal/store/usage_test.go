package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabinet/internal/common"
)

func TestUsageCounter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")

	t.Run("absent owner has no row", func(t *testing.T) {
		usage, err := s.GetUsage(ctx, alice)
		require.NoError(t, err)
		assert.Nil(t, usage)
	})

	t.Run("first delta seeds the row", func(t *testing.T) {
		require.NoError(t, s.UpsertUsageDelta(ctx, alice, 100, 1000))
		usage, err := s.GetUsage(ctx, alice)
		require.NoError(t, err)
		require.NotNil(t, usage)
		assert.Equal(t, int64(100), usage.UsedBytes)
		assert.Equal(t, int64(1000), usage.LimitBytes)
	})

	t.Run("deltas accumulate", func(t *testing.T) {
		require.NoError(t, s.UpsertUsageDelta(ctx, alice, 50, 1000))
		require.NoError(t, s.UpsertUsageDelta(ctx, alice, -30, 1000))
		usage, err := s.GetUsage(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, int64(120), usage.UsedBytes)
	})

	t.Run("counter clamps at zero", func(t *testing.T) {
		require.NoError(t, s.UpsertUsageDelta(ctx, alice, -100000, 1000))
		usage, err := s.GetUsage(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, int64(0), usage.UsedBytes)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, s.SetUsage(ctx, alice, 777, 2000))
		usage, err := s.GetUsage(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, int64(777), usage.UsedBytes)
		assert.Equal(t, int64(2000), usage.LimitBytes)
	})
}

func TestSumLiveFileBytes(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	alice := common.PersonalOwner("alice")
	bob := common.PersonalOwner("bob")

	folder := mkFolder(t, s, alice, "", "docs")
	mkFile(t, s, alice, folder.ID, "a.txt", "docs/a.txt", 100)
	trashed := mkFile(t, s, alice, "", "old.txt", "old.txt", 40)
	trashItems(t, s, time.Now(), trashed.ID)
	mkFile(t, s, bob, "", "other.txt", "other.txt", 999)

	total, err := s.SumLiveFileBytes(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total, "trashed bytes and other owners do not count")
}

func TestUsageHelpers(t *testing.T) {
	u := &Usage{UsedBytes: 250, LimitBytes: 1000}
	assert.Equal(t, int64(750), u.AvailableBytes())
	assert.InDelta(t, 25.0, u.UsagePercent(), 0.001)

	over := &Usage{UsedBytes: 1200, LimitBytes: 1000}
	assert.Equal(t, int64(0), over.AvailableBytes())
}

package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaStore_CountCalls(t *testing.T) {
	store := NewQuotaStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, store.RecordCall(ctx, "cap", "actor", base.Add(-90*time.Minute)))
	require.NoError(t, store.RecordCall(ctx, "cap", "actor", base.Add(-30*time.Minute)))
	require.NoError(t, store.RecordCall(ctx, "cap", "actor", base.Add(-time.Minute)))

	t.Run("only calls inside the window count", func(t *testing.T) {
		count, err := store.CountCalls(ctx, "cap", "actor", base, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("window boundary is inclusive", func(t *testing.T) {
		count, err := store.CountCalls(ctx, "cap", "actor", base.Add(-30*time.Minute), time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("calls after asOf do not count", func(t *testing.T) {
		count, err := store.CountCalls(ctx, "cap", "actor", base.Add(-45*time.Minute), time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("keys are capability plus actor", func(t *testing.T) {
		count, err := store.CountCalls(ctx, "cap", "other-actor", base, time.Hour)
		require.NoError(t, err)
		assert.Zero(t, count)

		count, err = store.CountCalls(ctx, "other-cap", "actor", base, time.Hour)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestQuotaStore_OldestCall(t *testing.T) {
	store := NewQuotaStore()
	ctx := context.Background()
	base := time.Now()

	t.Run("empty window", func(t *testing.T) {
		_, found, err := store.OldestCall(ctx, "cap", "actor", base, time.Hour)
		require.NoError(t, err)
		assert.False(t, found)
	})

	require.NoError(t, store.RecordCall(ctx, "cap", "actor", base.Add(-50*time.Minute)))
	require.NoError(t, store.RecordCall(ctx, "cap", "actor", base.Add(-10*time.Minute)))
	require.NoError(t, store.RecordCall(ctx, "cap", "actor", base.Add(-2*time.Hour)))

	t.Run("oldest inside the window", func(t *testing.T) {
		oldest, found, err := store.OldestCall(ctx, "cap", "actor", base, time.Hour)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, base.Add(-50*time.Minute), oldest)
	})
}

func TestQuotaStore_TryRecordCall(t *testing.T) {
	store := NewQuotaStore()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		count, recorded, err := store.TryRecordCall(ctx, "cap", "actor", now, time.Hour, 3)
		require.NoError(t, err)
		assert.True(t, recorded)
		assert.Equal(t, i, count)
	}

	count, recorded, err := store.TryRecordCall(ctx, "cap", "actor", now, time.Hour, 3)
	require.NoError(t, err)
	assert.False(t, recorded)
	assert.Equal(t, 3, count)

	// Denied attempts leave the window untouched.
	total, err := store.CountCalls(ctx, "cap", "actor", now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestQuotaStore_TryRecordCall_ZeroLimit(t *testing.T) {
	store := NewQuotaStore()

	count, recorded, err := store.TryRecordCall(context.Background(), "cap", "actor", time.Now(), time.Hour, 0)
	require.NoError(t, err)
	assert.False(t, recorded)
	assert.Zero(t, count)
}

func TestQuotaStore_TryRecordCall_Concurrent(t *testing.T) {
	store := NewQuotaStore()
	ctx := context.Background()
	now := time.Now()

	const limit = 5
	const callers = 50

	var wg sync.WaitGroup
	results := make(chan bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, recorded, err := store.TryRecordCall(ctx, "cap", "actor", now, time.Hour, limit)
			require.NoError(t, err)
			results <- recorded
		}()
	}
	wg.Wait()
	close(results)

	recordedCount := 0
	for ok := range results {
		if ok {
			recordedCount++
		}
	}
	assert.Equal(t, limit, recordedCount)

	count, err := store.CountCalls(ctx, "cap", "actor", now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, limit, count)
}

package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glazeworks/actiongate/models"
	"github.com/glazeworks/actiongate/repositories"
	"github.com/glazeworks/actiongate/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var _ repositories.EventStore = (*AsyncRecorder)(nil)

func TestAsyncRecorder_Lifecycle(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := memory.NewEventStore()
	recorder := NewAsyncRecorder(store, logger, DefaultConfig())

	t.Run("enqueue before start fails", func(t *testing.T) {
		err := recorder.Enqueue(context.Background(), models.NewAuditEvent("cap", models.AuditOutcomeExecuted, time.Now()))
		require.Error(t, err)
	})

	require.NoError(t, recorder.Start())

	t.Run("double start fails", func(t *testing.T) {
		require.Error(t, recorder.Start())
	})

	const n = 25
	for i := 0; i < n; i++ {
		err := recorder.Enqueue(context.Background(), models.NewAuditEvent("firestore.batch.close", models.AuditOutcomeExecuted, time.Now()))
		require.NoError(t, err)
	}

	// Stop drains every queued event before returning.
	require.NoError(t, recorder.Stop(5*time.Second))
	assert.Equal(t, n, store.Len())
}

func TestAsyncRecorder_StopDuringEnqueue(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := memory.NewEventStore()
	recorder := NewAsyncRecorder(store, logger, Config{BufferSize: 1, WorkerCount: 1})
	require.NoError(t, recorder.Start())

	// Hammer Enqueue from several goroutines while Stop runs. Every call must
	// either queue the event or return an error; a send on the closed channel
	// would panic and fail the run.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = recorder.Enqueue(context.Background(), models.NewAuditEvent("firestore.batch.close", models.AuditOutcomeExecuted, time.Now()))
			}
		}()
	}

	time.Sleep(time.Millisecond)
	require.NoError(t, recorder.Stop(5*time.Second))
	wg.Wait()

	t.Run("enqueue after stop fails", func(t *testing.T) {
		err := recorder.Enqueue(context.Background(), models.NewAuditEvent("cap", models.AuditOutcomeExecuted, time.Now()))
		require.Error(t, err)
	})

	t.Run("restart after stop fails", func(t *testing.T) {
		require.Error(t, recorder.Start())
	})
}

func TestAsyncRecorder_AsEventStore(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := memory.NewEventStore()
	recorder := NewAsyncRecorder(store, logger, DefaultConfig())
	require.NoError(t, recorder.Start())

	// A synchronous Recorder writing through the async pipeline lands events
	// in the backing store, and reads pass through to it.
	front := NewRecorder(recorder, logger)
	actor := models.ActorContext{ActorID: "agent-kiln", OwnerUID: "owner-1"}
	err := front.AppendDenialAudit(context.Background(), actor, "firestore.batch.close", nil,
		models.Deny(models.ReasonRateLimited))
	require.NoError(t, err)

	require.NoError(t, recorder.Stop(5*time.Second))
	assert.Equal(t, 1, store.Len())

	events, err := recorder.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "capability.firestore.batch.close.failed", events[0].Action)
}

func TestAsyncRecorder_StopWithoutStart(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	recorder := NewAsyncRecorder(memory.NewEventStore(), logger, DefaultConfig())

	require.Error(t, recorder.Stop(time.Second))
}

func TestAsyncRecorder_GetStats(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	recorder := NewAsyncRecorder(memory.NewEventStore(), logger, Config{BufferSize: 16, WorkerCount: 2})

	stats := recorder.GetStats()
	assert.Equal(t, 16, stats.BufferSize)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.False(t, stats.Started)

	require.NoError(t, recorder.Start())
	defer func() { _ = recorder.Stop(time.Second) }()

	stats = recorder.GetStats()
	assert.True(t, stats.Started)
}

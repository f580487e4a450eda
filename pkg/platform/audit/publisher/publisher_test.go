package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "arsenal/pkg/platform/audit"
	"arsenal/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{Subject: "SN-AAA", Action: audit.EventSerialBound.String()})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "SN-AAA")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventSerialBound.String(), events[0].Action)
	assert.NotEmpty(t, events[0].ID)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "g1", Action: audit.EventStageAdvanced.String()}))
	}
	pub.Close()

	events, err := store.ListBySubject(context.Background(), "g1")
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFullNeverBlocks(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{Subject: "g1", Action: audit.EventQuotaAdmitted.String()})
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_Timestamps(t *testing.T) {
	t.Run("sets missing timestamp", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := NewPublisher(store)

		before := time.Now()
		require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "r1", Action: audit.EventReservationCreated.String()}))
		after := time.Now()

		events, err := pub.List(context.Background(), "r1")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.False(t, events[0].Timestamp.Before(before))
		assert.False(t, events[0].Timestamp.After(after))
	})

	t.Run("preserves existing timestamp", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := NewPublisher(store)
		custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

		require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "r1", Action: audit.EventReservationCreated.String(), Timestamp: custom}))

		events, err := pub.List(context.Background(), "r1")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, custom, events[0].Timestamp)
	})
}

func TestPublisher_CancelledContextInAsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pub.Emit(ctx, audit.Event{Subject: "x", Action: audit.EventSerialLoaded.String()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublisher_OrderPreservedPerSubject(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	actions := []audit.AuditEvent{audit.EventReservationCreated, audit.EventReservationConfirmed, audit.EventReservationCancelled}
	for _, a := range actions {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "r1", Action: a.String()}))
	}
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "r2", Action: audit.EventReservationCreated.String()}))

	result, err := pub.List(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, result, 3)
	for i, a := range actions {
		assert.Equal(t, a.String(), result[i].Action)
	}
}

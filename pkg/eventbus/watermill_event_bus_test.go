package eventbus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripline/dripline/pkg/channels/gochannel"
	"github.com/dripline/dripline/pkg/eventbus"
	"github.com/dripline/dripline/pkg/events"
)

func setupTestBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	t.Parallel()

	bus := setupTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		received []*events.AutomationSaved
	)

	err := bus.Handle(events.AutomationSavedEvent, func(_ context.Context, event any) error {
		saved, ok := event.(*events.AutomationSaved)
		require.True(t, ok)

		mu.Lock()
		received = append(received, saved)
		mu.Unlock()

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	err = bus.Publish(ctx, "auto-1", events.AutomationSaved{
		BaseEvent: events.BaseEvent{
			ID:           bus.GenerateID(),
			Type:         events.AutomationSavedEvent,
			Timestamp:    time.Now(),
			AutomationID: "auto-1",
		},
		Slug:     "onboarding",
		IsActive: true,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, "auto-1", received[0].AutomationID)
	assert.Equal(t, "onboarding", received[0].Slug)
	assert.True(t, received[0].IsActive)
}

func TestWatermillEventBus_UnhandledTypesAreAcked(t *testing.T) {
	t.Parallel()

	bus := setupTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		deleted int
	)

	err := bus.Handle(events.AutomationDeletedEvent, func(_ context.Context, _ any) error {
		mu.Lock()
		deleted++
		mu.Unlock()

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for saved events: they are acked and skipped.
	require.NoError(t, bus.Publish(ctx, "auto-1", events.AutomationSaved{
		BaseEvent: events.BaseEvent{AutomationID: "auto-1"},
	}))
	require.NoError(t, bus.Publish(ctx, "auto-1", events.AutomationDeleted{
		BaseEvent: events.BaseEvent{AutomationID: "auto-1"},
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return deleted == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	t.Parallel()

	bus := setupTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

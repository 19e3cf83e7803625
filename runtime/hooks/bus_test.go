package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribersInRegistrationOrder(t *testing.T) {
	bus := NewBus()
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		_, err := bus.Register(SubscriberFunc(func(ctx context.Context, event Event) error {
			order = append(order, i)
			return nil
		}))
		require.NoError(t, err)
	}

	require.NoError(t, bus.Publish(context.Background(), Thought{Content: "hi"}))
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPublishStopsAtFirstSubscriberError(t *testing.T) {
	bus := NewBus()
	var secondCalled bool
	boom := errors.New("boom")

	_, err := bus.Register(SubscriberFunc(func(ctx context.Context, event Event) error {
		return boom
	}))
	require.NoError(t, err)
	_, err = bus.Register(SubscriberFunc(func(ctx context.Context, event Event) error {
		secondCalled = true
		return nil
	}))
	require.NoError(t, err)

	err = bus.Publish(context.Background(), Thought{Content: "hi"})
	require.ErrorIs(t, err, boom)
	require.False(t, secondCalled)
}

func TestRegisterRejectsNilSubscriber(t *testing.T) {
	bus := NewBus()
	_, err := bus.Register(nil)
	require.Error(t, err)
}

func TestSubscriptionCloseUnregisters(t *testing.T) {
	bus := NewBus()
	var calls int
	sub, err := bus.Register(SubscriberFunc(func(ctx context.Context, event Event) error {
		calls++
		return nil
	}))
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Thought{Content: "one"}))
	require.NoError(t, sub.Close())
	require.NoError(t, bus.Publish(context.Background(), Thought{Content: "two"}))

	require.Equal(t, 1, calls)
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Register(SubscriberFunc(func(ctx context.Context, event Event) error { return nil }))
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
}

func TestEventTypeAndRunIDAccessors(t *testing.T) {
	ev := ActionComplete{Base: Base{RunIDValue: "run-1"}, ID: "a1", Success: true}
	require.Equal(t, EventActionComplete, ev.Type())
	require.Equal(t, "run-1", ev.RunID())
}

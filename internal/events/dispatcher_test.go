package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatcher_PublishSubscribe(t *testing.T) {
	t.Parallel()

	d := NewInMemoryDispatcher()
	var got []Event
	d.Subscribe(EventSessionChanged, func(_ context.Context, e Event) error {
		got = append(got, e)
		return errors.New("listener failure is ignored")
	})
	d.Subscribe(EventSessionChanged, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventSessionChanged, Scope: "v1"}))
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventReadinessChanged}))

	require.Len(t, got, 2)
	require.Equal(t, "v1", got[0].Scope)
	require.False(t, got[0].Timestamp.IsZero())
}

func TestPublish_NilDispatcher(t *testing.T) {
	t.Parallel()
	require.NotPanics(t, func() { Publish(nil, "", EventExchangeSettled, nil) })
}

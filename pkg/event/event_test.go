package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pollhub/pkg/data"
)

func testEvent(id string, typ Type) Event {
	return Event{
		Type:      typ,
		Poll:      &data.Poll{ID: id, Title: "Board meeting", Owner: "alice"},
		ActorID:   "alice",
		Timestamp: time.Unix(1_700_000_000, 0),
	}
}

func TestBus(t *testing.T) {
	ctx := context.Background()

	t.Run("FansOutToAllSubscribers", func(t *testing.T) {
		bus := NewBus()
		first := bus.Subscribe(1)
		second := bus.Subscribe(1)

		require.NoError(t, bus.Publish(ctx, testEvent("p1", PollCreated)))

		for _, ch := range []<-chan Event{first, second} {
			select {
			case ev := <-ch:
				assert.Equal(t, PollCreated, ev.Type)
				assert.Equal(t, "p1", ev.Poll.ID)
			default:
				t.Fatal("subscriber did not receive the event")
			}
		}
	})

	t.Run("DropsWhenSubscriberIsFull", func(t *testing.T) {
		bus := NewBus()
		ch := bus.Subscribe(1)

		require.NoError(t, bus.Publish(ctx, testEvent("p1", PollCreated)))
		require.NoError(t, bus.Publish(ctx, testEvent("p2", PollUpdated)))

		ev := <-ch
		assert.Equal(t, "p1", ev.Poll.ID)
		select {
		case extra := <-ch:
			t.Fatalf("expected overflow event to be dropped, got %s", extra.Poll.ID)
		default:
		}
	})

	t.Run("PublishWithoutSubscribers", func(t *testing.T) {
		bus := NewBus()
		assert.NoError(t, bus.Publish(ctx, testEvent("p1", PollDeleted)))
	})

	t.Run("CloseEndsSubscribers", func(t *testing.T) {
		bus := NewBus()
		ch := bus.Subscribe(1)

		require.NoError(t, bus.Publish(ctx, testEvent("p1", PollCreated)))
		bus.Close()

		// buffered event still delivered, then the channel ends
		ev, ok := <-ch
		require.True(t, ok)
		assert.Equal(t, "p1", ev.Poll.ID)
		_, ok = <-ch
		assert.False(t, ok, "channel must be closed after Close")

		// a closed bus accepts publishes as no-ops and hands out
		// closed channels
		assert.NoError(t, bus.Publish(ctx, testEvent("p2", PollUpdated)))
		_, ok = <-bus.Subscribe(1)
		assert.False(t, ok)
	})
}

func TestLogPublisher(t *testing.T) {
	pub := NewLogPublisher(zaptest.NewLogger(t))
	assert.NoError(t, pub.Publish(context.Background(), testEvent("p1", PollClosed)))
}

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mucks/proofmarket/internal/domain"
)

func TestPublishFansOut(t *testing.T) {
	require := require.New(t)
	b := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := b.Subscribe(ctx)
	require.NoError(err)
	second, err := b.Subscribe(ctx)
	require.NoError(err)

	ev := domain.Event{Type: domain.EventMarketCreated, MarketID: 1, At: time.Now()}
	require.NoError(b.Publish(ctx, ev))

	for _, ch := range []<-chan domain.Event{first, second} {
		select {
		case got := <-ch:
			require.Equal(ev.Type, got.Type)
			require.Equal(ev.MarketID, got.MarketID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestSubscribeChannelClosesOnCancel(t *testing.T) {
	require := require.New(t)
	b := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := b.Subscribe(ctx)
	require.NoError(err)
	cancel()

	select {
	case _, open := <-ch:
		require.False(open)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// Publishing after the subscriber is gone is harmless.
	require.NoError(b.Publish(context.Background(), domain.Event{Type: domain.EventClaimed}))
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	require := require.New(t)
	b := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx)
	require.NoError(err)

	// Nobody drains ch; publishing past the buffer must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			_ = b.Publish(ctx, domain.Event{Type: domain.EventBetPlaced, MarketID: int64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	// The buffer holds the first events; the rest were dropped.
	got := 0
	for range len(ch) {
		<-ch
		got++
	}
	require.Equal(subscriberBuffer, got)
}

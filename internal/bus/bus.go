// Package bus provides the in-process event bus used when no Redis backend
// is configured. Events fan out to every subscriber; a slow subscriber drops
// events rather than blocking the publisher.
package bus

import (
	"context"
	"sync"

	"github.com/mucks/proofmarket/internal/domain"
)

// subscriberBuffer is the per-subscriber channel depth.
const subscriberBuffer = 128

// Memory is an in-process implementation of domain.EventBus.
type Memory struct {
	mu   sync.Mutex
	subs map[chan domain.Event]struct{}
}

// NewMemory creates an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{subs: make(map[chan domain.Event]struct{})}
}

// Publish delivers ev to every current subscriber without blocking.
func (b *Memory) Publish(ctx context.Context, ev domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is not keeping up; drop rather than block the
			// publishing operation.
		}
	}
	return nil
}

// Subscribe registers a new subscriber. The returned channel is closed when
// ctx is cancelled.
func (b *Memory) Subscribe(ctx context.Context) (<-chan domain.Event, error) {
	ch := make(chan domain.Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// Compile-time interface check.
var _ domain.EventBus = (*Memory)(nil)

package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/livequestions/ama-api/internal/core/domain"
	"github.com/livequestions/ama-api/internal/core/ports"
)

const channelBuffer = 256

var (
	_ ports.ChangeFeed     = (*Broadcaster)(nil)
	_ ports.EventPublisher = (*Broadcaster)(nil)
)

// Broadcaster fans change events out to every subscriber. Publish never
// blocks: a subscriber whose buffer is full is dropped and its channel
// closed, which tells it to re-fetch and subscribe again.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan domain.ChangeEvent
	nextID int
	buffer int
	closed bool
	log    zerolog.Logger
}

// NewBroadcaster creates a Broadcaster with per-subscriber buffers of the
// given size. If buffer <= 0, channelBuffer is used.
func NewBroadcaster(buffer int, log zerolog.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = channelBuffer
	}
	return &Broadcaster{
		subs:   make(map[int]chan domain.ChangeEvent),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a new subscriber. The subscription ends when ctx is
// cancelled, the returned func is called, or the broadcaster is closed.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan domain.ChangeEvent, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}, nil
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	unsubscribe := func() { once.Do(func() { b.drop(id) }) }
	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			unsubscribe()
		}()
	}
	return ch, unsubscribe, nil
}

// Publish delivers ev to every current subscriber. It never fails.
func (b *Broadcaster) Publish(_ context.Context, ev domain.ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.Warn().Int("subscriber", id).Msg("subscriber lagging, dropping subscription")
			delete(b.subs, id)
			close(ch)
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Later Subscribe calls get a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Broadcaster) drop(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

package stream

import (
	"context"
	"sync"

	"pokeswap.org/internal/events"
)

// Stream fan-outs trade events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	ch     chan events.TradeEvent
	userID int64
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for the events involving userID, or for
// every event when userID is 0. The channel is closed when ctx ends.
func (s *Stream) Subscribe(ctx context.Context, userID int64) <-chan events.TradeEvent {
	ch := make(chan events.TradeEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{ch: ch, userID: userID}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Subscribers returns the number of active subscribers.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Publish fan-outs the event to matching subscribers. It never blocks.
func (s *Stream) Publish(_ context.Context, evt events.TradeEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.userID != 0 && !evt.Involves(sub.userID) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// slow subscriber, drop
		}
	}
	return nil
}

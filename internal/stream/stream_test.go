package stream

import (
	"context"
	"testing"
	"time"

	"pokeswap.org/internal/events"
)

func TestPublishFiltersByUser(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine := s.Subscribe(ctx, 7)
	all := s.Subscribe(ctx, 0)

	_ = s.Publish(ctx, events.TradeEvent{TradeID: 1, SenderID: 1, ReceiverID: 2})
	_ = s.Publish(ctx, events.TradeEvent{TradeID: 2, SenderID: 7, ReceiverID: 2})

	select {
	case evt := <-mine:
		if evt.TradeID != 2 {
			t.Fatalf("unexpected event for user 7: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	if got := len(all); got != 2 {
		t.Fatalf("expected 2 buffered events, got %d", got)
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx, 0)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	if n := s.Subscribers(); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

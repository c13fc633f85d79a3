package events

import (
	"context"
	"time"

	"pokeswap.org/internal/obs"
	"pokeswap.org/internal/trade"
)

// Kinds of trade events.
const (
	TradeCreated  = "trade.created"
	TradeAccepted = "trade.accepted"
	TradeRefused  = "trade.refused"
)

// TradeEvent is published whenever a trade is created or settled.
type TradeEvent struct {
	Type              string    `json:"type"`
	TradeID           int64     `json:"tradeId"`
	SenderID          int64     `json:"senderId"`
	ReceiverID        int64     `json:"receiverId"`
	Status            string    `json:"status"`
	OfferedPokemons   []int64   `json:"offeredPokemons"`
	RequestedPokemons []int64   `json:"requestedPokemons"`
	Timestamp         time.Time `json:"timestamp"`
}

// Involves reports whether the user is a party of the trade.
func (e TradeEvent) Involves(userID int64) bool {
	return e.SenderID == userID || e.ReceiverID == userID
}

// FromTrade builds the event describing t's current state.
func FromTrade(t trade.Trade, now time.Time) TradeEvent {
	kind := TradeCreated
	switch t.Status {
	case trade.StatusAccepted:
		kind = TradeAccepted
	case trade.StatusRefused:
		kind = TradeRefused
	}
	return TradeEvent{
		Type:              kind,
		TradeID:           t.ID,
		SenderID:          t.SenderID,
		ReceiverID:        t.ReceiverID,
		Status:            string(t.Status),
		OfferedPokemons:   t.OfferedPokemons,
		RequestedPokemons: t.RequestedPokemons,
		Timestamp:         now.UTC(),
	}
}

// Publisher delivers trade events.
type Publisher interface {
	Publish(ctx context.Context, evt TradeEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, TradeEvent) error { return nil }

// Fanout publishes to every publisher. Failures are logged and do not stop
// delivery to the others; the first error is returned.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt TradeEvent) error {
	var first error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			obs.Logger().Warn().Err(err).Str("event", evt.Type).Int64("trade_id", evt.TradeID).Msg("publish trade event")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

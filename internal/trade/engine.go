package trade

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"pokeswap.org/internal/obs"
)

// Engine creates and settles trades.
type Engine struct {
	store Store
}

// NewEngine constructs Engine.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// CreateTrade validates a proposal and stores it as pending. Items stay with
// their owners until the receiver accepts.
func (e *Engine) CreateTrade(ctx context.Context, p Proposal) (Trade, error) {
	if err := validateProposal(p); err != nil {
		return Trade{}, err
	}
	for _, id := range []int64{p.SenderID, p.ReceiverID} {
		ok, err := e.store.UserExists(ctx, id)
		if err != nil {
			return Trade{}, err
		}
		if !ok {
			return Trade{}, fmt.Errorf("%w: %d", ErrUserNotFound, id)
		}
	}
	if err := e.checkOwned(ctx, p.SenderID, p.Offered); err != nil {
		return Trade{}, err
	}
	if err := e.checkOwned(ctx, p.ReceiverID, p.Requested); err != nil {
		return Trade{}, err
	}
	return e.store.CreateTrade(ctx, Trade{
		SenderID:          p.SenderID,
		ReceiverID:        p.ReceiverID,
		OfferedPokemons:   sortedCopy(p.Offered),
		RequestedPokemons: sortedCopy(p.Requested),
		Status:            StatusPending,
	})
}

// GetTrade returns a trade the user is a party of.
func (e *Engine) GetTrade(ctx context.Context, userID, tradeID int64) (Trade, error) {
	t, err := e.store.FindTradeByID(ctx, tradeID)
	if err != nil {
		return Trade{}, err
	}
	if !t.Involves(userID) {
		return Trade{}, ErrNotFound
	}
	return t, nil
}

// ListTrades returns the trades a user sent or received.
func (e *Engine) ListTrades(ctx context.Context, userID int64) ([]Trade, error) {
	return e.store.ListTradesForUser(ctx, userID)
}

// SettleTrade applies action to a pending trade. On accept the swap and the
// status change commit together; if either fails the trade stays pending and
// no item changes owner.
func (e *Engine) SettleTrade(ctx context.Context, tradeID int64, actor Actor, action string) (Trade, error) {
	t, err := e.settle(ctx, tradeID, actor, action)
	label := "invalid"
	if act, perr := ParseAction(action); perr == nil {
		label = string(act)
	}
	obs.ObserveSettlement(label, settlementResult(err))
	return t, err
}

func (e *Engine) settle(ctx context.Context, tradeID int64, actor Actor, action string) (Trade, error) {
	t, err := e.store.FindTradeByID(ctx, tradeID)
	if err != nil {
		return Trade{}, err
	}
	if !actor.AllRight && actor.UserID != t.ReceiverID {
		return Trade{}, ErrNotReceiver
	}
	if t.Status != StatusPending {
		return Trade{}, ErrAlreadySettled
	}
	act, err := ParseAction(action)
	if err != nil {
		return Trade{}, err
	}
	next, err := Transition(t.Status, act)
	if err != nil {
		return Trade{}, err
	}

	if act == ActionRefuse {
		return e.store.UpdateTradeStatus(ctx, t.ID, StatusPending, next)
	}

	var settled Trade
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.FindTradeForUpdate(ctx, t.ID)
		if err != nil {
			return err
		}
		if locked.Status != StatusPending {
			return ErrAlreadySettled
		}
		if err := PerformTrade(ctx, tx, locked); err != nil {
			return err
		}
		settled, err = tx.UpdateTradeStatus(ctx, locked.ID, StatusPending, next)
		return err
	})
	if err != nil {
		return Trade{}, err
	}
	return settled, nil
}

// PerformTrade swaps ownership of the trade's items inside tx. Current
// ownership is re-read under lock; if any offered item is no longer owned by
// the sender, or any requested item by the receiver, nothing is changed.
func PerformTrade(ctx context.Context, tx Tx, t Trade) error {
	// a deleted party took its pokemons with it
	if t.SenderID <= 0 || t.ReceiverID <= 0 {
		return ErrItemsNotOwned
	}
	all := make([]int64, 0, len(t.OfferedPokemons)+len(t.RequestedPokemons))
	all = append(all, t.OfferedPokemons...)
	all = append(all, t.RequestedPokemons...)
	items, err := tx.LockItems(ctx, uniqueSorted(all))
	if err != nil {
		return err
	}
	owners := make(map[int64]int64, len(items))
	for _, it := range items {
		owners[it.ID] = it.OwnerID
	}
	if !ownedBy(owners, t.SenderID, t.OfferedPokemons) || !ownedBy(owners, t.ReceiverID, t.RequestedPokemons) {
		return ErrItemsNotOwned
	}

	for _, id := range t.OfferedPokemons {
		if err := tx.ReassignItemOwner(ctx, id, t.SenderID, t.ReceiverID); err != nil {
			return err
		}
	}
	for _, id := range t.RequestedPokemons {
		if err := tx.ReassignItemOwner(ctx, id, t.ReceiverID, t.SenderID); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) checkOwned(ctx context.Context, ownerID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	items, err := e.store.FindItemsByOwnerAndIDs(ctx, ownerID, ids)
	if err != nil {
		return err
	}
	if len(items) != len(ids) {
		return ErrItemsNotOwned
	}
	return nil
}

func validateProposal(p Proposal) error {
	if p.SenderID <= 0 || p.ReceiverID <= 0 {
		return fmt.Errorf("%w: sender and receiver are required", ErrInvalidInput)
	}
	if p.SenderID == p.ReceiverID {
		return fmt.Errorf("%w: cannot trade with yourself", ErrInvalidInput)
	}
	if len(p.Offered)+len(p.Requested) == 0 {
		return fmt.Errorf("%w: a trade must include at least one pokemon", ErrInvalidInput)
	}
	seen := make(map[int64]string, len(p.Offered)+len(p.Requested))
	for _, side := range []struct {
		name string
		ids  []int64
	}{{"offeredPokemons", p.Offered}, {"requestedPokemons", p.Requested}} {
		for _, id := range side.ids {
			if id <= 0 {
				return fmt.Errorf("%w: invalid pokemon id %d", ErrInvalidInput, id)
			}
			if prev, ok := seen[id]; ok {
				if prev == side.name {
					return fmt.Errorf("%w: pokemon %d listed twice in %s", ErrInvalidInput, id, side.name)
				}
				return fmt.Errorf("%w: pokemon %d is both offered and requested", ErrInvalidInput, id)
			}
			seen[id] = side.name
		}
	}
	return nil
}

func ownedBy(owners map[int64]int64, ownerID int64, ids []int64) bool {
	for _, id := range ids {
		if got, ok := owners[id]; !ok || got != ownerID {
			return false
		}
	}
	return true
}

func settlementResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadySettled):
		return "already_settled"
	case errors.Is(err, ErrItemsNotOwned):
		return "not_owned"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	}
	return "error"
}

func sortedCopy(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func uniqueSorted(ids []int64) []int64 {
	out := sortedCopy(ids)
	if len(out) < 2 {
		return out
	}
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

package memory

import (
	"context"
	"sort"

	"pokeswap.org/internal/trade"
)

func (s *Store) UserExists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok, nil
}

func (s *Store) FindItemsByOwnerAndIDs(_ context.Context, ownerID int64, ids []int64) ([]trade.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsOwnedBy(ownerID, ids), nil
}

func (s *Store) CreateTrade(_ context.Context, t trade.Trade) (trade.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradeSeq++
	now := s.now().UTC()
	t.ID = s.tradeSeq
	t.CreatedAt = now
	t.UpdatedAt = now
	t = cloneTrade(t)
	s.trades[t.ID] = t
	return cloneTrade(t), nil
}

func (s *Store) FindTradeByID(_ context.Context, id int64) (trade.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return trade.Trade{}, trade.ErrNotFound
	}
	return cloneTrade(t), nil
}

func (s *Store) ListTradesForUser(_ context.Context, userID int64) ([]trade.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []trade.Trade{}
	for _, t := range s.trades {
		if t.Involves(userID) {
			out = append(out, cloneTrade(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateTradeStatus(_ context.Context, id int64, from, to trade.Status) (trade.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setStatus(id, from, to, nil)
}

// WithinTx runs fn holding the store lock. Writes made through the tx are
// recorded and undone if fn fails or ctx ends before commit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx trade.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{s: s, owners: map[int64]int64{}, trades: map[int64]trade.Trade{}}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) itemsOwnedBy(ownerID int64, ids []int64) []trade.Item {
	out := []trade.Item{}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := s.pokemons[id]; ok && p.OwnerID == ownerID {
			out = append(out, trade.Item{ID: p.ID, OwnerID: p.OwnerID})
		}
	}
	return out
}

func (s *Store) setStatus(id int64, from, to trade.Status, undo map[int64]trade.Trade) (trade.Trade, error) {
	t, ok := s.trades[id]
	if !ok {
		return trade.Trade{}, trade.ErrNotFound
	}
	if t.Status != from {
		return trade.Trade{}, trade.ErrAlreadySettled
	}
	if undo != nil {
		if _, saved := undo[id]; !saved {
			undo[id] = t
		}
	}
	t.Status = to
	t.UpdatedAt = s.now().UTC()
	s.trades[id] = t
	return cloneTrade(t), nil
}

// memTx runs with Store.mu held.
type memTx struct {
	s      *Store
	owners map[int64]int64
	trades map[int64]trade.Trade
}

func (tx *memTx) FindTradeForUpdate(_ context.Context, id int64) (trade.Trade, error) {
	t, ok := tx.s.trades[id]
	if !ok {
		return trade.Trade{}, trade.ErrNotFound
	}
	return cloneTrade(t), nil
}

func (tx *memTx) LockItems(_ context.Context, ids []int64) ([]trade.Item, error) {
	out := []trade.Item{}
	for _, id := range ids {
		if p, ok := tx.s.pokemons[id]; ok {
			out = append(out, trade.Item{ID: p.ID, OwnerID: p.OwnerID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memTx) ReassignItemOwner(_ context.Context, itemID, from, to int64) error {
	p, ok := tx.s.pokemons[itemID]
	if !ok || p.OwnerID != from {
		return trade.ErrItemsNotOwned
	}
	if _, saved := tx.owners[itemID]; !saved {
		tx.owners[itemID] = p.OwnerID
	}
	p.OwnerID = to
	tx.s.pokemons[itemID] = p
	return nil
}

func (tx *memTx) UpdateTradeStatus(_ context.Context, id int64, from, to trade.Status) (trade.Trade, error) {
	return tx.s.setStatus(id, from, to, tx.trades)
}

func (tx *memTx) rollback() {
	for id, owner := range tx.owners {
		if p, ok := tx.s.pokemons[id]; ok {
			p.OwnerID = owner
			tx.s.pokemons[id] = p
		}
	}
	for id, t := range tx.trades {
		tx.s.trades[id] = t
	}
}

func cloneTrade(t trade.Trade) trade.Trade {
	t.OfferedPokemons = append([]int64{}, t.OfferedPokemons...)
	t.RequestedPokemons = append([]int64{}, t.RequestedPokemons...)
	return t
}

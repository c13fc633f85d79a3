package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pokeswap.org/internal/trade"
)

const (
	tradeColumns = `id, sender_id, receiver_id, status, created_at, updated_at`

	sideOffered   = "offered"
	sideRequested = "requested"
)

func (s *Store) UserExists(ctx context.Context, id int64) (bool, error) {
	if s.db == nil {
		return false, errNoDB
	}
	var ok bool
	err := s.db.QueryRowContext(ctx, `select exists(select 1 from users where id = $1)`, id).Scan(&ok)
	return ok, err
}

func (s *Store) FindItemsByOwnerAndIDs(ctx context.Context, ownerID int64, ids []int64) ([]trade.Item, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	if len(ids) == 0 {
		return []trade.Item{}, nil
	}
	marks, args := inList(2, ids)
	rows, err := s.db.QueryContext(ctx, `
		select id, owner_id
		from pokemons
		where owner_id = $1 and id in (`+marks+`)
		order by id
	`, append([]any{ownerID}, args...)...)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

func (s *Store) CreateTrade(ctx context.Context, t trade.Trade) (trade.Trade, error) {
	if s.db == nil {
		return trade.Trade{}, errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return trade.Trade{}, err
	}
	defer func() { _ = tx.Rollback() }()

	created, err := scanTrade(tx.QueryRowContext(ctx, `
		insert into trades (sender_id, receiver_id, status)
		values ($1, $2, $3)
		returning `+tradeColumns,
		t.SenderID, t.ReceiverID, string(t.Status)))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return trade.Trade{}, trade.ErrUserNotFound
		}
		return trade.Trade{}, err
	}
	for _, side := range []struct {
		name string
		ids  []int64
	}{{sideOffered, t.OfferedPokemons}, {sideRequested, t.RequestedPokemons}} {
		for _, id := range side.ids {
			if _, err := tx.ExecContext(ctx, `
				insert into trade_items (trade_id, pokemon_id, side)
				values ($1, $2, $3)
			`, created.ID, id, side.name); err != nil {
				return trade.Trade{}, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return trade.Trade{}, err
	}
	created.OfferedPokemons = append([]int64{}, t.OfferedPokemons...)
	created.RequestedPokemons = append([]int64{}, t.RequestedPokemons...)
	return created, nil
}

func (s *Store) FindTradeByID(ctx context.Context, id int64) (trade.Trade, error) {
	if s.db == nil {
		return trade.Trade{}, errNoDB
	}
	return findTrade(ctx, s.db, `select `+tradeColumns+` from trades where id = $1`, id)
}

func (s *Store) ListTradesForUser(ctx context.Context, userID int64) ([]trade.Trade, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+tradeColumns+`
		from trades
		where sender_id = $1 or receiver_id = $1
		order by id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []trade.Trade{}
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := attachItems(ctx, s.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateTradeStatus(ctx context.Context, id int64, from, to trade.Status) (trade.Trade, error) {
	if s.db == nil {
		return trade.Trade{}, errNoDB
	}
	return updateTradeStatus(ctx, s.db, id, from, to)
}

// WithinTx runs fn in a READ COMMITTED transaction. Isolation comes from
// the row locks taken by FindTradeForUpdate and LockItems together with
// the compare-and-swap updates.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx trade.Tx) error) error {
	if s.db == nil {
		return errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) FindTradeForUpdate(ctx context.Context, id int64) (trade.Trade, error) {
	return findTrade(ctx, t.tx, `select `+tradeColumns+` from trades where id = $1 for update`, id)
}

// LockItems takes the row locks in id order so concurrent swaps over
// overlapping items cannot deadlock.
func (t *pgTx) LockItems(ctx context.Context, ids []int64) ([]trade.Item, error) {
	if len(ids) == 0 {
		return []trade.Item{}, nil
	}
	marks, args := inList(1, ids)
	rows, err := t.tx.QueryContext(ctx, `
		select id, owner_id
		from pokemons
		where id in (`+marks+`)
		order by id
		for update
	`, args...)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

func (t *pgTx) ReassignItemOwner(ctx context.Context, itemID, from, to int64) error {
	res, err := t.tx.ExecContext(ctx, `
		update pokemons set owner_id = $3
		where id = $1 and owner_id = $2
	`, itemID, from, to)
	if err != nil {
		return err
	}
	return affected(res, trade.ErrItemsNotOwned)
}

func (t *pgTx) UpdateTradeStatus(ctx context.Context, id int64, from, to trade.Status) (trade.Trade, error) {
	return updateTradeStatus(ctx, t.tx, id, from, to)
}

func updateTradeStatus(ctx context.Context, q querier, id int64, from, to trade.Status) (trade.Trade, error) {
	t, err := scanTrade(q.QueryRowContext(ctx, `
		update trades set status = $3, updated_at = now()
		where id = $1 and status = $2
		returning `+tradeColumns,
		id, string(from), string(to)))
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := q.QueryRowContext(ctx, `select exists(select 1 from trades where id = $1)`, id).Scan(&exists); err != nil {
			return trade.Trade{}, err
		}
		if !exists {
			return trade.Trade{}, trade.ErrNotFound
		}
		return trade.Trade{}, trade.ErrAlreadySettled
	}
	if err != nil {
		return trade.Trade{}, err
	}
	one := []trade.Trade{t}
	if err := attachItems(ctx, q, one); err != nil {
		return trade.Trade{}, err
	}
	return one[0], nil
}

func findTrade(ctx context.Context, q querier, query string, id int64) (trade.Trade, error) {
	t, err := scanTrade(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return trade.Trade{}, trade.ErrNotFound
	}
	if err != nil {
		return trade.Trade{}, err
	}
	one := []trade.Trade{t}
	if err := attachItems(ctx, q, one); err != nil {
		return trade.Trade{}, err
	}
	return one[0], nil
}

// attachItems loads the item lists of all trades with one query.
func attachItems(ctx context.Context, q querier, trades []trade.Trade) error {
	ids := make([]int64, len(trades))
	index := make(map[int64]int, len(trades))
	for i := range trades {
		ids[i] = trades[i].ID
		index[trades[i].ID] = i
		trades[i].OfferedPokemons = []int64{}
		trades[i].RequestedPokemons = []int64{}
	}
	marks, args := inList(1, ids)
	rows, err := q.QueryContext(ctx, `
		select trade_id, pokemon_id, side
		from trade_items
		where trade_id in (`+marks+`)
		order by trade_id, pokemon_id
	`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			tradeID, pokemonID int64
			side               string
		)
		if err := rows.Scan(&tradeID, &pokemonID, &side); err != nil {
			return err
		}
		i, ok := index[tradeID]
		if !ok {
			continue
		}
		switch side {
		case sideOffered:
			trades[i].OfferedPokemons = append(trades[i].OfferedPokemons, pokemonID)
		case sideRequested:
			trades[i].RequestedPokemons = append(trades[i].RequestedPokemons, pokemonID)
		default:
			return fmt.Errorf("trade %d: unknown item side %q", tradeID, side)
		}
	}
	return rows.Err()
}

func scanTrade(row rowScanner) (trade.Trade, error) {
	var (
		t                trade.Trade
		status           string
		sender, receiver sql.NullInt64
	)
	if err := row.Scan(&t.ID, &sender, &receiver, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return trade.Trade{}, err
	}
	// a null party was deleted; 0 matches no user
	t.SenderID = sender.Int64
	t.ReceiverID = receiver.Int64
	t.Status = trade.Status(status)
	return t, nil
}

func scanItems(rows *sql.Rows) ([]trade.Item, error) {
	defer rows.Close()
	out := []trade.Item{}
	for rows.Next() {
		var it trade.Item
		if err := rows.Scan(&it.ID, &it.OwnerID); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

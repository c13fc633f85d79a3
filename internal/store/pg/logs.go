package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pokeswap.org/internal/audit"
)

func (s *Store) AppendLog(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	if s.db == nil {
		return audit.Entry{}, errNoDB
	}
	meta := []byte("{}")
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return audit.Entry{}, fmt.Errorf("marshal metadata: %w", err)
		}
		meta = b
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	var userID sql.NullInt64
	if e.UserID != 0 {
		userID = sql.NullInt64{Int64: e.UserID, Valid: true}
	}
	err := s.db.QueryRowContext(ctx, `
		insert into logs (action, user_id, metadata, created_at)
		values ($1, $2, $3, $4)
		returning id
	`, e.Action, userID, meta, e.Timestamp).Scan(&e.ID)
	if err != nil {
		return audit.Entry{}, err
	}
	return e, nil
}

func (s *Store) ListLogs(ctx context.Context, from, to time.Time) ([]audit.Entry, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	where := []string{}
	args := []any{}
	if !from.IsZero() {
		args = append(args, from)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	query := `select id, action, user_id, metadata, created_at from logs`
	if len(where) > 0 {
		query += ` where ` + strings.Join(where, " and ")
	}
	query += ` order by created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []audit.Entry{}
	for rows.Next() {
		var (
			e      audit.Entry
			userID sql.NullInt64
			meta   []byte
		)
		if err := rows.Scan(&e.ID, &e.Action, &userID, &meta, &e.Timestamp); err != nil {
			return nil, err
		}
		if userID.Valid {
			e.UserID = userID.Int64
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

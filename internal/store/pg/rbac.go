package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"pokeswap.org/internal/auth"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

func (s *Store) FindUserRights(ctx context.Context, userID int64) (auth.RightSet, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select right_name
		from user_rights
		where user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := auth.RightSet{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		set[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *Store) SetUserRights(ctx context.Context, userID int64, rights []string) error {
	if s.db == nil {
		return errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	if err := tx.QueryRowContext(ctx, `select 1 from users where id = $1 for update`, userID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ErrNotFound
		}
		return err
	}
	if err := replaceUserRights(ctx, tx, userID, rights); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListRights(ctx context.Context) ([]auth.Right, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select name, description from rights order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.Right
	for rows.Next() {
		var r auth.Right
		if err := rows.Scan(&r.Name, &r.Description); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) EnsureRights(ctx context.Context, rights []auth.Right) error {
	if s.db == nil {
		return errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, r := range rights {
		if _, err := tx.ExecContext(ctx, `
			insert into rights (name, description)
			values ($1, $2)
			on conflict (name) do nothing
		`, r.Name, r.Description); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func replaceUserRights(ctx context.Context, q querier, userID int64, rights []string) error {
	if _, err := q.ExecContext(ctx, `delete from user_rights where user_id = $1`, userID); err != nil {
		return err
	}
	return insertUserRights(ctx, q, userID, rights)
}

func insertUserRights(ctx context.Context, q querier, userID int64, rights []string) error {
	for _, name := range rights {
		_, err := q.ExecContext(ctx, `
			insert into user_rights (user_id, right_name)
			values ($1, $2)
			on conflict do nothing
		`, userID, name)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return fmt.Errorf("%w: unknown right %q", auth.ErrInvalidInput, name)
			}
			return err
		}
	}
	return nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pokeswap.org/internal/auth"
)

const userColumns = `id, first_name, last_name, login, password_hash, birth_date, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, user auth.User, rights []string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into users (first_name, last_name, login, password_hash, birth_date)
		values ($1, $2, $3, $4, $5)
		returning `+userColumns,
		user.FirstName, user.LastName, user.Login, user.PasswordHash, nullDate(user.BirthDate))
	created, err := scanUser(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.User{}, auth.ErrLoginTaken
		}
		return auth.User{}, err
	}
	if err := insertUserRights(ctx, tx, created.ID, rights); err != nil {
		return auth.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return auth.User{}, err
	}
	return created, nil
}

func (s *Store) FindUserByID(ctx context.Context, id int64) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	return findUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id))
}

func (s *Store) FindUserByLogin(ctx context.Context, login string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	return findUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where login = $1`, login))
}

func (s *Store) ListUsers(ctx context.Context, offset, limit int) ([]auth.User, int, error) {
	if s.db == nil {
		return nil, 0, errNoDB
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+`
		from users
		order by id
		limit $1 offset $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []auth.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int64, patch auth.UserPatch) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.FirstName != nil {
		add("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		add("last_name", *patch.LastName)
	}
	if patch.Login != nil {
		add("login", *patch.Login)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.BirthDate != nil {
		add("birth_date", nullDate(*patch.BirthDate))
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`update users set %s where id = $%d returning %s`, strings.Join(sets, ", "), len(args), userColumns)
	updated, err := findUser(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.User{}, auth.ErrLoginTaken
		}
		return auth.User{}, err
	}
	if patch.Rights != nil {
		if err := replaceUserRights(ctx, tx, id, patch.Rights); err != nil {
			return auth.User{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return auth.User{}, err
	}
	return updated, nil
}

// DeleteUser relies on cascading foreign keys for rights, tokens and
// pokemons. Trades are kept with the user's side set to null.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	return affected(res, auth.ErrNotFound)
}

func findUser(row rowScanner) (auth.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	return u, err
}

func scanUser(row rowScanner) (auth.User, error) {
	var (
		u     auth.User
		birth sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Login, &u.PasswordHash, &birth, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return auth.User{}, err
	}
	if birth.Valid {
		u.BirthDate = birth.Time
	}
	return u, nil
}

func nullDate(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

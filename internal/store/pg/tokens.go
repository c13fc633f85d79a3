package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"pokeswap.org/internal/auth"
)

func (s *Store) CreateAccessToken(ctx context.Context, t auth.AccessToken) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into access_tokens (token, user_id, scopes, expires_at)
		values ($1, $2, $3, $4)
	`, t.Token, t.UserID, strings.Join(t.Scopes, " "), t.ExpiresAt)
	return tokenInsertErr(err)
}

func (s *Store) FindAccessToken(ctx context.Context, token string) (auth.AccessToken, error) {
	if s.db == nil {
		return auth.AccessToken{}, errNoDB
	}
	var (
		t      auth.AccessToken
		scopes string
	)
	err := s.db.QueryRowContext(ctx, `
		select token, user_id, scopes, expires_at
		from access_tokens
		where token = $1
	`, token).Scan(&t.Token, &t.UserID, &scopes, &t.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.AccessToken{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.AccessToken{}, err
	}
	t.Scopes = auth.ParseScope(scopes)
	return t, nil
}

func (s *Store) DeleteAccessToken(ctx context.Context, token string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from access_tokens where token = $1`, token)
	if err != nil {
		return err
	}
	return affected(res, auth.ErrNotFound)
}

func (s *Store) CreateRefreshToken(ctx context.Context, t auth.RefreshToken) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens (token, user_id, expires_at)
		values ($1, $2, $3)
	`, t.Token, t.UserID, t.ExpiresAt)
	return tokenInsertErr(err)
}

func (s *Store) FindRefreshToken(ctx context.Context, token string) (auth.RefreshToken, error) {
	if s.db == nil {
		return auth.RefreshToken{}, errNoDB
	}
	var t auth.RefreshToken
	err := s.db.QueryRowContext(ctx, `
		select token, user_id, expires_at
		from refresh_tokens
		where token = $1
	`, token).Scan(&t.Token, &t.UserID, &t.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.RefreshToken{}, auth.ErrNotFound
	}
	return t, err
}

func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from refresh_tokens where token = $1`, token)
	if err != nil {
		return err
	}
	return affected(res, auth.ErrNotFound)
}

func (s *Store) CreateAuthorizationCode(ctx context.Context, c auth.AuthorizationCode) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into authorization_codes (code, user_id, client_id, redirect_uri, scopes, expires_at)
		values ($1, $2, $3, $4, $5, $6)
	`, c.Code, c.UserID, c.ClientID, c.RedirectURI, strings.Join(c.Scopes, " "), c.ExpiresAt)
	return tokenInsertErr(err)
}

func (s *Store) ConsumeAuthorizationCode(ctx context.Context, code string) (auth.AuthorizationCode, error) {
	if s.db == nil {
		return auth.AuthorizationCode{}, errNoDB
	}
	var (
		c      auth.AuthorizationCode
		scopes string
	)
	err := s.db.QueryRowContext(ctx, `
		delete from authorization_codes
		where code = $1
		returning code, user_id, client_id, redirect_uri, scopes, expires_at
	`, code).Scan(&c.Code, &c.UserID, &c.ClientID, &c.RedirectURI, &scopes, &c.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.AuthorizationCode{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.AuthorizationCode{}, err
	}
	c.Scopes = auth.ParseScope(scopes)
	return c, nil
}

func tokenInsertErr(err error) error {
	if err == nil {
		return nil
	}
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return auth.ErrConflict
		case pgErrForeignKeyViolation:
			return auth.ErrNotFound
		}
	}
	return err
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"pokeswap.org/internal/ids"
)

const authorizationCodeTTL = 10 * time.Minute

// PasswordGrant authenticates login and password and issues a token pair
// scoped to the requested rights. An empty request yields every right the
// user currently holds.
func (s *Service) PasswordGrant(ctx context.Context, login, password string, scopes []string) (TokenPair, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}
	user, err := s.store.FindUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.mintTokens(ctx, user.ID, scopes)
}

// RefreshGrant rotates a refresh token and issues a new pair.
func (s *Service) RefreshGrant(ctx context.Context, refreshToken string, scopes []string) (TokenPair, error) {
	claims, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidGrant
	}
	rec, err := s.store.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidGrant
		}
		return TokenPair{}, err
	}
	if rec.UserID != claims.UserID {
		return TokenPair{}, ErrInvalidGrant
	}
	if err := s.store.DeleteRefreshToken(ctx, refreshToken); err != nil && !errors.Is(err, ErrNotFound) {
		return TokenPair{}, err
	}
	return s.mintTokens(ctx, rec.UserID, scopes)
}

// Authorize stores a single-use authorization code for the caller.
func (s *Service) Authorize(ctx context.Context, userID int64, clientID, redirectURI string, scopes []string) (AuthorizationCode, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return AuthorizationCode{}, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	u, err := url.Parse(redirectURI)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return AuthorizationCode{}, fmt.Errorf("%w: redirect_uri must be an absolute URL", ErrInvalidInput)
	}
	granted, err := s.resolveScopes(ctx, userID, scopes)
	if err != nil {
		return AuthorizationCode{}, err
	}
	now := s.now().UTC()
	code := AuthorizationCode{
		Code:        ids.NewAt(now),
		UserID:      userID,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scopes:      granted,
		ExpiresAt:   now.Add(authorizationCodeTTL),
	}
	if err := s.store.CreateAuthorizationCode(ctx, code); err != nil {
		return AuthorizationCode{}, err
	}
	return code, nil
}

// ExchangeCode redeems an authorization code.
func (s *Service) ExchangeCode(ctx context.Context, code, clientID, redirectURI string) (TokenPair, error) {
	rec, err := s.store.ConsumeAuthorizationCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidGrant
		}
		return TokenPair{}, err
	}
	if rec.ClientID != clientID || rec.RedirectURI != redirectURI {
		return TokenPair{}, ErrInvalidGrant
	}
	if s.now().After(rec.ExpiresAt) {
		return TokenPair{}, ErrInvalidGrant
	}
	return s.mintTokens(ctx, rec.UserID, rec.Scopes)
}

// Revoke deletes the persisted access token so the guard rejects it.
func (s *Service) Revoke(ctx context.Context, token string) error {
	err := s.store.DeleteAccessToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (s *Service) mintTokens(ctx context.Context, userID int64, scopes []string) (TokenPair, error) {
	granted, err := s.resolveScopes(ctx, userID, scopes)
	if err != nil {
		return TokenPair{}, err
	}
	access, err := s.issuer.IssueAccessToken(ctx, userID, granted)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.issuer.IssueRefreshToken(ctx, userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		Scopes:           access.Scopes,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// resolveScopes narrows requested scopes to the user's current rights.
func (s *Service) resolveScopes(ctx context.Context, userID int64, requested []string) ([]string, error) {
	current, err := s.store.FindUserRights(ctx, userID)
	if err != nil {
		return nil, err
	}
	want := NewRightSet(requested...)
	if len(want) == 0 {
		return current.Names(), nil
	}
	if !want.SubsetOf(current) {
		return nil, ErrInvalidScope
	}
	return want.Names(), nil
}

// ParseScope splits an OAuth2 space separated scope parameter.
func ParseScope(raw string) []string {
	return strings.Fields(raw)
}

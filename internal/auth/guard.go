package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pokeswap.org/internal/obs"
)

// TokenVerifier validates a raw access token.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*Claims, error)
}

// Guard decides whether a request may proceed. A request passes only when
// its token grants one of the required rights and the user currently holds
// one of them in the database.
type Guard struct {
	verifier TokenVerifier
	store    GuardStore
}

// NewGuard constructs a Guard.
func NewGuard(verifier TokenVerifier, store GuardStore) *Guard {
	return &Guard{verifier: verifier, store: store}
}

// Authorize runs the full check for an Authorization header value against
// the rights required by the route. Any collaborator failure is returned as
// an error, never as a pass.
func (g *Guard) Authorize(ctx context.Context, header string, required ...string) (Identity, error) {
	want := NewRightSet(required...)
	if len(want) == 0 {
		return Identity{}, g.deny("no_rights", ErrAccessDenied)
	}

	token, claims, err := g.verifyHeader(ctx, header)
	if err != nil {
		return Identity{}, err
	}

	scopes := NewRightSet(claims.Scopes...)
	if !HasScope(scopes, want) {
		return Identity{}, g.deny("insufficient_scope", ErrInsufficientScope)
	}

	if _, err := g.loadUser(ctx, claims.UserID); err != nil {
		return Identity{}, err
	}

	rights, err := g.store.FindUserRights(ctx, claims.UserID)
	if err != nil {
		return Identity{}, g.fail(fmt.Errorf("load user rights: %w", err))
	}
	if !HasDBRight(rights, want) {
		return Identity{}, g.deny("access_denied", ErrAccessDenied)
	}

	obs.ObserveGuard("allow")
	return Identity{UserID: claims.UserID, Token: token, Scopes: scopes, Rights: rights}, nil
}

// Authenticate establishes the caller without requiring any right.
func (g *Guard) Authenticate(ctx context.Context, header string) (Identity, error) {
	token, claims, err := g.verifyHeader(ctx, header)
	if err != nil {
		return Identity{}, err
	}
	if _, err := g.loadUser(ctx, claims.UserID); err != nil {
		return Identity{}, err
	}
	rights, err := g.store.FindUserRights(ctx, claims.UserID)
	if err != nil {
		return Identity{}, g.fail(fmt.Errorf("load user rights: %w", err))
	}
	obs.ObserveGuard("authenticated")
	return Identity{
		UserID: claims.UserID,
		Token:  token,
		Scopes: NewRightSet(claims.Scopes...),
		Rights: rights,
	}, nil
}

// HasScope reports whether the token scopes grant any required right.
func HasScope(scopes, required RightSet) bool {
	return scopes.Intersects(required)
}

// HasDBRight reports whether the stored rights grant any required right.
func HasDBRight(rights, required RightSet) bool {
	return rights.Intersects(required)
}

// ExtractBearerToken returns the token of a "Bearer <token>" header value.
func ExtractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

func (g *Guard) verifyHeader(ctx context.Context, header string) (string, *Claims, error) {
	token, err := ExtractBearerToken(header)
	if err != nil {
		if errors.Is(err, ErrMissingToken) {
			return "", nil, g.deny("missing_token", err)
		}
		return "", nil, g.deny("invalid_token", err)
	}

	claims, err := g.verifier.VerifyAccessToken(token)
	if err != nil {
		return "", nil, g.deny("invalid_token", ErrInvalidToken)
	}

	rec, err := g.store.FindAccessToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, g.deny("revoked_token", ErrInvalidToken)
		}
		return "", nil, g.fail(fmt.Errorf("lookup access token: %w", err))
	}
	if rec.UserID != claims.UserID {
		return "", nil, g.deny("invalid_token", ErrInvalidToken)
	}
	return token, claims, nil
}

func (g *Guard) loadUser(ctx context.Context, id int64) (User, error) {
	user, err := g.store.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, g.deny("unknown_user", ErrInvalidToken)
		}
		return User{}, g.fail(fmt.Errorf("load user: %w", err))
	}
	return user, nil
}

func (g *Guard) deny(outcome string, err error) error {
	obs.ObserveGuard(outcome)
	return err
}

func (g *Guard) fail(err error) error {
	obs.ObserveGuard("error")
	return err
}

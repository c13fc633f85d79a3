package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordGrant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, sampleUser("brock"))
	require.NoError(t, err)

	pair, err := svc.PasswordGrant(ctx, "brock", "pikachu1", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, DefaultRights(), pair.Scopes)
	assert.NotEmpty(t, pair.RefreshToken)

	pair, err = svc.PasswordGrant(ctx, "brock", "pikachu1", []string{RightTradeRead})
	require.NoError(t, err)
	assert.Equal(t, []string{RightTradeRead}, pair.Scopes)

	_, err = svc.PasswordGrant(ctx, "brock", "pikachu1", []string{RightLogsRead})
	require.ErrorIs(t, err, ErrInvalidScope)

	_, err = svc.PasswordGrant(ctx, "brock", "wrong-password", nil)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.PasswordGrant(ctx, "nobody", "pikachu1", nil)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshGrantRotates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, sampleUser("misty"))
	require.NoError(t, err)

	pair, err := svc.PasswordGrant(ctx, "misty", "pikachu1", nil)
	require.NoError(t, err)

	next, err := svc.RefreshGrant(ctx, pair.RefreshToken, []string{RightUsersRead})
	require.NoError(t, err)
	assert.Equal(t, []string{RightUsersRead}, next.Scopes)

	_, err = svc.RefreshGrant(ctx, pair.RefreshToken, nil)
	require.ErrorIs(t, err, ErrInvalidGrant, "rotated refresh token must not be reusable")

	_, err = svc.RefreshGrant(ctx, pair.AccessToken, nil)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestAuthorizationCodeIsSingleUse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, sampleUser("gary"))
	require.NoError(t, err)

	code, err := svc.Authorize(ctx, u.ID, "pokedex", "https://client.example/cb", []string{RightPokemonsRead})
	require.NoError(t, err)

	_, err = svc.ExchangeCode(ctx, code.Code, "pokedex", "https://client.example/other")
	require.ErrorIs(t, err, ErrInvalidGrant)

	code, err = svc.Authorize(ctx, u.ID, "pokedex", "https://client.example/cb", []string{RightPokemonsRead})
	require.NoError(t, err)
	pair, err := svc.ExchangeCode(ctx, code.Code, "pokedex", "https://client.example/cb")
	require.NoError(t, err)
	assert.Equal(t, []string{RightPokemonsRead}, pair.Scopes)

	_, err = svc.ExchangeCode(ctx, code.Code, "pokedex", "https://client.example/cb")
	require.ErrorIs(t, err, ErrInvalidGrant)

	_, err = svc.Authorize(ctx, u.ID, "pokedex", "not a url", nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRevokeMakesGuardReject(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, sampleUser("oak"))
	require.NoError(t, err)
	pair, err := svc.PasswordGrant(ctx, "oak", "pikachu1", nil)
	require.NoError(t, err)

	guard := NewGuard(svc.Issuer(), store)
	_, err = guard.Authorize(ctx, "Bearer "+pair.AccessToken, RightUsersRead)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.AccessToken))
	_, err = guard.Authorize(ctx, "Bearer "+pair.AccessToken, RightUsersRead)
	require.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, svc.Revoke(ctx, pair.AccessToken), "revoking twice is a no-op")
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T, store TokenStore, opts ...IssuerOption) *Issuer {
	t.Helper()
	iss, err := NewIssuer("test-secret", store, opts...)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestIssueAccessTokenPersistsAndVerifies(t *testing.T) {
	store := newFakeStore()
	iss := newTestIssuer(t, store, WithIssuer("test-issuer"))

	tok, err := iss.IssueAccessToken(context.Background(), 42, []string{RightTradeRead, RightTradeRead, RightUsersRead})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if len(tok.Scopes) != 2 {
		t.Fatalf("scopes were not deduplicated: %v", tok.Scopes)
	}
	if _, ok := store.access[tok.Token]; !ok {
		t.Fatal("expected token to be persisted")
	}
	if d := time.Until(tok.ExpiresAt); d <= 59*time.Minute || d > time.Hour {
		t.Fatalf("unexpected default lifetime: %v", d)
	}

	claims, err := iss.VerifyAccessToken(tok.Token)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.UserID != 42 || claims.Subject != "42" || claims.Issuer != "test-issuer" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestIssueAccessTokenPersistFailureReturnsNoToken(t *testing.T) {
	store := newFakeStore()
	store.createFn = func(context.Context, AccessToken) error { return errors.New("db down") }
	iss := newTestIssuer(t, store)

	tok, err := iss.IssueAccessToken(context.Background(), 1, []string{RightUsersRead})
	if err == nil {
		t.Fatal("expected error")
	}
	if tok.Token != "" {
		t.Fatalf("token returned despite failed persist: %q", tok.Token)
	}
	if len(store.access) != 0 {
		t.Fatal("nothing should be persisted")
	}
}

func TestVerifyRejectsForeignAndExpiredTokens(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	iss := newTestIssuer(t, store, WithAccessTTL(time.Minute), WithClock(func() time.Time { return now }))

	tok, err := iss.IssueAccessToken(context.Background(), 7, []string{RightUsersRead})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	other, err := NewIssuer("other-secret", store)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	if _, err := other.VerifyAccessToken(tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for foreign secret, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := iss.VerifyAccessToken(tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	store := newFakeStore()
	iss := newTestIssuer(t, store)

	ref, err := iss.IssueRefreshToken(context.Background(), 3)
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}
	if d := time.Until(ref.ExpiresAt); d < 29*24*time.Hour {
		t.Fatalf("unexpected refresh lifetime: %v", d)
	}
	if _, err := iss.VerifyAccessToken(ref.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := iss.VerifyRefreshToken(ref.Token); err != nil {
		t.Fatalf("VerifyRefreshToken: %v", err)
	}
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer(" ", newFakeStore()); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := newTestIssuer(t, newFakeStore()).IssueAccessToken(context.Background(), 0, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing user, got %v", err)
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pokeswap.org/internal/ids"
)

const (
	defaultIssuer     = "pokeswap"
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims represents JWT claims used across the service.
type Claims struct {
	UserID    int64    `json:"userId"`
	Scopes    []string `json:"scopes,omitempty"`
	TokenType string   `json:"token_type"`
	jwt.RegisteredClaims
}

// Issuer signs and persists access and refresh tokens. The signing secret is
// fixed at construction.
type Issuer struct {
	secret     []byte
	store      TokenStore
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) IssuerOption {
	return func(i *Issuer) error {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			i.issuer = issuer
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) error {
		if ttl > 0 {
			i.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) error {
		if ttl > 0 {
			i.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) error {
		if fn != nil {
			i.now = fn
		}
		return nil
	}
}

// NewIssuer constructs an Issuer signing with HS256 under secret.
func NewIssuer(secret string, store TokenStore, opts ...IssuerOption) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if store == nil {
		return nil, errors.New("auth: token store is required")
	}
	iss := &Issuer{
		secret:     []byte(secret),
		store:      store,
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(iss); err != nil {
			return nil, err
		}
	}
	return iss, nil
}

// IssueAccessToken signs a token for userID carrying scopes and persists it.
// Nothing is persisted when signing fails, and no token is returned when
// persisting fails.
func (i *Issuer) IssueAccessToken(ctx context.Context, userID int64, scopes []string) (AccessToken, error) {
	if userID <= 0 {
		return AccessToken{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	scopes = NewRightSet(scopes...).Names()
	now := i.now().UTC()
	exp := now.Add(i.accessTTL)

	signed, err := i.sign(Claims{
		UserID:           userID,
		Scopes:           scopes,
		TokenType:        tokenTypeAccess,
		RegisteredClaims: i.registered(userID, now, exp),
	})
	if err != nil {
		return AccessToken{}, err
	}

	rec := AccessToken{Token: signed, UserID: userID, Scopes: scopes, ExpiresAt: exp}
	if err := i.store.CreateAccessToken(ctx, rec); err != nil {
		return AccessToken{}, fmt.Errorf("persist access token: %w", err)
	}
	return rec, nil
}

// IssueRefreshToken signs a refresh token for userID and persists it.
func (i *Issuer) IssueRefreshToken(ctx context.Context, userID int64) (RefreshToken, error) {
	if userID <= 0 {
		return RefreshToken{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	now := i.now().UTC()
	exp := now.Add(i.refreshTTL)

	signed, err := i.sign(Claims{
		UserID:           userID,
		TokenType:        tokenTypeRefresh,
		RegisteredClaims: i.registered(userID, now, exp),
	})
	if err != nil {
		return RefreshToken{}, err
	}

	rec := RefreshToken{Token: signed, UserID: userID, ExpiresAt: exp}
	if err := i.store.CreateRefreshToken(ctx, rec); err != nil {
		return RefreshToken{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return rec, nil
}

// VerifyAccessToken checks signature, issuer, expiry and token type.
func (i *Issuer) VerifyAccessToken(token string) (*Claims, error) {
	return i.verify(token, tokenTypeAccess)
}

// VerifyRefreshToken is VerifyAccessToken for refresh tokens.
func (i *Issuer) VerifyRefreshToken(token string) (*Claims, error) {
	return i.verify(token, tokenTypeRefresh)
}

func (i *Issuer) registered(userID int64, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        ids.NewAt(now),
	}
}

func (i *Issuer) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) verify(token, tokenType string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := validateClaims(claims, tokenType); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func validateClaims(claims *Claims, tokenType string) error {
	if claims.TokenType != tokenType {
		return fmt.Errorf("unexpected token type: %s", claims.TokenType)
	}
	if claims.UserID <= 0 {
		return errors.New("user id missing")
	}
	if claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return errors.New("subject does not match user id")
	}
	if claims.IssuedAt == nil {
		return errors.New("issued-at missing")
	}
	return nil
}

package auth

import "context"

// GuardStore is what the access guard reads on every request.
type GuardStore interface {
	FindAccessToken(ctx context.Context, token string) (AccessToken, error)
	FindUserByID(ctx context.Context, id int64) (User, error)
	FindUserRights(ctx context.Context, userID int64) (RightSet, error)
}

// TokenStore persists issued tokens.
type TokenStore interface {
	CreateAccessToken(ctx context.Context, token AccessToken) error
	CreateRefreshToken(ctx context.Context, token RefreshToken) error
}

// Store is the full persistence contract of the auth package. Lookups return
// ErrNotFound when the row is absent.
type Store interface {
	GuardStore
	TokenStore

	CreateUser(ctx context.Context, user User, rights []string) (User, error)
	FindUserByLogin(ctx context.Context, login string) (User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]User, int, error)
	UpdateUser(ctx context.Context, id int64, patch UserPatch) (User, error)
	DeleteUser(ctx context.Context, id int64) error

	ListRights(ctx context.Context) ([]Right, error)
	EnsureRights(ctx context.Context, rights []Right) error
	SetUserRights(ctx context.Context, userID int64, rights []string) error

	DeleteAccessToken(ctx context.Context, token string) error
	FindRefreshToken(ctx context.Context, token string) (RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	CreateAuthorizationCode(ctx context.Context, code AuthorizationCode) error
	// ConsumeAuthorizationCode deletes and returns the code.
	ConsumeAuthorizationCode(ctx context.Context, code string) (AuthorizationCode, error)
}

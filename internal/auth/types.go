package auth

import "time"

// User is a trainer account.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Login        string
	PasswordHash string
	BirthDate    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Right is a named permission from the catalog.
type Right struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AccessToken is the persisted record of an issued access JWT. A token that
// verifies but has no record is treated as revoked.
type AccessToken struct {
	Token     string
	UserID    int64
	Scopes    []string
	ExpiresAt time.Time
}

// RefreshToken is the persisted record of an issued refresh JWT.
type RefreshToken struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}

// AuthorizationCode is a single-use code of the authorization_code grant.
type AuthorizationCode struct {
	Code        string
	UserID      int64
	ClientID    string
	RedirectURI string
	Scopes      []string
	ExpiresAt   time.Time
}

// NewUser carries the input of Register and CreateUser.
type NewUser struct {
	FirstName string
	LastName  string
	Login     string
	Password  string
	BirthDate time.Time
	// Rights is ignored by Register, which always assigns DefaultRights.
	Rights []string
}

// UserUpdate is a partial update; nil fields are left untouched.
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Login     *string
	Password  *string
	BirthDate *time.Time
	// Rights replaces the user's rights when non-nil.
	Rights []string
}

// UserPatch is the storage form of UserUpdate.
type UserPatch struct {
	FirstName    *string
	LastName     *string
	Login        *string
	PasswordHash *string
	BirthDate    *time.Time
	Rights       []string
}

// UserPage is one page of ListUsers.
type UserPage struct {
	Users    []User
	Total    int
	Page     int
	PageSize int
}

// TokenPair is returned by the token grants.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	Scopes           []string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

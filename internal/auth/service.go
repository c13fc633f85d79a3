package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	maxNameLen  = 64
	maxLoginLen = 64
)

// Service provides user management and the token grants.
type Service struct {
	store  Store
	issuer *Issuer
	now    func() time.Time
}

// NewService constructs Service.
func NewService(store Store, issuer *Issuer) *Service {
	return &Service{store: store, issuer: issuer, now: time.Now}
}

// Issuer exposes the token issuer backing the grants.
func (s *Service) Issuer() *Issuer { return s.issuer }

// EnsureCatalog makes sure every catalog right exists.
func (s *Service) EnsureCatalog(ctx context.Context) error {
	return s.store.EnsureRights(ctx, Catalog)
}

// BootstrapAdmin creates the administrator holding every right when no user
// with login exists. Returns true when a user was created.
func (s *Service) BootstrapAdmin(ctx context.Context, login, password string) (bool, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return false, nil
	}
	if _, err := s.store.FindUserByLogin(ctx, login); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	_, err := s.CreateUser(ctx, NewUser{
		FirstName: "Leo",
		LastName:  "Pokemaniac",
		Login:     login,
		Password:  password,
		BirthDate: time.Date(1999, time.October, 8, 0, 0, 0, 0, time.UTC),
		Rights:    AllRights(),
	})
	if errors.Is(err, ErrLoginTaken) {
		return false, nil
	}
	return err == nil, err
}

// Register creates a self-registered trainer with DefaultRights.
func (s *Service) Register(ctx context.Context, in NewUser) (User, error) {
	in.Rights = DefaultRights()
	return s.CreateUser(ctx, in)
}

// CreateUser creates a user with the given rights.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (User, error) {
	user, err := s.validateNewUser(in)
	if err != nil {
		return User{}, err
	}
	rights, err := normalizeRights(in.Rights)
	if err != nil {
		return User{}, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	user.PasswordHash = hash
	return s.store.CreateUser(ctx, user, rights)
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	if id <= 0 {
		return User{}, ErrNotFound
	}
	return s.store.FindUserByID(ctx, id)
}

// ListUsers returns a page of users ordered by id. page starts at 1.
func (s *Service) ListUsers(ctx context.Context, page, pageSize int) (UserPage, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	users, total, err := s.store.ListUsers(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return UserPage{}, err
	}
	return UserPage{Users: users, Total: total, Page: page, PageSize: pageSize}, nil
}

// UpdateUser applies a partial update.
func (s *Service) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (User, error) {
	patch := UserPatch{BirthDate: upd.BirthDate}
	if upd.FirstName != nil {
		v, err := requiredField("firstName", *upd.FirstName, maxNameLen)
		if err != nil {
			return User{}, err
		}
		patch.FirstName = &v
	}
	if upd.LastName != nil {
		v, err := requiredField("lastName", *upd.LastName, maxNameLen)
		if err != nil {
			return User{}, err
		}
		patch.LastName = &v
	}
	if upd.Login != nil {
		v, err := requiredField("login", *upd.Login, maxLoginLen)
		if err != nil {
			return User{}, err
		}
		patch.Login = &v
	}
	if upd.BirthDate != nil && upd.BirthDate.After(s.now()) {
		return User{}, fmt.Errorf("%w: birthDate is in the future", ErrInvalidInput)
	}
	if upd.Password != nil {
		hash, err := HashPassword(*upd.Password)
		if err != nil {
			return User{}, err
		}
		patch.PasswordHash = &hash
	}
	if upd.Rights != nil {
		rights, err := normalizeRights(upd.Rights)
		if err != nil {
			return User{}, err
		}
		patch.Rights = rights
	}
	return s.store.UpdateUser(ctx, id, patch)
}

// DeleteUser removes a user along with their pokemons and tokens.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	return s.store.DeleteUser(ctx, id)
}

// UserRights returns the rights currently stored for a user.
func (s *Service) UserRights(ctx context.Context, id int64) (RightSet, error) {
	return s.store.FindUserRights(ctx, id)
}

// Rights lists the catalog as stored.
func (s *Service) Rights(ctx context.Context) ([]Right, error) {
	return s.store.ListRights(ctx)
}

func (s *Service) validateNewUser(in NewUser) (User, error) {
	first, err := requiredField("firstName", in.FirstName, maxNameLen)
	if err != nil {
		return User{}, err
	}
	last, err := requiredField("lastName", in.LastName, maxNameLen)
	if err != nil {
		return User{}, err
	}
	login, err := requiredField("login", in.Login, maxLoginLen)
	if err != nil {
		return User{}, err
	}
	if in.BirthDate.IsZero() {
		return User{}, fmt.Errorf("%w: birthDate is required", ErrInvalidInput)
	}
	if in.BirthDate.After(s.now()) {
		return User{}, fmt.Errorf("%w: birthDate is in the future", ErrInvalidInput)
	}
	return User{FirstName: first, LastName: last, Login: login, BirthDate: in.BirthDate}, nil
}

func requiredField(name, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, name)
	}
	if len(value) > max {
		return "", fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidInput, name, max)
	}
	return value, nil
}

func normalizeRights(names []string) ([]string, error) {
	set := NewRightSet(names...)
	for n := range set {
		if !IsKnownRight(n) {
			return nil, fmt.Errorf("%w: unknown right %q", ErrInvalidInput, n)
		}
	}
	return set.Names(), nil
}

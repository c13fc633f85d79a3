package auth

import (
	"context"
	"sort"
	"sync"
)

// fakeStore is a map backed Store. Function fields override single methods.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]User
	rights   map[int64]RightSet
	catalog  map[string]Right
	access   map[string]AccessToken
	refresh  map[string]RefreshToken
	codes    map[string]AuthorizationCode
	createFn func(ctx context.Context, token AccessToken) error
	rightsFn func(ctx context.Context, userID int64) (RightSet, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[int64]User{},
		rights:  map[int64]RightSet{},
		catalog: map[string]Right{},
		access:  map[string]AccessToken{},
		refresh: map[string]RefreshToken{},
		codes:   map[string]AuthorizationCode{},
	}
}

func (f *fakeStore) addUser(rights ...string) User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u := User{ID: f.nextID, Login: "user" + string(rune('a'+f.nextID)), FirstName: "F", LastName: "L"}
	f.users[u.ID] = u
	f.rights[u.ID] = NewRightSet(rights...)
	return u
}

func (f *fakeStore) FindAccessToken(_ context.Context, token string) (AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.access[token]
	if !ok {
		return AccessToken{}, ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) FindUserByID(_ context.Context, id int64) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) FindUserRights(ctx context.Context, userID int64) (RightSet, error) {
	if f.rightsFn != nil {
		return f.rightsFn(ctx, userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := RightSet{}
	for n := range f.rights[userID] {
		out[n] = struct{}{}
	}
	return out, nil
}

func (f *fakeStore) CreateAccessToken(ctx context.Context, token AccessToken) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, token); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access[token.Token] = token
	return nil
}

func (f *fakeStore) CreateRefreshToken(_ context.Context, token RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[token.Token] = token
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, user User, rights []string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Login == user.Login {
			return User{}, ErrLoginTaken
		}
	}
	f.nextID++
	user.ID = f.nextID
	f.users[user.ID] = user
	f.rights[user.ID] = NewRightSet(rights...)
	return user, nil
}

func (f *fakeStore) FindUserByLogin(_ context.Context, login string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Login == login {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (f *fakeStore) ListUsers(_ context.Context, offset, limit int) ([]User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]User, 0, len(f.users))
	for _, u := range f.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= total {
		return []User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, id int64, patch UserPatch) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.Login != nil {
		u.Login = *patch.Login
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.Rights != nil {
		f.rights[id] = NewRightSet(patch.Rights...)
	}
	f.users[id] = u
	return u, nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return ErrNotFound
	}
	delete(f.users, id)
	delete(f.rights, id)
	return nil
}

func (f *fakeStore) ListRights(_ context.Context) ([]Right, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Right, 0, len(f.catalog))
	for _, r := range f.catalog {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) EnsureRights(_ context.Context, rights []Right) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rights {
		f.catalog[r.Name] = r
	}
	return nil
}

func (f *fakeStore) SetUserRights(_ context.Context, userID int64, rights []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rights[userID] = NewRightSet(rights...)
	return nil
}

func (f *fakeStore) DeleteAccessToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.access[token]; !ok {
		return ErrNotFound
	}
	delete(f.access, token)
	return nil
}

func (f *fakeStore) FindRefreshToken(_ context.Context, token string) (RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.refresh[token]
	if !ok {
		return RefreshToken{}, ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) DeleteRefreshToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, token)
	return nil
}

func (f *fakeStore) CreateAuthorizationCode(_ context.Context, code AuthorizationCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code.Code] = code
	return nil
}

func (f *fakeStore) ConsumeAuthorizationCode(_ context.Context, code string) (AuthorizationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.codes[code]
	if !ok {
		return AuthorizationCode{}, ErrNotFound
	}
	delete(f.codes, code)
	return rec, nil
}

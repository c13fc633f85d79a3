package memory

import (
	"context"
	"sort"

	"pokeswap.org/internal/auth"
)

func (s *Store) CreateUser(_ context.Context, user auth.User, rights []string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loginTaken(user.Login, 0) {
		return auth.User{}, auth.ErrLoginTaken
	}
	s.userSeq++
	now := s.now().UTC()
	user.ID = s.userSeq
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	s.userRights[user.ID] = auth.NewRightSet(rights...)
	return user, nil
}

func (s *Store) FindUserByID(_ context.Context, id int64) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindUserByLogin(_ context.Context, login string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Login == login {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, offset, limit int) ([]auth.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]auth.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= total {
		return []auth.User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, patch auth.UserPatch) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	if patch.Login != nil && s.loginTaken(*patch.Login, id) {
		return auth.User{}, auth.ErrLoginTaken
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.Login != nil {
		u.Login = *patch.Login
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.BirthDate != nil {
		u.BirthDate = *patch.BirthDate
	}
	if patch.Rights != nil {
		s.userRights[id] = auth.NewRightSet(patch.Rights...)
	}
	u.UpdatedAt = s.now().UTC()
	s.users[id] = u
	return u, nil
}

// DeleteUser cascades to the user's rights, tokens, pokemons and trades.
func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.users, id)
	delete(s.userRights, id)
	for k, t := range s.access {
		if t.UserID == id {
			delete(s.access, k)
		}
	}
	for k, t := range s.refresh {
		if t.UserID == id {
			delete(s.refresh, k)
		}
	}
	for k, c := range s.codes {
		if c.UserID == id {
			delete(s.codes, k)
		}
	}
	for k, p := range s.pokemons {
		if p.OwnerID == id {
			delete(s.pokemons, k)
		}
	}
	// trades are kept; the deleted party is cleared
	for k, t := range s.trades {
		if !t.Involves(id) {
			continue
		}
		if t.SenderID == id {
			t.SenderID = 0
		}
		if t.ReceiverID == id {
			t.ReceiverID = 0
		}
		s.trades[k] = t
	}
	return nil
}

func (s *Store) loginTaken(login string, except int64) bool {
	for _, u := range s.users {
		if u.Login == login && u.ID != except {
			return true
		}
	}
	return false
}

// --- rights ---

func (s *Store) FindUserRights(_ context.Context, userID int64) (auth.RightSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := auth.RightSet{}
	for n := range s.userRights[userID] {
		out[n] = struct{}{}
	}
	return out, nil
}

func (s *Store) SetUserRights(_ context.Context, userID int64, rights []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return auth.ErrNotFound
	}
	s.userRights[userID] = auth.NewRightSet(rights...)
	return nil
}

func (s *Store) ListRights(context.Context) ([]auth.Right, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.Right, 0, len(s.catalog))
	for _, r := range s.catalog {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) EnsureRights(_ context.Context, rights []auth.Right) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rights {
		if _, ok := s.catalog[r.Name]; !ok {
			s.catalog[r.Name] = r
		}
	}
	return nil
}

// --- tokens ---

func (s *Store) CreateAccessToken(_ context.Context, t auth.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.access[t.Token]; ok {
		return auth.ErrConflict
	}
	t.Scopes = append([]string(nil), t.Scopes...)
	s.access[t.Token] = t
	return nil
}

func (s *Store) FindAccessToken(_ context.Context, token string) (auth.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.access[token]
	if !ok {
		return auth.AccessToken{}, auth.ErrNotFound
	}
	return t, nil
}

func (s *Store) DeleteAccessToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.access[token]; !ok {
		return auth.ErrNotFound
	}
	delete(s.access, token)
	return nil
}

func (s *Store) CreateRefreshToken(_ context.Context, t auth.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refresh[t.Token]; ok {
		return auth.ErrConflict
	}
	s.refresh[t.Token] = t
	return nil
}

func (s *Store) FindRefreshToken(_ context.Context, token string) (auth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[token]
	if !ok {
		return auth.RefreshToken{}, auth.ErrNotFound
	}
	return t, nil
}

func (s *Store) DeleteRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refresh[token]; !ok {
		return auth.ErrNotFound
	}
	delete(s.refresh, token)
	return nil
}

func (s *Store) CreateAuthorizationCode(_ context.Context, c auth.AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[c.Code]; ok {
		return auth.ErrConflict
	}
	s.codes[c.Code] = c
	return nil
}

func (s *Store) ConsumeAuthorizationCode(_ context.Context, code string) (auth.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return auth.AuthorizationCode{}, auth.ErrNotFound
	}
	delete(s.codes, code)
	return c, nil
}

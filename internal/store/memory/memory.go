package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pokeswap.org/internal/audit"
	"pokeswap.org/internal/auth"
	"pokeswap.org/internal/pokemon"
	"pokeswap.org/internal/trade"
)

// Store implements every persistence contract of the service in process.
// A single mutex serializes access; WithinTx holds it for the whole
// transaction and undoes its writes on error.
type Store struct {
	mu sync.Mutex

	userSeq    int64
	pokemonSeq int64
	tradeSeq   int64
	logSeq     int64

	users      map[int64]auth.User
	catalog    map[string]auth.Right
	userRights map[int64]auth.RightSet
	access     map[string]auth.AccessToken
	refresh    map[string]auth.RefreshToken
	codes      map[string]auth.AuthorizationCode
	pokemons   map[int64]pokemon.Pokemon
	trades     map[int64]trade.Trade
	logs       []audit.Entry

	now func() time.Time
}

var (
	_ auth.Store    = (*Store)(nil)
	_ pokemon.Store = (*Store)(nil)
	_ trade.Store   = (*Store)(nil)
	_ audit.Store   = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:      make(map[int64]auth.User),
		catalog:    make(map[string]auth.Right),
		userRights: make(map[int64]auth.RightSet),
		access:     make(map[string]auth.AccessToken),
		refresh:    make(map[string]auth.RefreshToken),
		codes:      make(map[string]auth.AuthorizationCode),
		pokemons:   make(map[int64]pokemon.Pokemon),
		trades:     make(map[int64]trade.Trade),
		now:        time.Now,
	}
}

// Ping satisfies readiness probes.
func (s *Store) Ping(context.Context) error { return nil }

// --- audit ---

func (s *Store) AppendLog(_ context.Context, e audit.Entry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logSeq++
	e.ID = s.logSeq
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	s.logs = append(s.logs, e)
	return e, nil
}

func (s *Store) ListLogs(_ context.Context, from, to time.Time) ([]audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []audit.Entry{}
	for _, e := range s.logs {
		if !from.IsZero() && e.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !e.Timestamp.Before(to) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

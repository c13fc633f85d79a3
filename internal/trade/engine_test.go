package trade_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokeswap.org/internal/auth"
	"pokeswap.org/internal/pokemon"
	"pokeswap.org/internal/store/memory"
	"pokeswap.org/internal/trade"
)

type fixture struct {
	store  *memory.Store
	engine *trade.Engine
	ash    int64
	misty  int64
	brock  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	f := &fixture{store: st, engine: trade.NewEngine(st)}
	f.ash = f.user(t, "ash")
	f.misty = f.user(t, "misty")
	f.brock = f.user(t, "brock")
	return f
}

func (f *fixture) user(t *testing.T, login string) int64 {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), auth.User{Login: login, FirstName: login}, nil)
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) mon(t *testing.T, owner int64, species string) int64 {
	t.Helper()
	p, err := f.store.CreatePokemon(context.Background(), pokemon.Pokemon{OwnerID: owner, Species: species, Level: 5})
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) ownerOf(t *testing.T, id int64) int64 {
	t.Helper()
	for _, owner := range []int64{f.ash, f.misty, f.brock} {
		if _, err := f.store.FindPokemon(context.Background(), owner, id); err == nil {
			return owner
		}
	}
	t.Fatalf("pokemon %d has no owner", id)
	return 0
}

func TestAcceptSwapsOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pikachu := f.mon(t, f.ash, "pikachu")
	staryu := f.mon(t, f.misty, "staryu")
	starmie := f.mon(t, f.misty, "starmie")

	tr, err := f.engine.CreateTrade(ctx, trade.Proposal{
		SenderID: f.ash, ReceiverID: f.misty,
		Offered: []int64{pikachu}, Requested: []int64{starmie, staryu},
	})
	require.NoError(t, err)
	assert.Equal(t, trade.StatusPending, tr.Status)
	assert.Equal(t, []int64{staryu, starmie}, tr.RequestedPokemons)

	// nothing moves before acceptance
	assert.Equal(t, f.ash, f.ownerOf(t, pikachu))

	got, err := f.engine.SettleTrade(ctx, tr.ID, trade.Actor{UserID: f.misty}, "accept")
	require.NoError(t, err)
	assert.Equal(t, trade.StatusAccepted, got.Status)
	assert.Equal(t, f.misty, f.ownerOf(t, pikachu))
	assert.Equal(t, f.ash, f.ownerOf(t, staryu))
	assert.Equal(t, f.ash, f.ownerOf(t, starmie))
}

func TestRefuseLeavesOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	onix := f.mon(t, f.brock, "onix")
	psyduck := f.mon(t, f.misty, "psyduck")

	tr, err := f.engine.CreateTrade(ctx, trade.Proposal{
		SenderID: f.brock, ReceiverID: f.misty,
		Offered: []int64{onix}, Requested: []int64{psyduck},
	})
	require.NoError(t, err)

	got, err := f.engine.SettleTrade(ctx, tr.ID, trade.Actor{UserID: f.misty}, "refuse")
	require.NoError(t, err)
	assert.Equal(t, trade.StatusRefused, got.Status)
	assert.Equal(t, f.brock, f.ownerOf(t, onix))
	assert.Equal(t, f.misty, f.ownerOf(t, psyduck))
}

func TestSettleTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pikachu := f.mon(t, f.ash, "pikachu")
	tr, err := f.engine.CreateTrade(ctx, trade.Proposal{SenderID: f.ash, ReceiverID: f.misty, Offered: []int64{pikachu}})
	require.NoError(t, err)

	_, err = f.engine.SettleTrade(ctx, tr.ID, trade.Actor{UserID: f.misty}, "accept")
	require.NoError(t, err)

	for _, action := range []string{"accept", "refuse"} {
		_, err = f.engine.SettleTrade(ctx, tr.ID, trade.Actor{UserID: f.misty}, action)
		assert.ErrorIs(t, err, trade.ErrAlreadySettled, action)
		assert.ErrorIs(t, err, trade.ErrConflict, action)
	}
	assert.Equal(t, f.misty, f.ownerOf(t, pikachu))

	stored, err := f.store.FindTradeByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.StatusAccepted, stored.Status)
}

func TestOnlyReceiverSettles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pikachu := f.mon(t, f.ash, "pikachu")
	tr, err := f.engine.CreateTrade(ctx, trade.Proposal{SenderID: f.ash, ReceiverID: f.misty, Offered: []int64{pikachu}})
	require.NoError(t, err)

	for _, who := range []int64{f.ash, f.brock} {
		_, err = f.engine.SettleTrade(ctx, tr.ID, trade.Actor{UserID: who}, "accept")
		assert.ErrorIs(t, err, trade.ErrNotReceiver)
		assert.ErrorIs(t, err, trade.ErrForbidden)
	}
	assert.Equal(t, f.ash, f.ownerOf(t, pikachu))

	// the all-right holder acts for anyone
	got, err := f.engine.SettleTrade(ctx, tr.ID, trade.Actor{UserID: f.brock, AllRight: true}, "reject")
	require.NoError(t, err)
	assert.Equal(t, trade.StatusRefused, got.Status)
}

func TestAcceptFailsWhenSenderDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staryu := f.mon(t, f.misty, "staryu")
	tr, err := f.engine.CreateTrade(ctx, trade.Proposal{SenderID: f.ash, ReceiverID: f.misty, Requested: []int64{staryu}})
	require.NoError(t, err)

	require.NoError(t, f.store.DeleteUser(ctx, f.ash))

	_, err = f.engine.SettleTrade(ctx, tr.ID, trade.Actor{UserID: f.misty}, "accept")
	assert.ErrorIs(t, err, trade.ErrItemsNotOwned)
	assert.Equal(t, f.misty, f.ownerOf(t, staryu))

	got, err := f.engine.GetTrade(ctx, f.misty, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.StatusPending, got.Status)
	assert.Equal(t, int64(0), got.SenderID)
}

func TestCreateTradeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pikachu := f.mon(t, f.ash, "pikachu")
	staryu := f.mon(t, f.misty, "staryu")

	cases := []struct {
		name string
		p    trade.Proposal
		want error
	}{
		{"unknown receiver", trade.Proposal{SenderID: f.ash, ReceiverID: 999, Offered: []int64{pikachu}}, trade.ErrUserNotFound},
		{"offered not owned", trade.Proposal{SenderID: f.ash, ReceiverID: f.misty, Offered: []int64{staryu}}, trade.ErrItemsNotOwned},
		{"requested not owned", trade.Proposal{SenderID: f.ash, ReceiverID: f.misty, Requested: []int64{pikachu}}, trade.ErrItemsNotOwned},
		{"self trade", trade.Proposal{SenderID: f.ash, ReceiverID: f.ash, Offered: []int64{pikachu}}, trade.ErrInvalidInput},
		{"empty", trade.Proposal{SenderID: f.ash, ReceiverID: f.misty}, trade.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.CreateTrade(ctx, tc.p)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	trades, err := f.engine.ListTrades(ctx, f.ash)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestGetTradeHidesForeignTrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pikachu := f.mon(t, f.ash, "pikachu")
	tr, err := f.engine.CreateTrade(ctx, trade.Proposal{SenderID: f.ash, ReceiverID: f.misty, Offered: []int64{pikachu}})
	require.NoError(t, err)

	_, err = f.engine.GetTrade(ctx, f.misty, tr.ID)
	require.NoError(t, err)
	_, err = f.engine.GetTrade(ctx, f.brock, tr.ID)
	assert.ErrorIs(t, err, trade.ErrNotFound)
}

func TestAcceptFailsWhenItemsMoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pikachu := f.mon(t, f.ash, "pikachu")
	staryu := f.mon(t, f.misty, "staryu")

	tr, err := f.engine.CreateTrade(ctx, trade.Proposal{
		SenderID: f.ash, ReceiverID: f.misty, Offered: []int64{pikachu}, Requested: []int64{staryu},
	})
	require.NoError(t, err)

	// ash gives pikachu away to brock through another trade first
	other, err := f.engine.CreateTrade(ctx, trade.Proposal{SenderID: f.ash, ReceiverID: f.brock, Offered: []int64{pikachu}})
	require.NoError(t, err)
	_, err = f.engine.SettleTrade(ctx, other.ID, trade.Actor{UserID: f.brock}, "accept")
	require.NoError(t, err)

	_, err = f.engine.SettleTrade(ctx, tr.ID, trade.Actor{UserID: f.misty}, "accept")
	assert.ErrorIs(t, err, trade.ErrItemsNotOwned)

	stored, err := f.store.FindTradeByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.StatusPending, stored.Status)
	assert.Equal(t, f.misty, f.ownerOf(t, staryu))
	assert.Equal(t, f.brock, f.ownerOf(t, pikachu))

	// refusal is still possible
	_, err = f.engine.SettleTrade(ctx, tr.ID, trade.Actor{UserID: f.misty}, "refuse")
	require.NoError(t, err)
}

// failingStore breaks the nth reassignment inside a transaction.
type failingStore struct {
	*memory.Store
	failAt int
}

type failingTx struct {
	trade.Tx
	failAt int
	calls  int
}

var errInjected = errors.New("injected failure")

func (tx *failingTx) ReassignItemOwner(ctx context.Context, itemID, from, to int64) error {
	tx.calls++
	if tx.calls == tx.failAt {
		return errInjected
	}
	return tx.Tx.ReassignItemOwner(ctx, itemID, from, to)
}

func (s *failingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx trade.Tx) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx trade.Tx) error {
		return fn(ctx, &failingTx{Tx: tx, failAt: s.failAt})
	})
}

func TestAcceptIsAtomic(t *testing.T) {
	for failAt := 1; failAt <= 3; failAt++ {
		st := memory.New()
		ctx := context.Background()
		ash, err := st.CreateUser(ctx, auth.User{Login: "ash"}, nil)
		require.NoError(t, err)
		misty, err := st.CreateUser(ctx, auth.User{Login: "misty"}, nil)
		require.NoError(t, err)
		a, _ := st.CreatePokemon(ctx, pokemon.Pokemon{OwnerID: ash.ID, Species: "pikachu", Level: 1})
		b, _ := st.CreatePokemon(ctx, pokemon.Pokemon{OwnerID: ash.ID, Species: "bulbasaur", Level: 1})
		c, _ := st.CreatePokemon(ctx, pokemon.Pokemon{OwnerID: misty.ID, Species: "staryu", Level: 1})

		engine := trade.NewEngine(&failingStore{Store: st, failAt: failAt})
		tr, err := engine.CreateTrade(ctx, trade.Proposal{
			SenderID: ash.ID, ReceiverID: misty.ID, Offered: []int64{a.ID, b.ID}, Requested: []int64{c.ID},
		})
		require.NoError(t, err)

		_, err = engine.SettleTrade(ctx, tr.ID, trade.Actor{UserID: misty.ID}, "accept")
		require.ErrorIs(t, err, errInjected)

		ashMons, _ := st.ListPokemons(ctx, ash.ID)
		mistyMons, _ := st.ListPokemons(ctx, misty.ID)
		assert.Len(t, ashMons, 2, "failAt=%d", failAt)
		assert.Len(t, mistyMons, 1, "failAt=%d", failAt)

		stored, _ := st.FindTradeByID(ctx, tr.ID)
		assert.Equal(t, trade.StatusPending, stored.Status)
	}
}

func TestConcurrentAcceptsConserveItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pikachu := f.mon(t, f.ash, "pikachu")
	staryu := f.mon(t, f.misty, "staryu")
	onix := f.mon(t, f.brock, "onix")

	// two trades compete for pikachu
	toMisty, err := f.engine.CreateTrade(ctx, trade.Proposal{SenderID: f.ash, ReceiverID: f.misty, Offered: []int64{pikachu}, Requested: []int64{staryu}})
	require.NoError(t, err)
	toBrock, err := f.engine.CreateTrade(ctx, trade.Proposal{SenderID: f.ash, ReceiverID: f.brock, Offered: []int64{pikachu}, Requested: []int64{onix}})
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, who := toMisty.ID, f.misty
			if i%2 == 1 {
				id, who = toBrock.ID, f.brock
			}
			if _, err := f.engine.SettleTrade(ctx, id, trade.Actor{UserID: who}, "accept"); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	total := 0
	for _, owner := range []int64{f.ash, f.misty, f.brock} {
		mons, err := f.store.ListPokemons(ctx, owner)
		require.NoError(t, err)
		total += len(mons)
	}
	assert.Equal(t, 3, total)
}

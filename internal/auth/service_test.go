package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	return NewService(store, newTestIssuer(t, store)), store
}

func sampleUser(login string) NewUser {
	return NewUser{
		FirstName: "Ash",
		LastName:  "Ketchum",
		Login:     login,
		Password:  "pikachu1",
		BirthDate: time.Date(1997, 5, 22, 0, 0, 0, 0, time.UTC),
	}
}

func TestDefaultRights(t *testing.T) {
	got := NewRightSet(DefaultRights()...)
	for _, want := range []string{RightUsersRead, RightPokemonsRead, RightTradeRead, RightTradeUpdateSelf, RightPokemonsCreateSelf} {
		assert.True(t, got.Has(want), want)
	}
	for _, absent := range []string{RightLogsRead, RightUsersCreate, RightTradeUpdateAll, RightUsersDeleteAll} {
		assert.False(t, got.Has(absent), absent)
	}
	assert.Len(t, AllRights(), 19)
}

func TestRegisterAssignsDefaultRights(t *testing.T) {
	svc, store := newTestService(t)
	in := sampleUser("ash")
	in.Rights = []string{RightLogsRead}

	u, err := svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.NotEmpty(t, u.PasswordHash)
	assert.NotEqual(t, "pikachu1", u.PasswordHash)

	rights := store.rights[u.ID]
	assert.False(t, rights.Has(RightLogsRead), "register must ignore requested rights")
	assert.True(t, rights.Has(RightTradeCreateSelf))
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	bad := sampleUser("")
	_, err := svc.CreateUser(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidInput)

	future := sampleUser("future")
	future.BirthDate = time.Now().Add(48 * time.Hour)
	_, err = svc.CreateUser(ctx, future)
	require.ErrorIs(t, err, ErrInvalidInput)

	short := sampleUser("short")
	short.Password = "abc"
	_, err = svc.CreateUser(ctx, short)
	require.ErrorIs(t, err, ErrInvalidInput)

	unknown := sampleUser("unknown")
	unknown.Rights = []string{"pokemons:fly"}
	_, err = svc.CreateUser(ctx, unknown)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateUser(ctx, sampleUser("dup"))
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, sampleUser("dup"))
	require.ErrorIs(t, err, ErrConflict)
}

func TestListUsersPaginates(t *testing.T) {
	svc, store := newTestService(t)
	for i := 0; i < 25; i++ {
		store.addUser()
	}
	page, err := svc.ListUsers(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, DefaultPageSize, page.PageSize)
	require.Len(t, page.Users, 5)
	assert.Equal(t, int64(21), page.Users[0].ID)

	page, err = svc.ListUsers(context.Background(), 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.PageSize)
}

func TestUpdateUserReplacesRights(t *testing.T) {
	svc, store := newTestService(t)
	u := store.addUser(RightUsersRead)
	name := "  Misty "

	got, err := svc.UpdateUser(context.Background(), u.ID, UserUpdate{FirstName: &name, Rights: []string{RightTradeRead}})
	require.NoError(t, err)
	assert.Equal(t, "Misty", got.FirstName)
	assert.True(t, store.rights[u.ID].Has(RightTradeRead))
	assert.False(t, store.rights[u.ID].Has(RightUsersRead))

	_, err = svc.UpdateUser(context.Background(), 999, UserUpdate{FirstName: &name})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBootstrapAdminIsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	created, err := svc.BootstrapAdmin(ctx, "leopkmn", "cynthia")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.BootstrapAdmin(ctx, "leopkmn", "cynthia")
	require.NoError(t, err)
	assert.False(t, created)

	admin, err := store.FindUserByLogin(ctx, "leopkmn")
	require.NoError(t, err)
	assert.Len(t, store.rights[admin.ID], len(Catalog))
}

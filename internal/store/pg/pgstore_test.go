package pg

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokeswap.org/internal/auth"
	"pokeswap.org/internal/trade"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestNilDB(t *testing.T) {
	s := &Store{}
	_, err := s.FindUserByID(context.Background(), 1)
	assert.ErrorIs(t, err, errNoDB)
	assert.ErrorIs(t, s.Ping(context.Background()), errNoDB)
	assert.NoError(t, s.Close())
}

func TestCreateUserLoginTaken(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectRollback()

	_, err := s.CreateUser(context.Background(), auth.User{Login: "ash"}, nil)
	assert.ErrorIs(t, err, auth.ErrLoginTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserWithRights(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "login", "password_hash", "birth_date", "created_at", "updated_at"}).
			AddRow(int64(3), "Ash", "Ketchum", "ash", "hash", nil, now, now))
	mock.ExpectExec("insert into user_rights").WithArgs(int64(3), auth.RightUsersRead).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into user_rights").WithArgs(int64(3), "bogus").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})
	mock.ExpectRollback()

	_, err := s.CreateUser(context.Background(), auth.User{Login: "ash"}, []string{auth.RightUsersRead, "bogus"})
	assert.ErrorIs(t, err, auth.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("from users where login").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.FindUserByLogin(context.Background(), "missing")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestFindAccessTokenParsesScopes(t *testing.T) {
	s, mock := newMock(t)
	exp := time.Now().Add(time.Hour).UTC()
	mock.ExpectQuery("from access_tokens").WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"token", "user_id", "scopes", "expires_at"}).
			AddRow("tok", int64(9), "users:read trade:read", exp))

	got, err := s.FindAccessToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.UserID)
	assert.Equal(t, []string{"users:read", "trade:read"}, got.Scopes)
}

func TestDeleteRefreshTokenMissing(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("delete from refresh_tokens").WithArgs("gone").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.DeleteRefreshToken(context.Background(), "gone"), auth.ErrNotFound)
}

func TestFindItemsByOwnerAndIDs(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("where owner_id = $1 and id in ($2, $3)")).
		WithArgs(int64(1), int64(10), int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id"}).AddRow(int64(10), int64(1)))

	items, err := s.FindItemsByOwnerAndIDs(context.Background(), 1, []int64{10, 11})
	require.NoError(t, err)
	assert.Equal(t, []trade.Item{{ID: 10, OwnerID: 1}}, items)
}

func TestWithinTxCommitsSwap(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("where id in ($1, $2)")).
		WithArgs(int64(4), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id"}).AddRow(int64(4), int64(1)).AddRow(int64(5), int64(2)))
	mock.ExpectExec("update pokemons set owner_id").WithArgs(int64(4), int64(1), int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx trade.Tx) error {
		items, err := tx.LockItems(ctx, []int64{4, 5})
		if err != nil {
			return err
		}
		require.Len(t, items, 2)
		return tx.ReassignItemOwner(ctx, 4, 1, 2)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackWhenOwnerChanged(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("update pokemons set owner_id").WithArgs(int64(4), int64(1), int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx trade.Tx) error {
		return tx.ReassignItemOwner(ctx, 4, 1, 2)
	})
	assert.ErrorIs(t, err, trade.ErrItemsNotOwned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTradeStatusAlreadySettled(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("update trades set status").WithArgs(int64(7), "pending", "refused").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("select exists").WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := s.UpdateTradeStatus(context.Background(), 7, trade.StatusPending, trade.StatusRefused)
	assert.ErrorIs(t, err, trade.ErrAlreadySettled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindTradeLoadsItems(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("from trades where id").WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "receiver_id", "status", "created_at", "updated_at"}).
			AddRow(int64(2), int64(1), int64(3), "pending", now, now))
	mock.ExpectQuery("from trade_items").WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"trade_id", "pokemon_id", "side"}).
			AddRow(int64(2), int64(10), "offered").
			AddRow(int64(2), int64(20), "requested").
			AddRow(int64(2), int64(21), "requested"))

	got, err := s.FindTradeByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, trade.StatusPending, got.Status)
	assert.Equal(t, []int64{10}, got.OfferedPokemons)
	assert.Equal(t, []int64{20, 21}, got.RequestedPokemons)
}

func TestDeleteUserKeepsTrades(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("delete from users where id").WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.DeleteUser(context.Background(), 1))

	now := time.Now().UTC()
	mock.ExpectQuery("from trades where id").WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "receiver_id", "status", "created_at", "updated_at"}).
			AddRow(int64(2), nil, int64(3), "accepted", now, now))
	mock.ExpectQuery("from trade_items").WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"trade_id", "pokemon_id", "side"}).
			AddRow(int64(2), int64(10), "offered"))

	got, err := s.FindTradeByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.SenderID)
	assert.Equal(t, int64(3), got.ReceiverID)
	assert.Equal(t, trade.StatusAccepted, got.Status)
	assert.Equal(t, []int64{10}, got.OfferedPokemons)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListLogsRange(t *testing.T) {
	s, mock := newMock(t)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("from logs where created_at >= $1 order by created_at, id")).
		WithArgs(from).
		WillReturnRows(sqlmock.NewRows([]string{"id", "action", "user_id", "metadata", "created_at"}).
			AddRow(int64(1), "trade.accept", int64(4), []byte(`{"trade_id":"2"}`), from).
			AddRow(int64(2), "system.start", nil, []byte(`{}`), from))

	got, err := s.ListLogs(context.Background(), from, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].Metadata["trade_id"])
	assert.Equal(t, int64(0), got[1].UserID)
}

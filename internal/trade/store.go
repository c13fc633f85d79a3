package trade

import "context"

// Store persists trades and exposes the ownership view of items.
type Store interface {
	UserExists(ctx context.Context, id int64) (bool, error)
	// FindItemsByOwnerAndIDs returns the subset of ids currently owned by ownerID.
	FindItemsByOwnerAndIDs(ctx context.Context, ownerID int64, ids []int64) ([]Item, error)
	CreateTrade(ctx context.Context, t Trade) (Trade, error)
	FindTradeByID(ctx context.Context, id int64) (Trade, error)
	ListTradesForUser(ctx context.Context, userID int64) ([]Trade, error)
	// UpdateTradeStatus moves a trade from one status to another and fails
	// with ErrAlreadySettled when the stored status is not from.
	UpdateTradeStatus(ctx context.Context, id int64, from, to Status) (Trade, error)
	// WithinTx runs fn in a transaction. Every change made through tx is
	// discarded when fn returns an error.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the transactional view used by the swap.
type Tx interface {
	// FindTradeForUpdate loads and locks a trade row.
	FindTradeForUpdate(ctx context.Context, id int64) (Trade, error)
	// LockItems loads and locks the given items, ordered by id. Missing ids
	// are absent from the result.
	LockItems(ctx context.Context, ids []int64) ([]Item, error)
	// ReassignItemOwner changes the owner of one item only if it is still
	// owned by from, failing with ErrItemsNotOwned otherwise.
	ReassignItemOwner(ctx context.Context, itemID, from, to int64) error
	UpdateTradeStatus(ctx context.Context, id int64, from, to Status) (Trade, error)
}

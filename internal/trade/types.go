package trade

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("trade: not found")
	ErrInvalidInput = errors.New("trade: invalid input")
	ErrForbidden    = errors.New("trade: forbidden")
	ErrConflict     = errors.New("trade: conflict")

	ErrUserNotFound   = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrInvalidAction  = fmt.Errorf("%w: invalid action", ErrInvalidInput)
	ErrNotReceiver    = fmt.Errorf("%w: only the receiver can settle this trade", ErrForbidden)
	ErrAlreadySettled = fmt.Errorf("%w: trade already settled", ErrConflict)
	ErrItemsNotOwned  = fmt.Errorf("%w: items not found or not owned", ErrConflict)
)

// Status of a trade. pending is the only non-terminal status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRefused  Status = "refused"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRefused
}

// Action requested by the receiver of a trade.
type Action string

const (
	ActionAccept Action = "accept"
	ActionRefuse Action = "refuse"
)

// ParseAction accepts "accept" and "refuse" (and the "reject" alias).
func ParseAction(raw string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ActionAccept):
		return ActionAccept, nil
	case string(ActionRefuse), "reject":
		return ActionRefuse, nil
	}
	return "", ErrInvalidAction
}

// Transition returns the status reached by applying a to from.
func Transition(from Status, a Action) (Status, error) {
	if from != StatusPending {
		return from, ErrAlreadySettled
	}
	switch a {
	case ActionAccept:
		return StatusAccepted, nil
	case ActionRefuse:
		return StatusRefused, nil
	}
	return from, ErrInvalidAction
}

// Trade is a bilateral proposal: the sender gives Offered and receives
// Requested from the receiver.
type Trade struct {
	ID                int64     `json:"id"`
	SenderID          int64     `json:"senderId"`
	ReceiverID        int64     `json:"receiverId"`
	OfferedPokemons   []int64   `json:"offeredPokemons"`
	RequestedPokemons []int64   `json:"requestedPokemons"`
	Status            Status    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Involves reports whether userID is a party of the trade. A party whose
// account was deleted is recorded as 0 and matches nobody.
func (t Trade) Involves(userID int64) bool {
	if userID <= 0 {
		return false
	}
	return t.SenderID == userID || t.ReceiverID == userID
}

// Item is the ownership view of a tradeable pokemon.
type Item struct {
	ID      int64
	OwnerID int64
}

// Proposal is the input of CreateTrade.
type Proposal struct {
	SenderID   int64
	ReceiverID int64
	Offered    []int64
	Requested  []int64
}

// Actor is the caller settling a trade. AllRight is set when the caller
// holds the all-scoped update right and may settle any trade.
type Actor struct {
	UserID   int64
	AllRight bool
}

package httpapi

import (
	"net/http"
	"strings"

	"pokeswap.org/internal/auth"
	"pokeswap.org/internal/trade"
)

type createTradeRequest struct {
	ReceiverID        int64   `json:"receiverId"`
	OfferedPokemons   []int64 `json:"offeredPokemons"`
	RequestedPokemons []int64 `json:"requestedPokemons"`
}

type settleTradeRequest struct {
	Action string `json:"action"`
}

func (a *API) createTrade(w http.ResponseWriter, r *http.Request) {
	sender, err := pathUserID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if !identity(r).CanActOn(sender, auth.RightTradeCreateSelf, auth.RightTradeCreateAll) {
		forbidden(w, r)
		return
	}
	var req createTradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	t, err := a.trades.CreateTrade(r.Context(), trade.Proposal{
		SenderID:   sender,
		ReceiverID: req.ReceiverID,
		Offered:    req.OfferedPokemons,
		Requested:  req.RequestedPokemons,
	})
	if err != nil {
		handleTradeError(w, r, err)
		return
	}
	a.record(r.Context(), "trade.created", tradeFields(t))
	a.publish(r.Context(), t)
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) listTrades(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if !canSeeTrades(identity(r), userID) {
		forbidden(w, r)
		return
	}
	list, err := a.trades.ListTrades(r.Context(), userID)
	if err != nil {
		handleTradeError(w, r, err)
		return
	}
	if list == nil {
		list = []trade.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": list})
}

func (a *API) getTrade(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	tradeID, err := pathID(r, "tradeId")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if !canSeeTrades(identity(r), userID) {
		forbidden(w, r)
		return
	}
	t, err := a.trades.GetTrade(r.Context(), userID, tradeID)
	if err != nil {
		handleTradeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// settleTrade acts as the authenticated caller.
func (a *API) settleTrade(w http.ResponseWriter, r *http.Request) {
	a.settle(w, r)
}

// settleUserTrade additionally binds the path user to the caller unless the
// caller may settle any trade.
func (a *API) settleUserTrade(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if !canSeeTrades(identity(r), userID) {
		forbidden(w, r)
		return
	}
	a.settle(w, r)
}

// canSeeTrades binds the path user to the caller. Holders of
// trade:update:all act for every trainer.
func canSeeTrades(id auth.Identity, userID int64) bool {
	return userID == id.UserID || id.Allows(auth.RightTradeUpdateAll)
}

func (a *API) settle(w http.ResponseWriter, r *http.Request) {
	tradeID, err := pathID(r, "tradeId")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	var req settleTradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	id := identity(r)
	actor := trade.Actor{UserID: id.UserID, AllRight: id.Allows(auth.RightTradeUpdateAll)}
	t, err := a.trades.SettleTrade(r.Context(), tradeID, actor, req.Action)
	if err != nil {
		a.record(r.Context(), "trade.settle_failed", map[string]string{
			"trade_id": itoa(tradeID),
			"action":   strings.ToLower(strings.TrimSpace(req.Action)),
			"error":    err.Error(),
		})
		handleTradeError(w, r, err)
		return
	}
	a.record(r.Context(), "trade."+string(t.Status), tradeFields(t))
	a.publish(r.Context(), t)
	writeJSON(w, http.StatusOK, t)
}

func tradeFields(t trade.Trade) map[string]string {
	return map[string]string{
		"trade_id":    itoa(t.ID),
		"sender_id":   itoa(t.SenderID),
		"receiver_id": itoa(t.ReceiverID),
		"offered":     joinIDs(t.OfferedPokemons),
		"requested":   joinIDs(t.RequestedPokemons),
		"status":      string(t.Status),
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = itoa(id)
	}
	return strings.Join(parts, " ")
}

package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"pokeswap.org/internal/auth"
	"pokeswap.org/internal/obs"
	"pokeswap.org/internal/pokemon"
	"pokeswap.org/internal/trade"
)

// Machine readable error codes.
const (
	codeUnauthenticated = "unauthenticated"
	codeForbidden       = "forbidden"
	codeNotFound        = "not_found"
	codeInvalidState    = "invalid_state"
	codeConflict        = "conflict"
	codeInvalidInput    = "invalid_input"
	codeRateLimited     = "rate_limited"
	codeInternal        = "internal"
)

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	payload := map[string]any{
		"error": msg,
		"code":  code,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, status, payload)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeError(w, r, http.StatusBadRequest, codeInvalidInput, msg)
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusForbidden, codeForbidden, "access denied")
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	obs.Logger().Error().Err(err).
		Str("request_id", RequestIDFromContext(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error")
}

// detail strips the sentinel prefix from a wrapped error message.
func detail(err, base error) string {
	return strings.TrimPrefix(err.Error(), base.Error()+": ")
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, "missing token")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, "invalid credentials")
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, "invalid access token")
	case errors.Is(err, auth.ErrInsufficientScope):
		writeError(w, r, http.StatusForbidden, codeForbidden, "insufficient token scope")
	case errors.Is(err, auth.ErrForbidden):
		forbidden(w, r)
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, "user not found")
	case errors.Is(err, auth.ErrLoginTaken):
		writeError(w, r, http.StatusConflict, codeConflict, "login already taken")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, codeConflict, detail(err, auth.ErrConflict))
	case errors.Is(err, auth.ErrInvalidInput):
		badRequest(w, r, detail(err, auth.ErrInvalidInput))
	default:
		internalError(w, r, err)
	}
}

func handlePokemonError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pokemon.ErrNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, "pokemon not found")
	case errors.Is(err, pokemon.ErrInvalidInput):
		badRequest(w, r, detail(err, pokemon.ErrInvalidInput))
	default:
		handleAuthError(w, r, err)
	}
}

func handleTradeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, trade.ErrAlreadySettled):
		writeError(w, r, http.StatusBadRequest, codeInvalidState, "trade already settled")
	case errors.Is(err, trade.ErrItemsNotOwned):
		writeError(w, r, http.StatusConflict, codeConflict, "items not found or not owned")
	case errors.Is(err, trade.ErrNotReceiver):
		writeError(w, r, http.StatusForbidden, codeForbidden, "only the receiver can settle this trade")
	case errors.Is(err, trade.ErrForbidden):
		forbidden(w, r)
	case errors.Is(err, trade.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, "user not found")
	case errors.Is(err, trade.ErrNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, "trade not found")
	case errors.Is(err, trade.ErrInvalidInput):
		badRequest(w, r, detail(err, trade.ErrInvalidInput))
	default:
		handleAuthError(w, r, err)
	}
}

package httpapi

import (
	"net/http"

	"pokeswap.org/internal/auth"
)

const authHeader = "Authorization"

// authorize runs the access guard with the route's required rights and
// places the identity on the request context.
func (a *API) authorize(rights ...string) func(http.HandlerFunc) http.Handler {
	return func(next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.guard.Authorize(r.Context(), r.Header.Get(authHeader), rights...)
			if err != nil {
				handleAuthError(w, r, err)
				return
			}
			next(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
		})
	}
}

// authenticated requires a valid persisted token without checking rights.
func (a *API) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.guard.Authenticate(r.Context(), r.Header.Get(authHeader))
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		next(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
	})
}

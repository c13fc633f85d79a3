package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"pokeswap.org/internal/auth"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
}

func (a *API) toTokenResponse(p auth.TokenPair) tokenResponse {
	ttl := p.AccessExpiresAt.Sub(a.now())
	if ttl < 0 {
		ttl = 0
	}
	return tokenResponse{
		AccessToken:  p.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(ttl.Round(time.Second) / time.Second),
		RefreshToken: p.RefreshToken,
		Scope:        strings.Join(p.Scopes, " "),
	}
}

// token implements the OAuth2 token endpoint for the password,
// refresh_token and authorization_code grants.
func (a *API) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		badRequest(w, r, "invalid form body")
		return
	}
	f := r.PostForm
	scopes := auth.ParseScope(f.Get("scope"))

	var (
		pair auth.TokenPair
		err  error
	)
	grant := f.Get("grant_type")
	switch grant {
	case "password":
		pair, err = a.auth.PasswordGrant(r.Context(), f.Get("username"), f.Get("password"), scopes)
	case "refresh_token":
		pair, err = a.auth.RefreshGrant(r.Context(), f.Get("refresh_token"), scopes)
	case "authorization_code":
		pair, err = a.auth.ExchangeCode(r.Context(), f.Get("code"), f.Get("client_id"), f.Get("redirect_uri"))
	case "":
		badRequest(w, r, "grant_type is required")
		return
	default:
		badRequest(w, r, "unsupported grant_type")
		return
	}
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	if claims, verr := a.auth.Issuer().VerifyAccessToken(pair.AccessToken); verr == nil {
		ctx := auth.ContextWithIdentity(r.Context(), auth.Identity{UserID: claims.UserID})
		a.record(ctx, "token.issued", map[string]string{"grant_type": grant, "scope": strings.Join(pair.Scopes, " ")})
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, a.toTokenResponse(pair))
}

// authorizeClient issues an authorization code and redirects back to the client.
func (a *API) authorizeClient(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if rt := q.Get("response_type"); rt != "" && rt != "code" {
		badRequest(w, r, "unsupported response_type")
		return
	}
	code, err := a.auth.Authorize(r.Context(), identity(r).UserID, q.Get("client_id"), q.Get("redirect_uri"), auth.ParseScope(q.Get("scope")))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	target, err := url.Parse(code.RedirectURI)
	if err != nil {
		badRequest(w, r, "redirect_uri must be an absolute URL")
		return
	}
	params := target.Query()
	params.Set("code", code.Code)
	if state := q.Get("state"); state != "" {
		params.Set("state", state)
	}
	target.RawQuery = params.Encode()
	a.record(r.Context(), "oauth.code_issued", map[string]string{"client_id": code.ClientID})
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (a *API) revoke(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Revoke(r.Context(), identity(r).Token); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.record(r.Context(), "token.revoked", nil)
	w.WriteHeader(http.StatusNoContent)
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pokeswap.org/internal/audit"
	"pokeswap.org/internal/auth"
	"pokeswap.org/internal/events"
	"pokeswap.org/internal/obs"
	"pokeswap.org/internal/pokemon"
	"pokeswap.org/internal/stream"
	"pokeswap.org/internal/trade"
)

const maxBodyBytes = 1 << 20

type pinger interface {
	Ping(ctx context.Context) error
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe reports ready when the store answers a ping.
type ReadyProbe struct {
	Store pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	return rp.Store.Ping(ctx)
}

// Deps wires the API to the domain services.
type Deps struct {
	Auth     *auth.Service
	Guard    *auth.Guard
	Pokemons *pokemon.Service
	Trades   *trade.Engine
	Audit    *audit.Recorder
	// Events receives trade events; it should include Stream when both are set.
	Events   events.Publisher
	Stream   *stream.Stream
	Ready    readinessChecker
	Version  string

	RateBurst     int
	RatePerSecond int
}

// API serves the trainer, pokemon, trade and OAuth2 routes.
type API struct {
	mux      *http.ServeMux
	handler  http.Handler
	auth     *auth.Service
	guard    *auth.Guard
	pokemons *pokemon.Service
	trades   *trade.Engine
	audit    *audit.Recorder
	events   events.Publisher
	stream   *stream.Stream
	ready    readinessChecker
	version  string
	now      func() time.Time
}

func New(d Deps) *API {
	a := &API{
		mux:      http.NewServeMux(),
		auth:     d.Auth,
		guard:    d.Guard,
		pokemons: d.Pokemons,
		trades:   d.Trades,
		audit:    d.Audit,
		events:   d.Events,
		stream:   d.Stream,
		ready:    d.Ready,
		version:  d.Version,
		now:      time.Now,
	}
	if a.ready == nil {
		a.ready = ReadyProbe{}
	}
	if a.events == nil {
		a.events = events.Nop{}
		if a.stream != nil {
			a.events = a.stream
		}
	}
	a.routes()

	burst, perSecond := d.RateBurst, d.RatePerSecond
	if burst <= 0 {
		burst = 40
	}
	if perSecond <= 0 {
		perSecond = 20
	}
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, maxBodyBytes)
	h = RateLimit(h, burst, perSecond)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = Logging(h)
	a.handler = RequestID(h)
	return a
}

func (a *API) routes() {
	m := a.mux

	// health/ready/metrics
	m.HandleFunc("GET /healthz", a.Healthz)
	m.HandleFunc("GET /readyz", a.Ready)
	m.Handle("GET /metrics", obs.Handler())

	// oauth2
	m.HandleFunc("POST /register", a.register)
	m.HandleFunc("POST /oauth2/token", a.token)
	m.Handle("GET /oauth2/authorize", a.authenticated(a.authorizeClient))
	m.Handle("POST /oauth2/revoke", a.authenticated(a.revoke))

	// users
	m.Handle("POST /users", a.authorize(auth.RightUsersCreate)(a.createUser))
	m.Handle("GET /users", a.authorize(auth.RightUsersRead)(a.listUsers))
	m.Handle("GET /users/{userId}", a.authorize(auth.RightUsersRead)(a.getUser))
	m.Handle("PUT /users/self", a.authorize(auth.RightUsersUpdateSelf)(a.updateSelf))
	m.Handle("PUT /users/{userId}", a.authorize(auth.RightUsersUpdateAll)(a.updateUser))
	m.Handle("PATCH /users/{userId}", a.authorize(auth.RightUsersUpdateAll)(a.updateUser))
	m.Handle("DELETE /users/self", a.authorize(auth.RightUsersDeleteSelf)(a.deleteSelf))
	m.Handle("DELETE /users/{userId}", a.authorize(auth.RightUsersDeleteAll)(a.deleteUser))
	m.Handle("GET /rights", a.authorize(auth.RightUsersRead)(a.listRights))

	// pokemons
	m.Handle("POST /users/self/pokemons", a.authorize(auth.RightPokemonsCreateSelf)(a.createPokemon))
	m.Handle("POST /users/{userId}/pokemons", a.authorize(auth.RightPokemonsCreateSelf, auth.RightPokemonsCreateAll)(a.createPokemon))
	m.Handle("GET /users/{userId}/pokemons", a.authorize(auth.RightPokemonsRead)(a.listPokemons))
	m.Handle("GET /users/{userId}/pokemons/{pokemonId}", a.authorize(auth.RightPokemonsRead)(a.getPokemon))
	m.Handle("PUT /users/{userId}/pokemons/{pokemonId}", a.authorize(auth.RightPokemonsUpdateSelf, auth.RightPokemonsUpdateAll)(a.updatePokemon))
	m.Handle("PATCH /users/{userId}/pokemons/{pokemonId}", a.authorize(auth.RightPokemonsUpdateSelf, auth.RightPokemonsUpdateAll)(a.updatePokemon))
	m.Handle("DELETE /users/{userId}/pokemons/{pokemonId}", a.authorize(auth.RightPokemonsDeleteSelf, auth.RightPokemonsDeleteAll)(a.deletePokemon))

	// trades
	m.Handle("POST /users/{userId}/trades", a.authorize(auth.RightTradeCreateSelf, auth.RightTradeCreateAll)(a.createTrade))
	m.Handle("GET /users/{userId}/trades", a.authorize(auth.RightTradeRead)(a.listTrades))
	m.Handle("GET /users/{userId}/trades/{tradeId}", a.authorize(auth.RightTradeRead)(a.getTrade))
	m.Handle("PATCH /users/{userId}/trades/{tradeId}", a.authorize(auth.RightTradeUpdateSelf, auth.RightTradeUpdateAll)(a.settleUserTrade))
	m.Handle("PATCH /trades/{tradeId}", a.authorize(auth.RightTradeUpdateSelf, auth.RightTradeUpdateAll)(a.settleTrade))
	m.Handle("GET /trades/stream", a.authorize(auth.RightTradeRead)(a.Stream))

	// audit
	m.Handle("GET /logs", a.authorize(auth.RightLogsRead)(a.exportLogs))

	m.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "not found")
	})
}

// Handler returns the routes wrapped in the full middleware chain.
func (a *API) Handler() http.Handler {
	return a.handler
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": obs.ServiceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return 0, errors.New("invalid integer parameter")
	}
	if v > max {
		v = max
	}
	return v, nil
}

// pathID parses a positive numeric path value.
func pathID(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

// pathUserID resolves {userId}; "self" and the literal /users/self routes
// resolve to the caller.
func pathUserID(r *http.Request) (int64, error) {
	if v := r.PathValue("userId"); v == "" || v == "self" {
		if id, ok := auth.UserIDFromContext(r.Context()); ok {
			return id, nil
		}
	}
	return pathID(r, "userId")
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}

// record writes an audit event; failures are logged and do not fail the request.
func (a *API) record(ctx context.Context, event string, fields map[string]string) {
	if err := a.audit.Record(ctx, event, fields); err != nil {
		obs.Logger().Warn().Err(err).Str("event", event).Msg("audit record failed")
	}
}

func (a *API) publish(ctx context.Context, t trade.Trade) {
	evt := events.FromTrade(t, a.now())
	if err := a.events.Publish(ctx, evt); err != nil {
		obs.Logger().Warn().Err(err).Int64("trade_id", t.ID).Msg("trade event not delivered")
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

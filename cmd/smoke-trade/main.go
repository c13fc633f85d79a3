package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pokeswap.org/internal/config"
	"pokeswap.org/internal/obs"
)

// smoke-trade drives a full trade against a running API: two trainers, one
// pokemon each, a proposal and its acceptance, then checks both collections.
func main() {
	cfg, err := config.LoadTools()
	if err != nil {
		obs.Logger().Fatal().Err(err).Msg("load config")
	}
	log := obs.SetupLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SmokeTimeout)
	defer cancel()
	c := &client{base: cfg.APIURL, http: &http.Client{Timeout: 5 * time.Second}}

	suffix := rand.IntN(1_000_000)
	ash := c.trainer(ctx, fmt.Sprintf("ash-%d", suffix))
	misty := c.trainer(ctx, fmt.Sprintf("misty-%d", suffix))

	pikachu := c.pokemon(ctx, ash, "pikachu")
	staryu := c.pokemon(ctx, misty, "staryu")

	var tr struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	c.call(ctx, http.MethodPost, "/users/self/trades", ash.token, map[string]any{
		"receiverId":        misty.id,
		"offeredPokemons":   []int64{pikachu},
		"requestedPokemons": []int64{staryu},
	}, http.StatusCreated, &tr)

	c.call(ctx, http.MethodPatch, fmt.Sprintf("/trades/%d", tr.ID), misty.token,
		map[string]string{"action": "accept"}, http.StatusOK, &tr)
	if tr.Status != "accepted" {
		log.Fatal().Int64("trade_id", tr.ID).Str("status", tr.Status).Msg("trade not accepted")
	}

	c.call(ctx, http.MethodGet, fmt.Sprintf("/users/%d/pokemons/%d", misty.id, pikachu), misty.token, nil, http.StatusOK, nil)
	c.call(ctx, http.MethodGet, fmt.Sprintf("/users/%d/pokemons/%d", ash.id, staryu), ash.token, nil, http.StatusOK, nil)

	// the swap is final
	c.call(ctx, http.MethodPatch, fmt.Sprintf("/trades/%d", tr.ID), misty.token,
		map[string]string{"action": "refuse"}, http.StatusBadRequest, nil)

	log.Info().Int64("trade_id", tr.ID).Int64("sender_id", ash.id).Int64("receiver_id", misty.id).Msg("trade smoke test passed")
}

type trainer struct {
	id    int64
	token string
}

type client struct {
	base string
	http *http.Client
}

func (c *client) trainer(ctx context.Context, login string) trainer {
	password := login + "-pw"
	var user struct {
		ID int64 `json:"id"`
	}
	c.call(ctx, http.MethodPost, "/register", "", map[string]string{
		"firstName": "Smoke",
		"lastName":  "Test",
		"login":     login,
		"password":  password,
		"birthDate": "2000-01-01",
	}, http.StatusCreated, &user)

	form := url.Values{"grant_type": {"password"}, "username": {login}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		obs.Logger().Fatal().Err(err).Msg("token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	c.do(req, http.StatusOK, &tok)
	return trainer{id: user.ID, token: tok.AccessToken}
}

func (c *client) pokemon(ctx context.Context, owner trainer, species string) int64 {
	var p struct {
		ID int64 `json:"id"`
	}
	c.call(ctx, http.MethodPost, "/users/self/pokemons", owner.token, map[string]any{
		"species": species,
		"level":   5,
	}, http.StatusCreated, &p)
	return p.ID
}

func (c *client) call(ctx context.Context, method, path, token string, body any, want int, out any) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			obs.Logger().Fatal().Err(err).Str("path", path).Msg("marshal body")
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		obs.Logger().Fatal().Err(err).Str("method", method).Str("path", path).Msg("build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	c.do(req, want, out)
}

func (c *client) do(req *http.Request, want int, out any) {
	resp, err := c.http.Do(req)
	if err != nil {
		obs.Logger().Fatal().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("request failed")
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		obs.Logger().Fatal().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("want", want).
			Int("status", resp.StatusCode).
			Bytes("body", data).
			Msg("unexpected status")
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			obs.Logger().Fatal().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("decode response")
		}
	}
}

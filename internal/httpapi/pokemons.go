package httpapi

import (
	"net/http"

	"pokeswap.org/internal/auth"
	"pokeswap.org/internal/pokemon"
)

type pokemonRequest struct {
	Species *string         `json:"species,omitempty"`
	Name    *string         `json:"name,omitempty"`
	Level   *int            `json:"level,omitempty"`
	Gender  *pokemon.Gender `json:"gender,omitempty"`
	Height  *float64        `json:"height,omitempty"`
	Weight  *float64        `json:"weight,omitempty"`
	IsShiny *bool           `json:"isShiny,omitempty"`
}

func (req pokemonRequest) toPokemon() pokemon.Pokemon {
	var p pokemon.Pokemon
	if req.Species != nil {
		p.Species = *req.Species
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Level != nil {
		p.Level = *req.Level
	}
	if req.Gender != nil {
		p.Gender = *req.Gender
	}
	if req.Height != nil {
		p.Height = *req.Height
	}
	if req.Weight != nil {
		p.Weight = *req.Weight
	}
	if req.IsShiny != nil {
		p.IsShiny = *req.IsShiny
	}
	return p
}

func (req pokemonRequest) toUpdate() pokemon.Update {
	return pokemon.Update{
		Species: req.Species,
		Name:    req.Name,
		Level:   req.Level,
		Gender:  req.Gender,
		Height:  req.Height,
		Weight:  req.Weight,
		IsShiny: req.IsShiny,
	}
}

// targetUser resolves the path user and checks it exists.
func (a *API) targetUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathUserID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return 0, false
	}
	if _, err := a.auth.GetUser(r.Context(), id); err != nil {
		handleAuthError(w, r, err)
		return 0, false
	}
	return id, true
}

func (a *API) createPokemon(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.targetUser(w, r)
	if !ok {
		return
	}
	if !identity(r).CanActOn(owner, auth.RightPokemonsCreateSelf, auth.RightPokemonsCreateAll) {
		forbidden(w, r)
		return
	}
	var req pokemonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	p, err := a.pokemons.Create(r.Context(), owner, req.toPokemon())
	if err != nil {
		handlePokemonError(w, r, err)
		return
	}
	a.record(r.Context(), "pokemon.created", map[string]string{
		"pokemon_id": itoa(p.ID),
		"owner_id":   itoa(owner),
		"species":    p.Species,
	})
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) listPokemons(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.targetUser(w, r)
	if !ok {
		return
	}
	list, err := a.pokemons.List(r.Context(), owner)
	if err != nil {
		handlePokemonError(w, r, err)
		return
	}
	if list == nil {
		list = []pokemon.Pokemon{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pokemons": list})
}

func (a *API) getPokemon(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.targetUser(w, r)
	if !ok {
		return
	}
	pid, err := pathID(r, "pokemonId")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	p, err := a.pokemons.Get(r.Context(), owner, pid)
	if err != nil {
		handlePokemonError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) updatePokemon(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.targetUser(w, r)
	if !ok {
		return
	}
	if !identity(r).CanActOn(owner, auth.RightPokemonsUpdateSelf, auth.RightPokemonsUpdateAll) {
		forbidden(w, r)
		return
	}
	pid, err := pathID(r, "pokemonId")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	var req pokemonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	p, err := a.pokemons.Update(r.Context(), owner, pid, req.toUpdate())
	if err != nil {
		handlePokemonError(w, r, err)
		return
	}
	a.record(r.Context(), "pokemon.updated", map[string]string{"pokemon_id": itoa(p.ID), "owner_id": itoa(owner)})
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deletePokemon(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.targetUser(w, r)
	if !ok {
		return
	}
	if !identity(r).CanActOn(owner, auth.RightPokemonsDeleteSelf, auth.RightPokemonsDeleteAll) {
		forbidden(w, r)
		return
	}
	pid, err := pathID(r, "pokemonId")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := a.pokemons.Delete(r.Context(), owner, pid); err != nil {
		handlePokemonError(w, r, err)
		return
	}
	a.record(r.Context(), "pokemon.deleted", map[string]string{"pokemon_id": itoa(pid), "owner_id": itoa(owner)})
	w.WriteHeader(http.StatusNoContent)
}

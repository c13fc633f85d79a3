package memory

import (
	"context"
	"fmt"
	"sort"

	"pokeswap.org/internal/pokemon"
)

func (s *Store) CreatePokemon(_ context.Context, p pokemon.Pokemon) (pokemon.Pokemon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[p.OwnerID]; !ok {
		return pokemon.Pokemon{}, fmt.Errorf("%w: owner %d", pokemon.ErrNotFound, p.OwnerID)
	}
	s.pokemonSeq++
	p.ID = s.pokemonSeq
	s.pokemons[p.ID] = p
	return p, nil
}

func (s *Store) FindPokemon(_ context.Context, ownerID, id int64) (pokemon.Pokemon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pokemons[id]
	if !ok || p.OwnerID != ownerID {
		return pokemon.Pokemon{}, pokemon.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListPokemons(_ context.Context, ownerID int64) ([]pokemon.Pokemon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []pokemon.Pokemon{}
	for _, p := range s.pokemons {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdatePokemon(_ context.Context, ownerID, id int64, upd pokemon.Update) (pokemon.Pokemon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pokemons[id]
	if !ok || p.OwnerID != ownerID {
		return pokemon.Pokemon{}, pokemon.ErrNotFound
	}
	if upd.Species != nil {
		p.Species = *upd.Species
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Level != nil {
		p.Level = *upd.Level
	}
	if upd.Gender != nil {
		p.Gender = *upd.Gender
	}
	if upd.Height != nil {
		p.Height = *upd.Height
	}
	if upd.Weight != nil {
		p.Weight = *upd.Weight
	}
	if upd.IsShiny != nil {
		p.IsShiny = *upd.IsShiny
	}
	s.pokemons[id] = p
	return p, nil
}

func (s *Store) DeletePokemon(_ context.Context, ownerID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pokemons[id]
	if !ok || p.OwnerID != ownerID {
		return pokemon.ErrNotFound
	}
	delete(s.pokemons, id)
	return nil
}

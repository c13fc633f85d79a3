package pokemon

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("pokemon: not found")
	ErrInvalidInput = errors.New("pokemon: invalid input")
)

// Gender of a pokemon.
type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderUnspecified Gender = "unspecified"
)

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderUnspecified:
		return true
	}
	return false
}

const (
	minLevel = 1
	maxLevel = 100
)

// Pokemon is a tradeable item. Exactly one trainer owns it at any time.
type Pokemon struct {
	ID      int64   `json:"id"`
	OwnerID int64   `json:"ownerId"`
	Species string  `json:"species"`
	Name    string  `json:"name"`
	Level   int     `json:"level"`
	Gender  Gender  `json:"gender"`
	Height  float64 `json:"height"`
	Weight  float64 `json:"weight"`
	IsShiny bool    `json:"isShiny"`
}

// Update is a partial update; nil fields are left untouched.
type Update struct {
	Species *string
	Name    *string
	Level   *int
	Gender  *Gender
	Height  *float64
	Weight  *float64
	IsShiny *bool
}

// Store persists pokemons. Lookups scoped by owner return ErrNotFound when
// the pokemon exists under another owner.
type Store interface {
	CreatePokemon(ctx context.Context, p Pokemon) (Pokemon, error)
	FindPokemon(ctx context.Context, ownerID, id int64) (Pokemon, error)
	ListPokemons(ctx context.Context, ownerID int64) ([]Pokemon, error)
	UpdatePokemon(ctx context.Context, ownerID, id int64, upd Update) (Pokemon, error)
	DeletePokemon(ctx context.Context, ownerID, id int64) error
}

// Service validates and forwards pokemon operations.
type Service struct {
	store Store
}

// NewService constructs Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create adds a pokemon to ownerID's collection.
func (s *Service) Create(ctx context.Context, ownerID int64, p Pokemon) (Pokemon, error) {
	p.OwnerID = ownerID
	p.ID = 0
	p.Species = strings.TrimSpace(p.Species)
	p.Name = strings.TrimSpace(p.Name)
	if p.Gender == "" {
		p.Gender = GenderUnspecified
	}
	if p.Level == 0 {
		p.Level = minLevel
	}
	if err := validate(p); err != nil {
		return Pokemon{}, err
	}
	return s.store.CreatePokemon(ctx, p)
}

// Get returns one pokemon of ownerID.
func (s *Service) Get(ctx context.Context, ownerID, id int64) (Pokemon, error) {
	return s.store.FindPokemon(ctx, ownerID, id)
}

// List returns every pokemon of ownerID ordered by id.
func (s *Service) List(ctx context.Context, ownerID int64) ([]Pokemon, error) {
	return s.store.ListPokemons(ctx, ownerID)
}

// Update applies upd to one pokemon of ownerID.
func (s *Service) Update(ctx context.Context, ownerID, id int64, upd Update) (Pokemon, error) {
	current, err := s.store.FindPokemon(ctx, ownerID, id)
	if err != nil {
		return Pokemon{}, err
	}
	next := apply(current, upd)
	if err := validate(next); err != nil {
		return Pokemon{}, err
	}
	if upd.Species != nil {
		upd.Species = &next.Species
	}
	if upd.Name != nil {
		upd.Name = &next.Name
	}
	return s.store.UpdatePokemon(ctx, ownerID, id, upd)
}

// Delete removes one pokemon of ownerID.
func (s *Service) Delete(ctx context.Context, ownerID, id int64) error {
	return s.store.DeletePokemon(ctx, ownerID, id)
}

func apply(p Pokemon, upd Update) Pokemon {
	if upd.Species != nil {
		p.Species = strings.TrimSpace(*upd.Species)
	}
	if upd.Name != nil {
		p.Name = strings.TrimSpace(*upd.Name)
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
	return p
}

func validate(p Pokemon) error {
	switch {
	case p.Species == "":
		return fmt.Errorf("%w: species is required", ErrInvalidInput)
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case p.Level < minLevel || p.Level > maxLevel:
		return fmt.Errorf("%w: level must be between %d and %d", ErrInvalidInput, minLevel, maxLevel)
	case !p.Gender.Valid():
		return fmt.Errorf("%w: unknown gender %q", ErrInvalidInput, p.Gender)
	case p.Height < 0 || p.Weight < 0:
		return fmt.Errorf("%w: height and weight must be >= 0", ErrInvalidInput)
	}
	return nil
}

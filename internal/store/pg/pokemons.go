package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pokeswap.org/internal/pokemon"
)

const pokemonColumns = `id, owner_id, species, name, level, gender, height, weight, is_shiny`

func (s *Store) CreatePokemon(ctx context.Context, p pokemon.Pokemon) (pokemon.Pokemon, error) {
	if s.db == nil {
		return pokemon.Pokemon{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		insert into pokemons (owner_id, species, name, level, gender, height, weight, is_shiny)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning `+pokemonColumns,
		p.OwnerID, p.Species, p.Name, p.Level, string(p.Gender), p.Height, p.Weight, p.IsShiny)
	created, err := scanPokemon(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return pokemon.Pokemon{}, fmt.Errorf("%w: owner %d", pokemon.ErrNotFound, p.OwnerID)
		}
		return pokemon.Pokemon{}, err
	}
	return created, nil
}

func (s *Store) FindPokemon(ctx context.Context, ownerID, id int64) (pokemon.Pokemon, error) {
	if s.db == nil {
		return pokemon.Pokemon{}, errNoDB
	}
	p, err := scanPokemon(s.db.QueryRowContext(ctx, `
		select `+pokemonColumns+`
		from pokemons
		where id = $1 and owner_id = $2
	`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return pokemon.Pokemon{}, pokemon.ErrNotFound
	}
	return p, err
}

func (s *Store) ListPokemons(ctx context.Context, ownerID int64) ([]pokemon.Pokemon, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+pokemonColumns+`
		from pokemons
		where owner_id = $1
		order by id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []pokemon.Pokemon{}
	for rows.Next() {
		p, err := scanPokemon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdatePokemon(ctx context.Context, ownerID, id int64, upd pokemon.Update) (pokemon.Pokemon, error) {
	if s.db == nil {
		return pokemon.Pokemon{}, errNoDB
	}
	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Species != nil {
		add("species", *upd.Species)
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Level != nil {
		add("level", *upd.Level)
	}
	if upd.Gender != nil {
		add("gender", string(*upd.Gender))
	}
	if upd.Height != nil {
		add("height", *upd.Height)
	}
	if upd.Weight != nil {
		add("weight", *upd.Weight)
	}
	if upd.IsShiny != nil {
		add("is_shiny", *upd.IsShiny)
	}
	if len(sets) == 0 {
		return s.FindPokemon(ctx, ownerID, id)
	}
	args = append(args, id, ownerID)
	query := fmt.Sprintf(`update pokemons set %s where id = $%d and owner_id = $%d returning %s`,
		strings.Join(sets, ", "), len(args)-1, len(args), pokemonColumns)
	p, err := scanPokemon(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return pokemon.Pokemon{}, pokemon.ErrNotFound
	}
	return p, err
}

func (s *Store) DeletePokemon(ctx context.Context, ownerID, id int64) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from pokemons where id = $1 and owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	return affected(res, pokemon.ErrNotFound)
}

func scanPokemon(row rowScanner) (pokemon.Pokemon, error) {
	var (
		p      pokemon.Pokemon
		gender string
	)
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Species, &p.Name, &p.Level, &gender, &p.Height, &p.Weight, &p.IsShiny); err != nil {
		return pokemon.Pokemon{}, err
	}
	p.Gender = pokemon.Gender(gender)
	return p, nil
}

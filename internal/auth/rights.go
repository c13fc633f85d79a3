package auth

import (
	"sort"
	"strings"
)

// Right names follow resource:action[:scope] where scope is self or all.
const (
	RightUsersCreate     = "users:create"
	RightUsersRead       = "users:read"
	RightUsersUpdateSelf = "users:update:self"
	RightUsersUpdateAll  = "users:update:all"
	RightUsersDeleteSelf = "users:delete:self"
	RightUsersDeleteAll  = "users:delete:all"

	RightPokemonsCreateSelf = "pokemons:create:self"
	RightPokemonsCreateAll  = "pokemons:create:all"
	RightPokemonsRead       = "pokemons:read"
	RightPokemonsUpdateSelf = "pokemons:update:self"
	RightPokemonsUpdateAll  = "pokemons:update:all"
	RightPokemonsDeleteSelf = "pokemons:delete:self"
	RightPokemonsDeleteAll  = "pokemons:delete:all"

	RightTradeCreateSelf = "trade:create:self"
	RightTradeCreateAll  = "trade:create:all"
	RightTradeRead       = "trade:read"
	RightTradeUpdateSelf = "trade:update:self"
	RightTradeUpdateAll  = "trade:update:all"

	RightLogsRead = "logs:read"
)

// Catalog is the full set of rights known to the service.
var Catalog = []Right{
	{Name: RightUsersCreate, Description: "Create users"},
	{Name: RightUsersRead, Description: "Read users"},
	{Name: RightUsersUpdateSelf, Description: "Update own profile"},
	{Name: RightUsersUpdateAll, Description: "Update any user"},
	{Name: RightUsersDeleteSelf, Description: "Delete own account"},
	{Name: RightUsersDeleteAll, Description: "Delete any user"},
	{Name: RightPokemonsCreateSelf, Description: "Create own pokemons"},
	{Name: RightPokemonsCreateAll, Description: "Create pokemons for any user"},
	{Name: RightPokemonsRead, Description: "Read pokemons"},
	{Name: RightPokemonsUpdateSelf, Description: "Update own pokemons"},
	{Name: RightPokemonsUpdateAll, Description: "Update any pokemon"},
	{Name: RightPokemonsDeleteSelf, Description: "Delete own pokemons"},
	{Name: RightPokemonsDeleteAll, Description: "Delete any pokemon"},
	{Name: RightTradeCreateSelf, Description: "Propose trades as self"},
	{Name: RightTradeCreateAll, Description: "Propose trades on behalf of any user"},
	{Name: RightTradeRead, Description: "Read trades"},
	{Name: RightTradeUpdateSelf, Description: "Settle trades addressed to self"},
	{Name: RightTradeUpdateAll, Description: "Settle any trade"},
	{Name: RightLogsRead, Description: "Export audit logs"},
}

// AllRights returns every catalog right name.
func AllRights() []string {
	out := make([]string, 0, len(Catalog))
	for _, r := range Catalog {
		out = append(out, r.Name)
	}
	return out
}

// DefaultRights is what a self-registered trainer receives: every read right
// except logs, plus the self-scoped write rights.
func DefaultRights() []string {
	out := []string{}
	for _, r := range Catalog {
		if strings.HasSuffix(r.Name, ":read") && r.Name != RightLogsRead {
			out = append(out, r.Name)
		}
	}
	return append(out,
		RightUsersUpdateSelf,
		RightUsersDeleteSelf,
		RightPokemonsCreateSelf,
		RightPokemonsUpdateSelf,
		RightPokemonsDeleteSelf,
		RightTradeCreateSelf,
		RightTradeUpdateSelf,
	)
}

// IsKnownRight reports whether name is part of the catalog.
func IsKnownRight(name string) bool {
	for _, r := range Catalog {
		if r.Name == name {
			return true
		}
	}
	return false
}

// RightSet is an unordered set of right names.
type RightSet map[string]struct{}

// NewRightSet builds a set from names, ignoring blanks.
func NewRightSet(names ...string) RightSet {
	set := make(RightSet, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s RightSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Intersects reports whether s and other share at least one right.
func (s RightSet) Intersects(other RightSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for n := range small {
		if large.Has(n) {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every right of s is in other.
func (s RightSet) SubsetOf(other RightSet) bool {
	for n := range s {
		if !other.Has(n) {
			return false
		}
	}
	return true
}

// Names returns the rights sorted.
func (s RightSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

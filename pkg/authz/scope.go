package authz

import (
	"sort"

	"github.com/larpkeep/characterhub/pkg/query"
)

// OrgUnitField is the exposed filter field carrying a record's org unit.
const OrgUnitField = "orgunit"

// UnitScope is an evaluated visibility scope: either the Unrestricted
// sentinel (no containment filtering at all) or an explicit allowed-unit set.
type UnitScope struct {
	all   bool
	units map[int]struct{}
}

// Unrestricted returns the sentinel scope that permits everything.
func Unrestricted() UnitScope {
	return UnitScope{all: true}
}

// ScopeOf builds an explicit scope over the given unit ids.
func ScopeOf(units ...int) UnitScope {
	s := UnitScope{units: make(map[int]struct{}, len(units))}
	for _, u := range units {
		s.units[u] = struct{}{}
	}
	return s
}

// IsUnrestricted reports whether the scope is the sentinel.
func (s UnitScope) IsUnrestricted() bool {
	return s.all
}

// Permits is the post-fetch check: true iff the scope is unrestricted or the
// record's unit is covered.
func (s UnitScope) Permits(orgunit int) bool {
	if s.all {
		return true
	}
	_, ok := s.units[orgunit]
	return ok
}

// Add extends an explicit scope with a unit id. No-op on the sentinel.
func (s UnitScope) Add(unit int) UnitScope {
	if s.all {
		return s
	}
	if s.units == nil {
		s.units = make(map[int]struct{})
	}
	s.units[unit] = struct{}{}
	return s
}

// Len returns the number of units in an explicit scope, 0 for the sentinel.
func (s UnitScope) Len() int {
	return len(s.units)
}

// Units returns the explicit unit ids in ascending order; nil for the
// sentinel.
func (s UnitScope) Units() []int {
	if s.all {
		return nil
	}
	ids := make([]int, 0, len(s.units))
	for id := range s.units {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Restrict conjoins a containment predicate (orgunit IN allowed) onto the
// filter before it reaches storage. The sentinel scope leaves the filter
// untouched. Applying the same scope twice narrows nothing: the added
// membership test intersects with itself.
func Restrict(f *query.Filter, scope UnitScope) {
	if f == nil || scope.IsUnrestricted() {
		return
	}
	ids := scope.Units()
	values := make([]interface{}, len(ids))
	for i, id := range ids {
		values[i] = int64(id)
	}
	f.Where = query.Conjoin(f.Where, query.In{Field: OrgUnitField, Values: values})
}

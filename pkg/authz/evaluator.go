package authz

import "sort"

// RootUnit is the well-known id of the root organizational unit ("National").
// Holding a satisfying office there always means unrestricted access.
const RootUnit = 1

// Actor is the request-scoped authorization context: the resolved caller and
// their office-to-role assignments keyed by org unit. It is built fresh per
// request and never shared or mutated by permission checks.
type Actor struct {
	UserID  int64
	Offices map[int][]string
}

// Owns reports whether the actor is the owner referenced by a record's
// nullable user id.
func (a *Actor) Owns(userID *int64) bool {
	return a != nil && userID != nil && a.UserID == *userID
}

// UnitSet is a set of organizational unit ids.
type UnitSet map[int]struct{}

// Contains reports membership.
func (s UnitSet) Contains(id int) bool {
	_, ok := s[id]
	return ok
}

// Unrestricted reports whether the set contains the root unit, which always
// wins over any containment filtering.
func (s UnitSet) Unrestricted() bool {
	return s.Contains(RootUnit)
}

// Slice returns the unit ids in ascending order.
func (s UnitSet) Slice() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// UnitsSatisfying returns the units of every office whose role set intersects
// the required permission set. An empty result means deny, never unrestricted.
func UnitsSatisfying(perms []string, offices map[int][]string) UnitSet {
	units := make(UnitSet)
	if len(perms) == 0 {
		return units
	}
	required := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		required[p] = struct{}{}
	}
	for unit, roles := range offices {
		for _, role := range roles {
			if _, ok := required[role]; ok {
				units[unit] = struct{}{}
				break
			}
		}
	}
	return units
}

// IsAuthorized reports whether any office satisfies the permission set.
func IsAuthorized(perms []string, offices map[int][]string) bool {
	return len(UnitsSatisfying(perms, offices)) > 0
}

package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larpkeep/characterhub/pkg/query"
)

func TestUnitScopePermits(t *testing.T) {
	scope := ScopeOf(4, 5)
	assert.True(t, scope.Permits(4))
	assert.False(t, scope.Permits(7))
	assert.True(t, Unrestricted().Permits(7))
}

func TestUnitScopeUnits(t *testing.T) {
	assert.Equal(t, []int{2, 4, 5}, ScopeOf(5, 2, 4).Units())
	assert.Nil(t, Unrestricted().Units())
}

func TestRestrictUnrestrictedLeavesFilterUntouched(t *testing.T) {
	f := &query.Filter{Where: query.Eq{Field: "type", Value: "PC"}}
	Restrict(f, Unrestricted())
	assert.Equal(t, query.Predicate(query.Eq{Field: "type", Value: "PC"}), f.Where)
}

func TestRestrictConjoinsMembership(t *testing.T) {
	f := &query.Filter{Where: query.Eq{Field: "type", Value: "PC"}}
	Restrict(f, ScopeOf(4, 5))

	and, ok := f.Where.(query.And)
	require.True(t, ok)
	require.Len(t, and.Preds, 2)
	assert.Equal(t, query.Predicate(query.In{
		Field:  OrgUnitField,
		Values: []interface{}{int64(4), int64(5)},
	}), and.Preds[1])
}

func TestRestrictWrapsTopLevelOr(t *testing.T) {
	or := query.Or{Preds: []query.Predicate{
		query.Eq{Field: "venue", Value: "space"},
		query.Eq{Field: "venue", Value: "lost"},
	}}
	f := &query.Filter{Where: or}
	Restrict(f, ScopeOf(4))

	and, ok := f.Where.(query.And)
	require.True(t, ok)
	require.Len(t, and.Preds, 2)
	assert.Equal(t, query.Predicate(or), and.Preds[0])
}

// Any record admitted by the restricted query must also pass the post-fetch
// check with the same scope.
func TestRestrictAndPermitsAgree(t *testing.T) {
	scope := ScopeOf(4, 5)
	f := &query.Filter{}
	Restrict(f, scope)

	in, ok := f.Where.(query.In)
	require.True(t, ok)
	for _, v := range in.Values {
		assert.True(t, scope.Permits(int(v.(int64))))
	}
}

// Re-applying the same restriction narrows nothing: the second membership
// test intersects with itself.
func TestRestrictIdempotentResultSet(t *testing.T) {
	scope := ScopeOf(4, 5)
	once := &query.Filter{}
	Restrict(once, scope)
	twice := &query.Filter{}
	Restrict(twice, scope)
	Restrict(twice, scope)

	var matches func(p query.Predicate, unit int64) bool
	matches = func(p query.Predicate, unit int64) bool {
		switch n := p.(type) {
		case query.In:
			for _, v := range n.Values {
				if v == unit {
					return true
				}
			}
			return false
		case query.And:
			for _, child := range n.Preds {
				if !matches(child, unit) {
					return false
				}
			}
			return true
		default:
			return true
		}
	}
	for _, unit := range []int64{1, 4, 5, 7} {
		assert.Equal(t, matches(once.Where, unit), matches(twice.Where, unit))
	}
}

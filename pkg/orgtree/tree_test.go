package orgtree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larpkeep/characterhub/pkg/authz"
)

// testNode builds the fixture hierarchy:
//
//	1 (National)
//	├── 2
//	│   ├── 4
//	│   └── 5
//	└── 3
//	    └── 7
func testNode() Node {
	return Node{ID: 1, Children: []Node{
		{ID: 2, Children: []Node{{ID: 4}, {ID: 5}}},
		{ID: 3, Children: []Node{{ID: 7}}},
	}}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	_, err := New(Node{ID: 1, Children: []Node{{ID: 2}, {ID: 2}}})
	assert.True(t, errors.Is(err, ErrMalformedTree))
}

func TestDescendants(t *testing.T) {
	tree, err := New(testNode())
	require.NoError(t, err)

	scope, err := tree.Descendants(2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 5}, scope.Units())

	leaf, err := tree.Descendants(7)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, leaf.Units())
}

func TestDescendantsRootIsUnrestricted(t *testing.T) {
	tree, err := New(testNode())
	require.NoError(t, err)

	scope, err := tree.Descendants(authz.RootUnit)
	require.NoError(t, err)
	assert.True(t, scope.IsUnrestricted())
}

func TestDescendantsUnknownUnit(t *testing.T) {
	tree, err := New(testNode())
	require.NoError(t, err)

	_, err = tree.Descendants(99)
	assert.True(t, errors.Is(err, ErrUnknownUnit))
}

func TestReachableFrom(t *testing.T) {
	tree, err := New(testNode())
	require.NoError(t, err)

	scope, err := tree.ReachableFrom([]int{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4, 5, 7}, scope.Units())
}

func TestReachableFromRootShortCircuits(t *testing.T) {
	tree, err := New(testNode())
	require.NoError(t, err)

	scope, err := tree.ReachableFrom([]int{7, authz.RootUnit})
	require.NoError(t, err)
	assert.True(t, scope.IsUnrestricted())
}

func TestReachableFromSkipsUnknownUnits(t *testing.T) {
	tree, err := New(testNode())
	require.NoError(t, err)

	scope, err := tree.ReachableFrom([]int{7, 99})
	require.NoError(t, err)
	assert.Equal(t, []int{7}, scope.Units())
}

func TestWalkDetectsCycle(t *testing.T) {
	tree, err := New(testNode())
	require.NoError(t, err)
	// Corrupt the edge map the way a bad upstream payload would.
	tree.children[7] = []int{3}

	_, err = tree.Descendants(3)
	assert.True(t, errors.Is(err, ErrMalformedTree))
}

package orgtree

import (
	"errors"
	"fmt"

	"github.com/larpkeep/characterhub/pkg/authz"
)

var (
	// ErrMalformedTree is returned when the upstream tree payload is not a
	// rooted tree: a duplicate unit id or a cycle in the edges.
	ErrMalformedTree = errors.New("malformed org tree")

	// ErrUnknownUnit is returned when a traversal starts at a unit id the
	// tree does not contain.
	ErrUnknownUnit = errors.New("unknown org unit")
)

// Node is the nested wire shape of the tree as returned by the identity
// service.
type Node struct {
	ID       int    `json:"id"`
	Children []Node `json:"children"`
}

// Tree is an immutable org-unit hierarchy with parent-to-children edges.
type Tree struct {
	root     int
	children map[int][]int
}

// New builds a Tree from the nested wire shape, validating that every unit id
// appears exactly once.
func New(root Node) (*Tree, error) {
	t := &Tree{
		root:     root.ID,
		children: make(map[int][]int),
	}
	// The wire shape is a value tree so it cannot cycle, but a duplicated id
	// would make the flattened edge map ambiguous.
	stack := []Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := t.children[n.ID]; seen {
			return nil, fmt.Errorf("%w: duplicate unit id %d", ErrMalformedTree, n.ID)
		}
		ids := make([]int, 0, len(n.Children))
		for _, c := range n.Children {
			ids = append(ids, c.ID)
			stack = append(stack, c)
		}
		t.children[n.ID] = ids
	}
	return t, nil
}

// Root returns the root unit id.
func (t *Tree) Root() int {
	return t.root
}

// Size returns the number of units in the tree.
func (t *Tree) Size() int {
	return len(t.children)
}

// Contains reports whether the tree has a unit with the given id.
func (t *Tree) Contains(id int) bool {
	_, ok := t.children[id]
	return ok
}

// Descendants returns the units reachable from id downward, inclusive. The
// root unit short-circuits to the Unrestricted sentinel without traversal.
// Traversal is iterative with a visited guard so a corrupted edge map fails
// loudly instead of looping.
func (t *Tree) Descendants(id int) (authz.UnitScope, error) {
	if id == authz.RootUnit {
		return authz.Unrestricted(), nil
	}
	if !t.Contains(id) {
		return authz.UnitScope{}, fmt.Errorf("%w: %d", ErrUnknownUnit, id)
	}
	scope := authz.ScopeOf()
	if err := t.walk(id, make(map[int]struct{}), &scope); err != nil {
		return authz.UnitScope{}, err
	}
	return scope, nil
}

// ReachableFrom returns the union of Descendants over every input unit,
// short-circuiting to Unrestricted as soon as the root id appears.
func (t *Tree) ReachableFrom(units []int) (authz.UnitScope, error) {
	for _, id := range units {
		if id == authz.RootUnit {
			return authz.Unrestricted(), nil
		}
	}
	scope := authz.ScopeOf()
	visited := make(map[int]struct{})
	for _, id := range units {
		if !t.Contains(id) {
			// Offices can reference units pruned from the tree; they simply
			// contribute nothing to the scope.
			continue
		}
		if err := t.walk(id, visited, &scope); err != nil {
			return authz.UnitScope{}, err
		}
	}
	return scope, nil
}

// walk traverses the subtree under start iteratively. The shared set
// de-duplicates across multiple walks; the per-walk set is the cycle guard:
// in a rooted tree no unit can be reached twice within one walk, so a repeat
// means the edge map is corrupt.
func (t *Tree) walk(start int, shared map[int]struct{}, scope *authz.UnitScope) error {
	local := make(map[int]struct{})
	stack := []int{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := local[id]; seen {
			return fmt.Errorf("%w: cycle at unit %d", ErrMalformedTree, id)
		}
		local[id] = struct{}{}
		if _, seen := shared[id]; !seen {
			shared[id] = struct{}{}
			*scope = scope.Add(id)
		}
		stack = append(stack, t.children[id]...)
	}
	return nil
}

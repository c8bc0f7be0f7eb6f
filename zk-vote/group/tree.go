package group

import (
	"fmt"
	"math/big"

	"github.com/kysee/anonvote/utils"
	"github.com/kysee/anonvote/zk-vote/types"
)

const MaxDepth = 32

// Tree is a fixed-depth binary MiMC tree filled left to right.
// Empty positions hold the zero subtree hash of their level, so the root
// only depends on the inserted members and their order.
type Tree struct {
	depth  int
	zeros  []*big.Int   // zeros[l]: root of an empty subtree of height l
	layers [][]*big.Int // layers[0] leaves, layers[depth] root, populated nodes only
	index  map[string]int
}

var _ types.GroupAccumulator = (*Tree)(nil)

func New(depth int) (*Tree, error) {
	if depth <= 0 || depth > MaxDepth {
		return nil, fmt.Errorf("tree depth must be in [1, %d], got %d", MaxDepth, depth)
	}
	zeros := make([]*big.Int, depth+1)
	zeros[0] = big.NewInt(0)
	for l := 1; l <= depth; l++ {
		zeros[l] = utils.HashElements(zeros[l-1], zeros[l-1])
	}
	return &Tree{
		depth:  depth,
		zeros:  zeros,
		layers: make([][]*big.Int, depth+1),
		index:  make(map[string]int),
	}, nil
}

// Build inserts members in order. It fails with OversizedGroupError
// before touching the tree when the members cannot fit.
func Build(depth int, members []*big.Int) (*Tree, error) {
	t, err := New(depth)
	if err != nil {
		return nil, err
	}
	if uint64(len(members)) > t.Capacity() {
		return nil, &types.OversizedGroupError{Size: len(members), Capacity: t.Capacity()}
	}
	for _, m := range members {
		if err := t.Insert(m); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tree) Depth() int {
	return t.depth
}

func (t *Tree) Size() int {
	return len(t.layers[0])
}

func (t *Tree) Capacity() uint64 {
	return uint64(1) << uint(t.depth)
}

func (t *Tree) Root() *big.Int {
	if len(t.layers[t.depth]) == 0 {
		return new(big.Int).Set(t.zeros[t.depth])
	}
	return new(big.Int).Set(t.layers[t.depth][0])
}

func (t *Tree) Insert(member *big.Int) error {
	if !utils.IsFieldElement(member) {
		return types.ErrInvalidMember
	}
	if uint64(t.Size()) >= t.Capacity() {
		return &types.OversizedGroupError{Size: t.Size() + 1, Capacity: t.Capacity()}
	}

	idx := t.Size()
	node := new(big.Int).Set(member)
	t.layers[0] = append(t.layers[0], node)
	if _, ok := t.index[member.String()]; !ok {
		t.index[member.String()] = idx
	}

	for l := 0; l < t.depth; l++ {
		var left, right *big.Int
		if idx%2 == 0 {
			left, right = node, t.zeros[l]
		} else {
			left, right = t.layers[l][idx-1], node
		}
		node = utils.HashElements(left, right)
		idx /= 2
		if idx < len(t.layers[l+1]) {
			t.layers[l+1][idx] = node
		} else {
			t.layers[l+1] = append(t.layers[l+1], node)
		}
	}
	return nil
}

// IndexOf returns the first position of member, or -1.
func (t *Tree) IndexOf(member *big.Int) int {
	if member == nil {
		return -1
	}
	if idx, ok := t.index[member.String()]; ok {
		return idx
	}
	return -1
}

func (t *Tree) Contains(member *big.Int) bool {
	return t.IndexOf(member) >= 0
}

func (t *Tree) Path(index int) ([]*big.Int, error) {
	if index < 0 || index >= t.Size() {
		return nil, fmt.Errorf("leaf index %d out of range [0, %d)", index, t.Size())
	}
	path := make([]*big.Int, t.depth)
	idx := index
	for l := 0; l < t.depth; l++ {
		sib := idx ^ 1
		if sib < len(t.layers[l]) {
			path[l] = new(big.Int).Set(t.layers[l][sib])
		} else {
			path[l] = new(big.Int).Set(t.zeros[l])
		}
		idx /= 2
	}
	return path, nil
}

// VerifyPath recomputes the root from a leaf and its siblings.
func VerifyPath(root, leaf *big.Int, index int, path []*big.Int) bool {
	node := leaf
	idx := index
	for _, sib := range path {
		if idx%2 == 0 {
			node = utils.HashElements(node, sib)
		} else {
			node = utils.HashElements(sib, node)
		}
		idx /= 2
	}
	return idx == 0 && node.Cmp(root) == 0
}

// ZeroRoot is the root of an empty tree of the given depth.
func ZeroRoot(depth int) *big.Int {
	z := new(big.Int)
	for l := 0; l < depth; l++ {
		z = utils.HashElements(z, z)
	}
	return z
}

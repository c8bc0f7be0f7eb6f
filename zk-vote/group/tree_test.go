package group

import (
	"errors"
	"math/big"
	"testing"

	"github.com/kysee/anonvote/utils"
	"github.com/kysee/anonvote/zk-vote/types"
	"github.com/stretchr/testify/require"
)

func members(n int) []*big.Int {
	ret := make([]*big.Int, n)
	for i := range ret {
		ret[i] = utils.HashElements(big.NewInt(int64(i + 1)))
	}
	return ret
}

func TestCapacityBoundary(t *testing.T) {
	depth := 3

	tree, err := Build(depth, members(8))
	require.NoError(t, err)
	require.Equal(t, 8, tree.Size())

	_, err = Build(depth, members(9))
	var oe *types.OversizedGroupError
	require.True(t, errors.As(err, &oe))
	require.EqualValues(t, 8, oe.Capacity)
	require.Equal(t, 9, oe.Size)

	err = tree.Insert(big.NewInt(99))
	require.True(t, errors.As(err, &oe))
}

func TestEmptyRoot(t *testing.T) {
	tree, err := New(4)
	require.NoError(t, err)
	require.Equal(t, ZeroRoot(4), tree.Root())
}

func TestRootMatchesFullRecompute(t *testing.T) {
	depth := 4
	ms := members(5)
	tree, err := Build(depth, ms)
	require.NoError(t, err)

	// pad to 2^depth and hash level by level
	level := make([]*big.Int, 1<<depth)
	for i := range level {
		if i < len(ms) {
			level[i] = ms[i]
		} else {
			level[i] = big.NewInt(0)
		}
	}
	for len(level) > 1 {
		next := make([]*big.Int, len(level)/2)
		for i := range next {
			next[i] = utils.HashElements(level[2*i], level[2*i+1])
		}
		level = next
	}
	require.Equal(t, level[0], tree.Root())
}

func TestInsertionOrderMatters(t *testing.T) {
	ms := members(3)
	a, err := Build(5, ms)
	require.NoError(t, err)
	b, err := Build(5, []*big.Int{ms[1], ms[0], ms[2]})
	require.NoError(t, err)
	require.NotEqual(t, a.Root(), b.Root())

	c, err := Build(5, ms)
	require.NoError(t, err)
	require.Equal(t, a.Root(), c.Root())
}

func TestPaths(t *testing.T) {
	ms := members(7)
	tree, err := Build(4, ms)
	require.NoError(t, err)

	for i, m := range ms {
		require.Equal(t, i, tree.IndexOf(m))
		path, err := tree.Path(i)
		require.NoError(t, err)
		require.Len(t, path, 4)
		require.True(t, VerifyPath(tree.Root(), m, i, path))
		require.False(t, VerifyPath(tree.Root(), big.NewInt(12345), i, path))
	}

	_, err = tree.Path(7)
	require.Error(t, err)
	require.Equal(t, -1, tree.IndexOf(big.NewInt(12345)))
}

func TestInvalidMember(t *testing.T) {
	tree, err := New(2)
	require.NoError(t, err)
	require.ErrorIs(t, tree.Insert(utils.FieldModulus()), types.ErrInvalidMember)
	require.ErrorIs(t, tree.Insert(nil), types.ErrInvalidMember)

	_, err = New(0)
	require.Error(t, err)
}

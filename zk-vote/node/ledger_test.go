package node

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kysee/anonvote/zk-vote/contract"
	"github.com/kysee/anonvote/zk-vote/types"
	"github.com/stretchr/testify/require"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000c0de1")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type stubVerifier struct {
	err  error
	seen []*types.ProofOutput
}

func (s *stubVerifier) Verify(out *types.ProofOutput) error {
	s.seen = append(s.seen, out)
	return s.err
}

func newTestLedger(t *testing.T, verifier ProofVerifier, opts ...Option) (*Ledger, uint64) {
	l := NewLedger(contractAddr, 4, verifier, append([]Option{WithAccount(alice), WithHeight(100)}, opts...)...)
	id, err := l.CreateProposal("lunch", []string{"pizza", "sushi", "tacos"})
	require.NoError(t, err)
	return l, id
}

func votePayload(id, option uint64, depth int, root, nullifier *big.Int) []any {
	var points [types.ProofPoints]*big.Int
	for i := range points {
		points[i] = big.NewInt(int64(i + 1))
	}
	return []any{
		new(big.Int).SetUint64(id),
		new(big.Int).SetUint64(option),
		big.NewInt(int64(depth)),
		root,
		nullifier,
		points,
	}
}

func TestReadUnjoinedUser(t *testing.T) {
	l, id := newTestLedger(t, &stubVerifier{})
	ctx := context.Background()

	for _, m := range []string{
		contract.MethodGetUserGroupID,
		contract.MethodGetUserMerkleTreeRoot,
		contract.MethodGetUserMerkleTreeDep,
		contract.MethodGetUserMerkleTreeSize,
	} {
		out, err := l.ReadState(ctx, contractAddr, m, new(big.Int).SetUint64(id), bob)
		require.NoError(t, err, m)
		require.Len(t, out, 1)
		require.Zero(t, out[0].(*big.Int).Sign(), m)
	}

	_, err := l.ReadState(ctx, contractAddr, contract.MethodGetProposalInfo, big.NewInt(99))
	require.Error(t, err)
	_, err = l.ReadState(ctx, common.Address{}, contract.MethodGetProposalInfo, new(big.Int).SetUint64(id))
	require.Error(t, err)
}

func TestJoinEmitsLog(t *testing.T) {
	l, id := newTestLedger(t, &stubVerifier{})
	ctx := context.Background()
	commitment := big.NewInt(12345)

	h0, err := l.CurrentBlockHeight(ctx)
	require.NoError(t, err)

	tx, err := l.SubmitTransaction(ctx, contractAddr, contract.MethodJoinProposal, 0, new(big.Int).SetUint64(id), commitment)
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, tx)

	h1, err := l.CurrentBlockHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, h0+1, h1)

	logs, err := l.QueryEventLogs(ctx, contract.MemberJoinedQuery(contractAddr, id, 0, h1))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, h1, logs[0].BlockNumber)
	require.Equal(t, tx, logs[0].TxHash)

	ev, err := contract.DecodeMemberJoined(logs[0])
	require.NoError(t, err)
	require.Equal(t, commitment, ev.Commitment)
	require.EqualValues(t, id, ev.ProposalID.Uint64())

	// same account twice
	_, err = l.SubmitTransaction(ctx, contractAddr, contract.MethodJoinProposal, 0, new(big.Int).SetUint64(id), big.NewInt(777))
	require.Error(t, err)
	// same commitment from another account
	_, err = l.JoinAs(bob, id, commitment)
	require.Error(t, err)

	out, err := l.ReadState(ctx, contractAddr, contract.MethodGetUserMerkleTreeSize, new(big.Int).SetUint64(id), alice)
	require.NoError(t, err)
	require.EqualValues(t, 1, out[0].(*big.Int).Int64())
}

func TestJoinClosedProposal(t *testing.T) {
	l, id := newTestLedger(t, &stubVerifier{})
	l.CloseProposal(id)
	_, err := l.JoinAs(bob, id, big.NewInt(1))
	require.Error(t, err)
}

func TestSubmitWithoutAccount(t *testing.T) {
	l, id := newTestLedger(t, &stubVerifier{})
	l.SetAccount(common.Address{})
	_, ok := l.Account()
	require.False(t, ok)

	_, err := l.SubmitTransaction(context.Background(), contractAddr, contract.MethodJoinProposal, 0, new(big.Int).SetUint64(id), big.NewInt(1))
	require.Error(t, err)
}

func TestVoteTallyAndReplay(t *testing.T) {
	verifier := &stubVerifier{}
	l, id := newTestLedger(t, verifier)
	ctx := context.Background()

	_, err := l.JoinAs(bob, id, big.NewInt(42))
	require.NoError(t, err)
	root, err := l.GroupRoot(id)
	require.NoError(t, err)

	nullifier := big.NewInt(9001)
	_, err = l.SubmitTransaction(ctx, contractAddr, contract.MethodVote, 0, votePayload(id, 1, 4, root, nullifier)...)
	require.NoError(t, err)

	require.Len(t, verifier.seen, 1)
	require.EqualValues(t, 1, verifier.seen[0].Message.Uint64())
	require.EqualValues(t, id, verifier.seen[0].Scope.Uint64())
	require.Equal(t, root, verifier.seen[0].TreeRoot)

	tally, err := l.Tally(id)
	require.NoError(t, err)
	require.EqualValues(t, 0, tally[0].Uint64())
	require.EqualValues(t, 1, tally[1].Uint64())

	_, err = l.SubmitTransaction(ctx, contractAddr, contract.MethodVote, 0, votePayload(id, 2, 4, root, nullifier)...)
	require.ErrorContains(t, err, "nullifier")
}

func TestVoteRejections(t *testing.T) {
	verifier := &stubVerifier{}
	l, id := newTestLedger(t, verifier)
	ctx := context.Background()

	_, err := l.JoinAs(bob, id, big.NewInt(42))
	require.NoError(t, err)
	root, err := l.GroupRoot(id)
	require.NoError(t, err)

	_, err = l.SubmitTransaction(ctx, contractAddr, contract.MethodVote, 0, votePayload(id, 3, 4, root, big.NewInt(1))...)
	require.ErrorContains(t, err, "option")

	_, err = l.SubmitTransaction(ctx, contractAddr, contract.MethodVote, 0, votePayload(id, 0, 5, root, big.NewInt(1))...)
	require.ErrorContains(t, err, "depth")

	_, err = l.SubmitTransaction(ctx, contractAddr, contract.MethodVote, 0, votePayload(id, 0, 4, big.NewInt(5), big.NewInt(1))...)
	require.ErrorContains(t, err, "root")

	verifier.err = errors.New("pairing check failed")
	_, err = l.SubmitTransaction(ctx, contractAddr, contract.MethodVote, 0, votePayload(id, 0, 4, root, big.NewInt(1))...)
	require.ErrorContains(t, err, "invalid proof")

	l.CloseProposal(id)
	verifier.err = nil
	_, err = l.SubmitTransaction(ctx, contractAddr, contract.MethodVote, 0, votePayload(id, 0, 4, root, big.NewInt(1))...)
	require.ErrorContains(t, err, "not active")

	tally, err := l.Tally(id)
	require.NoError(t, err)
	for _, c := range tally {
		require.True(t, c.IsZero())
	}
}

func TestQueryRangeLimits(t *testing.T) {
	l, id := newTestLedger(t, &stubVerifier{}, WithMaxRange(10))
	ctx := context.Background()

	_, err := l.QueryEventLogs(ctx, contract.MemberJoinedQuery(contractAddr, id, 0, 10))
	require.ErrorContains(t, err, "too large")
	_, err = l.QueryEventLogs(ctx, contract.MemberJoinedQuery(contractAddr, id, 10, 9))
	require.Error(t, err)
	_, err = l.QueryEventLogs(ctx, contract.MemberJoinedQuery(contractAddr, id, 0, 9))
	require.NoError(t, err)

	l.FailRange(20, 25)
	_, err = l.QueryEventLogs(ctx, contract.MemberJoinedQuery(contractAddr, id, 15, 20))
	require.Error(t, err)
	_, err = l.QueryEventLogs(ctx, contract.MemberJoinedQuery(contractAddr, id, 26, 30))
	require.NoError(t, err)
}

func TestQueryFiltersProposal(t *testing.T) {
	l, first := newTestLedger(t, &stubVerifier{})
	second, err := l.CreateProposal("dinner", []string{"a", "b"})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = l.JoinAs(alice, first, big.NewInt(1))
	require.NoError(t, err)
	_, err = l.JoinAs(alice, second, big.NewInt(2))
	require.NoError(t, err)
	_, err = l.JoinAs(bob, second, big.NewInt(3))
	require.NoError(t, err)

	h, err := l.CurrentBlockHeight(ctx)
	require.NoError(t, err)

	logs, err := l.QueryEventLogs(ctx, contract.MemberJoinedQuery(contractAddr, second, 0, h))
	require.NoError(t, err)
	require.Len(t, logs, 2)

	logs, err = l.QueryEventLogs(ctx, contract.MemberJoinedQuery(contractAddr, first, 0, h))
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

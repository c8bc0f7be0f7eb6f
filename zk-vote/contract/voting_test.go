package contract_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kysee/anonvote/zk-vote/contract"
	"github.com/kysee/anonvote/zk-vote/node"
	"github.com/kysee/anonvote/zk-vote/types"
	"github.com/stretchr/testify/require"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000c0de1")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type acceptAll struct{}

func (acceptAll) Verify(*types.ProofOutput) error { return nil }

func setup(t *testing.T) (*node.Ledger, *contract.Voting, uint64) {
	l := node.NewLedger(contractAddr, 4, acceptAll{}, node.WithAccount(alice))
	id, err := l.CreateProposal("budget", []string{"yes", "no"})
	require.NoError(t, err)
	return l, contract.NewVoting(l, contractAddr), id
}

func TestProposalContext(t *testing.T) {
	_, voting, id := setup(t)

	pc, err := voting.ProposalContext(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, pc.ProposalID)
	require.Equal(t, "budget", pc.Title)
	require.Equal(t, []string{"yes", "no"}, pc.OptionNames)
	require.True(t, pc.IsActive)
	require.True(t, pc.HasOption(1))
	require.False(t, pc.HasOption(2))

	info, err := voting.ProposalInfo(context.Background(), id)
	require.NoError(t, err)
	require.EqualValues(t, 2, info.OptionCount)
	require.EqualValues(t, id, info.GroupID.Uint64())

	_, err = voting.ProposalContext(context.Background(), id+1)
	require.Error(t, err)
}

func TestTreeInfoAfterJoin(t *testing.T) {
	l, voting, id := setup(t)
	ctx := context.Background()

	ti, err := voting.TreeInfo(ctx, id, alice)
	require.NoError(t, err)
	require.False(t, ti.Joined())

	_, err = voting.JoinProposal(ctx, id, big.NewInt(11))
	require.NoError(t, err)
	_, err = l.JoinAs(bob, id, big.NewInt(22))
	require.NoError(t, err)

	ti, err = voting.TreeInfo(ctx, id, alice)
	require.NoError(t, err)
	require.True(t, ti.Joined())
	require.EqualValues(t, 4, ti.Depth)
	require.EqualValues(t, 2, ti.Size)

	root, err := l.GroupRoot(id)
	require.NoError(t, err)
	require.Equal(t, root, ti.Root)
}

func TestJoinRejectedIsTyped(t *testing.T) {
	l, voting, id := setup(t)
	l.CloseProposal(id)

	_, err := voting.JoinProposal(context.Background(), id, big.NewInt(11))
	var rejected *types.TransactionRejectedError
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, contract.MethodJoinProposal, rejected.Method)

	active, err := voting.IsActive(context.Background(), id)
	require.NoError(t, err)
	require.False(t, active)
}

func TestVoteMessageMustMatchOption(t *testing.T) {
	l, voting, id := setup(t)
	ctx := context.Background()

	_, err := voting.JoinProposal(ctx, id, big.NewInt(11))
	require.NoError(t, err)
	root, err := l.GroupRoot(id)
	require.NoError(t, err)

	out := &types.ProofOutput{
		TreeDepth: 4,
		TreeRoot:  root,
		Nullifier: big.NewInt(5),
		Message:   big.NewInt(0),
		Scope:     new(big.Int).SetUint64(id),
	}
	for i := range out.Points {
		out.Points[i] = big.NewInt(1)
	}

	_, err = voting.Vote(ctx, id, 1, out)
	require.Error(t, err)

	_, err = voting.Vote(ctx, id, 0, out)
	require.NoError(t, err)

	opts, err := voting.Options(ctx, id)
	require.NoError(t, err)
	require.EqualValues(t, 1, opts[0].VoteCount.Uint64())
	require.EqualValues(t, 0, opts[1].VoteCount.Uint64())
}

func TestMemberJoinedCodec(t *testing.T) {
	ev := &contract.MemberJoined{
		ProposalID: big.NewInt(3),
		GroupID:    big.NewInt(3),
		Commitment: big.NewInt(0xbeef),
	}
	raw, err := contract.EncodeMemberJoined(ev)
	require.NoError(t, err)

	topic0, err := contract.MemberJoinedTopic()
	require.NoError(t, err)
	require.Equal(t, topic0, raw.Topics[0])

	dec, err := contract.DecodeMemberJoined(raw)
	require.NoError(t, err)
	require.Equal(t, ev.Commitment, dec.Commitment)

	raw.Data = raw.Data[:31]
	_, err = contract.DecodeMemberJoined(raw)
	require.Error(t, err)
}

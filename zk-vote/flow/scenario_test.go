package flow_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/kysee/anonvote/zk-vote/contract"
	"github.com/kysee/anonvote/zk-vote/flow"
	"github.com/kysee/anonvote/zk-vote/identity"
	"github.com/kysee/anonvote/zk-vote/members"
	"github.com/kysee/anonvote/zk-vote/node"
	"github.com/kysee/anonvote/zk-vote/status"
	"github.com/kysee/anonvote/zk-vote/types"
	"github.com/kysee/anonvote/zk-vote/vote"
	"github.com/stretchr/testify/require"
)

const scenarioDepth = 4

var (
	provingSys   *vote.ProvingSystem
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000c0de1")
	userAddr     = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
)

func init() {
	var err error
	if provingSys, err = vote.Setup(scenarioDepth); err != nil {
		panic(err)
	}
}

type world struct {
	ledger   *node.Ledger
	voting   *contract.Voting
	checker  *status.Checker
	manager  *identity.Manager
	orch     *flow.Orchestrator
	proposal uint64
}

// newWorld deploys a ledger with one Yes/No proposal that three other accounts have joined.
func newWorld(t *testing.T) *world {
	l := node.NewLedger(contractAddr, scenarioDepth, provingSys, node.WithAccount(userAddr), node.WithMaxRange(5))
	pid, err := l.CreateProposal("Adopt the budget?", []string{"Yes", "No"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		other, err := identity.New()
		require.NoError(t, err)
		_, err = l.JoinAs(common.BigToAddress(big.NewInt(int64(i+1))), pid, other.Commitment())
		require.NoError(t, err)
	}

	store, err := identity.OpenPebble("identity", vfs.NewMem())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	voting := contract.NewVoting(l, contractAddr)
	manager := identity.NewManager(store, "passphrase")
	orch := flow.New(
		manager,
		members.NewFetcher(voting, 0, 5),
		voting,
		provingSys,
		l,
		flow.Config{TreeDepth: scenarioDepth},
	)
	return &world{
		ledger:   l,
		voting:   voting,
		checker:  status.NewChecker(voting),
		manager:  manager,
		orch:     orch,
		proposal: pid,
	}
}

func (w *world) tally(t *testing.T) []uint64 {
	counts, err := w.ledger.Tally(w.proposal)
	require.NoError(t, err)
	ret := make([]uint64, len(counts))
	for i, c := range counts {
		ret[i] = c.Uint64()
	}
	return ret
}

func TestScenarioJoinAndVote(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	requiresJoin, err := w.checker.RequiresJoin(ctx, w.proposal, w.ledger)
	require.NoError(t, err)
	require.True(t, requiresJoin)

	var seen []flow.StepID
	w.orch.Subscribe(func(s flow.FlowState) {
		if step, ok := s.Step(); ok && s.Status == flow.StatusRunning {
			if len(seen) == 0 || seen[len(seen)-1] != step.ID {
				seen = append(seen, step.ID)
			}
		}
	})

	require.NoError(t, w.orch.Start(ctx, flow.StartParams{
		ProposalID:   w.proposal,
		OptionID:     option(0),
		Mode:         flow.ModeFull,
		RequiresJoin: requiresJoin,
	}))
	st := waitDone(t, w.orch)

	require.Equal(t, flow.StatusSuccess, st.Status, "flow error: %v", st.Err)
	require.Equal(t,
		[]flow.StepID{flow.StepEnsureIdentity, flow.StepJoinTx, flow.StepFetchMembers, flow.StepProof, flow.StepVoteTx},
		seen)
	require.NotNil(t, st.TxHashes.Join)
	require.NotNil(t, st.TxHashes.Vote)
	require.Equal(t, *st.TxHashes.Vote, *st.LastSuccessTx)
	require.Equal(t, []uint64{1, 0}, w.tally(t))

	joined, err := w.checker.HasJoined(ctx, w.proposal, userAddr)
	require.NoError(t, err)
	require.True(t, joined)
}

func TestScenarioJoinThenVoteLater(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	require.NoError(t, w.orch.Start(ctx, flow.StartParams{ProposalID: w.proposal, Mode: flow.ModeJoinOnly}))
	st := waitDone(t, w.orch)
	require.Equal(t, flow.StatusSuccess, st.Status, "flow error: %v", st.Err)
	require.NotNil(t, st.TxHashes.Join)
	require.Nil(t, st.TxHashes.Vote)

	requiresJoin, err := w.checker.RequiresJoin(ctx, w.proposal, w.ledger)
	require.NoError(t, err)
	require.False(t, requiresJoin)

	require.NoError(t, w.orch.Start(ctx, flow.StartParams{
		ProposalID:   w.proposal,
		OptionID:     option(1),
		RequiresJoin: requiresJoin,
	}))
	st = waitDone(t, w.orch)
	require.Equal(t, flow.StatusSuccess, st.Status, "flow error: %v", st.Err)
	require.NotContains(t, stepIDs(st.Steps), flow.StepJoinTx)
	require.Nil(t, st.TxHashes.Join)
	require.NotNil(t, st.TxHashes.Vote)
	require.Equal(t, []uint64{0, 1}, w.tally(t))

	// the nullifier is bound to the proposal
	id, _, err := w.manager.EnsureIdentity()
	require.NoError(t, err)
	here := vote.Nullifier(id, new(big.Int).SetUint64(w.proposal))
	require.Equal(t, here, vote.Nullifier(id, new(big.Int).SetUint64(w.proposal)))
	require.NotEqual(t, here, vote.Nullifier(id, new(big.Int).SetUint64(w.proposal+1)))

	// so a second vote on the same proposal is replayed and rejected
	require.NoError(t, w.orch.Start(ctx, flow.StartParams{ProposalID: w.proposal, OptionID: option(0)}))
	st = waitDone(t, w.orch)
	require.Equal(t, flow.StatusFailed, st.Status)
	require.Equal(t, flow.StepVoteTx, st.FailedStep)
	var rejected *types.TransactionRejectedError
	require.True(t, errors.As(st.Err, &rejected))
	require.Nil(t, st.TxHashes.Vote)
	require.Equal(t, []uint64{0, 1}, w.tally(t))
}

func TestScenarioVoteWithoutJoining(t *testing.T) {
	w := newWorld(t)

	require.NoError(t, w.orch.Start(context.Background(), flow.StartParams{ProposalID: w.proposal, OptionID: option(0)}))
	st := waitDone(t, w.orch)
	require.Equal(t, flow.StatusFailed, st.Status)
	require.Equal(t, flow.StepProof, st.FailedStep)
	var notMember *types.NotAMemberError
	require.True(t, errors.As(st.Err, &notMember))
	require.Nil(t, st.TxHashes.Vote)
}

func TestScenarioPartialScanFailsFetch(t *testing.T) {
	w := newWorld(t)
	w.ledger.FailRange(2, 2)

	require.NoError(t, w.orch.Start(context.Background(), flow.StartParams{
		ProposalID:   w.proposal,
		OptionID:     option(0),
		RequiresJoin: true,
	}))
	st := waitDone(t, w.orch)
	require.Equal(t, flow.StatusFailed, st.Status)
	require.Equal(t, flow.StepFetchMembers, st.FailedStep)
	var partial *types.PartialMemberScanError
	require.True(t, errors.As(st.Err, &partial))
	require.NotNil(t, st.TxHashes.Join)
	require.Equal(t, []uint64{0, 0}, w.tally(t))
}

func TestScenarioClosedProposal(t *testing.T) {
	w := newWorld(t)
	w.ledger.CloseProposal(w.proposal)

	err := w.orch.Start(context.Background(), flow.StartParams{ProposalID: w.proposal, OptionID: option(0), RequiresJoin: true})
	var inactive *types.ProposalInactiveError
	require.True(t, errors.As(err, &inactive))
	require.Equal(t, flow.StatusFailed, w.orch.State().Status)
}

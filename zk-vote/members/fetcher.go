package members

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kysee/anonvote/log"
	"github.com/kysee/anonvote/zk-vote/contract"
	"github.com/kysee/anonvote/zk-vote/group"
	"github.com/kysee/anonvote/zk-vote/types"
)

// Member is one MemberJoined record.
type Member struct {
	Commitment  *big.Int
	GroupID     *big.Int
	BlockNumber uint64
	LogIndex    uint
	TxHash      common.Hash
}

var errStopScan = errors.New("stop scan")

// Fetcher rebuilds a proposal's member set from MemberJoined logs,
// scanning from the contract deployment block to the current head.
type Fetcher struct {
	voting          *contract.Voting
	deploymentBlock uint64
	maxRange        uint64
}

func NewFetcher(voting *contract.Voting, deploymentBlock, maxRange uint64) *Fetcher {
	return &Fetcher{
		voting:          voting,
		deploymentBlock: deploymentBlock,
		maxRange:        maxRange,
	}
}

func (f *Fetcher) paginator(ctx context.Context, proposalID uint64) (*Paginator, error) {
	head, err := f.voting.Ledger().CurrentBlockHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("current block height: %w", err)
	}
	address := f.voting.Address()
	query := func(from, to uint64) types.EventQuery {
		return contract.MemberJoinedQuery(address, proposalID, from, to)
	}
	return NewPaginator(f.voting.Ledger(), query, f.deploymentBlock, head, f.maxRange), nil
}

// scan feeds every MemberJoined log of proposalID to fn in query order. Logs the
// client returns for other events or proposals are dropped here, so every caller
// sees the same set. Failed sub-ranges are logged and skipped; if any failed, the
// returned error is a *types.PartialMemberScanError.
// fn returning errStopScan ends the scan early without error.
func (f *Fetcher) scan(ctx context.Context, proposalID uint64, fn func(types.EventLog) error) (int, error) {
	topic0, err := contract.MemberJoinedTopic()
	if err != nil {
		return 0, err
	}
	proposalTopic := common.BigToHash(new(big.Int).SetUint64(proposalID))

	pg, err := f.paginator(ctx, proposalID)
	if err != nil {
		return 0, err
	}

	var (
		partial types.PartialMemberScanError
		seen    int
	)
	partial.ProposalID = proposalID

	for {
		batch, ok := pg.Next(ctx)
		if !ok {
			break
		}
		if batch.Err != nil {
			if ctx.Err() != nil {
				return seen, ctx.Err()
			}
			log.Warnw("member scan sub-range failed",
				"proposal", proposalID, "range", batch.Range.String(), "error", batch.Err.Error())
			partial.Failed = append(partial.Failed, batch.Range)
			partial.Errs = append(partial.Errs, batch.Err)
			continue
		}
		for _, l := range batch.Logs {
			if len(l.Topics) < 2 || l.Topics[0] != topic0 || l.Topics[1] != proposalTopic {
				continue
			}
			seen++
			if err := fn(l); errors.Is(err, errStopScan) {
				return seen, nil
			} else if err != nil {
				return seen, err
			}
		}
	}

	if len(partial.Failed) > 0 {
		partial.Fetched = seen
		return seen, &partial
	}
	return seen, nil
}

// FetchMembers returns the member records ordered by (block, log index).
// On a partial scan both the members found and a *types.PartialMemberScanError are returned.
func (f *Fetcher) FetchMembers(ctx context.Context, proposalID uint64) ([]*Member, error) {
	var ret []*Member
	_, scanErr := f.scan(ctx, proposalID, func(l types.EventLog) error {
		ev, err := contract.DecodeMemberJoined(l)
		if err != nil {
			return err
		}
		ret = append(ret, &Member{
			Commitment:  ev.Commitment,
			GroupID:     ev.GroupID,
			BlockNumber: ev.BlockNumber,
			LogIndex:    ev.LogIndex,
			TxHash:      ev.TxHash,
		})
		return nil
	})

	var partial *types.PartialMemberScanError
	if scanErr != nil && !errors.As(scanErr, &partial) {
		return nil, scanErr
	}

	sort.SliceStable(ret, func(i, j int) bool {
		if ret[i].BlockNumber != ret[j].BlockNumber {
			return ret[i].BlockNumber < ret[j].BlockNumber
		}
		return ret[i].LogIndex < ret[j].LogIndex
	})
	if partial != nil {
		partial.Fetched = len(ret)
		return ret, partial
	}
	return ret, nil
}

// Fetch returns the commitments in canonical join order.
func (f *Fetcher) Fetch(ctx context.Context, proposalID uint64) ([]*big.Int, error) {
	ms, err := f.FetchMembers(ctx, proposalID)
	if ms == nil {
		return nil, err
	}
	ret := make([]*big.Int, len(ms))
	for i, m := range ms {
		ret[i] = m.Commitment
	}
	return ret, err
}

// CheckMembership reports whether commitment has joined proposalID.
// A match ends the scan, so failures in later sub-ranges are not seen.
func (f *Fetcher) CheckMembership(ctx context.Context, proposalID uint64, commitment *big.Int) (bool, error) {
	found := false
	_, err := f.scan(ctx, proposalID, func(l types.EventLog) error {
		ev, err := contract.DecodeMemberJoined(l)
		if err != nil {
			return err
		}
		if ev.Commitment.Cmp(commitment) == 0 {
			found = true
			return errStopScan
		}
		return nil
	})
	if found {
		return true, nil
	}
	return false, err
}

// Count returns the number of MemberJoined logs without decoding them.
func (f *Fetcher) Count(ctx context.Context, proposalID uint64) (int, error) {
	return f.scan(ctx, proposalID, func(types.EventLog) error { return nil })
}

// Reconcile cross-checks a fetched member set against the contract's record of
// the group, as seen through user's tree handle. A wrong deployment block shows up
// here as a *types.MemberCountMismatchError. Nothing is checked when user has not joined.
func (f *Fetcher) Reconcile(ctx context.Context, proposalID uint64, user common.Address, members []*big.Int) error {
	info, err := f.voting.TreeInfo(ctx, proposalID, user)
	if err != nil {
		return err
	}
	if !info.Joined() {
		return nil
	}

	rootMatch := false
	tree, err := group.Build(int(info.Depth), members)
	if err == nil {
		rootMatch = tree.Root().Cmp(info.Root) == 0
	} else {
		var oversized *types.OversizedGroupError
		if !errors.As(err, &oversized) {
			return err
		}
	}

	if uint64(len(members)) != info.Size || !rootMatch {
		err := &types.MemberCountMismatchError{
			ProposalID: proposalID,
			Fetched:    uint64(len(members)),
			OnChain:    info.Size,
			RootMatch:  rootMatch,
		}
		log.Errorw(err, "member set does not match the contract", "deploymentBlock", f.deploymentBlock)
		return err
	}
	return nil
}

package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/kysee/anonvote/log"
	"github.com/kysee/anonvote/zk-vote/types"
	"golang.org/x/sync/errgroup"
)

// vote verification runs a pairing check on chain
const voteGasHint = 1_500_000

// Voting is a typed facade of the voting contract over a LedgerClient.
type Voting struct {
	ledger  types.LedgerClient
	address common.Address
}

func NewVoting(ledger types.LedgerClient, address common.Address) *Voting {
	return &Voting{
		ledger:  ledger,
		address: address,
	}
}

func (v *Voting) Address() common.Address {
	return v.address
}

func (v *Voting) Ledger() types.LedgerClient {
	return v.ledger
}

func (v *Voting) ProposalInfo(ctx context.Context, proposalID uint64) (*types.ProposalInfo, error) {
	out, err := v.read(ctx, MethodGetProposalInfo, 6, new(big.Int).SetUint64(proposalID))
	if err != nil {
		return nil, err
	}
	id, err := toBig(out[0])
	if err != nil {
		return nil, err
	}
	title, ok := out[1].(string)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected title type %T", MethodGetProposalInfo, out[1])
	}
	groupID, err := toBig(out[2])
	if err != nil {
		return nil, err
	}
	optionCount, err := toBig(out[3])
	if err != nil {
		return nil, err
	}
	createdAt, err := toBig(out[4])
	if err != nil {
		return nil, err
	}
	isActive, ok := out[5].(bool)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected isActive type %T", MethodGetProposalInfo, out[5])
	}
	return &types.ProposalInfo{
		ID:          id.Uint64(),
		Title:       title,
		GroupID:     groupID,
		OptionCount: optionCount.Uint64(),
		CreatedAt:   createdAt.Uint64(),
		IsActive:    isActive,
	}, nil
}

// IsActive re-reads the proposal status; it may flip at any time.
func (v *Voting) IsActive(ctx context.Context, proposalID uint64) (bool, error) {
	info, err := v.ProposalInfo(ctx, proposalID)
	if err != nil {
		return false, err
	}
	return info.IsActive, nil
}

func (v *Voting) Options(ctx context.Context, proposalID uint64) ([]*types.Option, error) {
	out, err := v.read(ctx, MethodGetOptions, 1, new(big.Int).SetUint64(proposalID))
	if err != nil {
		return nil, err
	}
	tuples := *abi.ConvertType(out[0], new([]OptionTuple)).(*[]OptionTuple)

	options := make([]*types.Option, len(tuples))
	for i, tp := range tuples {
		cnt, overflow := uint256.FromBig(tp.VoteCount)
		if overflow {
			return nil, fmt.Errorf("vote count of option %d overflows uint256", i)
		}
		options[i] = &types.Option{
			ID:        tp.Id.Uint64(),
			Name:      tp.Name,
			VoteCount: cnt,
		}
	}
	return options, nil
}

// ProposalContext reads the proposal info and its options concurrently.
func (v *Voting) ProposalContext(ctx context.Context, proposalID uint64) (*types.ProposalContext, error) {
	var (
		info    *types.ProposalInfo
		options []*types.Option
	)
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		info, err = v.ProposalInfo(egctx, proposalID)
		return err
	})
	eg.Go(func() (err error) {
		options, err = v.Options(egctx, proposalID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	names := make([]string, len(options))
	for i, o := range options {
		names[i] = o.Name
	}
	return &types.ProposalContext{
		ProposalID:  proposalID,
		Title:       info.Title,
		OptionNames: names,
		IsActive:    info.IsActive,
	}, nil
}

func (v *Voting) UserGroupID(ctx context.Context, proposalID uint64, user common.Address) (*big.Int, error) {
	return v.readBig(ctx, MethodGetUserGroupID, proposalID, user)
}

// TreeInfo reads the contract's record of the user's group tree.
func (v *Voting) TreeInfo(ctx context.Context, proposalID uint64, user common.Address) (*types.TreeInfo, error) {
	var groupID, root, depth, size *big.Int
	eg, egctx := errgroup.WithContext(ctx)
	for method, dst := range map[string]**big.Int{
		MethodGetUserGroupID:        &groupID,
		MethodGetUserMerkleTreeRoot: &root,
		MethodGetUserMerkleTreeDep:  &depth,
		MethodGetUserMerkleTreeSize: &size,
	} {
		eg.Go(func() (err error) {
			*dst, err = v.readBig(egctx, method, proposalID, user)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return &types.TreeInfo{
		GroupID: groupID,
		Root:    root,
		Depth:   depth.Uint64(),
		Size:    size.Uint64(),
	}, nil
}

func (v *Voting) JoinProposal(ctx context.Context, proposalID uint64, commitment *big.Int) (common.Hash, error) {
	return v.submit(ctx, MethodJoinProposal, 0, new(big.Int).SetUint64(proposalID), commitment)
}

// Vote submits the proof; optionID must equal the message bound in the proof.
func (v *Voting) Vote(ctx context.Context, proposalID, optionID uint64, proof *types.ProofOutput) (common.Hash, error) {
	if proof.Message == nil || proof.Message.Cmp(new(big.Int).SetUint64(optionID)) != 0 {
		return common.Hash{}, fmt.Errorf("option %d does not match the proof message %v", optionID, proof.Message)
	}
	return v.submit(ctx, MethodVote, voteGasHint,
		new(big.Int).SetUint64(proposalID),
		new(big.Int).SetUint64(optionID),
		new(big.Int).SetUint64(proof.TreeDepth),
		proof.TreeRoot,
		proof.Nullifier,
		proof.Points,
	)
}

func (v *Voting) read(ctx context.Context, method string, nout int, args ...any) ([]any, error) {
	out, err := v.ledger.ReadState(ctx, v.address, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if len(out) != nout {
		return nil, fmt.Errorf("%s: expected %d outputs, got %d", method, nout, len(out))
	}
	return out, nil
}

func (v *Voting) readBig(ctx context.Context, method string, proposalID uint64, user common.Address) (*big.Int, error) {
	out, err := v.read(ctx, method, 1, new(big.Int).SetUint64(proposalID), user)
	if err != nil {
		return nil, err
	}
	return toBig(out[0])
}

func (v *Voting) submit(ctx context.Context, method string, gasHint uint64, args ...any) (common.Hash, error) {
	txHash, err := v.ledger.SubmitTransaction(ctx, v.address, method, gasHint, args...)
	if err != nil {
		log.Warnw("transaction rejected", "method", method, "error", err.Error())
		return common.Hash{}, &types.TransactionRejectedError{Method: method, Err: err}
	}
	log.Infow("transaction submitted", "method", method, "tx", txHash.Hex())
	return txHash, nil
}

func toBig(v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil, errors.New("nil integer output")
		}
		return x, nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	default:
		return nil, fmt.Errorf("unexpected integer output type %T", v)
	}
}

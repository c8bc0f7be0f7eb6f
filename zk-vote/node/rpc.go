package node

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/kysee/anonvote/zk-vote/contract"
	"github.com/kysee/anonvote/zk-vote/types"
)

var _ types.LedgerClient = (*Ledger)(nil)

func (l *Ledger) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height, nil
}

func (l *Ledger) ReadState(ctx context.Context, addr common.Address, method string, args ...any) ([]any, error) {
	if addr != l.address {
		return nil, fmt.Errorf("no contract at %s", addr.Hex())
	}
	if len(args) == 0 {
		return nil, errors.New("missing proposal id")
	}
	id, _ := args[0].(*big.Int)

	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.proposal(id)
	if err != nil {
		return nil, err
	}

	switch method {
	case contract.MethodGetProposalInfo:
		return []any{
			new(big.Int).SetUint64(p.id),
			p.title,
			new(big.Int).Set(p.groupID),
			big.NewInt(int64(len(p.options))),
			new(big.Int).SetUint64(p.createdAt),
			p.active,
		}, nil
	case contract.MethodGetOptions:
		tuples := make([]contract.OptionTuple, len(p.options))
		for i, name := range p.options {
			tuples[i] = contract.OptionTuple{
				Id:        big.NewInt(int64(i)),
				Name:      name,
				VoteCount: p.votes[i].ToBig(),
			}
		}
		return []any{tuples}, nil
	}

	if len(args) != 2 {
		return nil, fmt.Errorf("%s: expected 2 arguments, got %d", method, len(args))
	}
	user, ok := args[1].(common.Address)
	if !ok {
		return nil, fmt.Errorf("%s: invalid user argument %T", method, args[1])
	}
	joined := p.members[user]
	zero := new(big.Int)

	switch method {
	case contract.MethodGetUserGroupID:
		if !joined {
			return []any{zero}, nil
		}
		return []any{new(big.Int).Set(p.groupID)}, nil
	case contract.MethodGetUserMerkleTreeRoot:
		if !joined {
			return []any{zero}, nil
		}
		return []any{p.tree.Root()}, nil
	case contract.MethodGetUserMerkleTreeDep:
		if !joined {
			return []any{zero}, nil
		}
		return []any{big.NewInt(int64(p.tree.Depth()))}, nil
	case contract.MethodGetUserMerkleTreeSize:
		if !joined {
			return []any{zero}, nil
		}
		return []any{big.NewInt(int64(p.tree.Size()))}, nil
	}
	return nil, fmt.Errorf("unknown method %s", method)
}

func (l *Ledger) SubmitTransaction(ctx context.Context, addr common.Address, method string, gasHint uint64, args ...any) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	if addr != l.address {
		return common.Hash{}, fmt.Errorf("no contract at %s", addr.Hex())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.account == (common.Address{}) {
		return common.Hash{}, errors.New("no sender account")
	}
	return l.execute(l.account, method, args)
}

// JoinAs submits joinProposal from another account, to populate groups.
func (l *Ledger) JoinAs(sender common.Address, proposalID uint64, commitment *big.Int) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.execute(sender, contract.MethodJoinProposal, []any{new(big.Int).SetUint64(proposalID), commitment})
}

func (l *Ledger) execute(sender common.Address, method string, args []any) (common.Hash, error) {
	var (
		emitted []types.EventLog
		err     error
	)
	switch method {
	case contract.MethodJoinProposal:
		emitted, err = l.join(sender, args)
	case contract.MethodVote:
		err = l.vote(args)
	default:
		err = fmt.Errorf("unknown method %s", method)
	}
	if err != nil {
		return common.Hash{}, err
	}

	txHash, err := l.txHash(sender, method)
	if err != nil {
		return common.Hash{}, err
	}
	l.height++
	for i := range emitted {
		emitted[i].BlockNumber = l.height
		emitted[i].LogIndex = uint(i)
		emitted[i].TxHash = txHash
	}
	l.logs = append(l.logs, emitted...)
	return txHash, nil
}

func (l *Ledger) txHash(sender common.Address, method string) (common.Hash, error) {
	l.nonce++
	bz, err := rlp.EncodeToBytes([]any{l.nonce, sender, method})
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(bz), nil
}

func (l *Ledger) join(sender common.Address, args []any) ([]types.EventLog, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("joinProposal: expected 2 arguments, got %d", len(args))
	}
	id, _ := args[0].(*big.Int)
	commitment, _ := args[1].(*big.Int)

	p, err := l.proposal(id)
	if err != nil {
		return nil, err
	}
	if !p.active {
		return nil, fmt.Errorf("proposal %d is not active", p.id)
	}
	if p.members[sender] {
		return nil, errors.New("already joined")
	}
	if commitment == nil || p.tree.Contains(commitment) {
		return nil, errors.New("commitment already registered")
	}
	if err := p.tree.Insert(commitment); err != nil {
		return nil, err
	}
	p.members[sender] = true

	ev, err := contract.EncodeMemberJoined(&contract.MemberJoined{
		ProposalID: new(big.Int).SetUint64(p.id),
		GroupID:    p.groupID,
		Commitment: commitment,
	})
	if err != nil {
		return nil, err
	}
	return []types.EventLog{ev}, nil
}

func (l *Ledger) vote(args []any) error {
	if len(args) != 6 {
		return fmt.Errorf("vote: expected 6 arguments, got %d", len(args))
	}
	id, _ := args[0].(*big.Int)
	optionID, _ := args[1].(*big.Int)
	depth, _ := args[2].(*big.Int)
	root, _ := args[3].(*big.Int)
	nullifier, _ := args[4].(*big.Int)
	points, ok := args[5].([types.ProofPoints]*big.Int)
	if !ok || optionID == nil || depth == nil || root == nil || nullifier == nil {
		return errors.New("vote: malformed arguments")
	}

	p, err := l.proposal(id)
	if err != nil {
		return err
	}
	if !p.active {
		return fmt.Errorf("proposal %d is not active", p.id)
	}
	if !optionID.IsUint64() || optionID.Uint64() >= uint64(len(p.options)) {
		return fmt.Errorf("invalid option %s", optionID)
	}
	if depth.Cmp(big.NewInt(int64(p.tree.Depth()))) != 0 {
		return fmt.Errorf("wrong tree depth %s", depth)
	}
	// use the group's root, not the caller's
	if root.Cmp(p.tree.Root()) != 0 {
		return errors.New("merkle root mismatch")
	}
	nkey := id.String() + "/" + nullifier.String()
	if _, used := l.nullifiers[nkey]; used {
		return errors.New("nullifier already used")
	}

	out := &types.ProofOutput{
		TreeDepth: depth.Uint64(),
		TreeRoot:  p.tree.Root(),
		Nullifier: nullifier,
		Message:   optionID,
		Scope:     new(big.Int).SetUint64(p.id),
		Points:    points,
	}
	if err := l.verifier.Verify(out); err != nil {
		return fmt.Errorf("invalid proof: %w", err)
	}

	l.nullifiers[nkey] = l.height + 1
	opt := optionID.Uint64()
	p.votes[opt].AddUint64(p.votes[opt], 1)
	return nil
}

func (l *Ledger) QueryEventLogs(ctx context.Context, q types.EventQuery) ([]types.EventLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.FromBlock > q.ToBlock {
		return nil, fmt.Errorf("invalid block range [%d, %d]", q.FromBlock, q.ToBlock)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxRange > 0 && q.ToBlock-q.FromBlock+1 > l.maxRange {
		return nil, fmt.Errorf("block range too large: %d > %d", q.ToBlock-q.FromBlock+1, l.maxRange)
	}
	for _, r := range l.failing {
		if q.FromBlock <= r.To && r.From <= q.ToBlock {
			return nil, fmt.Errorf("query [%d, %d] failed: upstream timeout", q.FromBlock, q.ToBlock)
		}
	}
	if q.Contract != l.address || q.Event != contract.EventMemberJoined {
		return nil, nil
	}

	var ret []types.EventLog
	for _, lg := range l.logs {
		if lg.BlockNumber < q.FromBlock || lg.BlockNumber > q.ToBlock {
			continue
		}
		if !matchTopics(lg.Topics[1:], q.Topics) {
			continue
		}
		cp := lg
		cp.Topics = append([]common.Hash(nil), lg.Topics...)
		cp.Data = append([]byte(nil), lg.Data...)
		ret = append(ret, cp)
	}
	return ret, nil
}

func matchTopics(topics []common.Hash, filter [][]common.Hash) bool {
	for i, alts := range filter {
		if len(alts) == 0 {
			continue
		}
		if i >= len(topics) {
			return false
		}
		found := false
		for _, t := range alts {
			if t == topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

package status

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kysee/anonvote/zk-vote/types"
)

// GroupReader reads the per-user group handle the contract keeps for joined accounts.
type GroupReader interface {
	UserGroupID(ctx context.Context, proposalID uint64, user common.Address) (*big.Int, error)
}

// Checker answers "has this account joined?" with a single contract read.
type Checker struct {
	reader GroupReader
}

func NewChecker(reader GroupReader) *Checker {
	return &Checker{reader: reader}
}

// HasJoined reports whether user holds a group id for the proposal. It has no side effects.
func (c *Checker) HasJoined(ctx context.Context, proposalID uint64, user common.Address) (bool, error) {
	gid, err := c.reader.UserGroupID(ctx, proposalID, user)
	if err != nil {
		return false, err
	}
	return gid != nil && gid.Sign() > 0, nil
}

// RequiresJoin resolves the connected wallet and reports whether it still has to join.
func (c *Checker) RequiresJoin(ctx context.Context, proposalID uint64, wallet types.WalletSession) (bool, error) {
	acc, ok := wallet.Account()
	if !ok {
		return false, types.ErrWalletNotConnected
	}
	joined, err := c.HasJoined(ctx, proposalID, acc)
	if err != nil {
		return false, err
	}
	return !joined, nil
}

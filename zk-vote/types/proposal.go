package types

import (
	"math/big"

	"github.com/holiman/uint256"
)

type ProposalInfo struct {
	ID          uint64
	Title       string
	GroupID     *big.Int
	OptionCount uint64
	CreatedAt   uint64
	IsActive    bool
}

type Option struct {
	ID        uint64
	Name      string
	VoteCount *uint256.Int
}

// ProposalContext is immutable once fetched, except IsActive which follows
// chain state and must be re-read before any submission.
type ProposalContext struct {
	ProposalID  uint64
	Title       string
	OptionNames []string
	IsActive    bool
}

func (pc *ProposalContext) HasOption(idx int) bool {
	return idx >= 0 && idx < len(pc.OptionNames)
}

// TreeInfo is the contract's own record of a user's group tree.
type TreeInfo struct {
	GroupID *big.Int
	Root    *big.Int
	Depth   uint64
	Size    uint64
}

func (ti *TreeInfo) Joined() bool {
	return ti.GroupID != nil && ti.GroupID.Sign() > 0
}

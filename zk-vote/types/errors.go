package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrNoOptionSelected   = errors.New("no option selected")
	ErrInvalidMember      = errors.New("member is not a valid field element")

	ErrFlowRunning    = errors.New("a voting flow is already running")
	ErrFlowCancelled  = errors.New("voting flow cancelled")
	ErrFlowNeedsReset = errors.New("previous flow failed; reset before starting again")
)

type ProposalInactiveError struct {
	ProposalID uint64
}

func (e *ProposalInactiveError) Error() string {
	return fmt.Sprintf("proposal %d is not active", e.ProposalID)
}

// BlockRange is an inclusive block interval.
type BlockRange struct {
	From uint64
	To   uint64
}

func (r BlockRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.From, r.To)
}

// PartialMemberScanError reports sub-ranges that could not be queried.
// It is returned alongside the members that were fetched.
type PartialMemberScanError struct {
	ProposalID uint64
	Failed     []BlockRange
	Errs       []error
	Fetched    int
}

func (e *PartialMemberScanError) Error() string {
	ranges := make([]string, len(e.Failed))
	for i, r := range e.Failed {
		ranges[i] = r.String()
	}
	return fmt.Sprintf("partial member scan for proposal %d: %d sub-range(s) failed %s, %d member(s) fetched",
		e.ProposalID, len(e.Failed), strings.Join(ranges, ","), e.Fetched)
}

func (e *PartialMemberScanError) Unwrap() []error {
	return e.Errs
}

type NotAMemberError struct {
	Commitment *big.Int
}

func (e *NotAMemberError) Error() string {
	return fmt.Sprintf("identity commitment %s is not a group member; join the proposal first", e.Commitment)
}

type OversizedGroupError struct {
	Size     int
	Capacity uint64
}

func (e *OversizedGroupError) Error() string {
	return fmt.Sprintf("group has %d members, exceeds tree capacity %d", e.Size, e.Capacity)
}

type ProofGenerationError struct {
	Err error
}

func (e *ProofGenerationError) Error() string {
	return fmt.Sprintf("proof generation failed: %v", e.Err)
}

func (e *ProofGenerationError) Unwrap() error {
	return e.Err
}

type TransactionRejectedError struct {
	Method string
	Err    error
}

func (e *TransactionRejectedError) Error() string {
	return fmt.Sprintf("transaction %s rejected: %v", e.Method, e.Err)
}

func (e *TransactionRejectedError) Unwrap() error {
	return e.Err
}

// MemberCountMismatchError means the scanned member set disagrees with the
// contract's own record, usually because the deployment block is wrong.
type MemberCountMismatchError struct {
	ProposalID uint64
	Fetched    uint64
	OnChain    uint64
	RootMatch  bool
}

func (e *MemberCountMismatchError) Error() string {
	return fmt.Sprintf("proposal %d: fetched %d member(s) but the contract records %d (root match: %v)",
		e.ProposalID, e.Fetched, e.OnChain, e.RootMatch)
}

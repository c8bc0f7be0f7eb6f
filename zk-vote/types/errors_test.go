package types

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartialMemberScanError(t *testing.T) {
	rpcErr := errors.New("query returned more than 10000 results")
	var err error = &PartialMemberScanError{
		ProposalID: 1,
		Failed:     []BlockRange{{From: 10, To: 19}, {From: 30, To: 39}},
		Errs:       []error{rpcErr, errors.New("timeout")},
		Fetched:    3,
	}
	err = fmt.Errorf("fetch members: %w", err)

	var pe *PartialMemberScanError
	require.True(t, errors.As(err, &pe))
	require.Len(t, pe.Failed, 2)
	require.ErrorIs(t, err, rpcErr)
	require.Contains(t, err.Error(), "[10, 19],[30, 39]")
}

func TestWrappedTaxonomy(t *testing.T) {
	cause := errors.New("open vote.pk: no such file or directory")
	err := fmt.Errorf("generate proof: %w", &ProofGenerationError{Err: cause})
	var ge *ProofGenerationError
	require.True(t, errors.As(err, &ge))
	require.ErrorIs(t, err, cause)

	err = &TransactionRejectedError{Method: "vote", Err: errors.New("nullifier already used")}
	require.Contains(t, err.Error(), "vote")

	err = &NotAMemberError{Commitment: big.NewInt(42)}
	require.Contains(t, err.Error(), "42")
}

func TestTreeInfoJoined(t *testing.T) {
	require.False(t, (&TreeInfo{}).Joined())
	require.False(t, (&TreeInfo{GroupID: big.NewInt(0)}).Joined())
	require.True(t, (&TreeInfo{GroupID: big.NewInt(3)}).Joined())
}

package types

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/signature"
)

const ProofPoints = 8

// ProofOutput is what the vote transaction carries.
// Nullifier, Message and Scope are deterministic for a given identity, option and proposal;
// Points are not.
type ProofOutput struct {
	TreeDepth uint64
	TreeRoot  *big.Int
	Nullifier *big.Int
	Message   *big.Int
	Scope     *big.Int
	Points    [ProofPoints]*big.Int
}

func (p *ProofOutput) String() string {
	return fmt.Sprintf("depth=%d root=%s nullifier=%s message=%s scope=%s",
		p.TreeDepth, p.TreeRoot, p.Nullifier, p.Message, p.Scope)
}

// IdentityProvider exposes what a prover needs from an identity.
// Only Commitment is ever published.
type IdentityProvider interface {
	Commitment() *big.Int
	PublicKey() signature.PublicKey
	// SecretScalar returns the secret split in high and low 128-bit halves.
	SecretScalar() (hi, lo []byte)
}

type GroupAccumulator interface {
	Depth() int
	Size() int
	Root() *big.Int
	Insert(member *big.Int) error
	IndexOf(member *big.Int) int
	// Path returns the sibling hashes from the leaf level up to the root.
	Path(index int) ([]*big.Int, error)
}

type ProofCircuit interface {
	Prove(id IdentityProvider, acc GroupAccumulator, message, scope *big.Int) (*ProofOutput, error)
}

package vote

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/constraint/solver"
	"github.com/consensys/gnark/frontend"
	"github.com/kysee/anonvote/log"
	"github.com/kysee/anonvote/utils"
	"github.com/kysee/anonvote/zk-vote/types"
)

// ProvingSystem holds the compiled vote circuit and its keys for one tree depth.
type ProvingSystem struct {
	TreeDepth    int
	CCS          constraint.ConstraintSystem
	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
}

var _ types.ProofCircuit = (*ProvingSystem)(nil)

// Setup compiles the circuit and runs a local groth16 setup.
// The keys are only as trustworthy as this process.
func Setup(depth int) (*ProvingSystem, error) {
	ccs, err := CompileCircuit(depth)
	if err != nil {
		return nil, fmt.Errorf("failed to compile vote circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}
	return &ProvingSystem{
		TreeDepth:    depth,
		CCS:          ccs,
		ProvingKey:   pk,
		VerifyingKey: vk,
	}, nil
}

// Nullifier computes the value the circuit binds to (identity, scope).
func Nullifier(id types.IdentityProvider, scope *big.Int) *big.Int {
	hi, lo := id.SecretScalar()
	return utils.HashElements(new(big.Int).SetBytes(hi), new(big.Int).SetBytes(lo), scope)
}

// Prove generates a membership proof for id over acc, binding message and scope.
func (ps *ProvingSystem) Prove(id types.IdentityProvider, acc types.GroupAccumulator, message, scope *big.Int) (*types.ProofOutput, error) {
	if acc.Depth() != ps.TreeDepth {
		return nil, &types.ProofGenerationError{
			Err: fmt.Errorf("accumulator depth %d does not match circuit depth %d", acc.Depth(), ps.TreeDepth),
		}
	}
	if message == nil || message.Sign() < 0 || message.BitLen() > messageBits {
		return nil, &types.ProofGenerationError{Err: fmt.Errorf("message %v out of range", message)}
	}
	if !utils.IsFieldElement(scope) {
		return nil, &types.ProofGenerationError{Err: fmt.Errorf("scope %v is not a field element", scope)}
	}

	commitment := id.Commitment()
	idx := acc.IndexOf(commitment)
	if idx < 0 {
		return nil, &types.NotAMemberError{Commitment: commitment}
	}
	path, err := acc.Path(idx)
	if err != nil {
		return nil, &types.ProofGenerationError{Err: err}
	}

	root := acc.Root()
	nullifier := Nullifier(id, scope)
	hi, lo := id.SecretScalar()

	assignment := NewVoteCircuit(ps.TreeDepth)
	assignment.S0, assignment.S1 = hi, lo
	assignment.AssignPubKey(id.PublicKey())
	assignment.LeafIdx = idx
	for i := range path {
		assignment.Path[i] = path[i]
	}
	assignment.Root = root
	assignment.Nullifier = nullifier
	assignment.Message = message
	assignment.Scope = scope

	wtn, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, &types.ProofGenerationError{Err: err}
	}

	log.Debugw("generating vote proof", "depth", ps.TreeDepth, "members", acc.Size(), "scope", scope.String())
	proof, err := groth16.Prove(ps.CCS, ps.ProvingKey, wtn,
		backend.WithSolverOptions(solver.WithLogger(log.Logger())))
	if err != nil {
		return nil, &types.ProofGenerationError{Err: err}
	}

	points, err := ProofToPoints(proof)
	if err != nil {
		return nil, &types.ProofGenerationError{Err: err}
	}

	return &types.ProofOutput{
		TreeDepth: uint64(ps.TreeDepth),
		TreeRoot:  root,
		Nullifier: nullifier,
		Message:   new(big.Int).Set(message),
		Scope:     new(big.Int).Set(scope),
		Points:    points,
	}, nil
}

// Verify runs the full groth16 verification of out against the public inputs it carries.
func (ps *ProvingSystem) Verify(out *types.ProofOutput) error {
	if !VerifyLocally(out) {
		return errors.New("malformed proof output")
	}
	if out.TreeDepth != uint64(ps.TreeDepth) {
		return fmt.Errorf("proof depth %d does not match circuit depth %d", out.TreeDepth, ps.TreeDepth)
	}
	proof, err := PointsToProof(out.Points)
	if err != nil {
		return err
	}

	tmpAssignment := VoteCircuit{
		Root:      out.TreeRoot,
		Nullifier: out.Nullifier,
		Message:   out.Message,
		Scope:     out.Scope,
	}
	pubWtn, err := frontend.NewWitness(&tmpAssignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return err
	}
	return groth16.Verify(proof, ps.VerifyingKey, pubWtn)
}

// VerifyLocally is a structural sanity check only: eight points present,
// non-zero depth, root and nullifier. The on-chain verifier decides validity.
func VerifyLocally(out *types.ProofOutput) bool {
	if out == nil || out.TreeDepth == 0 {
		return false
	}
	if out.TreeRoot == nil || out.TreeRoot.Sign() <= 0 {
		return false
	}
	if out.Nullifier == nil || out.Nullifier.Sign() <= 0 {
		return false
	}
	if out.Message == nil || out.Scope == nil {
		return false
	}
	if len(out.Points) != types.ProofPoints {
		return false
	}
	for _, p := range out.Points {
		if p == nil {
			return false
		}
	}
	return true
}

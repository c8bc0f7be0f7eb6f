package vote

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	ecc_tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark-crypto/signature"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	std_tedwards "github.com/consensys/gnark/std/algebra/native/twistededwards"
	"github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/signature/eddsa"
	"github.com/kysee/anonvote/utils"
)

const messageBits = 32

var (
	E128 = new(big.Int).Lsh(big.NewInt(1), 128)
)

// VoteCircuit proves, for public (Root, Nullifier, Message, Scope), that the prover
// owns a key whose commitment sits at LeafIdx of the tree with Root, and that
// Nullifier = H(S0, S1, Scope).
type VoteCircuit struct {
	curveID ecc_tedwards.ID

	S0      frontend.Variable
	S1      frontend.Variable
	PubKey  eddsa.PublicKey
	LeafIdx frontend.Variable
	Path    []frontend.Variable

	Root      frontend.Variable `gnark:",public"`
	Nullifier frontend.Variable `gnark:",public"`
	Message   frontend.Variable `gnark:",public"`
	Scope     frontend.Variable `gnark:",public"`
}

func (cc *VoteCircuit) Define(api frontend.API) error {
	curve, err := std_tedwards.NewEdCurve(api, cc.curveID)
	if err != nil {
		return err
	}
	hFunc, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	//
	// 0. the prover owns the private key of PubKey
	cc.verifyKeys(api, curve)

	//
	// 1. H(PubKey) is a leaf of the tree
	hFunc.Reset()
	hFunc.Write(cc.PubKey.A.X, cc.PubKey.A.Y)
	leaf := hFunc.Sum()
	cc.verifyMembership(api, &hFunc, leaf)

	//
	// 2. Nullifier == H(S0, S1, Scope)
	hFunc.Reset()
	hFunc.Write(cc.S0, cc.S1, cc.Scope)
	api.AssertIsEqual(cc.Nullifier, hFunc.Sum())

	//
	// 3. bind the message; an option index fits in 32 bits
	_ = api.ToBinary(cc.Message, messageBits)

	return nil
}

func (cc *VoteCircuit) verifyKeys(api frontend.API, curve std_tedwards.Curve) {
	// private key scalar = S0 * 2^128 + S1
	_ = api.ToBinary(cc.S0, 128)
	_ = api.ToBinary(cc.S1, 128)

	base := std_tedwards.Point{}
	base.X = curve.Params().Base[0]
	base.Y = curve.Params().Base[1]

	c1 := curve.ScalarMul(base, cc.S0)
	c128 := curve.ScalarMul(c1, E128.Bytes())
	c2 := curve.ScalarMul(base, cc.S1)
	computedPub := curve.Add(c128, c2)

	curve.AssertIsOnCurve(computedPub)
	api.AssertIsEqual(cc.PubKey.A.X, computedPub.X)
	api.AssertIsEqual(cc.PubKey.A.Y, computedPub.Y)
}

func (cc *VoteCircuit) verifyMembership(api frontend.API, hFunc hash.FieldHasher, leaf frontend.Variable) {
	bits := api.ToBinary(cc.LeafIdx, len(cc.Path))

	node := leaf
	for i := 0; i < len(cc.Path); i++ {
		// bit set: the current node is the right child
		left := api.Select(bits[i], cc.Path[i], node)
		right := api.Select(bits[i], node, cc.Path[i])
		hFunc.Reset()
		hFunc.Write(left, right)
		node = hFunc.Sum()
	}
	api.AssertIsEqual(cc.Root, node)
}

func (cc *VoteCircuit) SetCurveId(curveID ecc_tedwards.ID) {
	cc.curveID = curveID
}

func (cc *VoteCircuit) GetCurveId() ecc_tedwards.ID {
	return cc.curveID
}

func (cc *VoteCircuit) AssignPubKey(pubKey signature.PublicKey) {
	cc.PubKey.Assign(cc.curveID, pubKey.Bytes())
}

// NewVoteCircuit returns an empty circuit sized for depth.
func NewVoteCircuit(depth int) *VoteCircuit {
	cc := &VoteCircuit{curveID: utils.CURVEID}
	cc.Path = make([]frontend.Variable, depth)
	return cc
}

func CompileCircuit(depth int) (constraint.ConstraintSystem, error) {
	return frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, NewVoteCircuit(depth))
}

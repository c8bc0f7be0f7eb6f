package vote

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark/backend/groth16"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/kysee/anonvote/zk-vote/types"
)

const wordSize = fp.Bytes

// ProofToPoints flattens a BN254 groth16 proof into the eight words a
// Solidity verifier takes: Ar.X, Ar.Y, Bs.X.A1, Bs.X.A0, Bs.Y.A1, Bs.Y.A0, Krs.X, Krs.Y.
func ProofToPoints(proof groth16.Proof) ([types.ProofPoints]*big.Int, error) {
	var points [types.ProofPoints]*big.Int

	var buf bytes.Buffer
	if _, err := proof.WriteRawTo(&buf); err != nil {
		return points, err
	}
	raw := buf.Bytes()
	if len(raw) < types.ProofPoints*wordSize {
		return points, fmt.Errorf("raw proof too short: %d bytes", len(raw))
	}
	for i := 0; i < types.ProofPoints; i++ {
		points[i] = new(big.Int).SetBytes(raw[i*wordSize : (i+1)*wordSize])
	}
	return points, nil
}

// PointsToProof rebuilds the proof from its eight words.
func PointsToProof(points [types.ProofPoints]*big.Int) (groth16.Proof, error) {
	modulus := fp.Modulus()
	for i, p := range points {
		if p == nil || p.Sign() < 0 || p.Cmp(modulus) >= 0 {
			return nil, fmt.Errorf("proof point %d is not a base field element", i)
		}
	}

	var proof groth16_bn254.Proof
	proof.Ar.X.SetBigInt(points[0])
	proof.Ar.Y.SetBigInt(points[1])
	proof.Bs.X.A1.SetBigInt(points[2])
	proof.Bs.X.A0.SetBigInt(points[3])
	proof.Bs.Y.A1.SetBigInt(points[4])
	proof.Bs.Y.A0.SetBigInt(points[5])
	proof.Krs.X.SetBigInt(points[6])
	proof.Krs.Y.SetBigInt(points[7])

	if !proof.Ar.IsOnCurve() || !proof.Bs.IsOnCurve() || !proof.Krs.IsOnCurve() {
		return nil, errors.New("proof point is not on curve")
	}
	if !proof.Bs.IsInSubGroup() {
		return nil, errors.New("proof point Bs is not in the G2 subgroup")
	}
	return &proof, nil
}

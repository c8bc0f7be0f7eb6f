package utils

import (
	"hash"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	_ "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark-crypto/ecc/twistededwards"
	gnark_hash "github.com/consensys/gnark-crypto/hash"
)

var (
	CURVEID = twistededwards.BN254
)

func MiMCHasher() hash.Hash {
	return gnark_hash.MIMC_BN254.New()
}

// MiMCHash hashes raw byte inputs in 32-byte blocks.
// A short trailing block is left-padded by the hasher, so a 16-byte input
// is absorbed as the big-endian integer it encodes.
func MiMCHash(ins ...[]byte) []byte {
	hasher := MiMCHasher()

	blockSize := hasher.Size()

	hasher.Reset()
	for _, in := range ins {

		for i := 0; i < len(in); i += blockSize {
			end := i + blockSize
			if end > len(in) {
				end = len(in)
			}
			chunk := in[i:end]

			if len(chunk) == blockSize {
				// this value may be greater than the modulus; convert to fr.Element
				var elem fr.Element
				elem.SetBytes(chunk)
				// canonical form
				chunk = elem.Marshal()
			}
			if _, err := hasher.Write(chunk); err != nil {
				panic(err)
			}
		}
	}
	return hasher.Sum(nil)
}

// HashElements is the native counterpart of writing the same values into
// the in-circuit MiMC: one field element per input, in order.
func HashElements(ins ...*big.Int) *big.Int {
	hasher := MiMCHasher()
	for _, in := range ins {
		elem := ToElement(in)
		if _, err := hasher.Write(elem.Marshal()); err != nil {
			panic(err)
		}
	}
	return new(big.Int).SetBytes(hasher.Sum(nil))
}

// ToElement reduces x modulo the BN254 scalar field.
func ToElement(x *big.Int) fr.Element {
	var elem fr.Element
	if x != nil {
		elem.SetBigInt(x)
	}
	return elem
}

func FieldModulus() *big.Int {
	return fr.Modulus()
}

// IsFieldElement reports whether 0 <= x < r.
func IsFieldElement(x *big.Int) bool {
	return x != nil && x.Sign() >= 0 && x.Cmp(fr.Modulus()) < 0
}

package identity

import (
	"bytes"
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/consensys/gnark-crypto/signature"
	"github.com/kysee/anonvote/utils"
)

const (
	privateKeySize = 96
	seedPersonal   = "anonvote_id_seed"
)

// Identity is an eddsa key on the BN254 twisted Edwards curve.
// The secret is the key scalar; the commitment is MiMC(A.X, A.Y) of the public key.
type Identity struct {
	prvKey     *eddsa.PrivateKey
	commitment *big.Int
}

func New() (*Identity, error) {
	prvKey, err := eddsa.GenerateKey(crand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity key: %w", err)
	}
	return fromPrivateKey(prvKey), nil
}

// FromSeed derives the same identity for the same seed, e.g. a wallet signature.
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) == 0 {
		return nil, errors.New("empty identity seed")
	}
	stream, err := expand(seed, seedPersonal, 32)
	if err != nil {
		return nil, err
	}
	prvKey, err := eddsa.GenerateKey(bytes.NewReader(stream))
	if err != nil {
		return nil, fmt.Errorf("failed to derive identity key: %w", err)
	}
	return fromPrivateKey(prvKey), nil
}

func FromBytes(bz []byte) (*Identity, error) {
	if len(bz) != privateKeySize {
		return nil, fmt.Errorf("wrong private key size: expected(%d), got(%d)", privateKeySize, len(bz))
	}
	prvKey := new(eddsa.PrivateKey)
	if _, err := prvKey.SetBytes(bz); err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return fromPrivateKey(prvKey), nil
}

func fromPrivateKey(prvKey *eddsa.PrivateKey) *Identity {
	x := prvKey.PublicKey.A.X.BigInt(new(big.Int))
	y := prvKey.PublicKey.A.Y.BigInt(new(big.Int))
	return &Identity{
		prvKey:     prvKey,
		commitment: utils.HashElements(x, y),
	}
}

func (id *Identity) Commitment() *big.Int {
	return new(big.Int).Set(id.commitment)
}

func (id *Identity) PublicKey() signature.PublicKey {
	return &id.prvKey.PublicKey
}

// SecretScalar splits the key scalar: scalar = hi * 2^128 + lo.
func (id *Identity) SecretScalar() ([]byte, []byte) {
	s := id.prvKey.Bytes()[32:64]
	hi := make([]byte, 16)
	lo := make([]byte, 16)
	copy(hi, s[:16])
	copy(lo, s[16:32])
	return hi, lo
}

// Nullifier is MiMC(hi, lo, scope); the circuit recomputes the same value.
func (id *Identity) Nullifier(scope *big.Int) *big.Int {
	hi, lo := id.SecretScalar()
	return utils.HashElements(new(big.Int).SetBytes(hi), new(big.Int).SetBytes(lo), scope)
}

func (id *Identity) Equal(other *Identity) bool {
	if other == nil {
		return false
	}
	return bytes.Equal(id.bytes(), other.bytes())
}

func (id *Identity) String() string {
	return fmt.Sprintf("commitment:%s", id.commitment)
}

func (id *Identity) bytes() []byte {
	return id.prvKey.Bytes()
}

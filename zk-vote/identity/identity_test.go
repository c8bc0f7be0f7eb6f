package identity

import (
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/stretchr/testify/require"
)

func newMemStore(t *testing.T) *PebbleStore {
	store, err := OpenPebble("identity", vfs.NewMem())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEnsureIdentityIdempotent(t *testing.T) {
	m := NewManager(newMemStore(t), "pass")

	id0, c0, err := m.EnsureIdentity()
	require.NoError(t, err)
	id1, c1, err := m.EnsureIdentity()
	require.NoError(t, err)

	require.True(t, id0.Equal(id1))
	require.Equal(t, c0, c1)
	require.Equal(t, id0.Commitment(), c0)
}

func TestEnsureIdentityConcurrent(t *testing.T) {
	m := NewManager(newMemStore(t), "pass")

	var wg sync.WaitGroup
	commitments := make([]*big.Int, 8)
	errs := make([]error, 8)
	for i := range commitments {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, commitments[i], errs[i] = m.EnsureIdentity()
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, c := range commitments[1:] {
		require.Equal(t, commitments[0], c)
	}
}

func TestIdentityPersistsAcrossSessions(t *testing.T) {
	store := newMemStore(t)

	id0, _, err := NewManager(store, "pass").EnsureIdentity()
	require.NoError(t, err)

	id1, _, err := NewManager(store, "pass").EnsureIdentity()
	require.NoError(t, err)
	require.True(t, id0.Equal(id1))

	// the record is sealed; a wrong passphrase cannot open it
	_, _, err = NewManager(store, "wrong").EnsureIdentity()
	require.ErrorContains(t, err, "failed to open identity record")

	raw, err := store.Get(identityKey)
	require.NoError(t, err)
	hi, lo := id0.SecretScalar()
	require.NotContains(t, string(raw), string(append(hi, lo...)))
}

type brokenStore struct{}

func (brokenStore) Get([]byte) ([]byte, error) { return nil, errors.New("disk failure") }
func (brokenStore) Set([]byte, []byte) error   { return errors.New("disk failure") }
func (brokenStore) Close() error               { return nil }

func TestStorageErrorSurfaced(t *testing.T) {
	_, _, err := NewManager(brokenStore{}, "").EnsureIdentity()
	require.ErrorContains(t, err, "disk failure")
}

func TestFromSeedDeterministic(t *testing.T) {
	seed := []byte("0x8f3c...signature of the join message")
	id0, err := FromSeed(seed)
	require.NoError(t, err)
	id1, err := FromSeed(seed)
	require.NoError(t, err)
	require.True(t, id0.Equal(id1))

	id2, err := FromSeed([]byte("another signature"))
	require.NoError(t, err)
	require.NotEqual(t, id0.Commitment(), id2.Commitment())

	_, err = FromSeed(nil)
	require.Error(t, err)

	m := NewManager(newMemStore(t), "", WithSeed(seed))
	id3, _, err := m.EnsureIdentity()
	require.NoError(t, err)
	require.True(t, id0.Equal(id3))
}

func TestExportImport(t *testing.T) {
	id, err := New()
	require.NoError(t, err)

	s := id.Export()
	require.True(t, strings.HasPrefix(s, "id"))

	id2, err := Import(s)
	require.NoError(t, err)
	require.True(t, id.Equal(id2))
	require.Equal(t, id.Commitment(), id2.Commitment())

	_, err = Import("xx" + s[2:])
	require.ErrorContains(t, err, "wrong prefix")

	m := NewManager(newMemStore(t), "pass")
	_, _, err = m.EnsureIdentity()
	require.NoError(t, err)
	_, err = m.Import(s, false)
	require.Error(t, err)
	imported, err := m.Import(s, true)
	require.NoError(t, err)
	cur, _, err := m.EnsureIdentity()
	require.NoError(t, err)
	require.True(t, imported.Equal(cur))
}

func TestSecretScalarRecomposesPublicKey(t *testing.T) {
	id, err := New()
	require.NoError(t, err)

	hi, lo := id.SecretScalar()
	require.Len(t, hi, 16)
	require.Len(t, lo, 16)

	scalar := new(big.Int).Lsh(new(big.Int).SetBytes(hi), 128)
	scalar.Add(scalar, new(big.Int).SetBytes(lo))

	curve := twistededwards.GetEdwardsCurve()
	var p twistededwards.PointAffine
	p.ScalarMultiplication(&curve.Base, scalar)

	pub := id.PublicKey().(*eddsa.PublicKey)
	require.True(t, p.Equal(&pub.A))
}

func TestNullifierBoundToScope(t *testing.T) {
	id, err := New()
	require.NoError(t, err)

	n1 := id.Nullifier(big.NewInt(1))
	require.Equal(t, n1, id.Nullifier(big.NewInt(1)))
	require.NotEqual(t, n1, id.Nullifier(big.NewInt(2)))

	other, err := New()
	require.NoError(t, err)
	require.NotEqual(t, n1, other.Nullifier(big.NewInt(1)))
}

package identity

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/kysee/anonvote/log"
)

const recordVersion = 1

var identityKey = []byte("identity/default")

// record is the sealed form of an identity kept in the Store.
type record struct {
	Version   uint8
	Salt      []byte
	Nonce     []byte
	Sealed    []byte
	CreatedAt uint64
}

// Manager is the only reader and writer of the identity Store.
type Manager struct {
	mu         sync.Mutex
	store      Store
	passphrase []byte
	seed       []byte
	current    *Identity
}

type Option func(*Manager)

// WithSeed makes a newly created identity a deterministic function of seed.
func WithSeed(seed []byte) Option {
	return func(m *Manager) {
		m.seed = append([]byte(nil), seed...)
	}
}

func NewManager(store Store, passphrase string, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		passphrase: []byte(passphrase),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureIdentity returns the stored identity, creating and persisting one first if there is none.
func (m *Manager) EnsureIdentity() (*Identity, *big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return m.current, m.current.Commitment(), nil
	}

	id, err := m.load()
	if errors.Is(err, ErrKeyNotFound) {
		if id, err = m.create(); err != nil {
			return nil, nil, err
		}
		if err := m.save(id); err != nil {
			return nil, nil, err
		}
		log.Infow("new identity created", "commitment", id.commitment.String())
	} else if err != nil {
		return nil, nil, err
	}

	m.current = id
	return id, id.Commitment(), nil
}

// Import replaces the stored identity only when overwrite is set or none exists.
func (m *Manager) Import(encoded string, overwrite bool) (*Identity, error) {
	id, err := Import(encoded)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !overwrite {
		if _, err := m.store.Get(identityKey); err == nil {
			return nil, errors.New("an identity already exists")
		} else if !errors.Is(err, ErrKeyNotFound) {
			return nil, err
		}
	}
	if err := m.save(id); err != nil {
		return nil, err
	}
	m.current = id
	return id, nil
}

func (m *Manager) create() (*Identity, error) {
	if len(m.seed) > 0 {
		return FromSeed(m.seed)
	}
	return New()
}

func (m *Manager) load() (*Identity, error) {
	bz, err := m.store.Get(identityKey)
	if err != nil {
		return nil, err
	}
	var rec record
	if err := rlp.DecodeBytes(bz, &rec); err != nil {
		return nil, fmt.Errorf("corrupted identity record: %w", err)
	}
	if rec.Version != recordVersion {
		return nil, fmt.Errorf("unsupported identity record version %d", rec.Version)
	}
	plain, err := open(sealKey(m.passphrase, rec.Salt), rec.Nonce, rec.Sealed, identityKey)
	if err != nil {
		return nil, err
	}
	return FromBytes(plain)
}

func (m *Manager) save(id *Identity) error {
	salt := make([]byte, 16)
	nonce := make([]byte, 12)
	if _, err := crand.Read(salt); err != nil {
		return err
	}
	if _, err := crand.Read(nonce); err != nil {
		return err
	}
	sealed, err := seal(sealKey(m.passphrase, salt), nonce, id.bytes(), identityKey)
	if err != nil {
		return err
	}
	bz, err := rlp.EncodeToBytes(&record{
		Version:   recordVersion,
		Salt:      salt,
		Nonce:     nonce,
		Sealed:    sealed,
		CreatedAt: uint64(time.Now().Unix()),
	})
	if err != nil {
		return fmt.Errorf("failed to RLP encode identity record: %w", err)
	}
	if err := m.store.Set(identityKey, bz); err != nil {
		return fmt.Errorf("failed to persist identity: %w", err)
	}
	return nil
}

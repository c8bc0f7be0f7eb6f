package node

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/kysee/anonvote/zk-vote/group"
	"github.com/kysee/anonvote/zk-vote/types"
)

// ProofVerifier checks a vote proof against the public inputs it carries.
type ProofVerifier interface {
	Verify(out *types.ProofOutput) error
}

type proposal struct {
	id        uint64
	title     string
	groupID   *big.Int
	options   []string
	votes     []*uint256.Int
	createdAt uint64
	active    bool

	tree    *group.Tree
	members map[common.Address]bool
}

// Ledger is an in-process stand-in for the voting contract and the chain it lives on.
// Every transaction is mined in its own block.
type Ledger struct {
	mu sync.Mutex

	address  common.Address
	account  common.Address
	depth    int
	verifier ProofVerifier

	height    uint64
	nonce     uint64
	maxRange  uint64
	failing   []types.BlockRange
	proposals map[uint64]*proposal
	nextID    uint64
	logs      []types.EventLog

	nullifiers map[string]uint64
}

type Option func(*Ledger)

// WithMaxRange makes QueryEventLogs reject spans wider than n blocks.
func WithMaxRange(n uint64) Option {
	return func(l *Ledger) { l.maxRange = n }
}

// WithHeight starts the chain at height h, e.g. the contract deployment block.
func WithHeight(h uint64) Option {
	return func(l *Ledger) { l.height = h }
}

func WithAccount(acc common.Address) Option {
	return func(l *Ledger) { l.account = acc }
}

func NewLedger(address common.Address, depth int, verifier ProofVerifier, opts ...Option) *Ledger {
	l := &Ledger{
		address:    address,
		depth:      depth,
		verifier:   verifier,
		proposals:  make(map[uint64]*proposal),
		nextID:     1,
		nullifiers: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Address() common.Address {
	return l.address
}

// Account implements types.WalletSession; the zero address means disconnected.
func (l *Ledger) Account() (common.Address, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account, l.account != (common.Address{})
}

func (l *Ledger) SetAccount(acc common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.account = acc
}

func (l *Ledger) CreateProposal(title string, options []string) (uint64, error) {
	tree, err := group.New(l.depth)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.height++

	votes := make([]*uint256.Int, len(options))
	for i := range votes {
		votes[i] = uint256.NewInt(0)
	}
	l.proposals[id] = &proposal{
		id:        id,
		title:     title,
		groupID:   new(big.Int).SetUint64(id),
		options:   append([]string(nil), options...),
		votes:     votes,
		createdAt: l.height,
		active:    true,
		tree:      tree,
		members:   make(map[common.Address]bool),
	}
	return id, nil
}

func (l *Ledger) CloseProposal(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.proposals[id]; ok {
		p.active = false
	}
}

// Mine appends n empty blocks.
func (l *Ledger) Mine(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.height += n
}

// FailRange makes every log query touching [from, to] fail.
func (l *Ledger) FailRange(from, to uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failing = append(l.failing, types.BlockRange{From: from, To: to})
}

// Tally returns the vote count per option.
func (l *Ledger) Tally(id uint64) ([]*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.proposals[id]
	if !ok {
		return nil, fmt.Errorf("proposal %d not found", id)
	}
	ret := make([]*uint256.Int, len(p.votes))
	for i, v := range p.votes {
		ret[i] = v.Clone()
	}
	return ret, nil
}

func (l *Ledger) GroupRoot(id uint64) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.proposals[id]
	if !ok {
		return nil, fmt.Errorf("proposal %d not found", id)
	}
	return p.tree.Root(), nil
}

func (l *Ledger) proposal(id *big.Int) (*proposal, error) {
	if id == nil || !id.IsUint64() {
		return nil, fmt.Errorf("invalid proposal id %v", id)
	}
	p, ok := l.proposals[id.Uint64()]
	if !ok {
		return nil, fmt.Errorf("proposal %s not found", id)
	}
	return p, nil
}

package flow

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/kysee/anonvote/log"
	"github.com/kysee/anonvote/zk-vote/group"
	"github.com/kysee/anonvote/zk-vote/identity"
	"github.com/kysee/anonvote/zk-vote/types"
)

type IdentityManager interface {
	EnsureIdentity() (*identity.Identity, *big.Int, error)
}

type MemberSource interface {
	Fetch(ctx context.Context, proposalID uint64) ([]*big.Int, error)
	Reconcile(ctx context.Context, proposalID uint64, user common.Address, members []*big.Int) error
}

// ProposalLedger is the part of the voting contract a run talks to.
type ProposalLedger interface {
	IsActive(ctx context.Context, proposalID uint64) (bool, error)
	JoinProposal(ctx context.Context, proposalID uint64, commitment *big.Int) (common.Hash, error)
	Vote(ctx context.Context, proposalID, optionID uint64, proof *types.ProofOutput) (common.Hash, error)
}

type AccumulatorBuilder func(depth int, members []*big.Int) (types.GroupAccumulator, error)

// BuildTree is the default AccumulatorBuilder.
func BuildTree(depth int, members []*big.Int) (types.GroupAccumulator, error) {
	t, err := group.Build(depth, members)
	if err != nil {
		return nil, err
	}
	return t, nil
}

type Config struct {
	TreeDepth int
	// AutoResetDelay is how long a failed run stays visible before it is cleared.
	// Zero keeps it until Reset.
	AutoResetDelay time.Duration
}

type StartParams struct {
	ProposalID uint64
	// OptionID is required in ModeFull.
	OptionID     *int
	Mode         Mode
	RequiresJoin bool
}

type run struct {
	id        string
	params    StartParams
	steps     []Step
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}

	identity   *identity.Identity
	commitment *big.Int
	members    []*big.Int
	proof      *types.ProofOutput
}

// Orchestrator runs at most one voting flow at a time and owns its FlowState.
type Orchestrator struct {
	identities IdentityManager
	members    MemberSource
	ledger     ProposalLedger
	prover     types.ProofCircuit
	wallet     types.WalletSession
	build      AccumulatorBuilder
	cfg        Config

	mu    sync.Mutex
	state FlowState
	run   *run
	// detached is a run abandoned by Reset whose goroutine may still be
	// inside a transaction step. No new run starts until it has exited.
	detached *run
	timer    *time.Timer
	subs     map[int]func(FlowState)
	nextSub  int
}

type Option func(*Orchestrator)

func WithAccumulatorBuilder(b AccumulatorBuilder) Option {
	return func(o *Orchestrator) { o.build = b }
}

func New(
	identities IdentityManager,
	members MemberSource,
	ledger ProposalLedger,
	prover types.ProofCircuit,
	wallet types.WalletSession,
	cfg Config,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		identities: identities,
		members:    members,
		ledger:     ledger,
		prover:     prover,
		wallet:     wallet,
		build:      BuildTree,
		cfg:        cfg,
		subs:       make(map[int]func(FlowState)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) State() FlowState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Subscribe registers fn for every state change and returns its removal.
// fn is called outside the orchestrator's lock.
func (o *Orchestrator) Subscribe(fn func(FlowState)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

// Start validates the request and launches the run in the background.
// Validation failures move the flow to failed and are also returned.
func (o *Orchestrator) Start(ctx context.Context, p StartParams) error {
	o.mu.Lock()
	switch o.state.Status {
	case StatusRunning:
		o.mu.Unlock()
		return types.ErrFlowRunning
	case StatusFailed:
		o.mu.Unlock()
		return types.ErrFlowNeedsReset
	}
	if o.detached != nil {
		select {
		case <-o.detached.done:
			o.detached = nil
		default:
			o.mu.Unlock()
			return types.ErrFlowRunning
		}
	}
	o.stopTimerLocked()

	rctx, cancel := context.WithCancel(ctx)
	r := &run{
		id:     uuid.NewString(),
		params: p,
		steps:  StepsFor(p.Mode, p.RequiresJoin),
		ctx:    rctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	o.run = r
	o.state = FlowState{
		RunID:      r.id,
		ProposalID: p.ProposalID,
		Mode:       p.Mode,
		Status:     StatusRunning,
		Steps:      r.steps,
	}
	snap := o.state.clone()
	o.mu.Unlock()
	o.notify(snap)

	log.Infow("voting flow started", "run", r.id, "proposal", p.ProposalID,
		"mode", p.Mode.String(), "requiresJoin", p.RequiresJoin)

	if err := o.validate(rctx, p); err != nil {
		o.fail(r, "", err)
		r.cancel()
		close(r.done)
		return err
	}
	go o.execute(r)
	return nil
}

func (o *Orchestrator) validate(ctx context.Context, p StartParams) error {
	if _, ok := o.wallet.Account(); !ok {
		return types.ErrWalletNotConnected
	}
	if p.Mode == ModeFull && (p.OptionID == nil || *p.OptionID < 0) {
		return types.ErrNoOptionSelected
	}
	active, err := o.ledger.IsActive(ctx, p.ProposalID)
	if err != nil {
		return err
	}
	if !active {
		return &types.ProposalInactiveError{ProposalID: p.ProposalID}
	}
	return nil
}

func (o *Orchestrator) execute(r *run) {
	defer close(r.done)
	defer r.cancel()

	for i, step := range r.steps {
		if !o.advance(r, i) {
			return
		}
		// a proof already in progress is not interrupted, but nothing runs after it
		if r.cancelled.Load() {
			o.fail(r, step.ID, types.ErrFlowCancelled)
			return
		}
		log.Debugw("voting flow step", "run", r.id, "step", string(step.ID))

		txHash, err := o.runStep(r, step.ID)
		if err != nil {
			if r.cancelled.Load() && errors.Is(err, context.Canceled) {
				err = types.ErrFlowCancelled
			}
			o.fail(r, step.ID, err)
			return
		}
		if txHash != nil {
			o.recordTx(r, step.ID, *txHash)
		}
	}
	o.succeed(r)
}

func (o *Orchestrator) runStep(r *run, step StepID) (*common.Hash, error) {
	p := r.params
	switch step {
	case StepEnsureIdentity:
		id, commitment, err := o.identities.EnsureIdentity()
		if err != nil {
			return nil, err
		}
		r.identity, r.commitment = id, commitment
		return nil, nil

	case StepJoinTx:
		h, err := o.ledger.JoinProposal(r.ctx, p.ProposalID, r.commitment)
		if err != nil {
			return nil, err
		}
		return &h, nil

	case StepFetchMembers:
		members, err := o.members.Fetch(r.ctx, p.ProposalID)
		if err != nil {
			return nil, err
		}
		if acc, ok := o.wallet.Account(); ok {
			if err := o.members.Reconcile(r.ctx, p.ProposalID, acc, members); err != nil {
				return nil, err
			}
		}
		r.members = members
		return nil, nil

	case StepProof:
		acc, err := o.build(o.cfg.TreeDepth, r.members)
		if err != nil {
			return nil, err
		}
		out, err := o.prover.Prove(r.identity, acc, big.NewInt(int64(*p.OptionID)), new(big.Int).SetUint64(p.ProposalID))
		if err != nil {
			return nil, err
		}
		r.proof = out
		return nil, nil

	case StepVoteTx:
		h, err := o.ledger.Vote(r.ctx, p.ProposalID, uint64(*p.OptionID), r.proof)
		if err != nil {
			return nil, err
		}
		return &h, nil
	}
	return nil, errors.New("unknown step " + string(step))
}

// update applies fn to the state of r and notifies subscribers.
// It reports false when r has been replaced or reset.
func (o *Orchestrator) update(r *run, fn func(*FlowState)) bool {
	o.mu.Lock()
	if o.run != r {
		o.mu.Unlock()
		return false
	}
	fn(&o.state)
	snap := o.state.clone()
	o.mu.Unlock()
	o.notify(snap)
	return true
}

func (o *Orchestrator) advance(r *run, i int) bool {
	return o.update(r, func(s *FlowState) { s.CurrentStep = i })
}

func (o *Orchestrator) recordTx(r *run, step StepID, h common.Hash) {
	o.update(r, func(s *FlowState) {
		switch step {
		case StepJoinTx:
			s.TxHashes.Join = &h
		case StepVoteTx:
			s.TxHashes.Vote = &h
		}
		s.LastSuccessTx = &h
	})
	log.Infow("voting flow transaction", "run", r.id, "step", string(step), "tx", h.Hex())
}

func (o *Orchestrator) succeed(r *run) {
	if o.update(r, func(s *FlowState) {
		s.Status = StatusSuccess
		s.CurrentStep = len(s.Steps)
	}) {
		log.Infow("voting flow succeeded", "run", r.id)
	}
}

func (o *Orchestrator) fail(r *run, step StepID, err error) {
	if o.update(r, func(s *FlowState) {
		s.Status = StatusFailed
		s.FailedStep = step
		s.Err = err
		o.scheduleResetLocked(r.id)
	}) {
		log.Errorw(err, "voting flow failed", "run", r.id, "step", string(step))
	}
}

// Cancel stops a running flow. A proof in progress runs to completion,
// after which the flow fails with ErrFlowCancelled instead of voting.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil || o.state.Status != StatusRunning {
		return
	}
	o.run.cancelled.Store(true)
	o.run.cancel()
}

// Reset returns to idle, abandoning any run in progress. An abandoned run
// keeps Start returning ErrFlowRunning until its current step has returned.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.resetLocked()
	snap := o.state.clone()
	o.mu.Unlock()
	o.notify(snap)
}

// Dismiss cancels a pending auto-reset. The terminal state stays until Reset.
func (o *Orchestrator) Dismiss() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopTimerLocked()
}

// Wait blocks until the current run ends, then returns the state.
// After a Reset it waits for the abandoned run instead.
func (o *Orchestrator) Wait(ctx context.Context) (FlowState, error) {
	o.mu.Lock()
	r := o.run
	if r == nil {
		r = o.detached
	}
	o.mu.Unlock()
	if r != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			return o.State(), ctx.Err()
		}
	}
	return o.State(), nil
}

func (o *Orchestrator) resetLocked() {
	o.stopTimerLocked()
	if o.run != nil && o.state.Status == StatusRunning {
		o.run.cancelled.Store(true)
		o.run.cancel()
		o.detached = o.run
	}
	o.run = nil
	o.state = FlowState{}
}

func (o *Orchestrator) scheduleResetLocked(runID string) {
	o.stopTimerLocked()
	if o.cfg.AutoResetDelay <= 0 {
		return
	}
	o.timer = time.AfterFunc(o.cfg.AutoResetDelay, func() {
		o.mu.Lock()
		if o.state.RunID != runID || o.state.Status != StatusFailed {
			o.mu.Unlock()
			return
		}
		o.resetLocked()
		snap := o.state.clone()
		o.mu.Unlock()
		log.Debugw("failed voting flow cleared", "run", runID)
		o.notify(snap)
	})
}

func (o *Orchestrator) stopTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *Orchestrator) notify(s FlowState) {
	o.mu.Lock()
	subs := make([]func(FlowState), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

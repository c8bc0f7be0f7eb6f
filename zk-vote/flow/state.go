package flow

import (
	"github.com/ethereum/go-ethereum/common"
)

type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

type Mode int

const (
	ModeFull Mode = iota
	ModeJoinOnly
)

func (m Mode) String() string {
	if m == ModeJoinOnly {
		return "join-only"
	}
	return "full"
}

type StepID string

const (
	StepEnsureIdentity StepID = "ensure-identity"
	StepJoinTx         StepID = "join-tx"
	StepFetchMembers   StepID = "fetch-members"
	StepProof          StepID = "proof"
	StepVoteTx         StepID = "vote-tx"
)

type Step struct {
	ID    StepID
	Label string
}

var stepLabels = map[StepID]string{
	StepEnsureIdentity: "Preparing identity",
	StepJoinTx:         "Joining the voter group",
	StepFetchMembers:   "Fetching group members",
	StepProof:          "Generating zero-knowledge proof",
	StepVoteTx:         "Submitting vote",
}

// StepsFor returns the ordered step list of a run.
func StepsFor(mode Mode, requiresJoin bool) []Step {
	var ids []StepID
	switch {
	case mode == ModeJoinOnly:
		ids = []StepID{StepEnsureIdentity, StepJoinTx}
	case requiresJoin:
		ids = []StepID{StepEnsureIdentity, StepJoinTx, StepFetchMembers, StepProof, StepVoteTx}
	default:
		ids = []StepID{StepEnsureIdentity, StepFetchMembers, StepProof, StepVoteTx}
	}
	steps := make([]Step, len(ids))
	for i, id := range ids {
		steps[i] = Step{ID: id, Label: stepLabels[id]}
	}
	return steps
}

type TxHashes struct {
	Join *common.Hash
	Vote *common.Hash
}

// FlowState is a snapshot; the orchestrator never hands out its own copy.
type FlowState struct {
	RunID      string
	ProposalID uint64
	Mode       Mode
	Status     Status

	Steps []Step
	// CurrentStep indexes Steps. It equals len(Steps) after success.
	CurrentStep int
	FailedStep  StepID

	TxHashes      TxHashes
	LastSuccessTx *common.Hash
	Err           error
}

func (s FlowState) clone() FlowState {
	s.Steps = append([]Step(nil), s.Steps...)
	if s.TxHashes.Join != nil {
		h := *s.TxHashes.Join
		s.TxHashes.Join = &h
	}
	if s.TxHashes.Vote != nil {
		h := *s.TxHashes.Vote
		s.TxHashes.Vote = &h
	}
	if s.LastSuccessTx != nil {
		h := *s.LastSuccessTx
		s.LastSuccessTx = &h
	}
	return s
}

// Step returns the step the cursor is on, if any.
func (s FlowState) Step() (Step, bool) {
	if s.CurrentStep < 0 || s.CurrentStep >= len(s.Steps) {
		return Step{}, false
	}
	return s.Steps[s.CurrentStep], true
}

// Package governance implements Aevum's on-chain proposal lifecycle:
// stake-weighted voting over a fixed voting window, finalized into a
// terminal status. Grounded on
// original_source/aevum-core/src/transaction.rs's GovernanceProposal/
// ProposalStatus.
package governance

import (
	"math/big"

	nodeerrors "github.com/aevum-bond/node/errors"
	"github.com/aevum-bond/node/hash256"
)

// Status is a proposal's lifecycle state.
type Status int

const (
	StatusActive Status = iota
	StatusPassed
	StatusRejected
	StatusExpired
	StatusExecuted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPassed:
		return "passed"
	case StatusRejected:
		return "rejected"
	case StatusExpired:
		return "expired"
	case StatusExecuted:
		return "executed"
	default:
		return "unknown"
	}
}

// Proposal is a single governance vote: a title/description pair, a
// voting window measured in block height, and the running tally.
type Proposal struct {
	ID            uint64
	Proposer      hash256.Hash256
	Title         string
	Description   string
	VotingStart   uint64
	VotingEnd     uint64
	YesVotes      *big.Int
	NoVotes       *big.Int
	Voters        map[hash256.Hash256]struct{}
	Status        Status
}

// New creates an Active proposal spanning [votingStart, votingStart+votingPeriod).
func New(id uint64, proposer hash256.Hash256, title, description string, votingStart, votingPeriod uint64) *Proposal {
	return &Proposal{
		ID:          id,
		Proposer:    proposer,
		Title:       title,
		Description: description,
		VotingStart: votingStart,
		VotingEnd:   votingStart + votingPeriod,
		YesVotes:    big.NewInt(0),
		NoVotes:     big.NewInt(0),
		Voters:      make(map[hash256.Hash256]struct{}),
		Status:      StatusActive,
	}
}

// AddVote records a stake-weighted vote, rejecting a second vote from
// the same address or a vote cast outside the proposal's lifecycle.
func (p *Proposal) AddVote(voter hash256.Hash256, yes bool, weight *big.Int) error {
	if p.Status != StatusActive {
		return nodeerrors.NewInvalidTransactionError("proposal %d is not active", p.ID)
	}
	if _, voted := p.Voters[voter]; voted {
		return nodeerrors.NewInvalidTransactionError("address has already voted on proposal %d", p.ID)
	}

	if yes {
		p.YesVotes.Add(p.YesVotes, weight)
	} else {
		p.NoVotes.Add(p.NoVotes, weight)
	}
	p.Voters[voter] = struct{}{}
	return nil
}

// Finalize resolves the proposal's terminal status once currentHeight
// reaches VotingEnd. It is a no-op before then and idempotent after.
func (p *Proposal) Finalize(currentHeight uint64) Status {
	if p.Status != StatusActive {
		return p.Status
	}
	if currentHeight < p.VotingEnd {
		return p.Status
	}

	switch {
	case p.YesVotes.Sign() == 0 && p.NoVotes.Sign() == 0:
		p.Status = StatusExpired
	case p.YesVotes.Cmp(p.NoVotes) > 0:
		p.Status = StatusPassed
	default:
		p.Status = StatusRejected
	}
	return p.Status
}

// Registry tracks every proposal ever created, keyed by ID.
type Registry struct {
	proposals map[uint64]*Proposal
	nextID    uint64
}

// NewRegistry returns an empty proposal registry.
func NewRegistry() *Registry {
	return &Registry{proposals: make(map[uint64]*Proposal)}
}

// Create allocates a new proposal ID and registers an Active proposal for it.
func (r *Registry) Create(proposer hash256.Hash256, title, description string, votingStart, votingPeriod uint64) *Proposal {
	id := r.nextID
	r.nextID++
	p := New(id, proposer, title, description, votingStart, votingPeriod)
	r.proposals[id] = p
	return p
}

// Get returns the proposal with the given ID, if it exists.
func (r *Registry) Get(id uint64) (*Proposal, bool) {
	p, ok := r.proposals[id]
	return p, ok
}

// Active returns every proposal still in the Active status.
func (r *Registry) Active() []*Proposal {
	var active []*Proposal
	for _, p := range r.proposals {
		if p.Status == StatusActive {
			active = append(active, p)
		}
	}
	return active
}

// FinalizeAll finalizes every active proposal whose voting window has
// closed as of currentHeight.
func (r *Registry) FinalizeAll(currentHeight uint64) {
	for _, p := range r.proposals {
		p.Finalize(currentHeight)
	}
}

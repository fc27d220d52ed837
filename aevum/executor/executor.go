// Package executor applies admitted Aevum transactions to world state
// and the governance registry, translating each tx.Kind into the
// State or Registry mutation it describes. Grounded on
// original_source/aevum-core/src/placeholder.rs's AevumState method
// surface (register_validator, get_account_mut, ...), which the Rust
// side never actually wired to a transaction dispatcher — this
// package is that missing dispatcher.
package executor

import (
	"github.com/aevum-bond/node/aevum/governance"
	"github.com/aevum-bond/node/aevum/state"
	aevumtx "github.com/aevum-bond/node/aevum/tx"
	nodeerrors "github.com/aevum-bond/node/errors"
)

// Config bounds the executor's staking-related behavior.
type Config struct {
	// UnstakeDelay is how many epochs an Unstake or Undelegate's
	// proceeds sit in the pending-withdrawal queue before ClaimRewards
	// can release them.
	UnstakeDelay uint64
}

// DefaultConfig returns the delay named for Aevum staking: 7 epochs.
func DefaultConfig() Config {
	return Config{UnstakeDelay: 7}
}

// Executor applies admitted transactions to a State and Registry. It
// does not itself validate signatures or nonce order; callers apply
// transactions in the order tx.Mempool.Executable returns them.
type Executor struct {
	state     *state.State
	proposals *governance.Registry
	config    Config
}

// New returns an Executor operating on s and proposals.
func New(s *state.State, proposals *governance.Registry, config Config) *Executor {
	return &Executor{state: s, proposals: proposals, config: config}
}

// Apply executes t's operation against the world state, dispatching on
// its Kind.
func (e *Executor) Apply(t *aevumtx.Transaction) error {
	switch t.Kind {
	case aevumtx.KindTransfer:
		return e.state.Transfer(t.From, t.To, t.Amount)
	case aevumtx.KindStake:
		return e.state.Stake(t.From, t.Amount)
	case aevumtx.KindUnstake:
		return e.state.Unstake(t.From, t.Amount, e.state.CurrentEpoch, e.config.UnstakeDelay)
	case aevumtx.KindDelegate:
		return e.state.Delegate(t.From, t.Validator, t.Amount)
	case aevumtx.KindUndelegate:
		return e.state.Undelegate(t.From, t.Validator, t.Amount, e.state.CurrentEpoch, e.config.UnstakeDelay)
	case aevumtx.KindVote:
		return e.applyVote(t)
	case aevumtx.KindCreateProposal:
		return e.applyCreateProposal(t)
	case aevumtx.KindClaimRewards:
		return e.applyClaimRewards(t)
	default:
		return nodeerrors.NewInvalidTransactionError("unknown aevum transaction kind %d", t.Kind)
	}
}

func (e *Executor) applyVote(t *aevumtx.Transaction) error {
	p, ok := e.proposals.Get(t.ProposalID)
	if !ok {
		return nodeerrors.NewNotFoundError("proposal %d not found", t.ProposalID)
	}
	if err := p.AddVote(t.From, t.VoteYes, t.Weight); err != nil {
		return err
	}
	e.state.IncrementNonce(t.From)
	return nil
}

func (e *Executor) applyCreateProposal(t *aevumtx.Transaction) error {
	e.proposals.Create(t.From, t.Title, t.Description, e.state.BlockHeight, t.VotingPeriod)
	e.state.IncrementNonce(t.From)
	return nil
}

func (e *Executor) applyClaimRewards(t *aevumtx.Transaction) error {
	e.state.SettleWithdrawals(t.From, e.state.CurrentEpoch)
	e.state.IncrementNonce(t.From)
	return nil
}

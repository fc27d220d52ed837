package dpos

import (
	"context"
	"math/big"

	"github.com/looplab/fsm"

	nodeerrors "github.com/aevum-bond/node/errors"
	"github.com/aevum-bond/node/hash256"

	"github.com/aevum-bond/node/aevum/state"
)

// Epoch lifecycle states, matching the state machine described for the
// DPoS engine: idle until a schedule exists, scheduled while producing,
// and briefly settling while rewards/slashing/re-election run at an
// epoch boundary.
const (
	EpochIdle      = "idle"
	EpochScheduled = "scheduled"
	EpochSettling  = "settling"
)

// EpochController drives an Engine through its idle/scheduled/settling
// states with github.com/looplab/fsm, rejecting calls made out of
// order (settling an epoch before any schedule exists) instead of
// leaving that invariant as implicit caller discipline.
type EpochController struct {
	engine *Engine
	state  *state.State
	fsm    *fsm.FSM
}

// NewEpochController wraps engine and state with an idle epoch state machine.
func NewEpochController(engine *Engine, s *state.State) *EpochController {
	c := &EpochController{engine: engine, state: s}
	c.fsm = fsm.NewFSM(
		EpochIdle,
		fsm.Events{
			{Name: "schedule", Src: []string{EpochIdle, EpochSettling}, Dst: EpochScheduled},
			{Name: "settle", Src: []string{EpochScheduled}, Dst: EpochSettling},
		},
		fsm.Callbacks{},
	)
	return c
}

// State returns the controller's current epoch-lifecycle state.
func (c *EpochController) State() string {
	return c.fsm.Current()
}

// ElectAndSchedule elects validators from the wrapped state and
// generates a production schedule starting at epochStart, transitioning
// idle/settling to scheduled.
func (c *EpochController) ElectAndSchedule(epochStart uint64) error {
	elected, err := c.engine.ElectValidators(c.state)
	if err != nil {
		return err
	}
	if err := c.engine.GenerateSchedule(elected, epochStart); err != nil {
		return err
	}
	return c.fsm.Event(context.Background(), "schedule")
}

// Settle transitions scheduled to settling, applies slashing to every
// identified validator, distributes totalReward by performance, and
// advances the wrapped state's epoch counter. It refuses to run unless
// a schedule is currently active.
func (c *EpochController) Settle(totalReward *big.Int) (map[hash256.Hash256]*big.Int, error) {
	if c.fsm.Current() != EpochScheduled {
		return nil, nodeerrors.NewInvalidBlockError("cannot settle epoch from state %q", c.fsm.Current())
	}
	if err := c.fsm.Event(context.Background(), "settle"); err != nil {
		return nil, nodeerrors.NewInvalidBlockError("epoch settle transition rejected: %v", err)
	}

	slashable := c.engine.IdentifySlashableValidators()
	c.engine.ApplySlashing(c.state, slashable)
	rewards := c.engine.CalculateRewards(totalReward)
	c.state.AdvanceEpoch()

	return rewards, nil
}

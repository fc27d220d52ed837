// Package dpos implements Aevum's Delegated Proof of Stake consensus:
// stake-weighted validator election, round-robin block-producer
// scheduling, performance tracking, reward distribution, and slashing.
// Grounded on original_source/aevum-core/src/consensus.rs's
// DposEngine/ValidatorPerformance/BlockSlot.
package dpos

import (
	"math/big"
	"sort"

	nodeerrors "github.com/aevum-bond/node/errors"
	"github.com/aevum-bond/node/hash256"

	"github.com/aevum-bond/node/aevum/state"
)

// slotTime is the fixed spacing between scheduled block slots, in seconds.
const slotTime = 3

// Config bounds validator election and epoch timing.
type Config struct {
	MaxValidators     uint32
	MinValidatorStake *big.Int
	EpochLength       uint64
	UnstakeDelay      uint64
}

// DefaultConfig mirrors the reference network's defaults: 21 active
// validators, a 1000-token floor, 2160-slot epochs (~1.8 hours at the
// 3s slot time), and a 7-epoch unstake delay.
func DefaultConfig() Config {
	return Config{
		MaxValidators:     21,
		MinValidatorStake: big.NewInt(1000),
		EpochLength:       2160,
		UnstakeDelay:      7,
	}
}

// BlockSlot is one scheduled production opportunity within an epoch.
type BlockSlot struct {
	SlotNumber     uint64
	Validator      hash256.Hash256
	ExpectedTime   uint64
	BlockProduced  bool
}

// Performance tracks one validator's block-production record.
type Performance struct {
	SlotsAssigned    uint64
	BlocksProduced   uint64
	MissedBlocks     uint64
	ApprovalRate     float64
	LastActiveEpoch  uint64
}

// NewPerformance returns a zeroed record with a starting approval rate
// of 1.0, so a never-yet-scheduled validator is not immediately
// slashable.
func NewPerformance() *Performance {
	return &Performance{ApprovalRate: 1.0}
}

// RecordBlockProduced registers a produced block and refreshes the
// approval rate.
func (p *Performance) RecordBlockProduced(epoch uint64) {
	p.BlocksProduced++
	p.LastActiveEpoch = epoch
	p.updateApprovalRate()
}

// RecordMissedBlock registers a missed block and refreshes the
// approval rate.
func (p *Performance) RecordMissedBlock(epoch uint64) {
	p.MissedBlocks++
	p.LastActiveEpoch = epoch
	p.updateApprovalRate()
}

func (p *Performance) updateApprovalRate() {
	total := p.BlocksProduced + p.MissedBlocks
	if total > 0 {
		p.ApprovalRate = float64(p.BlocksProduced) / float64(total)
	}
}

// ShouldBeSlashed reports whether the validator's approval rate has
// fallen below 50% over at least 10 assigned slots.
func (p *Performance) ShouldBeSlashed() bool {
	return p.ApprovalRate < 0.5 && p.SlotsAssigned >= 10
}

// EpochStats summarizes one epoch's schedule completion.
type EpochStats struct {
	TotalSlots        uint64
	ProducedBlocks    uint64
	MissedBlocks      uint64
	ParticipationRate float64
	ActiveValidators  uint32
}

// Engine runs validator election, scheduling, and slashing for one chain.
type Engine struct {
	Config            Config
	ValidatorPerformance map[hash256.Hash256]*Performance
	CurrentSchedule   []BlockSlot
	NextSlot          uint64
	EpochStartTime    uint64
}

// NewEngine returns a fresh DPoS engine with an empty schedule.
func NewEngine(config Config) *Engine {
	return &Engine{
		Config:               config,
		ValidatorPerformance: make(map[hash256.Hash256]*Performance),
	}
}

// ElectValidators returns every registered validator meeting the
// minimum stake, sorted by stake descending and capped at
// Config.MaxValidators.
func (e *Engine) ElectValidators(s *state.State) ([]hash256.Hash256, error) {
	type candidate struct {
		key   hash256.Hash256
		stake *big.Int
	}

	var candidates []candidate
	for key, v := range s.Validators {
		if v.StakeAmount.Cmp(e.Config.MinValidatorStake) >= 0 {
			candidates = append(candidates, candidate{key: key, stake: v.StakeAmount})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].stake.Cmp(candidates[j].stake) > 0
	})

	max := int(e.Config.MaxValidators)
	if len(candidates) < max {
		max = len(candidates)
	}

	elected := make([]hash256.Hash256, 0, max)
	for _, c := range candidates[:max] {
		elected = append(elected, c.key)
	}

	if len(elected) == 0 {
		return nil, nodeerrors.NewInvalidBlockError("no eligible validator found")
	}
	return elected, nil
}

// GenerateSchedule builds a round-robin block-production schedule over
// Config.EpochLength slots, each slotTime seconds apart starting at
// epochStart.
func (e *Engine) GenerateSchedule(validators []hash256.Hash256, epochStart uint64) error {
	if len(validators) == 0 {
		return nodeerrors.NewInvalidBlockError("validator list is empty")
	}

	e.CurrentSchedule = make([]BlockSlot, 0, e.Config.EpochLength)
	e.EpochStartTime = epochStart
	e.NextSlot = 0

	for slot := uint64(0); slot < e.Config.EpochLength; slot++ {
		validatorIndex := slot % uint64(len(validators))
		e.CurrentSchedule = append(e.CurrentSchedule, BlockSlot{
			SlotNumber:   slot,
			Validator:    validators[validatorIndex],
			ExpectedTime: epochStart + slot*slotTime,
		})
		e.performanceFor(validators[validatorIndex]).SlotsAssigned++
	}

	return nil
}

// GetCurrentProducer returns the validator responsible for the next
// slot, or false once the schedule is exhausted.
func (e *Engine) GetCurrentProducer() (hash256.Hash256, bool) {
	if e.NextSlot >= uint64(len(e.CurrentSchedule)) {
		return hash256.Zero, false
	}
	return e.CurrentSchedule[e.NextSlot].Validator, true
}

func (e *Engine) performanceFor(validator hash256.Hash256) *Performance {
	p, ok := e.ValidatorPerformance[validator]
	if !ok {
		p = NewPerformance()
		e.ValidatorPerformance[validator] = p
	}
	return p
}

// RecordBlockProduced marks the current slot produced by validator and
// advances to the next slot.
func (e *Engine) RecordBlockProduced(validator hash256.Hash256, epoch uint64) {
	e.performanceFor(validator).RecordBlockProduced(epoch)
	if e.NextSlot < uint64(len(e.CurrentSchedule)) {
		e.CurrentSchedule[e.NextSlot].BlockProduced = true
	}
	e.NextSlot++
}

// RecordMissedBlock marks the current slot missed by validator and
// advances to the next slot regardless.
func (e *Engine) RecordMissedBlock(validator hash256.Hash256, epoch uint64) {
	e.performanceFor(validator).RecordMissedBlock(epoch)
	e.NextSlot++
}

// CalculateRewards distributes totalReward across validators
// proportionally to their share of the summed approval rate. Zero
// payouts (from a zero total performance score) are omitted.
func (e *Engine) CalculateRewards(totalReward *big.Int) map[hash256.Hash256]*big.Int {
	rewards := make(map[hash256.Hash256]*big.Int)

	var totalScore float64
	for _, p := range e.ValidatorPerformance {
		totalScore += p.ApprovalRate
	}
	if totalScore == 0 {
		return rewards
	}

	totalRewardF := new(big.Float).SetInt(totalReward)
	for validator, p := range e.ValidatorPerformance {
		ratio := p.ApprovalRate / totalScore
		reward, _ := new(big.Float).Mul(totalRewardF, big.NewFloat(ratio)).Int(nil)
		if reward.Sign() > 0 {
			rewards[validator] = reward
		}
	}
	return rewards
}

// IdentifySlashableValidators returns every validator whose performance
// record crosses the slashing threshold.
func (e *Engine) IdentifySlashableValidators() []hash256.Hash256 {
	var slashable []hash256.Hash256
	for validator, p := range e.ValidatorPerformance {
		if p.ShouldBeSlashed() {
			slashable = append(slashable, validator)
		}
	}
	return slashable
}

// slashPercent is the fraction of stake removed from a slashed validator.
const slashPercent = 10

// ApplySlashing removes slashPercent of stake from each named validator,
// deactivating it if the remaining stake falls below the configured
// minimum, and drops its performance history. It returns the total
// amount slashed.
func (e *Engine) ApplySlashing(s *state.State, validators []hash256.Hash256) *big.Int {
	totalSlashed := big.NewInt(0)

	for _, key := range validators {
		if v, ok := s.Validators[key]; ok {
			slashAmount := new(big.Int).Mul(v.StakeAmount, big.NewInt(slashPercent))
			slashAmount.Div(slashAmount, big.NewInt(100))

			if err := v.RemoveStake(slashAmount); err == nil {
				totalSlashed.Add(totalSlashed, slashAmount)
				if v.StakeAmount.Cmp(e.Config.MinValidatorStake) < 0 {
					v.IsActive = false
				}
			}
		}
		delete(e.ValidatorPerformance, key)
	}

	return totalSlashed
}

// ShouldAdvanceEpoch reports whether the current epoch's duration has
// elapsed as of currentTime.
func (e *Engine) ShouldAdvanceEpoch(currentTime uint64) bool {
	epochDuration := e.Config.EpochLength * slotTime
	return currentTime >= e.EpochStartTime+epochDuration
}

// GetEpochStats summarizes the current schedule's completion.
func (e *Engine) GetEpochStats() EpochStats {
	total := uint64(len(e.CurrentSchedule))
	var produced uint64
	for _, slot := range e.CurrentSchedule {
		if slot.BlockProduced {
			produced++
		}
	}

	var missed uint64
	if total > produced {
		missed = total - produced
	}

	var participation float64
	if total > 0 {
		participation = float64(produced) / float64(total)
	}

	return EpochStats{
		TotalSlots:        total,
		ProducedBlocks:    produced,
		MissedBlocks:      missed,
		ParticipationRate: participation,
		ActiveValidators:  uint32(len(e.ValidatorPerformance)),
	}
}

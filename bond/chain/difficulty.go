package chain

import (
	"time"

	"github.com/aevum-bond/node/bond/block"
	"github.com/aevum-bond/node/config"
	nodeerrors "github.com/aevum-bond/node/errors"
)

// DifficultyAdjuster retargets the network's proof-of-work difficulty
// every adjustmentPeriod blocks, aiming to keep block production at
// targetBlockTime, grounded on the original DifficultyAdjuster.
type DifficultyAdjuster struct {
	targetBlockTime  time.Duration
	adjustmentPeriod uint64
}

// NewDifficultyAdjuster builds a DifficultyAdjuster for the given target
// block time and adjustment period (in blocks).
func NewDifficultyAdjuster(targetBlockTime time.Duration, adjustmentPeriod uint64) *DifficultyAdjuster {
	return &DifficultyAdjuster{targetBlockTime: targetBlockTime, adjustmentPeriod: adjustmentPeriod}
}

// CalculateNewDifficulty returns the difficulty the next block must
// meet. Below one full adjustment period of history it returns
// currentDifficulty unchanged. Otherwise it compares the actual time
// spent producing the most recent adjustmentPeriod blocks against the
// expected time, clamps the resulting adjustment factor to [0.25, 4.0],
// and moves difficulty by at most that much, capped at
// config.BondDifficultyCapBits and floored at config.BondMinDifficultyBits.
func (d *DifficultyAdjuster) CalculateNewDifficulty(currentDifficulty uint32, blocks []*block.Block) (uint32, error) {
	if d.adjustmentPeriod == 0 {
		return currentDifficulty, nodeerrors.NewInvalidBlockError("adjustment period must be non-zero")
	}
	if uint64(len(blocks)) < d.adjustmentPeriod {
		return currentDifficulty, nil
	}

	recent := blocks[uint64(len(blocks))-d.adjustmentPeriod:]
	actualTime := recent[len(recent)-1].Header.Timestamp.Sub(recent[0].Header.Timestamp)
	expectedTime := d.targetBlockTime * time.Duration(d.adjustmentPeriod-1)
	if expectedTime <= 0 {
		return currentDifficulty, nil
	}

	adjustmentFactor := actualTime.Seconds() / expectedTime.Seconds()
	clamped := clamp(adjustmentFactor, 0.25, 4.0)

	var newDifficulty uint32
	if clamped > 1.0 {
		decrease := uint32(clamped - 1.0)
		newDifficulty = saturatingSub(currentDifficulty, decrease)
		if newDifficulty < config.BondMinDifficultyBits {
			newDifficulty = config.BondMinDifficultyBits
		}
	} else {
		increase := uint32((1.0 / clamped) - 1.0)
		newDifficulty = saturatingAdd(currentDifficulty, increase)
	}

	if newDifficulty > config.BondDifficultyCapBits {
		newDifficulty = config.BondDifficultyCapBits
	}
	return newDifficulty, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func saturatingSub(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}

func saturatingAdd(a, b uint32) uint32 {
	sum := uint64(a) + uint64(b)
	if sum > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(sum)
}

package dpos

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aevum-bond/node/hash256"

	"github.com/aevum-bond/node/aevum/state"
)

func TestEngineCreationStartsEmpty(t *testing.T) {
	e := NewEngine(DefaultConfig())
	require.Len(t, e.CurrentSchedule, 0)
	require.Equal(t, uint64(0), e.NextSlot)
}

func TestElectValidatorsSortsByStakeDescending(t *testing.T) {
	e := NewEngine(DefaultConfig())
	s := state.New()

	val1 := hash256.Sum([]byte("validator1"))
	val2 := hash256.Sum([]byte("validator2"))
	val3 := hash256.Sum([]byte("validator3"))

	require.NoError(t, s.RegisterValidator(val1, big.NewInt(5000)))
	require.NoError(t, s.RegisterValidator(val2, big.NewInt(3000)))
	require.NoError(t, s.RegisterValidator(val3, big.NewInt(1000)))

	elected, err := e.ElectValidators(s)
	require.NoError(t, err)
	require.Len(t, elected, 3)
	require.Equal(t, val1, elected[0])
	require.Equal(t, val2, elected[1])
	require.Equal(t, val3, elected[2])
}

func TestElectValidatorsFiltersBelowMinStake(t *testing.T) {
	e := NewEngine(DefaultConfig())
	s := state.New()

	val1 := hash256.Sum([]byte("validator1"))
	val2 := hash256.Sum([]byte("validator2"))
	require.NoError(t, s.RegisterValidator(val1, big.NewInt(5000)))
	require.NoError(t, s.RegisterValidator(val2, big.NewInt(1)))

	elected, err := e.ElectValidators(s)
	require.NoError(t, err)
	require.Equal(t, []hash256.Hash256{val1}, elected)
}

func TestElectValidatorsFailsWithNoEligible(t *testing.T) {
	e := NewEngine(DefaultConfig())
	s := state.New()
	_, err := e.ElectValidators(s)
	require.Error(t, err)
}

func TestGenerateScheduleRoundRobin(t *testing.T) {
	config := DefaultConfig()
	config.EpochLength = 10
	e := NewEngine(config)

	validators := []hash256.Hash256{
		hash256.Sum([]byte("val1")),
		hash256.Sum([]byte("val2")),
	}

	require.NoError(t, e.GenerateSchedule(validators, 1000))
	require.Len(t, e.CurrentSchedule, 10)
	require.Equal(t, uint64(1000), e.EpochStartTime)

	require.Equal(t, validators[0], e.CurrentSchedule[0].Validator)
	require.Equal(t, validators[1], e.CurrentSchedule[1].Validator)
	require.Equal(t, validators[0], e.CurrentSchedule[2].Validator)
}

func TestGenerateScheduleRejectsEmptyValidatorList(t *testing.T) {
	e := NewEngine(DefaultConfig())
	require.Error(t, e.GenerateSchedule(nil, 0))
}

func TestValidatorPerformanceApprovalRate(t *testing.T) {
	p := NewPerformance()
	p.RecordBlockProduced(1)
	p.RecordBlockProduced(1)
	p.RecordMissedBlock(1)

	require.Equal(t, uint64(2), p.BlocksProduced)
	require.Equal(t, uint64(1), p.MissedBlocks)
	require.InDelta(t, 2.0/3.0, p.ApprovalRate, 0.0001)
}

func TestRewardCalculationFavorsBetterPerformance(t *testing.T) {
	e := NewEngine(DefaultConfig())

	val1 := hash256.Sum([]byte("val1"))
	val2 := hash256.Sum([]byte("val2"))

	perf1 := NewPerformance()
	perf1.ApprovalRate = 1.0
	perf2 := NewPerformance()
	perf2.ApprovalRate = 0.5

	e.ValidatorPerformance[val1] = perf1
	e.ValidatorPerformance[val2] = perf2

	rewards := e.CalculateRewards(big.NewInt(1000))
	require.True(t, rewards[val1].Cmp(rewards[val2]) > 0)
}

func TestApplySlashingReducesStakeAndDeactivatesBelowFloor(t *testing.T) {
	config := DefaultConfig()
	config.MinValidatorStake = big.NewInt(1000)
	e := NewEngine(config)

	s := state.New()
	val := hash256.Sum([]byte("validator"))
	require.NoError(t, s.RegisterValidator(val, big.NewInt(1050)))
	e.ValidatorPerformance[val] = NewPerformance()

	slashed := e.ApplySlashing(s, []hash256.Hash256{val})
	require.Equal(t, big.NewInt(105), slashed)

	v := s.Validators[val]
	require.Equal(t, big.NewInt(945), v.StakeAmount)
	require.False(t, v.IsActive)
	require.NotContains(t, e.ValidatorPerformance, val)
}

func TestShouldAdvanceEpoch(t *testing.T) {
	config := DefaultConfig()
	config.EpochLength = 10
	e := NewEngine(config)
	e.EpochStartTime = 0

	require.False(t, e.ShouldAdvanceEpoch(10))
	require.True(t, e.ShouldAdvanceEpoch(30))
}

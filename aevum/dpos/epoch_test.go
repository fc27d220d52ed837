package dpos

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aevum-bond/node/hash256"

	"github.com/aevum-bond/node/aevum/state"
)

func TestEpochControllerStartsIdle(t *testing.T) {
	c := NewEpochController(NewEngine(DefaultConfig()), state.New())
	require.Equal(t, EpochIdle, c.State())
}

func TestEpochControllerElectAndScheduleMovesToScheduled(t *testing.T) {
	s := state.New()
	require.NoError(t, s.RegisterValidator(hash256.Sum([]byte("val1")), big.NewInt(5000)))

	c := NewEpochController(NewEngine(DefaultConfig()), s)
	require.NoError(t, c.ElectAndSchedule(1000))
	require.Equal(t, EpochScheduled, c.State())
}

func TestEpochControllerSettleRejectedBeforeSchedule(t *testing.T) {
	c := NewEpochController(NewEngine(DefaultConfig()), state.New())
	_, err := c.Settle(big.NewInt(1000))
	require.Error(t, err)
}

func TestEpochControllerSettleDistributesRewardsAndAdvancesEpoch(t *testing.T) {
	config := DefaultConfig()
	config.EpochLength = 5
	s := state.New()
	val := hash256.Sum([]byte("val1"))
	require.NoError(t, s.RegisterValidator(val, big.NewInt(5000)))

	engine := NewEngine(config)
	c := NewEpochController(engine, s)
	require.NoError(t, c.ElectAndSchedule(0))

	engine.RecordBlockProduced(val, 0)

	rewards, err := c.Settle(big.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), rewards[val])
	require.Equal(t, EpochSettling, c.State())
	require.Equal(t, uint64(1), s.CurrentEpoch)
}

func TestEpochControllerElectAndScheduleAfterSettlingReturnsToScheduled(t *testing.T) {
	s := state.New()
	val := hash256.Sum([]byte("val1"))
	require.NoError(t, s.RegisterValidator(val, big.NewInt(5000)))

	c := NewEpochController(NewEngine(DefaultConfig()), s)
	require.NoError(t, c.ElectAndSchedule(0))
	_, err := c.Settle(big.NewInt(1000))
	require.NoError(t, err)

	require.NoError(t, c.ElectAndSchedule(1000))
	require.Equal(t, EpochScheduled, c.State())
}

package miner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aevum-bond/node/hash256"
)

func TestMinerNotMiningInitially(t *testing.T) {
	m := New(Config{RewardScript: []byte{1, 2, 3}, Threads: 1})
	require.False(t, m.IsMining())
}

func TestMineGenesisLikeBlock(t *testing.T) {
	m := New(Config{RewardScript: []byte{1, 2, 3}, Threads: 1})

	result, err := m.MineBlock(context.Background(), hash256.Zero, 0, 5000, 1, nil)
	require.NoError(t, err)
	require.NoError(t, result.Block.ValidateBasic())
	require.Len(t, result.Block.Transactions, 1)
	require.True(t, result.Block.Transactions[0].IsCoinbase())
	require.True(t, result.Block.Header.MeetsDifficulty())
	require.Greater(t, result.Attempts, uint64(0))
}

func TestMineBlockRespectsContextCancellation(t *testing.T) {
	m := New(Config{RewardScript: []byte{1, 2, 3}, Threads: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := m.MineBlock(ctx, hash256.Zero, 0, 5000, 32, nil)
	require.Error(t, err)
	require.False(t, m.IsMining())
}

func TestEstimateHashrateIsPositive(t *testing.T) {
	rate := EstimateHashrate(20 * time.Millisecond)
	require.Greater(t, rate, 0.0)
}

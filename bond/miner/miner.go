// Package miner implements Bond's parallel proof-of-work search: N
// worker goroutines racing over disjoint nonce ranges, coordinated by a
// shared atomic "found" flag and a mutex-protected result slot, grounded
// on the original mine_header_parallel/mine_header_range pair and on
// the teacher's errgroup-based worker-pool style (services/miner).
package miner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/aevum-bond/node/bond/block"
	"github.com/aevum-bond/node/bond/tx"
	nodeerrors "github.com/aevum-bond/node/errors"
	"github.com/aevum-bond/node/hash256"
)

// timestampRefreshInterval is how often an in-progress search refreshes
// its header's timestamp, matching the original's 100,000-attempt cadence.
const timestampRefreshInterval = 100_000

// Config selects the reward destination and worker-pool size for a Miner.
type Config struct {
	RewardScript []byte
	Threads      int
}

// Result is a successful mining search: the finished block (its header
// carries the winning nonce) and how many attempts were made in total
// across every worker.
type Result struct {
	Block    *block.Block
	Attempts uint64
}

// Miner searches for a block whose header hash satisfies a target
// difficulty.
type Miner struct {
	config   Config
	isMining atomic.Bool
}

// New returns a Miner with the given configuration. Threads is clamped
// to at least 1.
func New(cfg Config) *Miner {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	return &Miner{config: cfg}
}

// IsMining reports whether a search is currently in progress.
func (m *Miner) IsMining() bool {
	return m.isMining.Load()
}

// Stop signals any in-progress search to abandon the current attempt at
// the next opportunity. It does not block for the search to exit; callers
// needing that should cancel the ctx passed to MineBlock instead.
func (m *Miner) Stop() {
	m.isMining.Store(false)
}

// MineBlock assembles a coinbase transaction paying reward to the
// miner's reward script, combines it with extraTxs, and searches for a
// nonce that makes the resulting header meet difficulty. The search
// stops as soon as any worker succeeds, ctx is canceled, or Stop is called.
func (m *Miner) MineBlock(ctx context.Context, previousHash hash256.Hash256, blockHeight uint64, reward uint64, difficulty uint32, extraTxs []*tx.Transaction) (*Result, error) {
	coinbase := &tx.Transaction{
		Version: 1,
		Inputs: []tx.TxInput{
			{PreviousOutput: tx.CoinbaseOutPoint, ScriptSig: tx.NewCoinbaseScriptSig(blockHeight, nil)},
		},
		Outputs: []tx.TxOutput{{Value: reward, ScriptPubKey: m.config.RewardScript}},
	}
	allTxs := append([]*tx.Transaction{coinbase}, extraTxs...)

	header := block.Header{
		Version:      1,
		PreviousHash: previousHash,
		Timestamp:    time.Now(),
		Difficulty:   difficulty,
	}
	header.MerkleRoot = block.MerkleRoot(allTxs)

	return m.mineHeaderParallel(ctx, header, allTxs)
}

func (m *Miner) mineHeaderParallel(ctx context.Context, header block.Header, txs []*tx.Transaction) (*Result, error) {
	m.isMining.Store(true)
	defer m.isMining.Store(false)

	var mu sync.Mutex
	var winner *block.Block
	var totalAttempts atomic.Uint64

	noncePerThread := ^uint64(0) / uint64(m.config.Threads)

	group, groupCtx := errgroup.WithContext(ctx)
	for threadID := 0; threadID < m.config.Threads; threadID++ {
		threadID := threadID
		start := uint64(threadID) * noncePerThread
		end := start + noncePerThread
		if threadID == m.config.Threads-1 {
			end = ^uint64(0)
		}

		group.Go(func() error {
			attempts := m.searchRange(groupCtx, header, txs, start, end, &mu, &winner)
			totalAttempts.Add(attempts)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	mu.Lock()
	found := winner
	mu.Unlock()

	if found == nil {
		return nil, nodeerrors.NewNonceNotFoundError("exhausted nonce space without finding a solution")
	}

	return &Result{Block: found, Attempts: totalAttempts.Load()}, nil
}

func (m *Miner) searchRange(ctx context.Context, header block.Header, txs []*tx.Transaction, start, end uint64, mu *sync.Mutex, winner **block.Block) uint64 {
	var attempts uint64

	for nonce := start; nonce < end; nonce++ {
		if !m.isMining.Load() {
			return attempts
		}
		select {
		case <-ctx.Done():
			return attempts
		default:
		}

		mu.Lock()
		alreadyFound := *winner != nil
		mu.Unlock()
		if alreadyFound {
			return attempts
		}

		header.Nonce = nonce
		attempts++

		if header.MeetsDifficulty() {
			m.isMining.Store(false)
			mu.Lock()
			if *winner == nil {
				*winner = &block.Block{Header: header, Transactions: txs}
			}
			mu.Unlock()
			return attempts
		}

		if attempts%timestampRefreshInterval == 0 {
			header.Timestamp = time.Now()
		}
	}
	return attempts
}

// EstimateHashrate measures this machine's single-threaded hash rate
// over duration by hashing headers at an unreachable difficulty,
// matching the original's benchmarking approach.
func EstimateHashrate(duration time.Duration) float64 {
	header := block.Header{Version: 1, Difficulty: 32, Timestamp: time.Now()}

	start := time.Now()
	var attempts uint64
	for time.Since(start) < duration {
		header.Nonce = attempts
		header.Hash()
		attempts++
	}

	elapsed := time.Since(start).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(attempts) / elapsed
}

// Package chain implements Bond's canonical blockchain: the ordered
// block list, its UTXO set, a hash/height index, and the full block
// validation pipeline a new block must pass before it is appended.
// Grounded on the original Blockchain module's add_block/validate_block
// flow, restructured into Go's explicit-error-return idiom.
package chain

import (
	"time"

	"github.com/aevum-bond/node/bond/block"
	"github.com/aevum-bond/node/bond/tx"
	"github.com/aevum-bond/node/config"
	nodeerrors "github.com/aevum-bond/node/errors"
	"github.com/aevum-bond/node/hash256"
)

// NetworkParams governs consensus rules shared by every node on the
// network; two nodes with different NetworkParams cannot agree on a
// canonical chain.
type NetworkParams struct {
	InitialReward             uint64
	InitialDifficulty         uint32
	TargetBlockTime           time.Duration
	DifficultyAdjustmentPeriod uint64
	MaxBlockSize              int
	CoinbaseMaturity          uint64
}

// DefaultNetworkParams returns the chain's documented defaults (spec §6).
func DefaultNetworkParams() NetworkParams {
	return NetworkParams{
		InitialReward:              config.BondInitialRewardBase,
		InitialDifficulty:          config.BondMinDifficultyBits,
		TargetBlockTime:            config.BondTargetBlockTime,
		DifficultyAdjustmentPeriod: config.BondAdjustmentPeriod,
		MaxBlockSize:               config.BondMaxBlockSizeBytes,
		CoinbaseMaturity:           config.BondCoinbaseMaturity,
	}
}

// Blockchain is Bond's canonical chain of blocks plus the UTXO set that
// results from applying them in order.
type Blockchain struct {
	blocks     []*block.Block
	utxoSet    *tx.UtxoSet
	blockIndex map[hash256.Hash256]int
	params     NetworkParams
}

// New creates a Blockchain seeded with a freshly mined genesis block
// paying genesisScript the network's initial reward.
func New(params NetworkParams, genesisScript []byte) (*Blockchain, error) {
	genesis := block.Genesis(params.InitialReward, genesisScript)

	utxoSet := tx.NewUtxoSet()
	if err := genesis.ApplyToUtxoSet(utxoSet, params.CoinbaseMaturity); err != nil {
		return nil, err
	}

	genesisHash := genesis.Hash()
	return &Blockchain{
		blocks:     []*block.Block{genesis},
		utxoSet:    utxoSet,
		blockIndex: map[hash256.Hash256]int{genesisHash: 0},
		params:     params,
	}, nil
}

// Height returns the chain's tip height; genesis is height 0.
func (bc *Blockchain) Height() uint64 {
	return uint64(len(bc.blocks) - 1)
}

// LatestBlock returns the chain's tip block. It never returns nil: a
// Blockchain always has at least its genesis block.
func (bc *Blockchain) LatestBlock() *block.Block {
	return bc.blocks[len(bc.blocks)-1]
}

// BlockByHash looks up a block by its header hash.
func (bc *Blockchain) BlockByHash(h hash256.Hash256) (*block.Block, bool) {
	idx, ok := bc.blockIndex[h]
	if !ok {
		return nil, false
	}
	return bc.blocks[idx], true
}

// BlockByHeight looks up a block by height.
func (bc *Blockchain) BlockByHeight(height uint64) (*block.Block, bool) {
	if height >= uint64(len(bc.blocks)) {
		return nil, false
	}
	return bc.blocks[height], true
}

// UtxoSet returns the chain's current unspent-output set.
func (bc *Blockchain) UtxoSet() *tx.UtxoSet {
	return bc.utxoSet
}

// Balance sums the value of every unspent output locked to scriptPubKey.
func (bc *Blockchain) Balance(scriptPubKey []byte) uint64 {
	return bc.utxoSet.Balance(scriptPubKey)
}

// BlockReward returns the coinbase reward for a block at height. The
// reference implementation pays a constant reward; a future halving
// schedule plugs in here without touching callers.
func (bc *Blockchain) BlockReward(height uint64) uint64 {
	return bc.params.InitialReward
}

// TotalFees sums the per-transaction fee of every transaction in txs
// against the chain's current UTXO set.
func (bc *Blockchain) TotalFees(txs []*tx.Transaction) (uint64, error) {
	var total uint64
	for _, t := range txs {
		fee, err := bc.utxoSet.Fee(t)
		if err != nil {
			return 0, err
		}
		next := total + fee
		if next < total {
			return 0, nodeerrors.NewInvalidTransactionError("total fees overflow")
		}
		total = next
	}
	return total, nil
}

// NextDifficulty computes the difficulty the next block must satisfy,
// per the retarget algorithm in DifficultyAdjuster.
func (bc *Blockchain) NextDifficulty() uint32 {
	current := bc.LatestBlock().Header.Difficulty
	next, err := NewDifficultyAdjuster(bc.params.TargetBlockTime, bc.params.DifficultyAdjustmentPeriod).
		CalculateNewDifficulty(current, bc.blocks)
	if err != nil {
		return current
	}
	return next
}

// ValidateTransaction checks a standalone (not-yet-mined) transaction
// against the chain's current UTXO set: structural validity, that every
// input references a live UTXO, and that inputs cover outputs.
func (bc *Blockchain) ValidateTransaction(t *tx.Transaction) error {
	if err := t.BasicValidate(); err != nil {
		return err
	}
	var inputSum uint64
	for _, in := range t.Inputs {
		utxo, ok := bc.utxoSet.Get(in.PreviousOutput)
		if !ok {
			return nodeerrors.NewUtxoNotFoundError("input references unknown or already-spent output")
		}
		inputSum += utxo.Output.Value
	}
	outputSum, err := t.OutputSum()
	if err != nil {
		return err
	}
	if inputSum < outputSum {
		return nodeerrors.NewInsufficientFundsError("inputs (%d) do not cover outputs (%d)", inputSum, outputSum)
	}
	return nil
}

// ValidateBlock checks b against every consensus rule needed to extend
// this chain: basic structural validity, size, previous-hash linkage,
// height, difficulty, and the coinbase reward+fees invariant. It does
// not mutate the chain.
func (bc *Blockchain) ValidateBlock(b *block.Block) error {
	if err := b.ValidateBasic(); err != nil {
		return err
	}

	if b.EstimatedSize() > bc.params.MaxBlockSize {
		return nodeerrors.NewInvalidBlockError("block exceeds maximum size")
	}

	lastHash := bc.LatestBlock().Hash()
	if b.Header.PreviousHash != lastHash {
		return nodeerrors.NewInvalidBlockError("previous hash does not match chain tip")
	}

	expectedHeight := bc.Height() + 1
	actualHeight, err := b.Height()
	if err != nil {
		return err
	}
	if actualHeight != expectedHeight {
		return nodeerrors.NewInvalidBlockError("block height %d does not match expected %d", actualHeight, expectedHeight)
	}

	if expectedDifficulty := bc.NextDifficulty(); b.Header.Difficulty != expectedDifficulty {
		return nodeerrors.NewInvalidBlockError("block difficulty %d does not match expected %d", b.Header.Difficulty, expectedDifficulty)
	}

	expectedReward := bc.BlockReward(expectedHeight)
	totalFees, err := bc.TotalFees(b.Transactions[1:])
	if err != nil {
		return err
	}
	expectedCoinbaseValue := expectedReward + totalFees

	coinbaseValue, err := b.Transactions[0].OutputSum()
	if err != nil {
		return err
	}
	if coinbaseValue != expectedCoinbaseValue {
		return nodeerrors.NewInvalidBlockError("coinbase value %d does not match expected reward+fees %d", coinbaseValue, expectedCoinbaseValue)
	}

	for _, t := range b.Transactions[1:] {
		if err := bc.ValidateTransaction(t); err != nil {
			return err
		}
	}

	return nil
}

// AddBlock validates b against the chain tip and, if valid, applies it:
// mutating the UTXO set, appending to the chain, and indexing its hash.
// The UTXO set is only mutated after validation succeeds, so a rejected
// block never leaves partial state behind.
func (bc *Blockchain) AddBlock(b *block.Block) error {
	if err := bc.ValidateBlock(b); err != nil {
		return err
	}

	staged := bc.utxoSet.Clone()
	if err := b.ApplyToUtxoSet(staged, bc.params.CoinbaseMaturity); err != nil {
		return err
	}

	h := b.Hash()
	idx := len(bc.blocks)
	bc.blocks = append(bc.blocks, b)
	bc.utxoSet = staged
	bc.blockIndex[h] = idx

	return nil
}

// Stats summarizes the chain's current state for status reporting.
type Stats struct {
	Height             uint64
	TotalBlocks        uint64
	TotalTransactions  uint64
	TotalUtxos         uint64
	TotalSupply        uint64
	Difficulty         uint32
}

// Stats computes a Stats snapshot of the chain's current state.
func (bc *Blockchain) Stats() Stats {
	var totalTxs uint64
	var totalSupply uint64
	for _, b := range bc.blocks {
		totalTxs += uint64(len(b.Transactions))
		height, err := b.Height()
		if err != nil {
			continue
		}
		totalSupply += bc.BlockReward(height)
	}

	return Stats{
		Height:            bc.Height(),
		TotalBlocks:       uint64(len(bc.blocks)),
		TotalTransactions: totalTxs,
		TotalUtxos:        uint64(bc.utxoSet.Len()),
		TotalSupply:       totalSupply,
		Difficulty:        bc.LatestBlock().Header.Difficulty,
	}
}

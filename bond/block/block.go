// Package block implements Bond's block header, full block, and Merkle
// root computation, grounded on the original block module's genesis and
// validate_basic flow and the teacher's settings-injected validation
// pipeline style (services/validator).
package block

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/aevum-bond/node/bond/tx"
	"github.com/aevum-bond/node/config"
	nodeerrors "github.com/aevum-bond/node/errors"
	"github.com/aevum-bond/node/hash256"
)

// Header is a Bond block header: everything that is hashed to produce
// the block's identity and proof-of-work.
type Header struct {
	Version      uint32
	PreviousHash hash256.Hash256
	MerkleRoot   hash256.Hash256
	Timestamp    time.Time
	Difficulty   uint32
	Nonce        uint64
}

// Hash returns the header's content hash over its canonical serialization.
func (h *Header) Hash() hash256.Hash256 {
	return hash256.Sum(h.serialize())
}

func (h *Header) serialize() []byte {
	buf := make([]byte, 0, 4+hash256.Size*2+8+4+8)

	var tmp [8]byte
	binary.LittleEndian.PutUint32(tmp[:4], h.Version)
	buf = append(buf, tmp[:4]...)
	buf = append(buf, h.PreviousHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	binary.LittleEndian.PutUint64(tmp[:8], uint64(h.Timestamp.UTC().UnixNano()))
	buf = append(buf, tmp[:8]...)
	binary.LittleEndian.PutUint32(tmp[:4], h.Difficulty)
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint64(tmp[:8], h.Nonce)
	buf = append(buf, tmp[:8]...)

	return buf
}

// MeetsDifficulty reports whether this header's hash satisfies its own
// declared difficulty target.
func (h *Header) MeetsDifficulty() bool {
	return h.Hash().MeetsDifficulty(h.Difficulty)
}

// Block is a full Bond block: a header plus its transactions. The first
// transaction must always be the coinbase.
type Block struct {
	Header       Header
	Transactions []*tx.Transaction
}

// Hash returns the block's identity, which is its header's hash.
func (b *Block) Hash() hash256.Hash256 {
	return b.Header.Hash()
}

// Height decodes the block height from the coinbase transaction's
// script_sig. The genesis block has height 0.
func (b *Block) Height() (uint64, error) {
	if len(b.Transactions) == 0 || !b.Transactions[0].IsCoinbase() {
		return 0, nodeerrors.NewInvalidBlockError("block is missing its coinbase transaction")
	}
	return b.Transactions[0].CoinbaseHeight()
}

// MerkleRoot computes the Merkle root over txs: the zero hash for an
// empty list, a transaction's own hash if it is the only one, and
// pairwise Keccak-256 combination (duplicating the last hash of an odd
// level) otherwise.
func MerkleRoot(txs []*tx.Transaction) hash256.Hash256 {
	if len(txs) == 0 {
		return hash256.Zero
	}

	hashes := make([]hash256.Hash256, len(txs))
	for i, t := range txs {
		hashes[i] = t.Hash()
	}
	if len(hashes) == 1 {
		return hashes[0]
	}

	for len(hashes) > 1 {
		next := make([]hash256.Hash256, 0, (len(hashes)+1)/2)
		for i := 0; i < len(hashes); i += 2 {
			left := hashes[i]
			right := left
			if i+1 < len(hashes) {
				right = hashes[i+1]
			}
			buf := make([]byte, 0, hash256.Size*2)
			buf = append(buf, left[:]...)
			buf = append(buf, right[:]...)
			next = append(next, hash256.Sum(buf))
		}
		hashes = next
	}
	return hashes[0]
}

// New builds a Block whose header's merkle root is computed from txs.
func New(header Header, txs []*tx.Transaction) *Block {
	header.MerkleRoot = MerkleRoot(txs)
	return &Block{Header: header, Transactions: txs}
}

// Genesis mines the genesis block: height 0, no predecessor, a single
// coinbase transaction paying reward to genesisScript, at the chain's
// minimum difficulty.
func Genesis(reward uint64, genesisScript []byte) *Block {
	coinbase := &tx.Transaction{
		Version: 1,
		Inputs: []tx.TxInput{
			{PreviousOutput: tx.CoinbaseOutPoint, ScriptSig: tx.NewCoinbaseScriptSig(0, nil)},
		},
		Outputs: []tx.TxOutput{{Value: reward, ScriptPubKey: genesisScript}},
	}

	header := Header{
		Version:      1,
		PreviousHash: hash256.Zero,
		MerkleRoot:   MerkleRoot([]*tx.Transaction{coinbase}),
		Timestamp:    time.Unix(0, 0).UTC(),
		Difficulty:   config.BondMinDifficultyBits,
		Nonce:        0,
	}
	for !header.MeetsDifficulty() {
		header.Nonce++
	}

	return &Block{Header: header, Transactions: []*tx.Transaction{coinbase}}
}

// Encode serializes b for transport over the gossip network.
func Encode(b *Block) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, nodeerrors.NewSerializationError("block: failed to encode block", err)
	}
	return data, nil
}

// Decode parses a block previously produced by Encode.
func Decode(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, nodeerrors.NewSerializationError("block: failed to decode block", err)
	}
	return &b, nil
}

// EstimatedSize approximates the block's wire size: a fixed header
// estimate plus each transaction's serialized length.
func (b *Block) EstimatedSize() int {
	const headerEstimate = 4 + hash256.Size*2 + 8 + 4 + 8
	total := headerEstimate
	for _, t := range b.Transactions {
		total += estimatedTxSize(t)
	}
	return total
}

func estimatedTxSize(t *tx.Transaction) int {
	size := 4 + 4 // version + locktime
	for _, in := range t.Inputs {
		size += hash256.Size + 4 + len(in.ScriptSig) + 4
	}
	for _, out := range t.Outputs {
		size += 8 + len(out.ScriptPubKey)
	}
	return size
}

// ExceedsMaxSize reports whether the block's estimated size exceeds the
// chain's maximum block size (spec §4.5: 4MB).
func (b *Block) ExceedsMaxSize() bool {
	return b.EstimatedSize() > config.BondMaxBlockSizeBytes
}

// ValidateBasic checks everything about a block that does not require
// consulting the UTXO set or the chain it extends: non-empty
// transaction list, coinbase-first-and-only, each transaction's own
// BasicValidate, a correct Merkle root, and proof-of-work.
func (b *Block) ValidateBasic() error {
	if len(b.Transactions) == 0 {
		return nodeerrors.NewInvalidBlockError("block has no transactions")
	}
	if !b.Transactions[0].IsCoinbase() {
		return nodeerrors.NewInvalidBlockError("first transaction is not coinbase")
	}
	for i, t := range b.Transactions {
		if i > 0 && t.IsCoinbase() {
			return nodeerrors.NewInvalidBlockError("multiple coinbase transactions")
		}
		if err := t.BasicValidate(); err != nil {
			return err
		}
	}

	if got, want := MerkleRoot(b.Transactions), b.Header.MerkleRoot; got != want {
		return nodeerrors.NewInvalidBlockError("merkle root mismatch")
	}

	if !b.Header.MeetsDifficulty() {
		return nodeerrors.NewInsufficientDifficultyError("block hash does not meet declared difficulty")
	}

	if b.ExceedsMaxSize() {
		return nodeerrors.NewInvalidBlockError("block exceeds maximum size of %d bytes", config.BondMaxBlockSizeBytes)
	}

	return nil
}

// ApplyToUtxoSet spends every non-coinbase input and creates every
// output of every transaction in the block against set, at this
// block's height.
func (b *Block) ApplyToUtxoSet(set *tx.UtxoSet, maturity uint64) error {
	height, err := b.Height()
	if err != nil {
		return err
	}
	for _, t := range b.Transactions {
		if err := set.ApplyTransaction(t, height, maturity); err != nil {
			return err
		}
	}
	return nil
}

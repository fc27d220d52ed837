// Package tx implements Bond's UTXO-model transaction type and the
// unspent-output set it spends from and creates into, grounded on the
// teacher's model.Block coinbase/output handling style.
package tx

import (
	"encoding/binary"

	"github.com/aevum-bond/node/config"
	nodeerrors "github.com/aevum-bond/node/errors"
	"github.com/aevum-bond/node/hash256"
)

// OutPoint uniquely identifies a transaction output.
type OutPoint struct {
	TxID hash256.Hash256
	Vout uint32
}

// coinbaseSequence marks a TxInput as the coinbase placeholder input.
const coinbaseSequence = config.BondCoinbaseSequence

// CoinbaseOutPoint is the fixed previous-output of every coinbase input:
// the zero hash with vout 0xFFFFFFFF.
var CoinbaseOutPoint = OutPoint{TxID: hash256.Zero, Vout: coinbaseSequence}

// TxOutput is a value bound to a locking script. A zero value is invalid.
type TxOutput struct {
	Value        uint64
	ScriptPubKey []byte
}

// TxInput references a previous output and carries the unlocking script.
type TxInput struct {
	PreviousOutput OutPoint
	ScriptSig      []byte
	Sequence       uint32
}

// IsCoinbase reports whether this input is the coinbase placeholder.
func (in TxInput) IsCoinbase() bool {
	return in.PreviousOutput == CoinbaseOutPoint
}

// Transaction is Bond's UTXO-model transaction.
type Transaction struct {
	Version  uint32
	Inputs   []TxInput
	Outputs  []TxOutput
	LockTime uint32
}

// IsCoinbase reports whether t is a coinbase transaction: exactly one
// input, which is the coinbase placeholder.
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 1 && t.Inputs[0].IsCoinbase()
}

// CoinbaseHeight decodes the block height encoded in the first 8 bytes
// of a coinbase transaction's script_sig (little-endian). It is only
// valid to call on a coinbase transaction.
func (t *Transaction) CoinbaseHeight() (uint64, error) {
	if !t.IsCoinbase() {
		return 0, nodeerrors.NewInvalidTransactionError("CoinbaseHeight called on non-coinbase transaction")
	}
	scriptSig := t.Inputs[0].ScriptSig
	if len(scriptSig) < 8 {
		return 0, nodeerrors.NewInvalidTransactionError("coinbase script_sig too short to encode height")
	}
	return binary.LittleEndian.Uint64(scriptSig[:8]), nil
}

// NewCoinbaseScriptSig encodes height as the first 8 bytes of a coinbase
// script_sig, per the convention CoinbaseHeight decodes.
func NewCoinbaseScriptSig(height uint64, extra []byte) []byte {
	out := make([]byte, 8+len(extra))
	binary.LittleEndian.PutUint64(out[:8], height)
	copy(out[8:], extra)
	return out
}

// Hash returns the transaction's content hash over its canonical
// serialization.
func (t *Transaction) Hash() hash256.Hash256 {
	return hash256.Sum(t.serialize())
}

func (t *Transaction) serialize() []byte {
	buf := make([]byte, 0, 64)

	var tmp [8]byte
	binary.LittleEndian.PutUint32(tmp[:4], t.Version)
	buf = append(buf, tmp[:4]...)

	for _, in := range t.Inputs {
		buf = append(buf, in.PreviousOutput.TxID[:]...)
		binary.LittleEndian.PutUint32(tmp[:4], in.PreviousOutput.Vout)
		buf = append(buf, tmp[:4]...)
		buf = append(buf, in.ScriptSig...)
		binary.LittleEndian.PutUint32(tmp[:4], in.Sequence)
		buf = append(buf, tmp[:4]...)
	}

	for _, out := range t.Outputs {
		binary.LittleEndian.PutUint64(tmp[:8], out.Value)
		buf = append(buf, tmp[:8]...)
		buf = append(buf, out.ScriptPubKey...)
	}

	binary.LittleEndian.PutUint32(tmp[:4], t.LockTime)
	buf = append(buf, tmp[:4]...)

	return buf
}

// BasicValidate checks structural and value invariants that hold
// without consulting a UTXO set (spec §4.3):
//   - non-empty inputs and outputs
//   - every output value > 0
//   - no overflow in summed outputs
//   - a non-coinbase tx contains no coinbase inputs
//   - a coinbase tx has exactly one (coinbase) input
func (t *Transaction) BasicValidate() error {
	if len(t.Inputs) == 0 {
		return nodeerrors.NewInvalidTransactionError("transaction has no inputs")
	}
	if len(t.Outputs) == 0 {
		return nodeerrors.NewInvalidTransactionError("transaction has no outputs")
	}

	isCoinbase := t.IsCoinbase()
	if !isCoinbase {
		for _, in := range t.Inputs {
			if in.IsCoinbase() {
				return nodeerrors.NewInvalidTransactionError("non-coinbase transaction contains a coinbase input")
			}
		}
	}

	var total uint64
	for _, out := range t.Outputs {
		if out.Value == 0 {
			return nodeerrors.NewInvalidTransactionError("output value must be non-zero")
		}
		next := total + out.Value
		if next < total {
			return nodeerrors.NewInvalidTransactionError("summed output values overflow")
		}
		total = next
	}

	return nil
}

// OutputSum returns the sum of this transaction's output values, erroring
// on overflow (BasicValidate already guards this for accepted
// transactions; OutputSum is reusable wherever a sum is needed alone).
func (t *Transaction) OutputSum() (uint64, error) {
	var total uint64
	for _, out := range t.Outputs {
		next := total + out.Value
		if next < total {
			return 0, nodeerrors.NewInvalidTransactionError("summed output values overflow")
		}
		total = next
	}
	return total, nil
}

package tx

import (
	nodeerrors "github.com/aevum-bond/node/errors"
)

// UTXO is an unspent output together with the metadata needed to check
// coinbase maturity and answer balance queries without walking the chain.
type UTXO struct {
	Output      TxOutput
	BlockHeight uint64
	IsCoinbase  bool
}

// UtxoSet is the full set of spendable outputs, indexed by OutPoint.
// It is the sole authority transaction validation consults for balances
// and double-spend checks.
type UtxoSet struct {
	entries map[OutPoint]UTXO
}

// NewUtxoSet returns an empty UtxoSet.
func NewUtxoSet() *UtxoSet {
	return &UtxoSet{entries: make(map[OutPoint]UTXO)}
}

// Get looks up an unspent output, reporting whether it exists.
func (s *UtxoSet) Get(op OutPoint) (UTXO, bool) {
	u, ok := s.entries[op]
	return u, ok
}

// Create adds a new unspent output. It overwrites any existing entry at
// the same OutPoint, matching the post-apply semantics of a freshly
// mined output replacing a reorg-orphaned one.
func (s *UtxoSet) Create(op OutPoint, u UTXO) {
	s.entries[op] = u
}

// Spend removes an unspent output, returning an error if it does not
// exist (double-spend or unknown input).
func (s *UtxoSet) Spend(op OutPoint) error {
	if _, ok := s.entries[op]; !ok {
		return nodeerrors.NewUtxoNotFoundError("no such unspent output %s:%d", op.TxID.String(), op.Vout)
	}
	delete(s.entries, op)
	return nil
}

// Len returns the number of unspent outputs tracked.
func (s *UtxoSet) Len() int { return len(s.entries) }

// Clone returns a deep copy, used to stage a candidate block's effects
// so a rejected block never mutates the set callers already trust.
func (s *UtxoSet) Clone() *UtxoSet {
	cp := make(map[OutPoint]UTXO, len(s.entries))
	for k, v := range s.entries {
		cp[k] = v
	}
	return &UtxoSet{entries: cp}
}

// IsMature reports whether a coinbase output created at createdHeight can
// be spent at spendHeight, per the coinbase-maturity invariant (spec §4.4:
// 100 confirmations).
func IsMature(createdHeight, spendHeight uint64, maturity uint64) bool {
	return spendHeight >= createdHeight+maturity
}

// ApplyTransaction spends t's inputs and creates t's outputs against s at
// the given block height, validating sufficiency and coinbase maturity.
// isCoinbase transactions do not spend anything; their single input is
// the coinbase placeholder and is skipped.
func (s *UtxoSet) ApplyTransaction(t *Transaction, height uint64, maturity uint64) error {
	if t.IsCoinbase() {
		return s.createOutputs(t, height, true)
	}

	var inputSum uint64
	spent := make([]OutPoint, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		utxo, ok := s.Get(in.PreviousOutput)
		if !ok {
			return nodeerrors.NewUtxoNotFoundError("input references unknown or already-spent output")
		}
		if utxo.IsCoinbase && !IsMature(utxo.BlockHeight, height, maturity) {
			return nodeerrors.NewInvalidTransactionError("coinbase output spent before maturity")
		}
		next := inputSum + utxo.Output.Value
		if next < inputSum {
			return nodeerrors.NewInvalidTransactionError("summed input values overflow")
		}
		inputSum = next
		spent = append(spent, in.PreviousOutput)
	}

	outputSum, err := t.OutputSum()
	if err != nil {
		return err
	}
	if outputSum > inputSum {
		return nodeerrors.NewInsufficientFundsError("outputs (%d) exceed inputs (%d)", outputSum, inputSum)
	}

	for _, op := range spent {
		if err := s.Spend(op); err != nil {
			return err
		}
	}
	return s.createOutputs(t, height, false)
}

func (s *UtxoSet) createOutputs(t *Transaction, height uint64, isCoinbase bool) error {
	txHash := t.Hash()
	for i, out := range t.Outputs {
		op := OutPoint{TxID: txHash, Vout: uint32(i)}
		s.Create(op, UTXO{Output: out, BlockHeight: height, IsCoinbase: isCoinbase})
	}
	return nil
}

// Fee returns a non-coinbase transaction's fee: the sum of its spent
// inputs' values minus the sum of its outputs' values.
func (s *UtxoSet) Fee(t *Transaction) (uint64, error) {
	if t.IsCoinbase() {
		return 0, nodeerrors.NewInvalidTransactionError("coinbase transactions have no fee")
	}
	var inputSum uint64
	for _, in := range t.Inputs {
		utxo, ok := s.Get(in.PreviousOutput)
		if !ok {
			return 0, nodeerrors.NewUtxoNotFoundError("input references unknown or already-spent output")
		}
		inputSum += utxo.Output.Value
	}
	outputSum, err := t.OutputSum()
	if err != nil {
		return 0, err
	}
	if outputSum > inputSum {
		return 0, nodeerrors.NewInsufficientFundsError("outputs (%d) exceed inputs (%d)", outputSum, inputSum)
	}
	return inputSum - outputSum, nil
}

// Balance sums the value of every unspent output whose script matches
// scriptPubKey byte-for-byte. It is a linear scan suitable for the
// reference node; a production wallet index would key by address.
func (s *UtxoSet) Balance(scriptPubKey []byte) uint64 {
	var total uint64
	for _, u := range s.entries {
		if bytesEqual(u.Output.ScriptPubKey, scriptPubKey) {
			total += u.Output.Value
		}
	}
	return total
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package tx

import (
	"sort"

	nodeerrors "github.com/aevum-bond/node/errors"
	"github.com/aevum-bond/node/hash256"
)

// MempoolConfig bounds a Mempool's admission policy.
type MempoolConfig struct {
	MaxSize    int
	MinGasPrice uint64
}

// Mempool holds pending Aevum transactions grouped by sender, each
// sender's list kept sorted by nonce. Grounded on
// original_source/aevum-core/src/transaction.rs's AevumMempool.
type Mempool struct {
	config  MempoolConfig
	pending map[hash256.Hash256][]*Transaction
	size    int
}

// NewMempool returns an empty mempool with the given admission policy.
func NewMempool(config MempoolConfig) *Mempool {
	return &Mempool{config: config, pending: make(map[hash256.Hash256][]*Transaction)}
}

// Add validates and inserts a transaction, rejecting it if unsigned,
// underpriced, or the pool is at capacity. A transaction whose nonce
// matches one already pending for the sender replaces it in place
// instead of being rejected, so a resubmission at a higher gas price
// can take over its slot.
func (m *Mempool) Add(t *Transaction) error {
	if !t.IsSigned() {
		return nodeerrors.NewInvalidSignatureError("transaction must be signed before entering the mempool")
	}
	if t.GasPrice < m.config.MinGasPrice {
		return nodeerrors.NewInvalidTransactionError("gas price %d below minimum %d", t.GasPrice, m.config.MinGasPrice)
	}
	if err := t.BasicValidate(); err != nil {
		return err
	}

	list := m.pending[t.From]
	for i, existing := range list {
		if existing.Nonce == t.Nonce {
			list[i] = t
			m.pending[t.From] = list
			return nil
		}
	}

	if m.config.MaxSize > 0 && m.size >= m.config.MaxSize {
		return nodeerrors.NewInvalidTransactionError("mempool is full")
	}

	list = append(list, t)
	sort.Slice(list, func(i, j int) bool { return list[i].Nonce < list[j].Nonce })
	m.pending[t.From] = list
	m.size++
	return nil
}

// Remove drops the pending transaction matching (from, nonce), if present.
func (m *Mempool) Remove(from hash256.Hash256, nonce uint64) {
	list := m.pending[from]
	for i, existing := range list {
		if existing.Nonce == nonce {
			m.pending[from] = append(list[:i], list[i+1:]...)
			m.size--
			if len(m.pending[from]) == 0 {
				delete(m.pending, from)
			}
			return
		}
	}
}

// Executable returns from's pending transactions whose nonce is an
// unbroken continuation of currentNonce, in execution order.
func (m *Mempool) Executable(from hash256.Hash256, currentNonce uint64) []*Transaction {
	var result []*Transaction
	expected := currentNonce
	for _, t := range m.pending[from] {
		if t.Nonce != expected {
			break
		}
		result = append(result, t)
		expected++
	}
	return result
}

// Size returns the total number of pending transactions across all senders.
func (m *Mempool) Size() int {
	return m.size
}

// Stats summarizes the mempool's current contents.
type Stats struct {
	TotalTransactions int
	UniqueSenders     int
}

// Stats returns a snapshot of the mempool's size.
func (m *Mempool) Stats() Stats {
	return Stats{TotalTransactions: m.size, UniqueSenders: len(m.pending)}
}

package tx

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aevum-bond/node/hash256"
	"github.com/aevum-bond/node/pqc"
)

func signedTransfer(t *testing.T, nonce, gasPrice uint64) *Transaction {
	t.Helper()
	kp, err := pqc.GenerateKeypair()
	require.NoError(t, err)

	from := hash256.Sum(kp.Public.Bytes())
	to := hash256.Sum([]byte("receiver"))
	txn := NewTransfer(from, to, big.NewInt(100), nonce, 21000, gasPrice)
	require.NoError(t, txn.Sign(kp))
	return txn
}

func TestMempoolAddRejectsUnsigned(t *testing.T) {
	m := NewMempool(MempoolConfig{MaxSize: 10, MinGasPrice: 1})
	txn := NewTransfer(hash256.Sum([]byte("sender")), hash256.Sum([]byte("receiver")), big.NewInt(100), 0, 21000, 1)
	require.Error(t, m.Add(txn))
}

func TestMempoolAddRejectsUnderpriced(t *testing.T) {
	m := NewMempool(MempoolConfig{MaxSize: 10, MinGasPrice: 5})
	require.Error(t, m.Add(signedTransfer(t, 0, 1)))
}

func TestMempoolAddSameNonceReplacesInPlace(t *testing.T) {
	m := NewMempool(MempoolConfig{MaxSize: 10, MinGasPrice: 1})

	kp, err := pqc.GenerateKeypair()
	require.NoError(t, err)
	from := hash256.Sum(kp.Public.Bytes())
	to := hash256.Sum([]byte("receiver"))

	original := NewTransfer(from, to, big.NewInt(100), 0, 21000, 1)
	require.NoError(t, original.Sign(kp))
	require.NoError(t, m.Add(original))

	replacement := NewTransfer(from, to, big.NewInt(100), 0, 21000, 10)
	require.NoError(t, replacement.Sign(kp))
	require.NoError(t, m.Add(replacement))

	require.Equal(t, 1, m.Size())
	executable := m.Executable(from, 0)
	require.Len(t, executable, 1)
	require.Equal(t, uint64(10), executable[0].GasPrice)
}

func TestMempoolAddEnforcesMaxSizeBoundary(t *testing.T) {
	m := NewMempool(MempoolConfig{MaxSize: 2, MinGasPrice: 1})

	require.NoError(t, m.Add(signedTransfer(t, 0, 1)))
	require.NoError(t, m.Add(signedTransfer(t, 0, 1)))
	require.Equal(t, 2, m.Size())

	require.Error(t, m.Add(signedTransfer(t, 0, 1)))
	require.Equal(t, 2, m.Size())
}

func TestMempoolRemoveDropsMatchingNonce(t *testing.T) {
	m := NewMempool(MempoolConfig{MaxSize: 10, MinGasPrice: 1})
	txn := signedTransfer(t, 0, 1)
	require.NoError(t, m.Add(txn))

	m.Remove(txn.From, txn.Nonce)
	require.Equal(t, 0, m.Size())
	require.Empty(t, m.Executable(txn.From, 0))
}

func TestMempoolExecutableStopsAtGap(t *testing.T) {
	m := NewMempool(MempoolConfig{MaxSize: 10, MinGasPrice: 1})

	kp, err := pqc.GenerateKeypair()
	require.NoError(t, err)
	from := hash256.Sum(kp.Public.Bytes())
	to := hash256.Sum([]byte("receiver"))

	first := NewTransfer(from, to, big.NewInt(100), 0, 21000, 1)
	require.NoError(t, first.Sign(kp))
	require.NoError(t, m.Add(first))

	third := NewTransfer(from, to, big.NewInt(100), 2, 21000, 1)
	require.NoError(t, third.Sign(kp))
	require.NoError(t, m.Add(third))

	executable := m.Executable(from, 0)
	require.Len(t, executable, 1)
	require.Equal(t, uint64(0), executable[0].Nonce)
}

func TestMempoolStats(t *testing.T) {
	m := NewMempool(MempoolConfig{MaxSize: 10, MinGasPrice: 1})
	require.NoError(t, m.Add(signedTransfer(t, 0, 1)))
	require.NoError(t, m.Add(signedTransfer(t, 0, 1)))

	stats := m.Stats()
	require.Equal(t, 2, stats.TotalTransactions)
	require.Equal(t, 2, stats.UniqueSenders)
}

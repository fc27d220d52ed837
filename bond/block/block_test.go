package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aevum-bond/node/bond/tx"
	"github.com/aevum-bond/node/hash256"
)

func TestGenesisBlockCreation(t *testing.T) {
	genesis := Genesis(5000, []byte{1, 2, 3})

	require.Len(t, genesis.Transactions, 1)
	require.True(t, genesis.Transactions[0].IsCoinbase())

	height, err := genesis.Height()
	require.NoError(t, err)
	require.Equal(t, uint64(0), height)

	require.NoError(t, genesis.ValidateBasic())
}

func TestBlockHashIsDeterministic(t *testing.T) {
	genesis := Genesis(5000, []byte{1, 2, 3})
	require.Equal(t, genesis.Hash(), genesis.Hash())
}

func TestMerkleRootSingleAndEmpty(t *testing.T) {
	require.Equal(t, hash256.Zero, MerkleRoot(nil))

	coinbase := &tx.Transaction{
		Version: 1,
		Inputs:  []tx.TxInput{{PreviousOutput: tx.CoinbaseOutPoint}},
		Outputs: []tx.TxOutput{{Value: 100, ScriptPubKey: []byte("a")}},
	}
	require.Equal(t, coinbase.Hash(), MerkleRoot([]*tx.Transaction{coinbase}))
}

func TestMerkleRootDiffersAcrossSets(t *testing.T) {
	tx1 := &tx.Transaction{
		Inputs:  []tx.TxInput{{PreviousOutput: tx.CoinbaseOutPoint}},
		Outputs: []tx.TxOutput{{Value: 1, ScriptPubKey: []byte{1, 2, 3}}},
	}
	tx2 := &tx.Transaction{
		Inputs:  []tx.TxInput{{PreviousOutput: tx.OutPoint{Vout: 7}}},
		Outputs: []tx.TxOutput{{Value: 1, ScriptPubKey: []byte{4, 5, 6}}},
	}

	single := MerkleRoot([]*tx.Transaction{tx1})
	double := MerkleRoot([]*tx.Transaction{tx1, tx2})

	require.NotEqual(t, single, double)
	require.NotEqual(t, single, hash256.Zero)
}

func TestApplyToUtxoSet(t *testing.T) {
	genesis := Genesis(5000, []byte{1, 2, 3})
	set := tx.NewUtxoSet()

	require.NoError(t, genesis.ApplyToUtxoSet(set, 100))
	require.Equal(t, 1, set.Len())
	require.Equal(t, uint64(5000), set.Balance([]byte{1, 2, 3}))
}

func TestBlockSizeLimits(t *testing.T) {
	genesis := Genesis(5000, []byte{1, 2, 3})

	require.False(t, genesis.ExceedsMaxSize())
	require.Greater(t, genesis.EstimatedSize(), 0)
	require.Less(t, genesis.EstimatedSize(), 1000)
}

func TestValidateBasicRejectsBadMerkleRoot(t *testing.T) {
	genesis := Genesis(5000, []byte{1, 2, 3})
	genesis.Header.MerkleRoot = hash256.Sum([]byte("tampered"))
	require.Error(t, genesis.ValidateBasic())
}

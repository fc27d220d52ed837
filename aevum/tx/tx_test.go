package tx

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aevum-bond/node/hash256"
	"github.com/aevum-bond/node/pqc"
)

func TestTransferBasicValidateRejectsZeroAmount(t *testing.T) {
	from := hash256.Sum([]byte("sender"))
	to := hash256.Sum([]byte("receiver"))
	txn := NewTransfer(from, to, big.NewInt(0), 0, 21000, 1)
	require.Error(t, txn.BasicValidate())
}

func TestTransferBasicValidateRejectsZeroGas(t *testing.T) {
	from := hash256.Sum([]byte("sender"))
	to := hash256.Sum([]byte("receiver"))
	txn := NewTransfer(from, to, big.NewInt(5), 0, 0, 1)
	require.Error(t, txn.BasicValidate())
}

func TestCreateProposalRequiresFields(t *testing.T) {
	from := hash256.Sum([]byte("sender"))
	txn := NewCreateProposal(from, "", "description", 100, 0, 21000, 1)
	require.Error(t, txn.BasicValidate())

	txn2 := NewCreateProposal(from, "title", "description", 100, 0, 21000, 1)
	require.NoError(t, txn2.BasicValidate())
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	kp, err := pqc.GenerateKeypair()
	require.NoError(t, err)

	from := hash256.Sum(kp.Public.Bytes())
	to := hash256.Sum([]byte("receiver"))
	txn := NewTransfer(from, to, big.NewInt(100), 0, 21000, 1)

	require.False(t, txn.IsSigned())
	require.NoError(t, txn.Sign(kp))
	require.True(t, txn.IsSigned())

	ok, err := txn.VerifySignature()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHashChangesWithNonceAndKind(t *testing.T) {
	from := hash256.Sum([]byte("sender"))
	to := hash256.Sum([]byte("receiver"))
	a := NewTransfer(from, to, big.NewInt(100), 0, 21000, 1)
	b := NewTransfer(from, to, big.NewInt(100), 1, 21000, 1)
	require.NotEqual(t, a.Hash(), b.Hash())

	c := NewStake(from, big.NewInt(100), 0, 21000, 1)
	require.NotEqual(t, a.Hash(), c.Hash())
}

func TestTotalCost(t *testing.T) {
	from := hash256.Sum([]byte("sender"))
	txn := NewClaimRewards(from, 0, 21000, 2)
	require.Equal(t, uint64(42000), txn.TotalCost())
}

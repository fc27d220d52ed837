package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aevum-bond/node/hash256"
)

func TestAccountTransferDebitsAndCreditsBalance(t *testing.T) {
	account := NewAccountState(big.NewInt(1000))

	require.NoError(t, account.Debit(big.NewInt(300)))
	require.Equal(t, big.NewInt(700), account.Balance)
	require.Equal(t, uint64(1), account.Nonce)

	require.Error(t, account.Debit(big.NewInt(800)))

	account.Credit(big.NewInt(200))
	require.Equal(t, big.NewInt(900), account.Balance)
}

func TestValidatorStakeAddRemove(t *testing.T) {
	v := NewValidatorInfo(hash256.Zero, big.NewInt(5000))
	require.Equal(t, uint32(0), v.DelegatorCount)
	require.False(t, v.IsActive)

	v.AddStake(big.NewInt(1000))
	require.Equal(t, big.NewInt(6000), v.StakeAmount)

	require.NoError(t, v.RemoveStake(big.NewInt(6000)))
	require.Equal(t, big.NewInt(0), v.StakeAmount)
	require.Error(t, v.RemoveStake(big.NewInt(1)))
}

func TestStateTransferCreatesDestinationAccount(t *testing.T) {
	s := New()
	addr1 := hash256.Sum([]byte("addr1"))
	addr2 := hash256.Sum([]byte("addr2"))

	s.CreateAccount(addr1, big.NewInt(1000))
	require.NoError(t, s.Transfer(addr1, addr2, big.NewInt(300)))

	a1, _ := s.Account(addr1)
	a2, _ := s.Account(addr2)
	require.Equal(t, big.NewInt(700), a1.Balance)
	require.Equal(t, big.NewInt(300), a2.Balance)
}

func TestRegisterValidatorRejectsDuplicate(t *testing.T) {
	s := New()
	key := hash256.Sum([]byte("validator"))
	require.NoError(t, s.RegisterValidator(key, big.NewInt(5000)))
	require.Error(t, s.RegisterValidator(key, big.NewInt(1000)))
}

func TestVotingPower(t *testing.T) {
	power := VotingPower(big.NewInt(5000), big.NewInt(20000))
	require.InDelta(t, 0.25, power, 0.0001)

	require.Equal(t, 0.0, VotingPower(big.NewInt(100), big.NewInt(0)))
}

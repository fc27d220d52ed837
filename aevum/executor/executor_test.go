package executor

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aevum-bond/node/aevum/governance"
	"github.com/aevum-bond/node/aevum/state"
	aevumtx "github.com/aevum-bond/node/aevum/tx"
	"github.com/aevum-bond/node/hash256"
)

func addr(seed string) hash256.Hash256 {
	return hash256.Sum([]byte(seed))
}

func newExecutor(t *testing.T) (*Executor, *state.State, *governance.Registry) {
	t.Helper()
	s := state.New()
	reg := governance.NewRegistry()
	return New(s, reg, Config{UnstakeDelay: 7}), s, reg
}

func TestExecutorApplyTransfer(t *testing.T) {
	ex, s, _ := newExecutor(t)
	from, to := addr("alice"), addr("bob")
	s.CreateAccount(from, big.NewInt(1000))

	txn := aevumtx.NewTransfer(from, to, big.NewInt(200), 0, 21000, 1)
	require.NoError(t, ex.Apply(txn))

	fromAcct, _ := s.Account(from)
	toAcct, _ := s.Account(to)
	require.Equal(t, big.NewInt(800), fromAcct.Balance)
	require.Equal(t, uint64(1), fromAcct.Nonce)
	require.Equal(t, big.NewInt(200), toAcct.Balance)
}

func TestExecutorApplyStakeRegistersValidator(t *testing.T) {
	ex, s, _ := newExecutor(t)
	staker := addr("validator-1")
	s.CreateAccount(staker, big.NewInt(5000))

	txn := aevumtx.NewStake(staker, big.NewInt(3000), 0, 21000, 1)
	require.NoError(t, ex.Apply(txn))

	v, ok := s.Validators[staker]
	require.True(t, ok)
	require.Equal(t, big.NewInt(3000), v.StakeAmount)

	acct, _ := s.Account(staker)
	require.Equal(t, big.NewInt(2000), acct.Balance)
}

func TestExecutorApplyUnstakeQueuesWithdrawal(t *testing.T) {
	ex, s, _ := newExecutor(t)
	staker := addr("validator-2")
	s.CreateAccount(staker, big.NewInt(5000))
	require.NoError(t, ex.Apply(aevumtx.NewStake(staker, big.NewInt(3000), 0, 21000, 1)))

	unstake := aevumtx.NewUnstake(staker, big.NewInt(1000), 1, 21000, 1)
	require.NoError(t, ex.Apply(unstake))

	require.Equal(t, big.NewInt(2000), s.Validators[staker].StakeAmount)
	require.Len(t, s.PendingWithdrawals[staker], 1)
	require.Equal(t, uint64(7), s.PendingWithdrawals[staker][0].SettleEpoch)

	claim := aevumtx.NewClaimRewards(staker, 2, 21000, 1)
	require.NoError(t, ex.Apply(claim))
	acct, _ := s.Account(staker)
	require.Equal(t, big.NewInt(2000), acct.Balance)
	require.Len(t, s.PendingWithdrawals[staker], 1)
}

func TestExecutorApplyDelegateTracksDelegatorCount(t *testing.T) {
	ex, s, _ := newExecutor(t)
	validator := addr("validator-3")
	delegator1, delegator2 := addr("delegator-1"), addr("delegator-2")

	s.CreateAccount(validator, big.NewInt(10_000))
	require.NoError(t, ex.Apply(aevumtx.NewStake(validator, big.NewInt(10_000), 0, 21000, 1)))

	s.CreateAccount(delegator1, big.NewInt(1000))
	s.CreateAccount(delegator2, big.NewInt(1000))

	require.NoError(t, ex.Apply(aevumtx.NewDelegate(delegator1, validator, big.NewInt(500), 0, 21000, 1)))
	require.NoError(t, ex.Apply(aevumtx.NewDelegate(delegator2, validator, big.NewInt(300), 0, 21000, 1)))

	require.Equal(t, uint32(2), s.Validators[validator].DelegatorCount)
	require.Equal(t, big.NewInt(10_800), s.Validators[validator].StakeAmount)

	// a second delegation from an existing delegator does not double-count
	require.NoError(t, ex.Apply(aevumtx.NewDelegate(delegator1, validator, big.NewInt(100), 1, 21000, 1)))
	require.Equal(t, uint32(2), s.Validators[validator].DelegatorCount)
}

func TestExecutorApplyUndelegateDecrementsCountOnFullWithdrawal(t *testing.T) {
	ex, s, _ := newExecutor(t)
	validator := addr("validator-4")
	delegator := addr("delegator-3")

	s.CreateAccount(validator, big.NewInt(10_000))
	require.NoError(t, ex.Apply(aevumtx.NewStake(validator, big.NewInt(10_000), 0, 21000, 1)))
	s.CreateAccount(delegator, big.NewInt(1000))
	require.NoError(t, ex.Apply(aevumtx.NewDelegate(delegator, validator, big.NewInt(500), 0, 21000, 1)))
	require.Equal(t, uint32(1), s.Validators[validator].DelegatorCount)

	require.NoError(t, ex.Apply(aevumtx.NewUndelegate(delegator, validator, big.NewInt(500), 1, 21000, 1)))
	require.Equal(t, uint32(0), s.Validators[validator].DelegatorCount)
	require.Len(t, s.PendingWithdrawals[delegator], 1)
}

func TestExecutorApplyGovernanceLifecycle(t *testing.T) {
	ex, s, reg := newExecutor(t)
	proposer, voter := addr("proposer"), addr("voter")
	s.CreateAccount(proposer, big.NewInt(0))
	s.CreateAccount(voter, big.NewInt(0))

	create := aevumtx.NewCreateProposal(proposer, "raise gas limit", "bump to 30m", 100, 0, 21000, 1)
	require.NoError(t, ex.Apply(create))

	active := reg.Active()
	require.Len(t, active, 1)
	proposalID := active[0].ID

	vote := aevumtx.NewVote(voter, proposalID, true, big.NewInt(42), 0, 21000, 1)
	require.NoError(t, ex.Apply(vote))

	p, ok := reg.Get(proposalID)
	require.True(t, ok)
	require.Equal(t, big.NewInt(42), p.YesVotes)

	voterAcct, _ := s.Account(voter)
	require.Equal(t, uint64(1), voterAcct.Nonce)
}

func TestExecutorApplyVoteOnUnknownProposalFails(t *testing.T) {
	ex, s, _ := newExecutor(t)
	voter := addr("voter-2")
	s.CreateAccount(voter, big.NewInt(0))

	err := ex.Apply(aevumtx.NewVote(voter, 999, true, big.NewInt(1), 0, 21000, 1))
	require.Error(t, err)
}

func TestExecutorApplyUnknownKindFails(t *testing.T) {
	ex, s, _ := newExecutor(t)
	from := addr("ghost")
	s.CreateAccount(from, big.NewInt(0))

	txn := aevumtx.NewTransfer(from, addr("nobody"), big.NewInt(1), 0, 21000, 1)
	txn.Kind = aevumtx.Kind(99)
	require.Error(t, ex.Apply(txn))
}

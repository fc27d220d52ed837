// Package state implements Aevum's account-model world state: per-address
// balances and nonces, validator registration and stake accounting, and
// epoch/height bookkeeping. Grounded on
// original_source/aevum-core/src/placeholder.rs's AccountState/
// ValidatorInfo/AevumState, translated from Rust's u128 balances to Go's
// math/big.Int — the same convention go-ethereum-style chains use for
// wei-denominated amounts, and the only sane choice given no third-party
// bignum library appears anywhere in the retrieved pack.
package state

import (
	"math/big"

	nodeerrors "github.com/aevum-bond/node/errors"
	"github.com/aevum-bond/node/hash256"
)

// Address identifies an Aevum account or validator.
type Address = hash256.Hash256

// AccountState is one address's balance and replay-protection nonce.
type AccountState struct {
	Nonce       uint64
	Balance     *big.Int
	CodeHash    *hash256.Hash256
	StorageRoot *hash256.Hash256
}

// NewAccountState returns an account with the given initial balance.
func NewAccountState(balance *big.Int) *AccountState {
	return &AccountState{Nonce: 0, Balance: new(big.Int).Set(balance)}
}

// HasSufficientBalance reports whether the account can afford amount.
func (a *AccountState) HasSufficientBalance(amount *big.Int) bool {
	return a.Balance.Cmp(amount) >= 0
}

// Debit subtracts amount from the account's balance and increments its
// nonce, or returns an error if the balance is insufficient.
func (a *AccountState) Debit(amount *big.Int) error {
	if !a.HasSufficientBalance(amount) {
		return nodeerrors.NewInsufficientFundsError("account balance %s is less than %s", a.Balance, amount)
	}
	a.Balance.Sub(a.Balance, amount)
	a.Nonce++
	return nil
}

// Credit adds amount to the account's balance.
func (a *AccountState) Credit(amount *big.Int) {
	a.Balance.Add(a.Balance, amount)
}

// ValidatorInfo is a registered validator's stake and activation status.
type ValidatorInfo struct {
	PublicKey       Address
	StakeAmount     *big.Int
	DelegatorCount  uint32
	IsActive        bool
	ActivationEpoch uint64
}

// NewValidatorInfo returns an inactive validator with the given stake.
func NewValidatorInfo(pubKey Address, stake *big.Int) *ValidatorInfo {
	return &ValidatorInfo{PublicKey: pubKey, StakeAmount: new(big.Int).Set(stake)}
}

// AddStake increases the validator's stake.
func (v *ValidatorInfo) AddStake(amount *big.Int) {
	v.StakeAmount.Add(v.StakeAmount, amount)
}

// RemoveStake decreases the validator's stake, failing if it would go negative.
func (v *ValidatorInfo) RemoveStake(amount *big.Int) error {
	if v.StakeAmount.Cmp(amount) < 0 {
		return nodeerrors.NewInsufficientFundsError("validator stake %s is less than %s", v.StakeAmount, amount)
	}
	v.StakeAmount.Sub(v.StakeAmount, amount)
	return nil
}

// PendingWithdrawal is an amount released by an Unstake or Undelegate
// transaction, redeemable once the chain reaches SettleEpoch.
type PendingWithdrawal struct {
	Amount      *big.Int
	SettleEpoch uint64
}

// State is Aevum's world state: every account, every validator, the
// validator-delegator stake graph, unstake queues awaiting their delay,
// and the chain's current epoch/height.
type State struct {
	Accounts     map[Address]*AccountState
	Validators   map[Address]*ValidatorInfo
	CurrentEpoch uint64
	BlockHeight  uint64

	// Delegations tracks, per validator, how much each delegator has
	// staked through it, so Undelegate can find and retire an exact
	// amount and ValidatorInfo.DelegatorCount reflects distinct
	// delegators rather than delegation events.
	Delegations map[Address]map[Address]*big.Int

	// PendingWithdrawals holds unstake/undelegate proceeds not yet
	// claimable, keyed by the address that will receive them.
	PendingWithdrawals map[Address][]PendingWithdrawal
}

// New returns an empty world state.
func New() *State {
	return &State{
		Accounts:           make(map[Address]*AccountState),
		Validators:         make(map[Address]*ValidatorInfo),
		Delegations:        make(map[Address]map[Address]*big.Int),
		PendingWithdrawals: make(map[Address][]PendingWithdrawal),
	}
}

// IncrementNonce advances addr's replay-protection nonce, creating a
// zero-balance account first if addr has never held one. Transaction
// kinds that do not otherwise touch an account balance (Vote,
// CreateProposal, ClaimRewards, Unstake, Undelegate) still consume a
// nonce slot through this.
func (s *State) IncrementNonce(addr Address) {
	acct, ok := s.Accounts[addr]
	if !ok {
		acct = NewAccountState(big.NewInt(0))
		s.Accounts[addr] = acct
	}
	acct.Nonce++
}

// Account returns an address's account state, if it exists.
func (s *State) Account(addr Address) (*AccountState, bool) {
	a, ok := s.Accounts[addr]
	return a, ok
}

// CreateAccount inserts a new account with the given initial balance,
// overwriting any existing account at addr.
func (s *State) CreateAccount(addr Address, initialBalance *big.Int) {
	s.Accounts[addr] = NewAccountState(initialBalance)
}

// Transfer moves amount from one account to another, creating the
// destination account with a zero balance if it does not yet exist.
func (s *State) Transfer(from, to Address, amount *big.Int) error {
	fromAccount, ok := s.Accounts[from]
	if !ok {
		return nodeerrors.NewNotFoundError("source account %s not found", from.String())
	}
	if err := fromAccount.Debit(amount); err != nil {
		return err
	}

	toAccount, ok := s.Accounts[to]
	if !ok {
		toAccount = NewAccountState(big.NewInt(0))
		s.Accounts[to] = toAccount
	}
	toAccount.Credit(amount)
	return nil
}

// RegisterValidator adds a new validator with the given stake. It fails
// if the validator is already registered.
func (s *State) RegisterValidator(validatorKey Address, stake *big.Int) error {
	if _, exists := s.Validators[validatorKey]; exists {
		return nodeerrors.NewInvalidTransactionError("validator already registered")
	}
	s.Validators[validatorKey] = NewValidatorInfo(validatorKey, stake)
	return nil
}

// Stake debits amount from staker's balance and applies it to staker's
// own validator stake, registering staker as a validator first if this
// is its first stake.
func (s *State) Stake(staker Address, amount *big.Int) error {
	acct, ok := s.Accounts[staker]
	if !ok {
		return nodeerrors.NewNotFoundError("account %s not found", staker.String())
	}
	if err := acct.Debit(amount); err != nil {
		return err
	}

	if v, exists := s.Validators[staker]; exists {
		v.AddStake(amount)
	} else {
		s.Validators[staker] = NewValidatorInfo(staker, amount)
	}
	return nil
}

// Unstake removes amount from staker's own validator stake and queues
// it for release at currentEpoch+unstakeDelay.
func (s *State) Unstake(staker Address, amount *big.Int, currentEpoch, unstakeDelay uint64) error {
	v, ok := s.Validators[staker]
	if !ok {
		return nodeerrors.NewNotFoundError("validator %s not found", staker.String())
	}
	if err := v.RemoveStake(amount); err != nil {
		return err
	}

	s.IncrementNonce(staker)
	s.QueueWithdrawal(staker, amount, currentEpoch+unstakeDelay)
	return nil
}

// Delegate debits amount from delegator's balance and applies it to
// validator's stake, incrementing validator's DelegatorCount the first
// time this delegator backs it.
func (s *State) Delegate(delegator, validator Address, amount *big.Int) error {
	acct, ok := s.Accounts[delegator]
	if !ok {
		return nodeerrors.NewNotFoundError("account %s not found", delegator.String())
	}
	v, ok := s.Validators[validator]
	if !ok {
		return nodeerrors.NewNotFoundError("validator %s not found", validator.String())
	}
	if err := acct.Debit(amount); err != nil {
		return err
	}
	v.AddStake(amount)

	byDelegator, ok := s.Delegations[validator]
	if !ok {
		byDelegator = make(map[Address]*big.Int)
		s.Delegations[validator] = byDelegator
	}
	existing, delegated := byDelegator[delegator]
	if !delegated {
		existing = big.NewInt(0)
		byDelegator[delegator] = existing
		v.DelegatorCount++
	}
	existing.Add(existing, amount)
	return nil
}

// Undelegate retires amount of delegator's delegation to validator,
// decrementing validator's DelegatorCount once the delegator's last
// token is withdrawn, and queues the amount for release at
// currentEpoch+unstakeDelay.
func (s *State) Undelegate(delegator, validator Address, amount *big.Int, currentEpoch, unstakeDelay uint64) error {
	byDelegator, ok := s.Delegations[validator]
	if !ok {
		return nodeerrors.NewNotFoundError("delegator %s has no stake in validator %s", delegator.String(), validator.String())
	}
	existing, ok := byDelegator[delegator]
	if !ok || existing.Cmp(amount) < 0 {
		return nodeerrors.NewInsufficientFundsError("delegated amount is less than %s", amount)
	}
	v, ok := s.Validators[validator]
	if !ok {
		return nodeerrors.NewNotFoundError("validator %s not found", validator.String())
	}
	if err := v.RemoveStake(amount); err != nil {
		return err
	}

	existing.Sub(existing, amount)
	if existing.Sign() == 0 {
		delete(byDelegator, delegator)
		v.DelegatorCount--
	}

	s.IncrementNonce(delegator)
	s.QueueWithdrawal(delegator, amount, currentEpoch+unstakeDelay)
	return nil
}

// QueueWithdrawal schedules amount for release to addr once the chain
// reaches settleEpoch.
func (s *State) QueueWithdrawal(addr Address, amount *big.Int, settleEpoch uint64) {
	s.PendingWithdrawals[addr] = append(s.PendingWithdrawals[addr], PendingWithdrawal{
		Amount:      new(big.Int).Set(amount),
		SettleEpoch: settleEpoch,
	})
}

// SettleWithdrawals credits addr with every pending withdrawal whose
// SettleEpoch has arrived, removing them from the queue, and returns
// the total amount released.
func (s *State) SettleWithdrawals(addr Address, currentEpoch uint64) *big.Int {
	pending := s.PendingWithdrawals[addr]
	released := big.NewInt(0)
	remaining := pending[:0]
	for _, w := range pending {
		if w.SettleEpoch <= currentEpoch {
			released.Add(released, w.Amount)
		} else {
			remaining = append(remaining, w)
		}
	}

	if len(remaining) == 0 {
		delete(s.PendingWithdrawals, addr)
	} else {
		s.PendingWithdrawals[addr] = remaining
	}

	if released.Sign() > 0 {
		acct, ok := s.Accounts[addr]
		if !ok {
			acct = NewAccountState(big.NewInt(0))
			s.Accounts[addr] = acct
		}
		acct.Credit(released)
	}
	return released
}

// ActiveValidators returns every validator currently marked active.
func (s *State) ActiveValidators() []*ValidatorInfo {
	var active []*ValidatorInfo
	for _, v := range s.Validators {
		if v.IsActive {
			active = append(active, v)
		}
	}
	return active
}

// AdvanceEpoch increments the current epoch counter. Validator election
// for the new epoch is driven separately by the dpos package.
func (s *State) AdvanceEpoch() {
	s.CurrentEpoch++
}

// VotingPower returns stake's share of totalStake, or 0 if totalStake is zero.
func VotingPower(stake, totalStake *big.Int) float64 {
	if totalStake.Sign() == 0 {
		return 0
	}
	s, _ := new(big.Float).SetInt(stake).Float64()
	t, _ := new(big.Float).SetInt(totalStake).Float64()
	return s / t
}

// IsValidAddress reports whether addr is not the zero hash.
func IsValidAddress(addr Address) bool {
	return !addr.IsZero()
}

// Package tx implements Aevum's account-model transaction: a tagged
// union of operation kinds (transfer, staking, delegation, governance)
// carried in one envelope with a sender, nonce, and gas fields.
// Grounded on original_source/aevum-core/src/transaction.rs's
// AevumTransactionType/AevumTransaction, translated from Rust's enum
// variants into a Go kind-tag-plus-payload-struct, the idiom the
// bond/script package already uses for its own tagged stack items.
package tx

import (
	"encoding/binary"
	"math/big"
	"time"

	nodeerrors "github.com/aevum-bond/node/errors"
	"github.com/aevum-bond/node/hash256"
	"github.com/aevum-bond/node/pqc"
)

// Kind identifies which operation a Transaction carries.
type Kind int

const (
	KindTransfer Kind = iota
	KindStake
	KindUnstake
	KindDelegate
	KindUndelegate
	KindVote
	KindCreateProposal
	KindClaimRewards
)

// Transaction is Aevum's single envelope for every account-model
// operation. Only the fields relevant to Kind are meaningful; see the
// New* constructors.
type Transaction struct {
	From     hash256.Hash256
	Nonce    uint64
	Kind     Kind
	GasLimit uint64
	GasPrice uint64
	Timestamp time.Time

	// Transfer
	To     hash256.Hash256
	Amount *big.Int

	// Delegate / Undelegate
	Validator hash256.Hash256

	// Vote
	ProposalID uint64
	VoteYes    bool
	Weight     *big.Int

	// CreateProposal
	Title        string
	Description  string
	VotingPeriod uint64

	Signature *pqc.Signature
}

// NewTransfer builds an unsigned Transfer transaction.
func NewTransfer(from, to hash256.Hash256, amount *big.Int, nonce, gasLimit, gasPrice uint64) *Transaction {
	return &Transaction{From: from, Nonce: nonce, Kind: KindTransfer, GasLimit: gasLimit, GasPrice: gasPrice, To: to, Amount: amount, Timestamp: time.Now()}
}

// NewStake builds an unsigned Stake transaction.
func NewStake(from hash256.Hash256, amount *big.Int, nonce, gasLimit, gasPrice uint64) *Transaction {
	return &Transaction{From: from, Nonce: nonce, Kind: KindStake, GasLimit: gasLimit, GasPrice: gasPrice, Amount: amount, Timestamp: time.Now()}
}

// NewUnstake builds an unsigned Unstake transaction.
func NewUnstake(from hash256.Hash256, amount *big.Int, nonce, gasLimit, gasPrice uint64) *Transaction {
	return &Transaction{From: from, Nonce: nonce, Kind: KindUnstake, GasLimit: gasLimit, GasPrice: gasPrice, Amount: amount, Timestamp: time.Now()}
}

// NewDelegate builds an unsigned Delegate transaction.
func NewDelegate(from, validator hash256.Hash256, amount *big.Int, nonce, gasLimit, gasPrice uint64) *Transaction {
	return &Transaction{From: from, Nonce: nonce, Kind: KindDelegate, GasLimit: gasLimit, GasPrice: gasPrice, Validator: validator, Amount: amount, Timestamp: time.Now()}
}

// NewUndelegate builds an unsigned Undelegate transaction.
func NewUndelegate(from, validator hash256.Hash256, amount *big.Int, nonce, gasLimit, gasPrice uint64) *Transaction {
	return &Transaction{From: from, Nonce: nonce, Kind: KindUndelegate, GasLimit: gasLimit, GasPrice: gasPrice, Validator: validator, Amount: amount, Timestamp: time.Now()}
}

// NewVote builds an unsigned Vote transaction.
func NewVote(from hash256.Hash256, proposalID uint64, voteYes bool, weight *big.Int, nonce, gasLimit, gasPrice uint64) *Transaction {
	return &Transaction{From: from, Nonce: nonce, Kind: KindVote, GasLimit: gasLimit, GasPrice: gasPrice, ProposalID: proposalID, VoteYes: voteYes, Weight: weight, Timestamp: time.Now()}
}

// NewCreateProposal builds an unsigned CreateProposal transaction.
func NewCreateProposal(from hash256.Hash256, title, description string, votingPeriod, nonce, gasLimit, gasPrice uint64) *Transaction {
	return &Transaction{From: from, Nonce: nonce, Kind: KindCreateProposal, GasLimit: gasLimit, GasPrice: gasPrice, Title: title, Description: description, VotingPeriod: votingPeriod, Timestamp: time.Now()}
}

// NewClaimRewards builds an unsigned ClaimRewards transaction.
func NewClaimRewards(from hash256.Hash256, nonce, gasLimit, gasPrice uint64) *Transaction {
	return &Transaction{From: from, Nonce: nonce, Kind: KindClaimRewards, GasLimit: gasLimit, GasPrice: gasPrice, Timestamp: time.Now()}
}

// TotalCost returns gas_limit * gas_price, the maximum the sender can be
// charged for execution.
func (t *Transaction) TotalCost() uint64 {
	return t.GasLimit * t.GasPrice
}

// Hash returns the transaction's content hash.
func (t *Transaction) Hash() hash256.Hash256 {
	return hash256.Sum(t.serialize())
}

func (t *Transaction) serialize() []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, t.From[:]...)

	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], t.Nonce)
	buf = append(buf, tmp[:]...)
	buf = append(buf, byte(t.Kind))
	binary.LittleEndian.PutUint64(tmp[:], t.GasLimit)
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], t.GasPrice)
	buf = append(buf, tmp[:]...)

	switch t.Kind {
	case KindTransfer:
		buf = append(buf, t.To[:]...)
		buf = appendBigInt(buf, t.Amount)
	case KindStake, KindUnstake:
		buf = appendBigInt(buf, t.Amount)
	case KindDelegate, KindUndelegate:
		buf = append(buf, t.Validator[:]...)
		buf = appendBigInt(buf, t.Amount)
	case KindVote:
		binary.LittleEndian.PutUint64(tmp[:], t.ProposalID)
		buf = append(buf, tmp[:]...)
		if t.VoteYes {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = appendBigInt(buf, t.Weight)
	case KindCreateProposal:
		buf = append(buf, []byte(t.Title)...)
		buf = append(buf, 0)
		buf = append(buf, []byte(t.Description)...)
		buf = append(buf, 0)
		binary.LittleEndian.PutUint64(tmp[:], t.VotingPeriod)
		buf = append(buf, tmp[:]...)
	case KindClaimRewards:
		// no payload
	}

	return buf
}

func appendBigInt(buf []byte, n *big.Int) []byte {
	if n == nil {
		return buf
	}
	return append(buf, n.Bytes()...)
}

// IsSigned reports whether the transaction carries a signature.
func (t *Transaction) IsSigned() bool {
	return t.Signature != nil
}

// Sign signs the transaction's hash with kp and attaches the signature.
func (t *Transaction) Sign(kp *pqc.Keypair) error {
	sig, err := kp.Sign(t.Hash().Bytes())
	if err != nil {
		return err
	}
	t.Signature = sig
	return nil
}

// VerifySignature reports whether the attached signature is valid over
// the transaction's hash.
func (t *Transaction) VerifySignature() (bool, error) {
	if t.Signature == nil {
		return false, nodeerrors.NewInvalidSignatureError("transaction is not signed")
	}
	return t.Signature.Verify(t.Hash().Bytes())
}

// BasicValidate checks the structural invariants common to every kind
// (gas limit/price must be positive) plus per-kind invariants (non-zero
// amounts, non-empty proposal fields).
func (t *Transaction) BasicValidate() error {
	if t.GasLimit == 0 {
		return nodeerrors.NewInvalidTransactionError("gas limit must be greater than zero")
	}
	if t.GasPrice == 0 {
		return nodeerrors.NewInvalidTransactionError("gas price must be greater than zero")
	}

	switch t.Kind {
	case KindTransfer, KindStake, KindDelegate, KindUnstake, KindUndelegate:
		if t.Amount == nil || t.Amount.Sign() <= 0 {
			return nodeerrors.NewInvalidTransactionError("amount must be greater than zero")
		}
	case KindCreateProposal:
		if t.Title == "" {
			return nodeerrors.NewInvalidTransactionError("proposal title must not be empty")
		}
		if t.Description == "" {
			return nodeerrors.NewInvalidTransactionError("proposal description must not be empty")
		}
		if t.VotingPeriod == 0 {
			return nodeerrors.NewInvalidTransactionError("voting period must be greater than zero")
		}
	}

	return nil
}

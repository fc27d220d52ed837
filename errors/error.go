// Package errors defines the single tagged error type used across the
// node: every validation, cryptographic, and network failure is reported
// as an *Error carrying a stable code, never a panic.
package errors

import (
	"errors"
	"fmt"
)

// ERR is a stable error code. Codes are part of the node's externally
// observable behavior: callers branch on Code, not on Message text.
type ERR int32

const (
	ERR_UNKNOWN ERR = iota
	ERR_INVALID_TRANSACTION
	ERR_INVALID_BLOCK
	ERR_INVALID_HASH
	ERR_INSUFFICIENT_DIFFICULTY
	ERR_NONCE_NOT_FOUND
	ERR_UTXO_NOT_FOUND
	ERR_INSUFFICIENT_FUNDS
	ERR_INVALID_SIGNATURE
	ERR_INVALID_KEY_SIZE
	ERR_CRYPTOGRAPHIC
	ERR_SERIALIZATION
	ERR_IO
	ERR_NETWORK
	ERR_SCRIPT
	ERR_CONFIGURATION
	ERR_NOT_FOUND
)

var errName = map[ERR]string{
	ERR_UNKNOWN:                 "UNKNOWN",
	ERR_INVALID_TRANSACTION:     "INVALID_TRANSACTION",
	ERR_INVALID_BLOCK:           "INVALID_BLOCK",
	ERR_INVALID_HASH:            "INVALID_HASH",
	ERR_INSUFFICIENT_DIFFICULTY: "INSUFFICIENT_DIFFICULTY",
	ERR_NONCE_NOT_FOUND:         "NONCE_NOT_FOUND",
	ERR_UTXO_NOT_FOUND:          "UTXO_NOT_FOUND",
	ERR_INSUFFICIENT_FUNDS:      "INSUFFICIENT_FUNDS",
	ERR_INVALID_SIGNATURE:       "INVALID_SIGNATURE",
	ERR_INVALID_KEY_SIZE:        "INVALID_KEY_SIZE",
	ERR_CRYPTOGRAPHIC:           "CRYPTOGRAPHIC",
	ERR_SERIALIZATION:           "SERIALIZATION",
	ERR_IO:                      "IO",
	ERR_NETWORK:                 "NETWORK",
	ERR_SCRIPT:                  "SCRIPT",
	ERR_CONFIGURATION:           "CONFIGURATION",
	ERR_NOT_FOUND:               "NOT_FOUND",
}

func (c ERR) String() string {
	if s, ok := errName[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// Error is the node's single error type: a code, a human message, and an
// optional wrapped cause for errors.Is/As chains.
type Error struct {
	Code       ERR
	Message    string
	WrappedErr error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.WrappedErr == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.WrappedErr)
}

// Is reports whether target is an *Error with the same Code, recursing
// through wrapped errors.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	var ue *Error
	if errors.As(target, &ue) && e.Code == ue.Code {
		return true
	}
	if e.WrappedErr != nil {
		return errors.Is(e.WrappedErr, target)
	}
	return false
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.WrappedErr
}

// New builds an *Error, optionally wrapping a trailing error/ *Error
// argument and formatting the remaining args into Message.
func New(code ERR, message string, params ...interface{}) *Error {
	var wrapped error

	if len(params) > 0 {
		last := params[len(params)-1]
		if err, ok := last.(error); ok {
			wrapped = err
			params = params[:len(params)-1]
		}
	}

	if len(params) > 0 {
		message = fmt.Sprintf(message, params...)
	}

	return &Error{Code: code, Message: message, WrappedErr: wrapped}
}

func Is(err, target error) bool  { return errors.Is(err, target) }
func As(err error, target any) bool { return errors.As(err, target) }

func NewInvalidTransactionError(reason string, params ...interface{}) *Error {
	return New(ERR_INVALID_TRANSACTION, reason, params...)
}

func NewInvalidBlockError(reason string, params ...interface{}) *Error {
	return New(ERR_INVALID_BLOCK, reason, params...)
}

func NewInvalidHashError(reason string, params ...interface{}) *Error {
	return New(ERR_INVALID_HASH, reason, params...)
}

func NewInsufficientDifficultyError(reason string, params ...interface{}) *Error {
	return New(ERR_INSUFFICIENT_DIFFICULTY, reason, params...)
}

func NewNonceNotFoundError(reason string, params ...interface{}) *Error {
	return New(ERR_NONCE_NOT_FOUND, reason, params...)
}

func NewUtxoNotFoundError(reason string, params ...interface{}) *Error {
	return New(ERR_UTXO_NOT_FOUND, reason, params...)
}

func NewInsufficientFundsError(reason string, params ...interface{}) *Error {
	return New(ERR_INSUFFICIENT_FUNDS, reason, params...)
}

func NewInvalidSignatureError(reason string, params ...interface{}) *Error {
	return New(ERR_INVALID_SIGNATURE, reason, params...)
}

func NewInvalidKeySizeError(expected, actual int) *Error {
	return New(ERR_INVALID_KEY_SIZE, fmt.Sprintf("expected %d bytes, got %d", expected, actual))
}

func NewCryptographicError(reason string, params ...interface{}) *Error {
	return New(ERR_CRYPTOGRAPHIC, reason, params...)
}

func NewSerializationError(reason string, params ...interface{}) *Error {
	return New(ERR_SERIALIZATION, reason, params...)
}

func NewIoError(reason string, params ...interface{}) *Error {
	return New(ERR_IO, reason, params...)
}

func NewNetworkError(reason string, params ...interface{}) *Error {
	return New(ERR_NETWORK, reason, params...)
}

func NewScriptError(reason string, params ...interface{}) *Error {
	return New(ERR_SCRIPT, reason, params...)
}

func NewConfigurationError(reason string, params ...interface{}) *Error {
	return New(ERR_CONFIGURATION, reason, params...)
}

func NewNotFoundError(reason string, params ...interface{}) *Error {
	return New(ERR_NOT_FOUND, reason, params...)
}

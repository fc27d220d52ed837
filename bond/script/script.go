// Package script implements Bond's locking/unlocking script VM: a
// small, non-Turing-complete stack machine executed to decide whether a
// transaction input is authorized to spend the output it references.
// Opcode semantics follow the teacher's validator-style one-error-per-step
// execution loop (services/validator), generalized to this instruction set.
package script

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	nodeerrors "github.com/aevum-bond/node/errors"
	"github.com/aevum-bond/node/pqc"
)

// Resource limits, enforced during execution to bound the cost of an
// attacker-supplied script.
const (
	MaxStackSize  = 1000
	MaxScriptSize = 10_000
	MaxOps        = 1000
)

// OpCode identifies a single VM instruction.
type OpCode byte

const (
	OP_DUP  OpCode = 0x01
	OP_DROP OpCode = 0x02
	OP_SWAP OpCode = 0x03
	OP_ROT  OpCode = 0x04

	OP_PUSHDATA OpCode = 0x10
	OP_PUSHNUM  OpCode = 0x11

	OP_ADD OpCode = 0x20
	OP_SUB OpCode = 0x21
	OP_MUL OpCode = 0x22
	OP_DIV OpCode = 0x23
	OP_MOD OpCode = 0x24

	OP_EQUAL       OpCode = 0x30
	OP_EQUALVERIFY OpCode = 0x31
	OP_LESSTHAN    OpCode = 0x32
	OP_GREATERTHAN OpCode = 0x33

	OP_HASH256       OpCode = 0x40
	OP_CHECKSIG      OpCode = 0x41
	OP_CHECKMULTISIG OpCode = 0x42

	OP_IF    OpCode = 0x50
	OP_ELSE  OpCode = 0x51
	OP_ENDIF OpCode = 0x52
	OP_VERIFY OpCode = 0x53
	OP_RETURN OpCode = 0x54

	OP_NOP OpCode = 0xFF
)

// ItemKind tags the three shapes a stack item can take.
type ItemKind int

const (
	KindData ItemKind = iota
	KindNumber
	KindBoolean
)

// Item is a tagged script-stack value. Exactly one of the fields is
// meaningful, selected by Kind.
type Item struct {
	Kind    ItemKind
	Data    []byte
	Number  int64
	Boolean bool
}

func dataItem(b []byte) Item    { return Item{Kind: KindData, Data: b} }
func numberItem(n int64) Item   { return Item{Kind: KindNumber, Number: n} }
func boolItem(b bool) Item      { return Item{Kind: KindBoolean, Boolean: b} }

// Bytes renders the item as bytes, per kind: raw data, little-endian
// int64, or a single 0/1 byte.
func (it Item) Bytes() []byte {
	switch it.Kind {
	case KindNumber:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(it.Number))
		return b[:]
	case KindBoolean:
		if it.Boolean {
			return []byte{1}
		}
		return []byte{0}
	default:
		return it.Data
	}
}

// AsNumber converts the item to an int64. Data items up to 8 bytes are
// decoded little-endian; longer data cannot be converted.
func (it Item) AsNumber() (int64, error) {
	switch it.Kind {
	case KindNumber:
		return it.Number, nil
	case KindBoolean:
		if it.Boolean {
			return 1, nil
		}
		return 0, nil
	default:
		if len(it.Data) == 0 {
			return 0, nil
		}
		if len(it.Data) > 8 {
			return 0, nodeerrors.NewScriptError("cannot convert %d-byte data item to number", len(it.Data))
		}
		var b [8]byte
		copy(b[:], it.Data)
		return int64(binary.LittleEndian.Uint64(b[:])), nil
	}
}

// AsBool converts the item to a boolean: non-zero numbers are true,
// non-empty data with at least one non-zero byte is true.
func (it Item) AsBool() bool {
	switch it.Kind {
	case KindBoolean:
		return it.Boolean
	case KindNumber:
		return it.Number != 0
	default:
		for _, b := range it.Data {
			if b != 0 {
				return true
			}
		}
		return false
	}
}

// Context carries the data OP_CHECKSIG and OP_CHECKMULTISIG need that
// isn't on the stack: the message being authorized and which input is
// being validated.
type Context struct {
	SigHash    []byte
	InputIndex int
}

// VM is a stack-based script interpreter. A VM is single-use: build one
// per Execute call via New.
type VM struct {
	stack    []Item
	altStack []Item
	opCount  int
}

// New returns a fresh VM with an empty stack.
func New() *VM {
	return &VM{}
}

// Execute runs script against ctx and reports whether it authorizes the
// spend: the script must run to completion leaving a truthy value on
// top of the stack. OP_RETURN always yields false ("provably
// unspendable"); any runtime error (underflow, malformed push, resource
// limit) is also reported as non-authorization, with the error
// describing why.
func (vm *VM) Execute(code []byte, ctx *Context) (bool, error) {
	if len(code) > MaxScriptSize {
		return false, nodeerrors.NewScriptError("script exceeds %d bytes", MaxScriptSize)
	}

	pc := 0
	for pc < len(code) {
		if vm.opCount >= MaxOps {
			return false, nodeerrors.NewScriptError("script exceeds %d operations", MaxOps)
		}

		op := OpCode(code[pc])
		pc++
		vm.opCount++

		var err error
		switch op {
		case OP_DUP:
			err = vm.opDup()
		case OP_DROP:
			err = vm.opDrop()
		case OP_SWAP:
			err = vm.opSwap()
		case OP_ROT:
			err = vm.opRot()
		case OP_PUSHDATA:
			var data []byte
			data, pc, err = readPushData(code, pc)
			if err == nil {
				vm.push(dataItem(data))
			}
		case OP_PUSHNUM:
			var n int64
			n, pc, err = readNumber(code, pc)
			if err == nil {
				vm.push(numberItem(n))
			}
		case OP_ADD:
			err = vm.opBinaryNumeric(func(a, b int64) int64 { return a + b })
		case OP_SUB:
			err = vm.opBinaryNumeric(func(a, b int64) int64 { return a - b })
		case OP_MUL:
			err = vm.opBinaryNumeric(func(a, b int64) int64 { return a * b })
		case OP_DIV:
			err = vm.opDiv()
		case OP_MOD:
			err = vm.opMod()
		case OP_EQUAL:
			err = vm.opEqual()
		case OP_EQUALVERIFY:
			if err = vm.opEqual(); err == nil {
				err = vm.opVerify()
			}
		case OP_LESSTHAN:
			err = vm.opCompare(func(a, b int64) bool { return a < b })
		case OP_GREATERTHAN:
			err = vm.opCompare(func(a, b int64) bool { return a > b })
		case OP_HASH256:
			err = vm.opHash256()
		case OP_CHECKSIG:
			err = vm.opCheckSig(ctx)
		case OP_CHECKMULTISIG:
			err = vm.opCheckMultiSig(ctx)
		case OP_VERIFY:
			err = vm.opVerify()
		case OP_RETURN:
			return false, nil
		case OP_IF, OP_ELSE, OP_ENDIF:
			err = nodeerrors.NewScriptError("conditional opcodes are reserved and not yet implemented")
		case OP_NOP:
			// no operation
		default:
			err = nodeerrors.NewScriptError("unknown opcode 0x%02x", byte(op))
		}

		if err != nil {
			return false, err
		}
		if len(vm.stack) > MaxStackSize {
			return false, nodeerrors.NewScriptError("stack exceeds %d items", MaxStackSize)
		}
	}

	if len(vm.stack) == 0 {
		return false, nil
	}
	return vm.stack[len(vm.stack)-1].AsBool(), nil
}

func (vm *VM) push(it Item) { vm.stack = append(vm.stack, it) }

func (vm *VM) pop() (Item, error) {
	if len(vm.stack) == 0 {
		return Item{}, nodeerrors.NewScriptError("stack underflow")
	}
	top := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return top, nil
}

func (vm *VM) opDup() error {
	if len(vm.stack) == 0 {
		return nodeerrors.NewScriptError("stack underflow in OP_DUP")
	}
	vm.push(vm.stack[len(vm.stack)-1])
	return nil
}

func (vm *VM) opDrop() error {
	_, err := vm.pop()
	return err
}

func (vm *VM) opSwap() error {
	n := len(vm.stack)
	if n < 2 {
		return nodeerrors.NewScriptError("stack underflow in OP_SWAP")
	}
	vm.stack[n-1], vm.stack[n-2] = vm.stack[n-2], vm.stack[n-1]
	return nil
}

func (vm *VM) opRot() error {
	n := len(vm.stack)
	if n < 3 {
		return nodeerrors.NewScriptError("stack underflow in OP_ROT")
	}
	item := vm.stack[n-3]
	vm.stack = append(vm.stack[:n-3], vm.stack[n-2:]...)
	vm.push(item)
	return nil
}

func (vm *VM) opBinaryNumeric(f func(a, b int64) int64) error {
	b, err := vm.pop()
	if err != nil {
		return nodeerrors.NewScriptError("stack underflow in arithmetic op")
	}
	a, err := vm.pop()
	if err != nil {
		return nodeerrors.NewScriptError("stack underflow in arithmetic op")
	}
	an, err := a.AsNumber()
	if err != nil {
		return err
	}
	bn, err := b.AsNumber()
	if err != nil {
		return err
	}
	vm.push(numberItem(f(an, bn)))
	return nil
}

func (vm *VM) opDiv() error {
	b, err := vm.pop()
	if err != nil {
		return nodeerrors.NewScriptError("stack underflow in OP_DIV")
	}
	a, err := vm.pop()
	if err != nil {
		return nodeerrors.NewScriptError("stack underflow in OP_DIV")
	}
	bn, err := b.AsNumber()
	if err != nil {
		return err
	}
	if bn == 0 {
		return nodeerrors.NewScriptError("division by zero")
	}
	an, err := a.AsNumber()
	if err != nil {
		return err
	}
	vm.push(numberItem(an / bn))
	return nil
}

func (vm *VM) opMod() error {
	b, err := vm.pop()
	if err != nil {
		return nodeerrors.NewScriptError("stack underflow in OP_MOD")
	}
	a, err := vm.pop()
	if err != nil {
		return nodeerrors.NewScriptError("stack underflow in OP_MOD")
	}
	bn, err := b.AsNumber()
	if err != nil {
		return err
	}
	if bn == 0 {
		return nodeerrors.NewScriptError("modulo by zero")
	}
	an, err := a.AsNumber()
	if err != nil {
		return err
	}
	vm.push(numberItem(an % bn))
	return nil
}

func (vm *VM) opEqual() error {
	b, err := vm.pop()
	if err != nil {
		return nodeerrors.NewScriptError("stack underflow in OP_EQUAL")
	}
	a, err := vm.pop()
	if err != nil {
		return nodeerrors.NewScriptError("stack underflow in OP_EQUAL")
	}
	vm.push(boolItem(bytesEqual(a.Bytes(), b.Bytes())))
	return nil
}

func (vm *VM) opCompare(f func(a, b int64) bool) error {
	b, err := vm.pop()
	if err != nil {
		return nodeerrors.NewScriptError("stack underflow in comparison op")
	}
	a, err := vm.pop()
	if err != nil {
		return nodeerrors.NewScriptError("stack underflow in comparison op")
	}
	an, err := a.AsNumber()
	if err != nil {
		return err
	}
	bn, err := b.AsNumber()
	if err != nil {
		return err
	}
	vm.push(boolItem(f(an, bn)))
	return nil
}

// sha3_256Sum returns the NIST SHA3-256 digest of data. This is
// deliberately a different hash function from hash256.Sum (Keccak-256,
// legacy padding): OP_HASH256 hashes script data, hash256.Sum identifies
// blocks and transactions, and the two are not interchangeable.
func sha3_256Sum(data []byte) []byte {
	d := sha3.New256()
	d.Write(data)
	return d.Sum(nil)
}

func (vm *VM) opHash256() error {
	top, err := vm.pop()
	if err != nil {
		return nodeerrors.NewScriptError("stack underflow in OP_HASH256")
	}
	vm.push(dataItem(sha3_256Sum(top.Bytes())))
	return nil
}

// opCheckSig pops a public key then a signature and verifies the
// signature against ctx.SigHash using the node's ML-DSA-65 verifier.
func (vm *VM) opCheckSig(ctx *Context) error {
	pubBytes, err := vm.pop()
	if err != nil {
		return nodeerrors.NewScriptError("stack underflow in OP_CHECKSIG")
	}
	sigBytes, err := vm.pop()
	if err != nil {
		return nodeerrors.NewScriptError("stack underflow in OP_CHECKSIG")
	}

	ok := false
	pub, perr := pqc.PublicKeyFromBytes(pubBytes.Bytes())
	if perr == nil {
		sig := pqc.SignatureFromParts(ctx.SigHash, pub, sigBytes.Bytes())
		verified, verr := sig.Verify(ctx.SigHash)
		ok = verr == nil && verified
	}

	vm.push(boolItem(ok))
	return nil
}

// opCheckMultiSig is reserved: the wire format for m-of-n scripts is not
// finalized, so any use fails the script rather than silently accepting it.
func (vm *VM) opCheckMultiSig(_ *Context) error {
	return nodeerrors.NewScriptError("OP_CHECKMULTISIG not yet implemented")
}

func (vm *VM) opVerify() error {
	top, err := vm.pop()
	if err != nil {
		return nodeerrors.NewScriptError("stack underflow in OP_VERIFY")
	}
	if !top.AsBool() {
		return nodeerrors.NewScriptError("OP_VERIFY failed")
	}
	return nil
}

func readPushData(code []byte, pc int) ([]byte, int, error) {
	if pc >= len(code) {
		return nil, pc, nodeerrors.NewScriptError("unexpected end of script in OP_PUSHDATA")
	}
	n := int(code[pc])
	start := pc + 1
	end := start + n
	if end > len(code) {
		return nil, pc, nodeerrors.NewScriptError("invalid OP_PUSHDATA length")
	}
	return code[start:end], end, nil
}

func readNumber(code []byte, pc int) (int64, int, error) {
	if pc+8 > len(code) {
		return 0, pc, nodeerrors.NewScriptError("unexpected end of script in OP_PUSHNUM")
	}
	n := int64(binary.LittleEndian.Uint64(code[pc : pc+8]))
	return n, pc + 8, nil
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

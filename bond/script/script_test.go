package script

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/aevum-bond/node/hash256"
	"github.com/aevum-bond/node/pqc"
)

func TestSimpleArithmeticScript(t *testing.T) {
	code := NewBuilder().
		PushNumber(10).
		PushNumber(20).
		PushOp(OP_ADD).
		PushNumber(30).
		PushOp(OP_EQUAL).
		Build()

	ok, err := New().Execute(code, &Context{})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDupSwapDrop(t *testing.T) {
	vm := New()
	vm.push(numberItem(42))
	require.NoError(t, vm.opDup())
	require.Len(t, vm.stack, 2)

	vm.push(numberItem(100))
	require.NoError(t, vm.opSwap())
	require.Equal(t, int64(100), vm.stack[1].Number)
	require.Equal(t, int64(42), vm.stack[2].Number)

	require.NoError(t, vm.opDrop())
	require.Len(t, vm.stack, 2)
}

func TestDivisionByZeroFails(t *testing.T) {
	code := NewBuilder().
		PushNumber(10).
		PushNumber(0).
		PushOp(OP_DIV).
		Build()

	_, err := New().Execute(code, &Context{})
	require.Error(t, err)
}

func TestOpReturnIsUnspendable(t *testing.T) {
	code := NewBuilder().PushNumber(1).PushOp(OP_RETURN).Build()
	ok, err := New().Execute(code, &Context{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOpVerifyFailsOnFalse(t *testing.T) {
	code := NewBuilder().PushNumber(0).PushOp(OP_VERIFY).Build()
	_, err := New().Execute(code, &Context{})
	require.Error(t, err)
}

func TestEmptyStackAtEndIsFalse(t *testing.T) {
	ok, err := New().Execute(nil, &Context{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestScriptExceedingOpsLimitFails(t *testing.T) {
	code := make([]byte, MaxOps+1)
	for i := range code {
		code[i] = byte(OP_NOP)
	}
	_, err := New().Execute(code, &Context{})
	require.Error(t, err)
}

func TestOpHash256UsesSha3NotKeccak(t *testing.T) {
	data := []byte("hash me")

	vm := New()
	vm.push(dataItem(data))
	require.NoError(t, vm.opHash256())

	top, err := vm.pop()
	require.NoError(t, err)

	want := sha3.Sum256(data)
	require.Equal(t, want[:], top.Bytes())
	require.NotEqual(t, hash256.Sum(data).Bytes(), top.Bytes())
}

func TestCheckSigWithRealKeypair(t *testing.T) {
	kp, err := pqc.GenerateKeypair()
	require.NoError(t, err)
	defer kp.Destroy()

	msg := []byte("sighash-of-a-spending-transaction")
	sig, err := kp.Sign(msg)
	require.NoError(t, err)

	code := NewBuilder().
		PushData(sig.SignatureBytes()).
		PushData(kp.Public.Bytes()).
		PushOp(OP_CHECKSIG).
		Build()

	// OP_PUSHDATA's length byte cannot carry ML-DSA-65's ~4.6-4.9KB
	// signature or ~2.6KB public key; this test exercises the opcode
	// path directly against the stack instead of through the builder.
	vm := New()
	vm.push(dataItem(sig.SignatureBytes()))
	vm.push(dataItem(kp.Public.Bytes()))
	require.NoError(t, vm.opCheckSig(&Context{SigHash: msg}))

	top, err := vm.pop()
	require.NoError(t, err)
	require.True(t, top.AsBool())
	_ = code
}

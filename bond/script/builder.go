package script

// Builder assembles a script byte string opcode-by-opcode.
type Builder struct {
	code []byte
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// PushOp appends a single opcode.
func (b *Builder) PushOp(op OpCode) *Builder {
	b.code = append(b.code, byte(op))
	return b
}

// PushData appends OP_PUSHDATA followed by a one-byte length and data.
// data must be at most 255 bytes.
func (b *Builder) PushData(data []byte) *Builder {
	b.code = append(b.code, byte(OP_PUSHDATA), byte(len(data)))
	b.code = append(b.code, data...)
	return b
}

// PushNumber appends OP_PUSHNUM followed by the little-endian int64.
func (b *Builder) PushNumber(n int64) *Builder {
	var buf [8]byte
	u := uint64(n)
	for i := 0; i < 8; i++ {
		buf[i] = byte(u >> (8 * i))
	}
	b.code = append(b.code, byte(OP_PUSHNUM))
	b.code = append(b.code, buf[:]...)
	return b
}

// Build returns the assembled script bytes.
func (b *Builder) Build() []byte {
	return append([]byte(nil), b.code...)
}

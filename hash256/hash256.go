// Package hash256 implements the node's content-identity hash: a fixed
// 32-byte Keccak-256 digest with a leading-zero-bit difficulty predicate,
// used by both Bond block headers and Aevum account/validator keys.
package hash256

import (
	"encoding/hex"
	"math/bits"

	"golang.org/x/crypto/sha3"
)

// Size is the length in bytes of a Hash256.
const Size = 32

// Hash256 is a fixed 32-byte content hash.
type Hash256 [Size]byte

// Zero is the all-zero hash, used as the coinbase's fake previous-output
// hash and as the empty-list Merkle root.
var Zero Hash256

// New builds a Hash256 from a byte slice. The slice must be exactly Size
// bytes long.
func New(b []byte) (Hash256, error) {
	var h Hash256
	if len(b) != Size {
		return h, errInvalidLength(len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Sum returns the Keccak-256 digest of data as a Hash256.
func Sum(data []byte) Hash256 {
	d := sha3.NewLegacyKeccak256()
	d.Write(data)
	var h Hash256
	d.Sum(h[:0])
	return h
}

// Bytes returns a copy of the hash's bytes.
func (h Hash256) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, h[:])
	return out
}

// String renders the hash as lowercase hex.
func (h Hash256) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero hash.
func (h Hash256) IsZero() bool {
	return h == Zero
}

// MeetsDifficulty reports whether h has at least d leading zero bits
// across its big-endian byte representation.
func (h Hash256) MeetsDifficulty(d uint32) bool {
	if d == 0 {
		return true
	}
	if d > Size*8 {
		return h.IsZero()
	}

	need := int(d)
	for _, b := range h {
		if need <= 0 {
			break
		}
		if b == 0 {
			need -= 8
			continue
		}
		lz := bits.LeadingZeros8(b)
		if lz >= need {
			need = 0
		} else {
			need -= lz
		}
		break
	}
	return need <= 0
}

// FromHex parses a lowercase or uppercase hex string into a Hash256.
func FromHex(s string) (Hash256, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		var h Hash256
		return h, errInvalidHex(err)
	}
	return New(b)
}

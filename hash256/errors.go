package hash256

import (
	"fmt"

	nodeerrors "github.com/aevum-bond/node/errors"
)

func errInvalidLength(got int) error {
	return nodeerrors.New(nodeerrors.ERR_SERIALIZATION, fmt.Sprintf("hash256: expected %d bytes, got %d", Size, got))
}

func errInvalidHex(cause error) error {
	return nodeerrors.New(nodeerrors.ERR_SERIALIZATION, "hash256: invalid hex", cause)
}

package pqc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignThenVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	defer kp.Destroy()

	msg := []byte("aevum-bond transaction payload")
	sig, err := kp.Sign(msg)
	require.NoError(t, err)

	ok, err := sig.Verify(msg)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyFailsOnDifferentMessage(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	defer kp.Destroy()

	sig, err := kp.Sign([]byte("original"))
	require.NoError(t, err)

	ok, err := sig.Verify([]byte("tampered"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPublicKeyRoundTrip(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	defer kp.Destroy()

	b := kp.Public.Bytes()
	require.Len(t, b, PublicKeySize)

	parsed, err := PublicKeyFromBytes(b)
	require.NoError(t, err)
	require.Equal(t, kp.Public.Bytes(), parsed.Bytes())
}

// TestSignatureJSONRoundTripPreservesVerification guards against the
// signature blob being silently dropped on the wire: Signature keeps
// its raw bytes unexported, so without custom marshaling
// encoding/json would encode an empty signature that still "parses"
// but never verifies.
func TestSignatureJSONRoundTripPreservesVerification(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	defer kp.Destroy()

	msg := []byte("gossip-wire payload")
	sig, err := kp.Sign(msg)
	require.NoError(t, err)

	data, err := json.Marshal(sig)
	require.NoError(t, err)

	var decoded Signature
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Equal(t, sig.SignatureBytes(), decoded.SignatureBytes())
	require.Equal(t, kp.Public.Bytes(), decoded.PublicKey.Bytes())

	ok, err := decoded.Verify(msg)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDestroyZeroizesPrivateKey(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	kp.Destroy()

	_, err = kp.private.Sign([]byte("x"), kp.Public)
	require.Error(t, err)
}

package p2p

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeEncodeDecodeRoundTrip(t *testing.T) {
	env := Envelope{Kind: KindBlockBroadcast, Chain: ChainBond, Payload: []byte{1, 2, 3}}

	data, err := EncodeEnvelope(env)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(data)
	require.NoError(t, err)
	require.Equal(t, env, decoded)
}

func TestPayloadEncodeDecodeRoundTrip(t *testing.T) {
	req := BlockRequest{FromHeight: 42, Limit: 100}
	data, err := EncodePayload(req)
	require.NoError(t, err)

	var decoded BlockRequest
	require.NoError(t, DecodePayload(data, &decoded))
	require.Equal(t, req, decoded)
}

func TestNewRequestIDIsUnique(t *testing.T) {
	require.NotEqual(t, NewRequestID(), NewRequestID())
}

func TestDecodeEnvelopeRejectsMalformedJSON(t *testing.T) {
	_, err := DecodeEnvelope([]byte("not json"))
	require.Error(t, err)
}

func TestTopicNameNamespacesUnderNetworkID(t *testing.T) {
	require.Equal(t, "aevum-bond-testnet/blocks", topicName("aevum-bond-testnet", TopicBlocks))
}

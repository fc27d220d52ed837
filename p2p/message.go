package p2p

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	nodeerrors "github.com/aevum-bond/node/errors"
)

// MessageKind tags the payload carried on a gossip topic so one handler
// per topic can dispatch on message shape without a topic per variant.
type MessageKind string

const (
	KindBlockBroadcast      MessageKind = "block_broadcast"
	KindBlockRequest        MessageKind = "block_request"
	KindBlockResponse       MessageKind = "block_response"
	KindTransactionBroadcast MessageKind = "transaction_broadcast"
	KindSyncRequest         MessageKind = "sync_request"
	KindSyncResponse        MessageKind = "sync_response"
	KindStatusAnnouncement  MessageKind = "status_announcement"
	KindPeerListRequest     MessageKind = "peer_list_request"
	KindPeerListResponse    MessageKind = "peer_list_response"
	KindPing                MessageKind = "ping"
	KindPong                MessageKind = "pong"
	KindMiningAnnouncement  MessageKind = "mining_announcement"
)

// Chain identifies which ledger a gossiped message belongs to.
type Chain string

const (
	ChainBond  Chain = "bond"
	ChainAevum Chain = "aevum"
)

// Envelope is the wire format for every message published on a gossip
// topic: a kind tag and chain tag so handlers can dispatch before
// decoding the payload, plus the raw payload carrying the
// kind-specific struct (see BlockRequest, StatusAnnouncement, etc.)
// encoded as JSON.
type Envelope struct {
	Kind      MessageKind `json:"kind"`
	Chain     Chain       `json:"chain"`
	RequestID string      `json:"request_id,omitempty"`
	Payload   []byte      `json:"payload"`
}

// NewRequestID generates a correlation ID for a request-kind envelope,
// so its eventual response can be matched back to the call that issued it.
func NewRequestID() string {
	return uuid.NewString()
}

// BlockRequest asks for blocks starting at FromHeight.
type BlockRequest struct {
	FromHeight uint64 `json:"from_height"`
	Limit      uint32 `json:"limit"`
}

// SyncRequest reports the requester's chain height so the peer can
// decide whether a reply is useful.
type SyncRequest struct {
	ChainHeight uint64 `json:"chain_height"`
}

// SyncResponse carries blocks (opaque, chain-specific encoding) and the
// responder's height at time of reply.
type SyncResponse struct {
	Blocks [][]byte `json:"blocks"`
	Height uint64   `json:"height"`
}

// StatusAnnouncement is published periodically by the node's status loop
// so peers learn each other's height and mode; it is not sent when a new
// connection is established.
type StatusAnnouncement struct {
	NodeID      string    `json:"node_id"`
	ChainHeight uint64    `json:"chain_height"`
	PeerCount   int       `json:"peer_count"`
	NodeMode    string    `json:"node_mode"`
	Uptime      time.Duration `json:"uptime"`
}

// PeerListResponse answers a PeerListRequest with known peers.
type PeerListResponse struct {
	Peers []PeerInfo `json:"peers"`
}

// PingPong carries a node's identity, mode, and timestamp in both
// Ping and Pong messages.
type PingPong struct {
	NodeID    string    `json:"node_id"`
	NodeMode  string    `json:"node_mode"`
	Timestamp time.Time `json:"timestamp"`
}

// MiningAnnouncement advertises a newly mined block ahead of full
// propagation, so peers can short-circuit redundant mining.
type MiningAnnouncement struct {
	MinerID    string `json:"miner_id"`
	BlockHash  string `json:"block_hash"`
	Height     uint64 `json:"height"`
	Difficulty uint32 `json:"difficulty"`
}

// PeerInfo is what the orchestrator tracks about a known peer.
type PeerInfo struct {
	NodeID      string    `json:"node_id"`
	Address     string    `json:"address"`
	NodeMode    string    `json:"node_mode"`
	LastSeen    time.Time `json:"last_seen"`
	ChainHeight uint64    `json:"chain_height"`
}

// Topic names, namespaced under a network ID so testnets and mainnets
// never cross-gossip.
const (
	TopicBlocks       = "blocks"
	TopicTransactions = "transactions"
	TopicSync         = "sync"
)

// topicName namespaces a logical topic under the network's ID.
func topicName(networkID, topic string) string {
	return networkID + "/" + topic
}

// EncodeEnvelope serializes env for publication on a gossip topic.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, nodeerrors.NewSerializationError("p2p: failed to encode envelope", err)
	}
	return data, nil
}

// DecodeEnvelope parses a message received from a gossip topic.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, nodeerrors.NewSerializationError("p2p: failed to decode envelope", err)
	}
	return env, nil
}

// EncodePayload marshals a kind-specific struct into an Envelope's
// Payload field.
func EncodePayload(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nodeerrors.NewSerializationError("p2p: failed to encode payload", err)
	}
	return data, nil
}

// DecodePayload unmarshals an Envelope's Payload into v.
func DecodePayload(payload []byte, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return nodeerrors.NewSerializationError("p2p: failed to decode payload", err)
	}
	return nil
}

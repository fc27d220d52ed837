package node

import (
	"math/big"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	aevumtx "github.com/aevum-bond/node/aevum/tx"
	"github.com/aevum-bond/node/bond/block"
	"github.com/aevum-bond/node/config"
	"github.com/aevum-bond/node/hash256"
	"github.com/aevum-bond/node/log"
	"github.com/aevum-bond/node/pqc"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := config.Default()
	cfg.Port = 0
	orch, err := New(cfg, log.New("test"), []byte{1, 2, 3})
	require.NoError(t, err)
	return orch
}

func TestNewOrchestratorWiresBondAndAevumState(t *testing.T) {
	orch := newTestOrchestrator(t)
	require.Equal(t, uint64(0), orch.BondChain().Height())
	require.NotNil(t, orch.AevumState())
	require.Empty(t, orch.Peers())
}

// TestExecuteAevumTransactionsAppliesAdmittedTransfer verifies that a
// transaction admitted to the mempool is actually applied to the
// Aevum world state once it becomes the sender's next executable
// nonce, rather than sitting inert in the mempool forever.
func TestExecuteAevumTransactionsAppliesAdmittedTransfer(t *testing.T) {
	orch := newTestOrchestrator(t)

	kp, err := pqc.GenerateKeypair()
	require.NoError(t, err)
	from := hash256.Sum(kp.Public.Bytes())
	to := hash256.Sum([]byte("recipient"))
	orch.AevumState().CreateAccount(from, big.NewInt(1000))

	txn := aevumtx.NewTransfer(from, to, big.NewInt(250), 0, 21000, 1)
	require.NoError(t, txn.Sign(kp))

	require.NoError(t, orch.aevumMempool.Add(txn))
	orch.executeAevumTransactions(from)

	fromAcct, ok := orch.AevumState().Account(from)
	require.True(t, ok)
	require.Equal(t, big.NewInt(750), fromAcct.Balance)

	toAcct, ok := orch.AevumState().Account(to)
	require.True(t, ok)
	require.Equal(t, big.NewInt(250), toAcct.Balance)

	require.Equal(t, 0, orch.aevumMempool.Size())
}

// TestExecuteAevumTransactionsStopsAtFailedExecution verifies that a
// transaction which fails against world state (insufficient balance)
// blocks its sender's later nonces from executing out of order,
// rather than being silently skipped.
func TestExecuteAevumTransactionsStopsAtFailedExecution(t *testing.T) {
	orch := newTestOrchestrator(t)

	kp, err := pqc.GenerateKeypair()
	require.NoError(t, err)
	from := hash256.Sum(kp.Public.Bytes())
	to := hash256.Sum([]byte("recipient"))
	orch.AevumState().CreateAccount(from, big.NewInt(100))

	overdrawn := aevumtx.NewTransfer(from, to, big.NewInt(1000), 0, 21000, 1)
	require.NoError(t, overdrawn.Sign(kp))
	next := aevumtx.NewTransfer(from, to, big.NewInt(10), 1, 21000, 1)
	require.NoError(t, next.Sign(kp))

	require.NoError(t, orch.aevumMempool.Add(overdrawn))
	require.NoError(t, orch.aevumMempool.Add(next))
	orch.executeAevumTransactions(from)

	fromAcct, ok := orch.AevumState().Account(from)
	require.True(t, ok)
	require.Equal(t, big.NewInt(100), fromAcct.Balance)
	require.Equal(t, 2, orch.aevumMempool.Size())
}

// TestBlockPropagationRoundTrip verifies that the local genesis block
// can be served to a peer's BlockRequest and decoded with its hash
// intact, and that applying it back through the same collect/encode/
// decode/AddBlock path the gossip handlers use is rejected, since the
// chain already holds it.
func TestBlockPropagationRoundTrip(t *testing.T) {
	orch := newTestOrchestrator(t)

	resp := orch.collectBlocksFrom(0, 10)
	require.Len(t, resp.Blocks, 1)
	require.Equal(t, uint64(0), resp.Height)

	peerOrch := newTestOrchestrator(t)
	// A fresh orchestrator already has its own genesis at height 0, so
	// the decoded genesis is applied back to orch as a duplicate.
	decoded, err := block.Decode(resp.Blocks[0])
	require.NoError(t, err)
	require.Equal(t, orch.BondChain().LatestBlock().Hash(), decoded.Hash())

	applied := orch.applyReceivedBlock(decoded, peer.ID("peer-under-test"))
	require.False(t, applied) // same genesis already present, AddBlock rejects the duplicate

	_ = peerOrch
}

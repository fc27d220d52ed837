// Package node wires the Bond chain, the Aevum state machine, and the
// gossip network into one running process: it owns the chain, mempool,
// and peer table, dispatches gossip messages into the validation
// pipelines, drives Initial Block Download, and runs the periodic
// status/summary loops. Grounded on the teacher's orchestration style
// in services/blockchain (a single owner of chain state reached only
// through message handlers) generalized to this stack's two chains and
// single gossip fabric.
package node

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/aevum-bond/node/bond/block"
	"github.com/aevum-bond/node/bond/chain"
	"github.com/aevum-bond/node/bond/miner"
	"github.com/aevum-bond/node/bond/tx"
	"github.com/aevum-bond/node/config"
	nodeerrors "github.com/aevum-bond/node/errors"
	"github.com/aevum-bond/node/log"
	"github.com/aevum-bond/node/p2p"

	"github.com/aevum-bond/node/aevum/dpos"
	"github.com/aevum-bond/node/aevum/executor"
	"github.com/aevum-bond/node/aevum/governance"
	"github.com/aevum-bond/node/aevum/state"
	aevumtx "github.com/aevum-bond/node/aevum/tx"
)

const (
	statusAnnouncementInterval = 30 * time.Second
	summaryLogInterval         = 60 * time.Second
	ibdBatchSize               = 100
	peerExpiry                 = 3 * statusAnnouncementInterval
)

// Orchestrator owns every piece of mutable state in the process: the
// Bond chain and miner, the Aevum world state, mempool, DPoS engine,
// and proposal registry, the gossip node, and the peer table. All
// access happens through its methods, which are the node's gossip
// handlers and periodic tasks — a single-writer discipline standing in
// for the spec's cooperative single-threaded scheduler.
type Orchestrator struct {
	config *config.Config
	logger log.Logger

	bondChain *chain.Blockchain
	bondMiner *miner.Miner

	aevumState      *state.State
	aevumMempool    *aevumtx.Mempool
	aevumExecutor   *executor.Executor
	dposEngine      *dpos.Engine
	epochController *dpos.EpochController
	proposals       *governance.Registry

	net   *p2p.Node
	peers *ttlcache.Cache[string, p2p.PeerInfo]

	startTime time.Time
	mu        sync.Mutex
}

// New assembles an Orchestrator from a resolved configuration. It
// mines the Bond genesis block and starts the Aevum world state empty;
// callers wanting a pre-funded Aevum genesis should seed accounts on
// the returned Orchestrator's AevumState() before Run.
func New(cfg *config.Config, logger log.Logger, genesisScript []byte) (*Orchestrator, error) {
	bondChain, err := chain.New(chain.DefaultNetworkParams(), genesisScript)
	if err != nil {
		return nil, nodeerrors.NewConfigurationError("node: failed to initialize bond chain", err)
	}

	netNode, err := p2p.New(logger, p2p.Config{
		ListenAddr:  cfg.ListenAddr,
		Port:        cfg.Port,
		NetworkID:   cfg.NetworkID,
		Bootstrap:   cfg.Bootstrap,
		DisableMDNS: cfg.DisableMDNS,
		Advertise:   cfg.Mode == config.ModeBootstrap,
	})
	if err != nil {
		return nil, err
	}

	aevumState := state.New()
	dposEngine := dpos.NewEngine(dpos.DefaultConfig())
	proposals := governance.NewRegistry()

	return &Orchestrator{
		config:    cfg,
		logger:    logger,
		bondChain: bondChain,
		bondMiner: miner.New(miner.Config{RewardScript: genesisScript, Threads: cfg.MiningThreads}),

		aevumState:      aevumState,
		aevumMempool:    aevumtx.NewMempool(aevumtx.MempoolConfig{MaxSize: 10_000, MinGasPrice: 1}),
		aevumExecutor:   executor.New(aevumState, proposals, executor.DefaultConfig()),
		dposEngine:      dposEngine,
		epochController: dpos.NewEpochController(dposEngine, aevumState),
		proposals:       proposals,

		net: netNode,
		peers: ttlcache.New[string, p2p.PeerInfo](
			ttlcache.WithTTL[string, p2p.PeerInfo](peerExpiry),
		),
		startTime: time.Now(),
	}, nil
}

// BondChain returns the owned Bond blockchain.
func (o *Orchestrator) BondChain() *chain.Blockchain { return o.bondChain }

// AevumState returns the owned Aevum world state.
func (o *Orchestrator) AevumState() *state.State { return o.aevumState }

// Proposals returns the owned governance proposal registry.
func (o *Orchestrator) Proposals() *governance.Registry { return o.proposals }

// DposEngine returns the owned DPoS consensus engine.
func (o *Orchestrator) DposEngine() *dpos.Engine { return o.dposEngine }

// EpochController returns the owned epoch-lifecycle controller.
func (o *Orchestrator) EpochController() *dpos.EpochController { return o.epochController }

// Run starts the gossip node, subscribes every topic, and blocks
// running the periodic status/summary loops (and mining, in
// ModeMining) until ctx is canceled.
func (o *Orchestrator) Run(ctx context.Context) error {
	go o.peers.Start()
	defer o.peers.Stop()

	if err := o.net.Start(ctx); err != nil {
		return err
	}

	if err := o.net.Subscribe(ctx, p2p.TopicBlocks, o.handleBlocksTopic); err != nil {
		return err
	}
	if err := o.net.Subscribe(ctx, p2p.TopicTransactions, o.handleTransactionsTopic); err != nil {
		return err
	}
	if err := o.net.Subscribe(ctx, p2p.TopicSync, o.handleSyncTopic); err != nil {
		return err
	}

	go o.statusLoop(ctx)
	go o.summaryLoop(ctx)
	go o.epochLoop(ctx)

	if o.config.Mode == config.ModeMining {
		go o.miningLoop(ctx)
	}

	<-ctx.Done()
	return o.net.Close()
}

func (o *Orchestrator) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusAnnouncementInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.announceStatus(ctx)
		}
	}
}

func (o *Orchestrator) summaryLoop(ctx context.Context) {
	ticker := time.NewTicker(summaryLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.logger.Infof("[node] height=%d peers=%d uptime=%s", o.bondChain.Height(), o.peers.Len(), time.Since(o.startTime))
		}
	}
}

// epochLoop elects validators and schedules the first Aevum epoch on
// startup, then settles and re-schedules each time the engine reports
// the epoch's duration has elapsed.
func (o *Orchestrator) epochLoop(ctx context.Context) {
	o.mu.Lock()
	epochStart := uint64(o.startTime.Unix())
	err := o.epochController.ElectAndSchedule(epochStart)
	o.mu.Unlock()
	if err != nil {
		o.logger.Errorf("[node] initial Aevum epoch election failed: %v", err)
		return
	}

	ticker := time.NewTicker(statusAnnouncementInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.mu.Lock()
			now := uint64(time.Now().Unix())
			if !o.dposEngine.ShouldAdvanceEpoch(now) {
				o.mu.Unlock()
				continue
			}
			reward, ok := new(big.Int).SetString(config.AevumDefaultBlockReward, 10)
			if !ok {
				o.mu.Unlock()
				o.logger.Errorf("[node] malformed Aevum epoch reward constant")
				continue
			}
			rewards, err := o.epochController.Settle(reward)
			if err == nil {
				err = o.epochController.ElectAndSchedule(now)
			}
			o.mu.Unlock()

			if err != nil {
				o.logger.Errorf("[node] Aevum epoch settlement failed: %v", err)
				continue
			}
			o.logger.Infof("[node] Aevum epoch settled, %d validators rewarded", len(rewards))
		}
	}
}

func (o *Orchestrator) announceStatus(ctx context.Context) {
	status := p2p.StatusAnnouncement{
		NodeID:      o.net.HostID().String(),
		ChainHeight: o.bondChain.Height(),
		PeerCount:   o.peers.Len(),
		NodeMode:    string(o.config.Mode),
		Uptime:      time.Since(o.startTime),
	}

	payload, err := p2p.EncodePayload(status)
	if err != nil {
		o.logger.Errorf("[node] failed to encode status announcement: %v", err)
		return
	}

	env := p2p.Envelope{Kind: p2p.KindStatusAnnouncement, Chain: p2p.ChainBond, Payload: payload}
	if err := o.net.Publish(ctx, p2p.TopicSync, env); err != nil {
		o.logger.Errorf("[node] failed to publish status announcement: %v", err)
	}
}

// miningLoop continuously mines new Bond blocks on top of the
// canonical tip, broadcasting each success before mining the next.
func (o *Orchestrator) miningLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		o.mu.Lock()
		tip := o.bondChain.LatestBlock()
		height := o.bondChain.Height() + 1
		reward := o.bondChain.BlockReward(height)
		difficulty := o.bondChain.NextDifficulty()
		o.mu.Unlock()

		result, err := o.bondMiner.MineBlock(ctx, tip.Hash(), height, reward, difficulty, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Errorf("[node] mining attempt failed: %v", err)
			continue
		}

		o.mu.Lock()
		err = o.bondChain.AddBlock(result.Block)
		o.mu.Unlock()
		if err != nil {
			o.logger.Errorf("[node] mined block rejected by own chain: %v", err)
			continue
		}

		o.logger.Infof("[node] mined block at height %d in %d attempts", height, result.Attempts)
		o.broadcastBlock(ctx, result.Block)
	}
}

func (o *Orchestrator) broadcastBlock(ctx context.Context, b *block.Block) {
	data, err := block.Encode(b)
	if err != nil {
		o.logger.Errorf("[node] failed to encode mined block for broadcast: %v", err)
		return
	}
	payload, err := p2p.EncodePayload(data)
	if err != nil {
		o.logger.Errorf("[node] failed to encode mined block for broadcast: %v", err)
		return
	}
	env := p2p.Envelope{Kind: p2p.KindBlockBroadcast, Chain: p2p.ChainBond, Payload: payload}
	if err := o.net.Publish(ctx, p2p.TopicBlocks, env); err != nil {
		o.logger.Errorf("[node] failed to broadcast mined block: %v", err)
	}
}

// collectBlocksFrom gathers up to limit (ibdBatchSize if zero or
// larger) encoded blocks starting at fromHeight, for serving a peer's
// block or sync request.
func (o *Orchestrator) collectBlocksFrom(fromHeight uint64, limit uint32) p2p.SyncResponse {
	if limit == 0 || limit > ibdBatchSize {
		limit = ibdBatchSize
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	height := o.bondChain.Height()
	blocks := make([][]byte, 0, limit)
	for h := fromHeight; h <= height && uint32(len(blocks)) < limit; h++ {
		b, ok := o.bondChain.BlockByHeight(h)
		if !ok {
			break
		}
		data, err := block.Encode(b)
		if err != nil {
			o.logger.Errorf("[node] failed to encode block %d for sync response: %v", h, err)
			break
		}
		blocks = append(blocks, data)
	}
	return p2p.SyncResponse{Blocks: blocks, Height: height}
}

// applyReceivedBlock submits a network-received block to the Bond
// chain, reporting whether it was accepted.
func (o *Orchestrator) applyReceivedBlock(b *block.Block, from peer.ID) bool {
	o.mu.Lock()
	err := o.bondChain.AddBlock(b)
	o.mu.Unlock()
	if err != nil {
		o.logger.Debugf("[node] rejecting block from %s: %v", from, err)
		return false
	}
	height, _ := b.Height()
	o.logger.Infof("[node] accepted block at height %d from %s", height, from)
	return true
}

// applyReceivedBlocks decodes and applies a batch of blocks in order,
// stopping at the first one the chain rejects (later blocks in the
// batch would extend it anyway).
func (o *Orchestrator) applyReceivedBlocks(encoded [][]byte, from peer.ID) {
	for _, data := range encoded {
		b, err := block.Decode(data)
		if err != nil {
			o.logger.Errorf("[node] failed to decode synced block from %s: %v", from, err)
			return
		}
		if !o.applyReceivedBlock(b, from) {
			return
		}
	}
}

func (o *Orchestrator) handleBlocksTopic(ctx context.Context, env p2p.Envelope, from peer.ID) {
	switch env.Kind {
	case p2p.KindBlockRequest:
		var req p2p.BlockRequest
		if err := p2p.DecodePayload(env.Payload, &req); err != nil {
			o.logger.Errorf("[node] malformed block request from %s: %v", from, err)
			return
		}
		o.logger.Debugf("[node] block request %s from %s starting at height %d", env.RequestID, from, req.FromHeight)

		resp := o.collectBlocksFrom(req.FromHeight, req.Limit)
		if len(resp.Blocks) == 0 {
			return
		}
		payload, err := p2p.EncodePayload(resp)
		if err != nil {
			o.logger.Errorf("[node] failed to encode block response: %v", err)
			return
		}
		respEnv := p2p.Envelope{Kind: p2p.KindBlockResponse, Chain: p2p.ChainBond, RequestID: env.RequestID, Payload: payload}
		if err := o.net.Publish(ctx, p2p.TopicBlocks, respEnv); err != nil {
			o.logger.Errorf("[node] failed to publish block response: %v", err)
		}

	case p2p.KindBlockResponse:
		var resp p2p.SyncResponse
		if err := p2p.DecodePayload(env.Payload, &resp); err != nil {
			o.logger.Errorf("[node] malformed block response from %s: %v", from, err)
			return
		}
		o.logger.Debugf("[node] received %d blocks from %s (request %s)", len(resp.Blocks), from, env.RequestID)
		o.applyReceivedBlocks(resp.Blocks, from)

	case p2p.KindBlockBroadcast:
		var data []byte
		if err := p2p.DecodePayload(env.Payload, &data); err != nil {
			o.logger.Errorf("[node] malformed block broadcast from %s: %v", from, err)
			return
		}
		b, err := block.Decode(data)
		if err != nil {
			o.logger.Errorf("[node] failed to decode broadcast block from %s: %v", from, err)
			return
		}
		o.applyReceivedBlock(b, from)
	}
}

// executeAevumTransactions applies, in nonce order, every pending
// Aevum transaction from sender that is now an unbroken continuation
// of its on-chain nonce, stopping at the first execution failure so a
// later nonce is never applied out of order.
func (o *Orchestrator) executeAevumTransactions(sender state.Address) {
	nonce := uint64(0)
	if acct, ok := o.aevumState.Account(sender); ok {
		nonce = acct.Nonce
	}

	for _, t := range o.aevumMempool.Executable(sender, nonce) {
		if err := o.aevumExecutor.Apply(t); err != nil {
			o.logger.Debugf("[node] aevum transaction execution failed: %v", err)
			return
		}
		o.aevumMempool.Remove(t.From, t.Nonce)
	}
}

func (o *Orchestrator) handleTransactionsTopic(ctx context.Context, env p2p.Envelope, from peer.ID) {
	switch env.Chain {
	case p2p.ChainBond:
		var t tx.Transaction
		if err := p2p.DecodePayload(env.Payload, &t); err != nil {
			o.logger.Debugf("[node] dropping malformed bond transaction from %s: %v", from, err)
			return
		}

		o.mu.Lock()
		err := o.bondChain.ValidateTransaction(&t)
		o.mu.Unlock()
		if err != nil {
			o.logger.Debugf("[node] dropping bond transaction rejected by validation: %v", err)
		}

	case p2p.ChainAevum:
		var t aevumtx.Transaction
		if err := p2p.DecodePayload(env.Payload, &t); err != nil {
			o.logger.Debugf("[node] dropping malformed aevum transaction from %s: %v", from, err)
			return
		}

		o.mu.Lock()
		err := o.aevumMempool.Add(&t)
		if err == nil {
			o.executeAevumTransactions(t.From)
		}
		o.mu.Unlock()
		if err != nil {
			o.logger.Debugf("[node] dropping aevum transaction rejected by mempool admission: %v", err)
		}
	}
}

func (o *Orchestrator) handleSyncTopic(ctx context.Context, env p2p.Envelope, from peer.ID) {
	switch env.Kind {
	case p2p.KindStatusAnnouncement:
		var status p2p.StatusAnnouncement
		if err := p2p.DecodePayload(env.Payload, &status); err != nil {
			o.logger.Errorf("[node] malformed status announcement from %s: %v", from, err)
			return
		}

		o.peers.Set(status.NodeID, p2p.PeerInfo{
			NodeID:      status.NodeID,
			Address:     from.String(),
			NodeMode:    status.NodeMode,
			LastSeen:    time.Now(),
			ChainHeight: status.ChainHeight,
		}, ttlcache.DefaultTTL)

		o.mu.Lock()
		localHeight := o.bondChain.Height()
		o.mu.Unlock()

		if status.ChainHeight > localHeight {
			o.requestSync(ctx, localHeight)
		}

	case p2p.KindSyncRequest:
		var req p2p.SyncRequest
		if err := p2p.DecodePayload(env.Payload, &req); err != nil {
			o.logger.Errorf("[node] malformed sync request from %s: %v", from, err)
			return
		}
		o.mu.Lock()
		localHeight := o.bondChain.Height()
		o.mu.Unlock()
		if localHeight <= req.ChainHeight {
			return
		}
		o.logger.Debugf("[node] peer %s behind at height %d, we are at %d", from, req.ChainHeight, localHeight)

		resp := o.collectBlocksFrom(req.ChainHeight+1, ibdBatchSize)
		if len(resp.Blocks) == 0 {
			return
		}
		payload, err := p2p.EncodePayload(resp)
		if err != nil {
			o.logger.Errorf("[node] failed to encode sync response: %v", err)
			return
		}
		respEnv := p2p.Envelope{Kind: p2p.KindSyncResponse, Chain: p2p.ChainBond, RequestID: env.RequestID, Payload: payload}
		if err := o.net.Publish(ctx, p2p.TopicSync, respEnv); err != nil {
			o.logger.Errorf("[node] failed to publish sync response: %v", err)
		}

	case p2p.KindSyncResponse:
		var resp p2p.SyncResponse
		if err := p2p.DecodePayload(env.Payload, &resp); err != nil {
			o.logger.Errorf("[node] malformed sync response from %s: %v", from, err)
			return
		}
		o.logger.Debugf("[node] received sync response from %s with %d blocks", from, len(resp.Blocks))
		o.applyReceivedBlocks(resp.Blocks, from)
	}
}

// requestSync asks peers for blocks starting at localHeight+1, in
// batches of ibdBatchSize, as part of Initial Block Download.
func (o *Orchestrator) requestSync(ctx context.Context, localHeight uint64) {
	req := p2p.BlockRequest{FromHeight: localHeight + 1, Limit: ibdBatchSize}
	payload, err := p2p.EncodePayload(req)
	if err != nil {
		o.logger.Errorf("[node] failed to encode block request: %v", err)
		return
	}
	env := p2p.Envelope{Kind: p2p.KindBlockRequest, Chain: p2p.ChainBond, RequestID: p2p.NewRequestID(), Payload: payload}
	if err := o.net.Publish(ctx, p2p.TopicBlocks, env); err != nil {
		o.logger.Errorf("[node] failed to publish block request: %v", err)
	}
}

// Peers returns a snapshot of every peer the orchestrator currently
// tracks. Entries not refreshed by a status announcement within
// peerExpiry are evicted automatically.
func (o *Orchestrator) Peers() []p2p.PeerInfo {
	items := o.peers.Items()
	peers := make([]p2p.PeerInfo, 0, len(items))
	for _, item := range items {
		peers = append(peers, item.Value())
	}
	return peers
}

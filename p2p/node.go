// Package p2p implements the gossip network shared by both ledgers: a
// libp2p host running GossipSub over per-network topics, with mDNS and
// Kademlia-DHT peer discovery plus a static bootstrap list. Grounded on
// the teacher's util/p2p/P2PNode.go, generalized from a single
// "bitcoin" protocol/topic set to Aevum-Bond's blocks/transactions/sync
// topics namespaced per network ID, and from the teacher's disk-backed
// Ed25519 identity to a fresh-per-process one (this stack's node
// identity is the libp2p peer ID, not a chain key, so persisting it
// across restarts is not yet a requirement any SPEC_FULL.md operation
// depends on).
package p2p

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	dRouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dUtil "github.com/libp2p/go-libp2p/p2p/discovery/util"
	mdnsDiscovery "github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"

	nodeerrors "github.com/aevum-bond/node/errors"
	"github.com/aevum-bond/node/log"
)

// Handler processes one decoded gossip message from a topic.
type Handler func(ctx context.Context, env Envelope, from peer.ID)

// Config controls how a Node binds and discovers peers. It mirrors
// config.Config's network-facing fields rather than importing that
// package directly, so p2p stays usable independent of the node's full
// configuration surface.
type Config struct {
	ListenAddr  string
	Port        uint16
	NetworkID   string
	Bootstrap   []string
	DisableMDNS bool
	Advertise   bool
}

// Node is one libp2p-backed gossip participant shared by both chains.
type Node struct {
	config         Config
	host           host.Host
	pubSub         *pubsub.PubSub
	topics         map[string]*pubsub.Topic
	handlerByTopic map[string]Handler
	logger         log.Logger
	startTime      time.Time

	mu sync.Mutex
}

// New creates a libp2p host bound to config.ListenAddr:config.Port with
// a freshly generated Ed25519 identity.
func New(logger log.Logger, config Config) (*Node, error) {
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, nodeerrors.NewConfigurationError("p2p: failed to generate host identity", err)
	}

	h, err := libp2p.New(
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/%s/tcp/%d", config.ListenAddr, config.Port)),
		libp2p.Identity(priv),
	)
	if err != nil {
		return nil, nodeerrors.NewNetworkError("p2p: failed to create libp2p host", err)
	}

	logger.Infof("[p2p] peer ID: %s", h.ID().String())
	for _, addr := range h.Addrs() {
		logger.Infof("[p2p] listening on %s/p2p/%s", addr, h.ID().String())
	}

	return &Node{
		config:         config,
		host:           h,
		logger:         logger,
		handlerByTopic: make(map[string]Handler),
		topics:         make(map[string]*pubsub.Topic),
		startTime:      time.Now(),
	}, nil
}

// HostID returns the node's libp2p peer ID.
func (n *Node) HostID() peer.ID {
	return n.host.ID()
}

// Start joins the blocks/transactions/sync topics under the node's
// network ID, begins peer discovery, and connects any configured
// static bootstrap peers.
func (n *Node) Start(ctx context.Context) error {
	n.logger.Infof("[p2p] starting")

	topicNames := []string{TopicBlocks, TopicTransactions, TopicSync}

	ps, err := pubsub.NewGossipSub(ctx, n.host)
	if err != nil {
		return nodeerrors.NewNetworkError("p2p: failed to start gossipsub", err)
	}
	n.pubSub = ps

	for _, name := range topicNames {
		topic, err := ps.Join(topicName(n.config.NetworkID, name))
		if err != nil {
			return nodeerrors.NewNetworkError("p2p: failed to join topic %s", name, err)
		}
		n.topics[name] = topic
	}

	if len(n.config.Bootstrap) > 0 {
		go n.connectBootstrapPeers(ctx)
	}

	if !n.config.DisableMDNS {
		if err := n.startMDNS(); err != nil {
			n.logger.Errorf("[p2p] mdns discovery unavailable: %v", err)
		}
	}

	go func() {
		if err := n.discoverPeers(ctx, topicNames); err != nil {
			n.logger.Errorf("[p2p] peer discovery stopped: %v", err)
		}
	}()

	return nil
}

// Subscribe registers handler for every message published on topic,
// decoding each as an Envelope before dispatch.
func (n *Node) Subscribe(ctx context.Context, topic string, handler Handler) error {
	n.mu.Lock()
	if _, exists := n.handlerByTopic[topic]; exists {
		n.mu.Unlock()
		return nodeerrors.NewNetworkError("p2p: handler already registered for topic %s", topic)
	}
	n.handlerByTopic[topic] = handler
	t := n.topics[topic]
	n.mu.Unlock()

	if t == nil {
		return nodeerrors.NewNetworkError("p2p: topic %s was not joined", topic)
	}

	sub, err := t.Subscribe()
	if err != nil {
		return nodeerrors.NewNetworkError("p2p: failed to subscribe to topic %s", topic, err)
	}

	go func() {
		for {
			msg, err := sub.Next(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				n.logger.Errorf("[p2p] error reading from topic %s: %v", topic, err)
				continue
			}

			env, err := DecodeEnvelope(msg.Data)
			if err != nil {
				n.logger.Errorf("[p2p] malformed message on topic %s: %v", topic, err)
				continue
			}

			handler(ctx, env, msg.ReceivedFrom)
		}
	}()

	return nil
}

// Publish broadcasts env on topic to every subscribed peer.
func (n *Node) Publish(ctx context.Context, topic string, env Envelope) error {
	t := n.topics[topic]
	if t == nil {
		return nodeerrors.NewNetworkError("p2p: topic %s was not joined", topic)
	}

	data, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}

	if err := t.Publish(ctx, data); err != nil {
		return nodeerrors.NewNetworkError("p2p: publish failed on topic %s", topic, err)
	}
	return nil
}

func (n *Node) connectBootstrapPeers(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		allConnected := true
		for _, addr := range n.config.Bootstrap {
			info, err := peer.AddrInfoFromP2pAddr(multiaddr.StringCast(addr))
			if err != nil {
				n.logger.Errorf("[p2p] invalid bootstrap address %s: %v", addr, err)
				continue
			}
			if n.host.Network().Connectedness(info.ID) == network.Connected {
				continue
			}
			if err := n.host.Connect(ctx, *info); err != nil {
				allConnected = false
				n.logger.Debugf("[p2p] failed to connect to bootstrap peer %s: %v", addr, err)
				continue
			}
			n.logger.Infof("[p2p] connected to bootstrap peer %s", addr)
		}

		if allConnected {
			time.Sleep(30 * time.Second)
		} else {
			time.Sleep(5 * time.Second)
		}
	}
}

func (n *Node) startMDNS() error {
	svc := mdnsDiscovery.NewMdnsService(n.host, n.config.NetworkID, mdnsNotifee{node: n})
	return svc.Start()
}

type mdnsNotifee struct {
	node *Node
}

func (m mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == m.node.host.ID() {
		return
	}
	if err := m.node.host.Connect(context.Background(), info); err != nil {
		m.node.logger.Debugf("[p2p] mdns peer %s unreachable: %v", info.ID, err)
	}
}

func (n *Node) discoverPeers(ctx context.Context, topicNames []string) error {
	kademliaDHT, err := dht.New(ctx, n.host, dht.Mode(dht.ModeAutoServer))
	if err != nil {
		return nodeerrors.NewNetworkError("p2p: failed to create dht", err)
	}
	if err := kademliaDHT.Bootstrap(ctx); err != nil {
		return nodeerrors.NewNetworkError("p2p: failed to bootstrap dht", err)
	}

	routingDiscovery := dRouting.NewRoutingDiscovery(kademliaDHT)

	if n.config.Advertise {
		for _, name := range topicNames {
			dUtil.Advertise(ctx, routingDiscovery, topicName(n.config.NetworkID, name))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		var wg sync.WaitGroup
		wg.Add(len(topicNames))
		for _, name := range topicNames {
			go func(name string) {
				defer wg.Done()

				addrs, err := routingDiscovery.FindPeers(ctx, topicName(n.config.NetworkID, name))
				if err != nil {
					n.logger.Debugf("[p2p] discovery error on %s: %v", name, err)
					return
				}
				for addr := range addrs {
					if addr.ID == n.host.ID() {
						continue
					}
					if n.host.Network().Connectedness(addr.ID) == network.Connected {
						continue
					}
					if err := n.host.Connect(ctx, addr); err != nil {
						n.logger.Debugf("[p2p] failed to connect to discovered peer %s: %v", addr.ID, err)
					}
				}
			}(name)
		}
		wg.Wait()

		time.Sleep(5 * time.Second)
	}
}

// Close shuts down the underlying libp2p host.
func (n *Node) Close() error {
	return n.host.Close()
}

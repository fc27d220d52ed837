// Package config centralizes the node's runtime settings: Default supplies
// the built-in values and CLI flags (see cmd/aevumbond) override them once
// at startup, the way the teacher centralizes per-service settings.
package config

import "time"

// Bond chain constants that are part of the externally visible contract
// (spec §6).
const (
	BondMaxBlockSizeBytes   = 4_000_000
	BondCoinbaseMaturity    = 100
	BondTargetBlockTime     = 600 * time.Second
	BondAdjustmentPeriod    = 2016
	BondInitialRewardBase   = 5_000
	BondDifficultyCapBits   = 32
	BondMinDifficultyBits   = 1
	BondCoinbaseSequence    = 0xFFFFFFFF
)

// Aevum chain constants (spec §6).
const (
	AevumChainID            = 1001
	AevumSlotTime            = 3 * time.Second
	AevumDefaultEpochLength  = 2160
	AevumDefaultMaxValidators = 21
	AevumMinValidatorStake   = 1_000
	AevumUnstakeDelayEpochs  = 7
	AevumDefaultBlockReward  = "1000000000000000000" // 10^18 wei
	AevumDefaultMinGasPrice  = "1000000000"          // 10^9 wei
)

// AevumMagicBytes identifies Aevum blocks on the wire.
var AevumMagicBytes = [4]byte{0x41, 0x45, 0x56, 0x4D}

// DefaultNetworkID namespaces gossip topics when none is configured.
const DefaultNetworkID = "aevum-bond-testnet"

// NodeMode selects the orchestrator's default behavior; it never changes
// protocol rules, only which subsystems are started and with what
// defaults.
type NodeMode string

const (
	ModeFullNode  NodeMode = "full"
	ModeMining    NodeMode = "mining"
	ModeWallet    NodeMode = "wallet"
	ModeBootstrap NodeMode = "bootstrap"
)

type WalletSyncMode string

const (
	SyncFull WalletSyncMode = "full"
	SyncFast WalletSyncMode = "fast"
	SyncSPV  WalletSyncMode = "spv"
)

// Config is the fully resolved configuration for one node process.
type Config struct {
	Mode NodeMode

	Port           uint16
	ListenAddr     string
	Bootstrap      []string
	ExternalIP     string
	MaxPeers       int
	DisableMDNS    bool
	NetworkID      string
	LogLevel       string

	MiningThreads    int
	TargetDifficulty uint32
	PayoutScript     []byte

	WalletSyncMode WalletSyncMode

	ConnectionTimeout time.Duration
}

// Default returns a Config with the spec's documented defaults.
func Default() *Config {
	return &Config{
		Mode:              ModeFullNode,
		Port:              0,
		ListenAddr:        "0.0.0.0",
		MaxPeers:          50,
		NetworkID:         DefaultNetworkID,
		LogLevel:          "info",
		MiningThreads:     1,
		TargetDifficulty:  BondMinDifficultyBits,
		WalletSyncMode:    SyncFull,
		ConnectionTimeout: 30 * time.Second,
	}
}

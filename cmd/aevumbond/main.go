// Command aevumbond is the orchestrator's process entry point: it
// parses CLI flags with urfave/cli, resolves a config.Config, and
// either runs a local self-test, a post-quantum signature demo, or a
// full gossiping node until SIGINT. Grounded on the teacher's
// gocore/urfave-cli-driven service entry points (one subcommand per
// runnable mode, flags feeding a single settings struct).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/aevum-bond/node/bond/chain"
	"github.com/aevum-bond/node/bond/miner"
	"github.com/aevum-bond/node/config"
	"github.com/aevum-bond/node/log"
	"github.com/aevum-bond/node/node"
	"github.com/aevum-bond/node/pqc"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:  "aevumbond",
		Usage: "Bond/Aevum node orchestrator",
		Commands: []*cli.Command{
			demoCommand(),
			demoPQCCommand(),
			startNodeCommand(),
			networkCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func demoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "mine a handful of Bond blocks locally and print chain stats",
		Action: func(c *cli.Context) error {
			logger := log.New("aevumbond-demo")

			bc, err := chain.New(chain.DefaultNetworkParams(), []byte("demo-payout"))
			if err != nil {
				return err
			}

			m := miner.New(miner.Config{RewardScript: []byte("demo-payout"), Threads: 1})

			for i := 0; i < 3; i++ {
				tip := bc.LatestBlock()
				height := bc.Height() + 1
				result, err := m.MineBlock(c.Context, tip.Hash(), height, bc.BlockReward(height), bc.NextDifficulty(), nil)
				if err != nil {
					return err
				}
				if err := bc.AddBlock(result.Block); err != nil {
					return err
				}
				logger.Infof("[demo] mined block %d in %d attempts", height, result.Attempts)
			}

			stats := bc.Stats()
			logger.Infof("[demo] final height=%d total_supply=%d total_utxos=%d", stats.Height, stats.TotalSupply, stats.TotalUtxos)
			return nil
		},
	}
}

func demoPQCCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo-pqc",
		Usage: "generate an ML-DSA-65 keypair and demonstrate sign/verify",
		Action: func(c *cli.Context) error {
			logger := log.New("aevumbond-demo-pqc")

			kp, err := pqc.GenerateKeypair()
			if err != nil {
				return err
			}
			defer kp.Destroy()

			message := []byte("aevum-bond post-quantum signature demo")
			sig, err := kp.Sign(message)
			if err != nil {
				return err
			}

			ok, err := sig.Verify(message)
			if err != nil {
				return err
			}

			logger.Infof("[demo-pqc] algorithm=%s verified=%t public_key_bytes=%d", sig.Algorithm, ok, len(kp.Public.Bytes()))
			return nil
		},
	}
}

func startNodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "start-node",
		Usage: "run a full gossiping node until interrupted",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "port", Value: 0, Usage: "listen port (0 = ephemeral)"},
			&cli.StringFlag{Name: "listen", Value: "0.0.0.0", Usage: "listen address"},
			&cli.StringSliceFlag{Name: "bootstrap", Usage: "bootstrap peer multiaddrs"},
			&cli.StringFlag{Name: "mode", Value: "full", Usage: "full|mining|wallet|bootstrap"},
			&cli.IntFlag{Name: "mining-threads", Value: 1},
			&cli.UintFlag{Name: "difficulty", Value: config.BondMinDifficultyBits},
			&cli.StringFlag{Name: "external-ip"},
			&cli.IntFlag{Name: "max-peers", Value: 50},
			&cli.BoolFlag{Name: "no-mdns"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "trace|debug|info|warn|error"},
		},
		Action: func(c *cli.Context) error {
			cfg := config.Default()
			cfg.Port = uint16(c.Uint("port"))
			cfg.ListenAddr = c.String("listen")
			cfg.Bootstrap = c.StringSlice("bootstrap")
			cfg.Mode = config.NodeMode(c.String("mode"))
			cfg.MiningThreads = c.Int("mining-threads")
			cfg.TargetDifficulty = uint32(c.Uint("difficulty"))
			cfg.ExternalIP = c.String("external-ip")
			cfg.MaxPeers = c.Int("max-peers")
			cfg.DisableMDNS = c.Bool("no-mdns")
			cfg.LogLevel = c.String("log-level")

			logger := log.New("aevumbond", cfg.LogLevel)

			orch, err := node.New(cfg, logger, []byte("aevum-bond-node-payout"))
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger.Infof("[start-node] mode=%s port=%d network=%s", cfg.Mode, cfg.Port, cfg.NetworkID)
			return orch.Run(ctx)
		},
	}
}

func networkCommand() *cli.Command {
	return &cli.Command{
		Name:  "network",
		Usage: "inspect a running node (not yet wired to a remote RPC endpoint)",
		Subcommands: []*cli.Command{
			{
				Name:  "status",
				Usage: "report that chain height and peer count need a running node's RPC endpoint",
				Action: func(c *cli.Context) error {
					fmt.Println("network status requires a running node's RPC endpoint, which is out of scope for this core")
					return nil
				},
			},
			{
				Name:  "peers",
				Usage: "report that the peer list needs a running node's RPC endpoint",
				Action: func(c *cli.Context) error {
					fmt.Println("network peers requires a running node's RPC endpoint, which is out of scope for this core")
					return nil
				},
			},
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print the build version",
		Action: func(c *cli.Context) error {
			fmt.Println(version)
			return nil
		},
	}
}

package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"

	"shield/shield-pool/config"
	"shield/shield-pool/hasher"
	"shield/shield-pool/logging"
	merkletree "shield/shield-pool/merkle-tree"
	"shield/shield-pool/pool"
	"shield/shield-pool/server"
	"shield/shield-pool/verifier"
)

func main() {
	runCli()
}

func runCli() {
	app := cli.App{
		Name:                 "shield-pool",
		Usage:                "fixed-denomination shielded pool with anonymous withdrawals",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Run the pool service",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Usage: "TOML configuration file", Required: false},
					&cli.BoolFlag{Name: "json-logging", Usage: "enable JSON logging", Required: false},
					&cli.StringFlag{Name: "listen-address", Usage: "address for the pool API", Required: false},
					&cli.StringFlag{Name: "metrics-address", Usage: "address for the metrics server", Required: false},
					&cli.UintFlag{Name: "levels", Usage: "merkle tree height (1-31)", Required: false},
					&cli.StringFlag{Name: "denomination", Usage: "fixed deposit amount (decimal)", Required: false},
					&cli.StringFlag{Name: "policy", Usage: "asset policy (\"native\" / \"token\")", Required: false},
					&cli.StringFlag{Name: "vkey", Usage: "groth16 verifying key file", Required: false},
				},
				Action: func(context *cli.Context) error {
					cfg, err := loadConfig(context)
					if err != nil {
						return err
					}
					if cfg.JSONLogging {
						logging.SetJSONOutput()
					}

					ledger, err := buildLedger(cfg)
					if err != nil {
						return err
					}
					logging.Logger().Info().
						Uint32("levels", cfg.Levels).
						Str("denomination", cfg.Denomination).
						Str("policy", cfg.Policy).
						Msg("pool configured")

					serverConfig := server.Config{
						PoolAddress:    cfg.ListenAddress,
						MetricsAddress: cfg.MetricsAddress,
					}
					instance := server.Run(&serverConfig, ledger)
					sigint := make(chan os.Signal, 1)
					signal.Notify(sigint, os.Interrupt)
					<-sigint
					logging.Logger().Info().Msg("Received sigint, shutting down")
					instance.RequestStop()
					logging.Logger().Info().Msg("Waiting for server to close")
					instance.AwaitStop()
					return nil
				},
			},
			{
				Name:  "zeros",
				Usage: "Print the empty-subtree hash table",
				Action: func(*cli.Context) error {
					zeros, err := merkletree.ComputeZeroHashes(hasher.NewMimcSponge())
					if err != nil {
						return err
					}
					for level, zero := range zeros {
						fmt.Printf("%2d %#066x\n", level, zero)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logging.Logger().Fatal().Err(err).Msg("App failed.")
	}
}

func loadConfig(context *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if file := context.String("config"); file != "" {
		loaded, err := config.ReadConfig(file)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if context.Bool("json-logging") {
		cfg.JSONLogging = true
	}
	if addr := context.String("listen-address"); addr != "" {
		cfg.ListenAddress = addr
	}
	if addr := context.String("metrics-address"); addr != "" {
		cfg.MetricsAddress = addr
	}
	if levels := context.Uint("levels"); levels != 0 {
		cfg.Levels = uint32(levels)
	}
	if denomination := context.String("denomination"); denomination != "" {
		cfg.Denomination = denomination
	}
	if policy := context.String("policy"); policy != "" {
		cfg.Policy = policy
	}
	if vkey := context.String("vkey"); vkey != "" {
		cfg.VerifyingKeyPath = vkey
	}
	return cfg, cfg.Validate()
}

func buildLedger(cfg config.Config) (*pool.Ledger, error) {
	denomination, err := cfg.DenominationAmount()
	if err != nil {
		return nil, err
	}
	poolAddress, err := pool.HexToAddress(cfg.PoolAddress)
	if err != nil {
		return nil, err
	}
	if cfg.VerifyingKeyPath == "" {
		return nil, fmt.Errorf("a verifying key file is required")
	}
	vk, err := verifier.LoadVerifyingKey(cfg.VerifyingKeyPath)
	if err != nil {
		return nil, err
	}

	bank := pool.NewBank()
	var policy pool.AssetTransferPolicy
	switch cfg.Policy {
	case config.PolicyNative:
		policy = pool.NewNativePolicy(bank, poolAddress, denomination)
	case config.PolicyToken:
		policy = pool.NewTokenPolicy(bank, poolAddress, denomination)
	default:
		return nil, fmt.Errorf("invalid policy %q", cfg.Policy)
	}

	return pool.NewLedger(
		pool.Config{Levels: cfg.Levels, Denomination: denomination},
		hasher.NewMimcSponge(),
		verifier.NewGroth16Verifier(vk),
		policy,
	)
}

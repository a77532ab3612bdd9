package main

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rubyscore/internal/logging"
	"rubyscore/internal/networks"
)

type rootOptions struct {
	envFile  string
	overlay  string
	logLevel string

	logger   *zap.Logger
	registry *networks.Registry
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "rubyscore",
		Short:         "Rubyscore deposit contract tooling",
		Long:          "Deploy the Rubyscore_Deposit contract, sign and verify claims, and inspect accounts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", opts.envFile, err)
			}
			logger, err := logging.New(logging.Config{Level: opts.logLevel})
			if err != nil {
				return err
			}
			opts.logger = logger.Named("cli")

			opts.registry = networks.Default()
			if opts.overlay != "" {
				if err := opts.registry.LoadOverlay(opts.overlay); err != nil {
					return err
				}
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before running")
	cmd.PersistentFlags().StringVar(&opts.overlay, "overlay", os.Getenv("NETWORKS_OVERLAY"), "YAML file merged over the built-in networks")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	cmd.AddCommand(
		newNetworksCmd(opts),
		newDeployCmd(opts),
		newSignClaimCmd(opts),
		newVerifyClaimCmd(opts),
		newAccountCmd(opts),
	)
	return cmd
}

// network resolves name against the registry and expands its RPC URL. An
// explicit rpc overrides the registry.
func (o *rootOptions) network(name, rpc string) (networks.Network, error) {
	if name == "" {
		if rpc == "" {
			return networks.Network{}, errors.New("--network or --rpc is required")
		}
		return networks.Network{Name: "custom", RPCURL: rpc}, nil
	}
	n, err := o.registry.Lookup(name)
	if err != nil {
		return networks.Network{}, err
	}
	if rpc != "" {
		n.RPCURL = rpc
		return n, nil
	}
	return n.Resolve(os.LookupEnv)
}

// chainID picks the explicit flag, then the network's id.
func (o *rootOptions) chainID(name string, flag uint64) (*big.Int, error) {
	if flag != 0 {
		return new(big.Int).SetUint64(flag), nil
	}
	if name == "" {
		return nil, errors.New("--network or --chain-id is required")
	}
	n, err := o.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	if n.ChainID == 0 {
		return nil, fmt.Errorf("network %s has no fixed chain id, pass --chain-id", n.Name)
	}
	return new(big.Int).SetUint64(n.ChainID), nil
}

func envKey(flag string, names ...string) string {
	if flag != "" {
		return flag
	}
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

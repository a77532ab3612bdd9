package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rubyscore/internal/config"
	"rubyscore/internal/deposit"
	"rubyscore/internal/networks"
)

func newDeployCmd(opts *rootOptions) *cobra.Command {
	var (
		network  string
		rpc      string
		artifact string
		admin    string
		operator string
		out      string
		keyHex   string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy Rubyscore_Deposit from a Hardhat artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := opts.network(network, rpc)
			if err != nil {
				return err
			}
			key := envKey(keyHex, "CHAIN_PRIVATE_KEY")
			if key == "" {
				return errors.New("--private-key or CHAIN_PRIVATE_KEY is required")
			}
			adminAddr, err := addressFlag("admin", admin)
			if err != nil {
				return err
			}
			operatorAddr, err := addressFlag("operator", operator)
			if err != nil {
				return err
			}
			art, err := deposit.LoadArtifact(artifact)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			opts.logger.Info("deploying",
				zap.String("network", n.Name),
				zap.String("admin", adminAddr.Hex()),
				zap.String("operator", operatorAddr.Hex()))
			d, err := deposit.Deploy(ctx, deposit.DeployConfig{RPCURL: n.RPCURL, PrivateKeyHex: key}, art, adminAddr, operatorAddr)
			if err != nil {
				return err
			}

			if network == "" {
				if known, err := opts.registry.ByChainID(d.ChainID.Uint64()); err == nil {
					n.Name, n.Explorer = known.Name, known.Explorer
				}
			}

			deployer, err := deployerAddress(key)
			if err != nil {
				return err
			}
			record := config.DeploymentConfig{
				Network:  n.Name,
				ChainID:  d.ChainID.Int64(),
				Deployer: deployer.Hex(),
				Admin:    d.Admin.Hex(),
				Operator: d.Operator.Hex(),
				TxHash:   d.TxHash.Hex(),
				Block:    d.Block,
			}
			record.Contracts.RubyscoreDeposit = d.Address.Hex()
			if out != "" {
				if err := config.SaveDeployments(out, record); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Rubyscore_Deposit deployed to %s\n", d.Address.Hex())
			fmt.Fprintf(w, "tx %s (block %d, chain %s)\n", d.TxHash.Hex(), d.Block, d.ChainID)
			printExplorer(cmd, n, d.Address, d.TxHash)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&network, "network", "", "network name from the registry")
	f.StringVar(&rpc, "rpc", "", "RPC URL, overrides the network's")
	f.StringVar(&artifact, "artifact", "artifacts/contracts/Rubyscore_Deposit.sol/Rubyscore_Deposit.json", "Hardhat artifact")
	f.StringVar(&admin, "admin", networks.DefaultAdmin, "DEFAULT_ADMIN_ROLE holder")
	f.StringVar(&operator, "operator", networks.DefaultOperator, "OPERATOR_ROLE holder")
	f.StringVar(&out, "out", "deployments.json", "where to record the deployment, empty to skip")
	f.StringVar(&keyHex, "private-key", "", "deployer key, defaults to CHAIN_PRIVATE_KEY")
	f.DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for the deployment to be mined")
	return cmd
}

func printExplorer(cmd *cobra.Command, n networks.Network, addr common.Address, tx common.Hash) {
	if u := n.Explorer.AddressURL(addr); u != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "explorer %s\n", u)
	}
	if u := n.Explorer.TxURL(tx); u != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "         %s\n", u)
	}
}

func addressFlag(name, v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("--%s %q is not an address", name, v)
	}
	return common.HexToAddress(v), nil
}

func deployerAddress(keyHex string) (common.Address, error) {
	key, err := deposit.ParsePrivateKey(keyHex)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

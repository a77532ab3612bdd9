package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rubyscore/internal/config"
	"rubyscore/internal/deposit"
	"rubyscore/internal/units"
)

func newAccountCmd(opts *rootOptions) *cobra.Command {
	var (
		network     string
		rpc         string
		contract    string
		address     string
		deployments string
	)
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show an account's deposit and claim nonce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := addressFlag("address", address)
			if err != nil {
				return err
			}
			if contract == "" || network == "" {
				if d, err := config.LoadDeployments(deployments); err == nil {
					if contract == "" {
						contract = d.Contracts.RubyscoreDeposit
					}
					if network == "" && rpc == "" {
						network = d.Network
					}
				} else if !os.IsNotExist(err) {
					return err
				}
			}
			n, err := opts.network(network, rpc)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client, err := deposit.NewEthClient(ctx, deposit.EthClientConfig{RPCURL: n.RPCURL, Contract: contract})
			if err != nil {
				return err
			}
			defer client.Close()

			bal, err := client.UserDeposit(ctx, addr)
			if err != nil {
				return err
			}
			nonce, err := client.UserNonce(ctx, addr)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "address  %s\n", addr.Hex())
			fmt.Fprintf(w, "deposit  %s wei (%s ETH)\n", bal.Dec(), units.FormatEther(bal))
			fmt.Fprintf(w, "nonce    %d\n", nonce)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&network, "network", "", "network name from the registry")
	f.StringVar(&rpc, "rpc", "", "RPC URL, overrides the network's")
	f.StringVar(&contract, "contract", "", "Rubyscore_Deposit address, defaults to deployments.json")
	f.StringVar(&address, "address", "", "account to inspect")
	f.StringVar(&deployments, "deployments", "deployments.json", "deployment record")
	return cmd
}

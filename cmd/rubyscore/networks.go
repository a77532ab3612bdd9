package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newNetworksCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List known networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCHAIN ID\tRPC\tEXPLORER")
			for _, n := range opts.registry.All() {
				chainID := "-"
				if n.ChainID != 0 {
					chainID = fmt.Sprint(n.ChainID)
				}
				explorer := n.Explorer.BrowserURL
				if explorer == "" {
					explorer = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.Name, chainID, n.RPCURL, explorer)
			}
			return w.Flush()
		},
	}
}

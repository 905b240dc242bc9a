package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/leofalp/streamgate/core/gateway"
)

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			registry, _ := newRelay(cfg, nil)
			return printProviders(cmd.OutOrStdout(), registry.Providers())
		},
	}
}

func printProviders(w io.Writer, infos []gateway.ProviderInfo) error {
	table := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(table, "PROVIDER\tDEFAULT MODEL\tKEY\tDEFAULT")
	for _, info := range infos {
		key := "missing"
		if info.KeyConfigured {
			key = "set"
		}
		marker := ""
		if info.Default {
			marker = "*"
		}
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\n", info.ID, info.DefaultModel, key, marker)
	}
	return table.Flush()
}

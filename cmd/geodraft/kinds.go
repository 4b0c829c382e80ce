package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ogierm/geodraft/internal/ops"
)

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the supported operation kinds",
		Run: func(cmd *cobra.Command, _ []string) {
			reg := ops.NewRegistry(slog.New(slog.DiscardHandler))
			for _, k := range reg.Kinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}
}

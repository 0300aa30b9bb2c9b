package main

import (
	"context"

	"opensentinel/cmd/opensentinel/scan"
	"opensentinel/cmd/opensentinel/server"

	"github.com/spf13/cobra"
)

func Execute() error {
	var rootCmd = &cobra.Command{
		Use:   "opensentinel",
		Short: "A security scan orchestrator",
		Long:  `OpenSentinel orchestrates external security scanners against web targets and aggregates their findings into rated scan reports`,
	}

	rootCmd.AddCommand(scan.NewScanCommand())
	rootCmd.AddCommand(scan.NewListToolsCommand())
	rootCmd.AddCommand(server.NewServerCommand())
	return rootCmd.ExecuteContext(context.Background())
}

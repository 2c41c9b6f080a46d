// Package cmd wires the settlement engine into a cobra CLI.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	appName           = "teleswap-engine"
	defaultConfigPath = "./config/sample-config.yaml"
)

// NewRootCmd builds the command tree around a fresh AppState.
func NewRootCmd() *cobra.Command {
	a := NewAppState()

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "A cross-network settlement orchestration engine",
	}

	addAppPersistantFlags(rootCmd, a)

	rootCmd.AddCommand(
		startCmd(a),
		configShowCmd(a),
		versionCmd(),
	)

	return rootCmd
}

func Execute() {
	cobra.EnableCommandSorting = false

	rootCmd := NewRootCmd()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// listen for interrupt or terminate to gracefully shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

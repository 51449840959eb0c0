package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/levyledger/levyd/internal/node"
)

// serverCmd represents the server command (default action)
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the levyd daemon",
	Long: `Start the levyd daemon, which serves:
- the JSON-RPC API with ledger queries, transfer submission and admin methods
- websocket streams of settlement and distribution events
- an optional read-only gRPC query service
- Prometheus metrics and a health endpoint

This is the default command when no subcommand is specified.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Running levyd with no subcommand starts the daemon.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serverCmd.RunE(cmd, args)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !quiet {
		source := cfg.Path()
		if source == "" {
			source = "built-in defaults"
		}
		fmt.Printf("levyd %s starting (configuration: %s)\n", rootCmd.Version, source)
	}

	n, err := node.New(cfg, rootCmd.Version)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return n.Run(ctx)
}

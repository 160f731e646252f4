// Package cli implements the gateway's process entry point: a cobra
// root command with a "serve" subcommand (the default) that runs the
// gateway itself, plus small operator subcommands ("ban", "unban",
// "status") that are pure HTTP clients against the already-running
// gateway's admin API. This generalizes the teacher's own cli.Run
// dispatch-by-first-argument convention (internal/cli/cmd_server.go) to
// cobra, matching the pack's own CLI idiom in Sentinel Gate's
// cmd/sentinel-gate/cmd/start.go.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nullbridge/tunnelgate/internal/config"
	"github.com/nullbridge/tunnelgate/internal/gateway"
	gatewaylog "github.com/nullbridge/tunnelgate/internal/log"
)

// Run parses args and executes the resolved command, returning a
// process exit code: 0 on normal completion, 1 on fatal startup error
// (bind failure, misconfiguration), per spec.md §6.
func Run(args []string) int {
	root := newRootCommand()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "gatewayd",
		Short: "Reverse HTTP tunnel gateway",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a gateway.yaml configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway (tunnel listener + dispatch API)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configFile)
		},
	}
	root.AddCommand(serveCmd)
	root.RunE = serveCmd.RunE // "serve" is the default when no subcommand is given

	root.AddCommand(newAdminCommand(&configFile))

	return root
}

func runServe(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	logger := gatewaylog.New(cfg.LogLevel)
	gw := gateway.New(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting gateway", "tunnelAddr", cfg.TunnelAddr, "httpAddr", cfg.HTTPAddr)
	if err := gw.Run(ctx); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	return nil
}

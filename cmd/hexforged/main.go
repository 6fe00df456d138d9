package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hexforge/hexforge/internal/config"
	"github.com/hexforge/hexforge/internal/core/bridge"
	"github.com/hexforge/hexforge/internal/core/observability/log"
	"github.com/hexforge/hexforge/internal/core/registry"
	"github.com/hexforge/hexforge/internal/core/storage"
	"github.com/hexforge/hexforge/internal/provider"
	"github.com/hexforge/hexforge/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hexforged",
		Short:         "Binary document editor host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve display surfaces over websockets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := log.New(log.ParseLevel(cfg.LogLevel))
	defer logger.Sync()

	store, err := storage.NewOSStore(cfg.DataDir)
	if err != nil {
		return err
	}

	p := provider.New(store, registry.New(), bridge.New(logger), cfg.BackupDir, logger)
	srv := server.New(cfg, p, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stopCh
		logger.Info("shutting down")
		cancel()
	}()

	return srv.Run(ctx)
}

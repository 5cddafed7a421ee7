package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spot-swing-bot/internal/logger"
	"spot-swing-bot/internal/metrics"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bot",
	Short: "Spot swing trading bot",
	Long: `Scans candidate spot pairs for trend-continuation breakouts, buys admitted ones under a fixed
risk budget and sells tracked positions when their target, stop or flat gain rule fires.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scan and exit loops until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			srv := metrics.Serve(a.cfg.Metrics.Addr)
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Warn(ctx, "Metrics server shutdown failed", "error", err.Error())
				}
			}()
			logger.Info(ctx, "Bot started", "mode", a.cfg.Mode, "metrics_addr", a.cfg.Metrics.Addr)
			a.runner.Run(ctx)
			logger.Info(ctx, "Shutting down...")
			return nil
		})
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one buy cycle and print the outcomes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			outcomes, err := a.runner.ScanOnce(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, outcomes)
		})
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one exit sweep and print the report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			report, err := a.runner.ReconcileOnce(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		})
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Print the open positions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			p, err := a.ledger.Snapshot(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML configuration file")
	rootCmd.AddCommand(runCmd, scanCmd, reconcileCmd, ledgerCmd)
}

// withApp wires the components and cancels ctx on SIGINT/SIGTERM.
func withApp(parent context.Context, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.shutdown()
	return fn(ctx, a)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

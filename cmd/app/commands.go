package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"QuantLens/internal/di"
	"QuantLens/internal/domain/models"
	"QuantLens/pkg/config"
	"QuantLens/pkg/server"
)

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "quantlens",
		Short:         "Adaptive market-intelligence engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(trainCmd(&configPath))
	return root
}

func buildApp(configPath string) (*config.Config, *server.App, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config load failed: %w", err)
	}
	log.Printf("env=%s ledger=%s kafka=%t redis=%t", cfg.Environment, cfg.Ledger.Backend, cfg.Kafka.Enabled, cfg.Redis.Enabled)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("app initialization failed: %w", err)
	}
	return cfg, app, nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, websocket stream and background consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, app, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			return app.Run()
		},
	}
}

func trainCmd(configPath *string) *cobra.Command {
	var (
		symbol     string
		n          int
		seed       int64
		estimators int
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the regime model once and print the report",
		Example: `  quantlens train --symbol SPY --n 1500
  quantlens train --estimators 200 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, app, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			if symbol == "" {
				symbol = cfg.Analytics.Benchmark
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			report, err := app.Train(ctx, models.TrainParams{
				Symbol:     symbol,
				N:          n,
				Seed:       seed,
				Estimators: estimators,
			})
			if err != nil {
				return fmt.Errorf("train %s: %w", symbol, err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol to train on (defaults to analytics.benchmark)")
	cmd.Flags().IntVar(&n, "n", 0, "number of daily bars (0 uses the configured training window)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "forest seed override")
	cmd.Flags().IntVar(&estimators, "estimators", 0, "number of trees override")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "training deadline")
	return cmd
}

// Command eventstoredemo exercises the full aggregate lifecycle — create,
// mutate, save, reload — against a selectable storage backend.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/foldstate/eventsource"
	"github.com/foldstate/eventsource/adapters/gormstore"
)

var cfg = viper.New()

func init() {
	cfg.SetEnvPrefix("EVENTSTOREDEMO")
	cfg.AutomaticEnv()
	cfg.SetDefault("backend", "memory")
	cfg.SetDefault("dsn", "file::memory:?cache=shared")
	cfg.SetDefault("verbose", false)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "eventstoredemo",
		Short: "Exercise the eventsource BankAccount aggregate end to end",
	}

	root.PersistentFlags().String("backend", cfg.GetString("backend"), `storage backend: "memory" or "sqlite"`)
	root.PersistentFlags().String("dsn", cfg.GetString("dsn"), "sqlite DSN, only used when --backend=sqlite")
	root.PersistentFlags().Bool("verbose", cfg.GetBool("verbose"), "enable debug-level logging")
	cfg.BindPFlags(root.PersistentFlags())

	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bank account lifecycle demo once and print the reloaded state",
		RunE: func(cmd *cobra.Command, args []string) error {
			tamper, _ := cmd.Flags().GetBool("tamper")
			return run(cmd.Context(), tamper)
		},
	}
	cmd.Flags().Bool("tamper", false, "after saving, forge a copy of the stored creation event and confirm CheckHash rejects it, to demonstrate hash-chain tamper detection")
	return cmd
}

func newLogger() (*zap.Logger, error) {
	if cfg.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newRecordManager() (eventsource.RecordManager, error) {
	switch backend := cfg.GetString("backend"); backend {
	case "memory", "":
		return eventsource.NewMemoryRecordManager(), nil
	case "sqlite":
		store, err := gormstore.OpenSQLite(cfg.GetString("dsn"))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("eventstoredemo: unknown backend %q", backend)
	}
}

func run(ctx context.Context, tamper bool) error {
	zapLog, err := newLogger()
	if err != nil {
		return fmt.Errorf("eventstoredemo: constructing logger: %w", err)
	}
	defer zapLog.Sync()
	logger := zapr.NewLogger(zapLog)

	records, err := newRecordManager()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	store := eventsource.NewStore(eventsource.NewJSONSerializer(), records, eventsource.WithMetrics(reg))

	repo := newRepository(eventsource.WithStore(store), eventsource.WithLogger(logger))

	account, err := runLifecycleDemo(ctx, repo, tamper)
	if err != nil {
		return err
	}

	logger.Info("lifecycle demo complete",
		"id", account.Root().ID(),
		"owner", account.Owner,
		"balance", account.Balance,
		"version", account.Root().Version(),
		"headHash", account.Root().HeadHash(),
	)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

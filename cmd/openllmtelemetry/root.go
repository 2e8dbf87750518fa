package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	flagConfigFile string
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "openllmtelemetry",
	Short: "Guardrail evaluation and LLM trace tooling",
	Long: `openllmtelemetry evaluates prompts and model responses against a
remote policy-evaluation endpoint and inspects the resulting verdicts.

Configuration is read from ~/.whylabs/guardrails-config.yaml (override with
WHYLABS_GUARDRAILS_CONFIG) and from GUARDRAILS_* / WHYLABS_* environment
variables; flags win over both.`,
	PersistentPreRun: configureLogging,
	SilenceUsage:     true,
	SilenceErrors:    true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func configureLogging(cmd *cobra.Command, args []string) {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whylabs/openllmtelemetry/internal/config"
	"github.com/whylabs/openllmtelemetry/pkg/guardrail"
)

var (
	flagEndpoint  string
	flagAPIKey    string
	flagDatasetID string
	flagResponse  string
	flagChunk     bool
	flagLog       bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <prompt>",
	Short: "Evaluate a prompt (and optionally a response) against the policy endpoint",
	Long: `Evaluate sends a prompt, or a prompt/response pair, to the configured
policy-evaluation endpoint and prints the verdict as JSON. The command exits
with status 2 when the verdict blocks the interaction.`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-profile") {
		cfg.Guardrails.LogProfile = flagLog
	}

	client, err := guardrail.NewClient(cfg.EndpointConfig())
	if err != nil {
		return err
	}

	var verdict *guardrail.EvaluationVerdict
	datasetID := config.LoadDatasetID(flagDatasetID)
	if flagChunk {
		verdict, err = client.EvaluateChunk(cmd.Context(), args[0], datasetID)
	} else {
		req := guardrail.EvaluationRequest{
			Prompt:    args[0],
			DatasetID: datasetID,
		}
		if cmd.Flags().Changed("response") {
			req.Response = &flagResponse
		}
		verdict, err = client.Evaluate(cmd.Context(), req)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))

	if verdict.IsBlocked() {
		stage := "prompt"
		if flagChunk || cmd.Flags().Changed("response") {
			stage = "response"
		}
		return guardrail.NewBlockedError(stage, verdict)
	}
	return nil
}

// loadCLIConfig resolves configuration from the file, environment, and flags.
func loadCLIConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flagConfigFile != "" {
		cfg, err = config.Load(flagConfigFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if flagEndpoint != "" {
		cfg.Guardrails.Endpoint = flagEndpoint
	}
	if flagAPIKey != "" {
		cfg.Guardrails.APIKey = flagAPIKey
	}

	return cfg, nil
}

func init() {
	evaluateCmd.Flags().StringVar(&flagEndpoint, "endpoint", "", "policy-evaluation endpoint base URL")
	evaluateCmd.Flags().StringVar(&flagAPIKey, "api-key", "", "policy-evaluation API key")
	evaluateCmd.Flags().StringVar(&flagDatasetID, "dataset-id", "", "dataset id the evaluation is attributed to")
	evaluateCmd.Flags().StringVar(&flagResponse, "response", "", "model response to evaluate together with the prompt")
	evaluateCmd.Flags().BoolVar(&flagChunk, "chunk", false, "evaluate the argument as a response chunk without a prompt")
	evaluateCmd.Flags().BoolVar(&flagLog, "log-profile", false, "ask the endpoint to log a profile for this evaluation")

	rootCmd.AddCommand(evaluateCmd)
}

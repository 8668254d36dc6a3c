package cli

import (
	"context"

	"jobapplicator/internal/common"
	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"
	"jobapplicator/internal/observability"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "jobapplicator",
	Short: "A CLI tool for finding job postings and pre-filling their application forms",
	Long: `Jobapplicator searches job boards for postings that match your criteria,
inspects each application page with an AI model and pre-fills the form with
your details. It never submits an application: every attempt is recorded to a
CSV and text log so you can review and submit by hand.`,
	SilenceUsage: true,
}

func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	// Attach the config and logger to the context, making them available to all subcommands
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context") // Should not happen if properly initialized
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context") // Should not happen if properly initialized
}

// newPipeline builds the observability manager and the pipeline for one
// command. The returned cleanup closes both.
func newPipeline(ctx context.Context, cfg *config.Config, logger *errors.Logger, opts ...common.PipelineOption) (*common.Pipeline, *observability.ObservabilityManager, func(), error) {
	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), cfg)
	if err != nil {
		return nil, nil, nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Failed to initialize observability", err)
	}

	pipeline := common.NewPipeline(cfg, logger, om, opts...)
	cleanup := func() {
		if err := pipeline.Close(); err != nil {
			logger.LogError(err, "Failed to close pipeline")
		}
		if err := om.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.LogError(err, "Failed to shut down observability")
		}
	}
	return pipeline, om, cleanup, nil
}

// applyDefaultFormat fills an empty --format from config and validates it.
func applyDefaultFormat(cmd *cobra.Command, cmdConfig *common.CommandConfig) error {
	cfg := getConfigFromContext(cmd.Context())
	if cmdConfig.OutputFormat == "" {
		cmdConfig.OutputFormat = cfg.App.DefaultFormat
	}
	return common.ValidateOutputFormat(cmdConfig.OutputFormat, cfg.App.SupportedFormats)
}

// addOutputFlags registers -o/--output and --format with completion.
func addOutputFlags(cmd *cobra.Command, cmdConfig *common.CommandConfig) {
	cmd.Flags().StringVarP(&cmdConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&cmdConfig.OutputFormat, "format", "", "Output format: json, text, markdown or csv")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return common.NewOutputHandler(nil).GetSupportedFormats(), cobra.ShellCompDirectiveNoFileComp
	})
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(secretCmd)
	rootCmd.AddCommand(versionCmd)
}

package cli

import (
	"context"
	"fmt"

	"jobapplicator/internal/common"
	"jobapplicator/internal/types"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [url]",
	Short: "Describe the application form on a page",
	Long: `Load a posting in the browser and ask the AI model to describe its
application form: the fields, the resume upload control and the submit
button. Nothing is filled in.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return applyDefaultFormat(cmd, &inspectConfig)
	},
	RunE: runInspect,
}

var inspectConfig common.CommandConfig

func init() {
	addOutputFlags(inspectCmd, &inspectConfig)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	pipeline, _, cleanup, err := newPipeline(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logDetails := func(url string, cc common.CommandConfig) {
		logger.Info("Inspecting application page", "url", url, "output_format", cc.OutputFormat)
	}

	inspectOperation := func(ctx context.Context, url string) (types.FormDescription, error) {
		form, err := pipeline.Inspect(ctx, url)
		if err != nil {
			return types.FormDescription{}, err
		}
		if form == nil {
			return types.FormDescription{}, fmt.Errorf("no application form found at %s", url)
		}
		return *form, nil
	}

	return common.RunCommand(cmd.Context(), logger, inspectConfig, args[0], inspectOperation, logDetails)
}

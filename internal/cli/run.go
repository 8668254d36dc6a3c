package cli

import (
	"context"
	"fmt"

	"jobapplicator/internal/common"
	"jobapplicator/internal/types"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [payload-file]",
	Short: "Search for postings and pre-fill their application forms",
	Long: `Run one job-application pass headlessly from a YAML or JSON payload.

The payload carries the applicant details, the job criteria and the domains
to search:

  user_details:
    name: Jane Doe
    email: jane@example.com
    phone: 555-0100
    resume_path: resume.pdf
  job_criteria:
    title: Backend Engineer
    location: Remote
    experience: 5
  domains: [greenhouse.io, lever.co]

Every posting found is inspected and its form pre-filled; nothing is ever
submitted. Outcomes are appended to a CSV and a text log in the output
directory and printed in the selected format.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return applyDefaultFormat(cmd, &runConfig)
	},
	RunE: runRun,
}

var (
	runConfig    common.CommandConfig
	runOutputDir string
)

func init() {
	addOutputFlags(runCmd, &runConfig)
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "Directory for the outcome logs (overrides payload and config)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	req, err := common.NewFileProcessor(logger).LoadRunRequest(args[0], cfg.Tracker.OutputDir)
	if err != nil {
		return err
	}
	if runOutputDir != "" {
		req.OutputDir = runOutputDir
	}

	pipeline, _, cleanup, err := newPipeline(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logDetails := func(input types.RunRequest, cc common.CommandConfig) {
		logger.Info("Starting job application run",
			"title", input.Criteria.Title,
			"location", input.Criteria.Location,
			"domains", input.Domains,
			"output_dir", input.OutputDir,
			"output_format", cc.OutputFormat)
	}

	var result *common.RunResult
	runOperation := func(ctx context.Context, input types.RunRequest) ([]types.ApplicationOutcome, error) {
		res, err := pipeline.Run(ctx, input)
		result = res
		if err != nil {
			return nil, err
		}
		return res.Outcomes, nil
	}

	err = common.RunCommand(cmd.Context(), logger, runConfig, *req, runOperation, logDetails)
	if result != nil {
		printRunSummary(cmd, result)
	}
	if err != nil {
		return fmt.Errorf("job application run failed: %w", err)
	}
	return nil
}

// printRunSummary reports counts and log locations on stderr so stdout
// stays clean for the formatted outcomes.
func printRunSummary(cmd *cobra.Command, result *common.RunResult) {
	w := cmd.ErrOrStderr()
	s := result.Summary
	if s.Found == 0 {
		fmt.Fprintln(w, "No job postings found for the given criteria.")
		return
	}
	fmt.Fprintf(w, "Processed %d of %d postings: %d pre-filled, %d failed, %d skipped (run %s)\n",
		s.Succeeded+s.Failed, s.Found, s.Succeeded, s.Failed, s.Skipped, s.RunID)
	if result.CSVPath != "" {
		fmt.Fprintf(w, "CSV log:  %s\n", result.CSVPath)
	}
	if result.TextPath != "" {
		fmt.Fprintf(w, "Text log: %s\n", result.TextPath)
	}
}

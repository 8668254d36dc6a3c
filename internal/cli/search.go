package cli

import (
	"context"

	"jobapplicator/internal/common"
	"jobapplicator/internal/types"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "List job postings matching the criteria without filling any form",
	Long: `Search the configured engine for postings on each domain and print them.
No browser is started and no AI calls are made.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return applyDefaultFormat(cmd, &searchConfig)
	},
	RunE: runSearch,
}

var (
	searchConfig   common.CommandConfig
	searchCriteria types.SearchCriteria
	searchDomains  []string
)

func init() {
	addOutputFlags(searchCmd, &searchConfig)
	searchCmd.Flags().StringVarP(&searchCriteria.Title, "title", "t", "", "Job title to search for")
	searchCmd.Flags().StringVarP(&searchCriteria.Location, "location", "l", "", "Preferred location")
	searchCmd.Flags().IntVar(&searchCriteria.Experience, "experience", 0, "Years of experience")
	searchCmd.Flags().StringSliceVar(&searchCriteria.Keywords, "keywords", nil, "Extra search keywords")
	searchCmd.Flags().StringSliceVarP(&searchDomains, "domains", "d", common.DefaultDomains, "Domains to search")
	_ = searchCmd.MarkFlagRequired("title")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	pipeline, _, cleanup, err := newPipeline(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logDetails := func(input types.SearchCriteria, cc common.CommandConfig) {
		logger.Info("Searching for job postings",
			"title", input.Title,
			"location", input.Location,
			"domains", searchDomains,
			"output_format", cc.OutputFormat)
	}

	searchOperation := func(ctx context.Context, input types.SearchCriteria) ([]types.JobListing, error) {
		return pipeline.Search(ctx, input, searchDomains)
	}

	return common.RunCommand(cmd.Context(), logger, searchConfig, searchCriteria, searchOperation, logDetails)
}

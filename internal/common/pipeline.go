package common

import (
	"context"
	"strings"
	"sync"

	"jobapplicator/internal/ai"
	"jobapplicator/internal/browser"
	"jobapplicator/internal/config"
	"jobapplicator/internal/coordinator"
	"jobapplicator/internal/errors"
	"jobapplicator/internal/inspector"
	"jobapplicator/internal/observability"
	"jobapplicator/internal/search"
	"jobapplicator/internal/submitter"
	"jobapplicator/internal/tracker"
	"jobapplicator/internal/types"
)

// RunResult is what one pipeline run produced.
type RunResult struct {
	Summary  types.RunSummary           `json:"summary"`
	Outcomes []types.ApplicationOutcome `json:"outcomes"`
	CSVPath  string                     `json:"csv_path,omitempty"`
	TextPath string                     `json:"text_path,omitempty"`
}

// Pipeline owns the long-lived pieces shared by CLI and server runs: one
// browser session, the form describer and the listing source. Runs and
// inspections are serialized because they share the browser.
type Pipeline struct {
	cfg    *config.Config
	logger *errors.Logger
	om     *observability.ObservabilityManager

	driver    browser.Driver
	source    coordinator.ListingSource
	submitter *submitter.Submitter

	mu        sync.Mutex
	inspector *inspector.Inspector
	ownsAI    bool

	// infoMu guards describer so health checks never wait on a running job
	infoMu    sync.Mutex
	describer ai.FormDescriber
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithDriver replaces the playwright session.
func WithDriver(d browser.Driver) PipelineOption {
	return func(p *Pipeline) { p.driver = d }
}

// WithDescriber replaces the configured AI provider.
func WithDescriber(d ai.FormDescriber) PipelineOption {
	return func(p *Pipeline) { p.describer = d }
}

// WithSource replaces the search-engine listing source.
func WithSource(s coordinator.ListingSource) PipelineOption {
	return func(p *Pipeline) { p.source = s }
}

// NewPipeline builds a pipeline. Nothing heavy starts here: the browser is
// launched on first page and the AI provider on first inspection.
func NewPipeline(cfg *config.Config, logger *errors.Logger, om *observability.ObservabilityManager, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{cfg: cfg, logger: logger, om: om}
	for _, opt := range opts {
		opt(p)
	}
	if p.driver == nil {
		p.driver = browser.NewSession(cfg.Browser, logger)
	}
	if p.source == nil {
		p.source = search.NewSource(cfg.Search, logger)
	}
	p.submitter = submitter.New(p.driver, cfg.Browser, logger)
	return p
}

// formInspector returns the inspector, creating the AI provider if needed.
// Callers hold p.mu.
func (p *Pipeline) formInspector(ctx context.Context) (*inspector.Inspector, error) {
	if p.inspector != nil {
		return p.inspector, nil
	}
	if p.describer == nil {
		opCfg := p.cfg.GetInspectConfig()
		service, err := ai.NewService(ctx, &opCfg, p.logger)
		if err != nil {
			return nil, err
		}
		p.infoMu.Lock()
		p.describer = service.Provider
		p.infoMu.Unlock()
		p.ownsAI = true
	}
	p.inspector = inspector.New(p.driver, p.describer, p.cfg.Browser, p.logger,
		inspector.WithRecorder(p.om))
	return p.inspector, nil
}

// Run executes one coordinator run with a fresh tracker writing into the
// request's output directory. The result is returned even when the run
// ended early, together with the error that ended it.
func (p *Pipeline) Run(ctx context.Context, req types.RunRequest) (*RunResult, error) {
	if err := ValidateRunRequest(&req); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "Invalid run request", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	insp, err := p.formInspector(ctx)
	if err != nil {
		return nil, err
	}

	trackerCfg := p.cfg.Tracker
	if req.OutputDir != "" {
		trackerCfg.OutputDir = req.OutputDir
	}
	trk := tracker.New(trackerCfg, p.logger, tracker.WithRecorder(p.om))

	coord := coordinator.New(p.source, insp, p.submitter, trk, p.logger,
		coordinator.WithRecorder(p.om))

	domains := SplitDomains(strings.Join(req.Domains, ","))
	summary, outcomes, runErr := coord.RunWithSummary(ctx, req.Profile, req.Criteria, domains)

	result := &RunResult{Summary: summary, Outcomes: outcomes}
	if trk.Len() > 0 {
		result.CSVPath, result.TextPath = trk.Paths()
	}

	p.logger.Info("Run finished",
		"run_id", summary.RunID,
		"found", summary.Found,
		"skipped", summary.Skipped,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"csv_path", result.CSVPath)
	return result, runErr
}

// Search discovers listings without touching the browser.
func (p *Pipeline) Search(ctx context.Context, criteria types.SearchCriteria, domains []string) ([]types.JobListing, error) {
	return p.source.Find(ctx, criteria, SplitDomains(strings.Join(domains, ",")))
}

// Inspect describes the form at url. A nil description with a nil error
// means the page has no application form.
func (p *Pipeline) Inspect(ctx context.Context, url string) (*types.FormDescription, error) {
	if err := ValidatePageURL(url); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "Invalid page URL", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	insp, err := p.formInspector(ctx)
	if err != nil {
		return nil, err
	}
	return insp.Inspect(ctx, url)
}

// ModelInfo reports the AI provider once it has been created.
func (p *Pipeline) ModelInfo() *ai.ModelInfo {
	p.infoMu.Lock()
	defer p.infoMu.Unlock()
	if p.describer == nil {
		return nil
	}
	return p.describer.GetModelInfo()
}

// Close releases the browser and any provider the pipeline created.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.ownsAI && p.describer != nil {
		if err := p.describer.Close(); err != nil {
			firstErr = err
		}
	}
	if err := p.driver.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

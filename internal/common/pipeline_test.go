package common

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jobapplicator/internal/ai"
	"jobapplicator/internal/browser/browsertest"
	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"
	"jobapplicator/internal/submitter"
	"jobapplicator/internal/tracker"
	"jobapplicator/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = errors.NewLogger(slog.LevelDebug)

const applyURL = "https://boards.greenhouse.io/acme/jobs/1"

const applyHTML = `<html><body><form>
<label for="full_name">Full Name</label><input id="full_name">
<label for="email">Email</label><input id="email">
<input type="file" id="resume"></form></body></html>`

type stubSource struct {
	listings []types.JobListing
	err      error
	domains  []string
}

func (s *stubSource) Find(_ context.Context, _ types.SearchCriteria, domains []string) ([]types.JobListing, error) {
	s.domains = domains
	return s.listings, s.err
}

type stubDescriber struct {
	desc   *types.FormDescription
	closed bool
}

func (s *stubDescriber) Describe(context.Context, types.PageSnapshot) (*types.FormDescription, *ai.TokenUsage, error) {
	return s.desc, &ai.TokenUsage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2}, nil
}

func (s *stubDescriber) GetModelInfo() *ai.ModelInfo {
	return &ai.ModelInfo{Provider: "stub", Name: "stub-model", Healthy: true}
}

func (s *stubDescriber) Close() error {
	s.closed = true
	return nil
}

func testPipelineConfig(dir string) *config.Config {
	return &config.Config{
		Browser: config.BrowserConfig{
			ListingTimeout: 5 * time.Second,
			RetryBackoff:   time.Millisecond,
			PageTextLimit:  500,
		},
		Tracker: config.TrackerConfig{
			OutputDir:    dir,
			PersistEvery: 1,
			FilePrefix:   "successful_applications",
			LockTimeout:  time.Second,
		},
	}
}

func applicationForm() *types.FormDescription {
	return &types.FormDescription{
		Fields: []types.FormField{
			{ID: "full_name", Type: "text", Label: "Full Name", Required: true},
			{ID: "email", Type: "email", Label: "Email", Required: true},
		},
		ResumeUploadID: "resume",
	}
}

func runRequest(outputDir string) types.RunRequest {
	return types.RunRequest{
		Profile:   types.UserProfile{Name: "John Doe", Email: "john.doe@example.com", Phone: "123-456-7890"},
		Criteria:  types.SearchCriteria{Title: "Software Engineer", Location: "Remote", Experience: 2},
		Domains:   []string{" greenhouse.io ", ""},
		OutputDir: outputDir,
	}
}

func TestPipelineRunPersistsOutcomes(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "run-output")

	driver := browsertest.NewDriver()
	driver.Serve(applyURL, &browsertest.FakePage{HTML: applyHTML, Text: "Apply now", IDs: []string{"full_name", "email", "resume"}})
	src := &stubSource{listings: []types.JobListing{{URL: applyURL, Domain: "greenhouse.io", Title: "Software Engineer"}}}

	p := NewPipeline(testPipelineConfig(dir), testLogger, nil,
		WithDriver(driver), WithDescriber(&stubDescriber{desc: applicationForm()}), WithSource(src))

	result, err := p.Run(context.Background(), runRequest(outDir))
	require.NoError(t, err)

	assert.Equal(t, []string{"greenhouse.io"}, src.domains, "blank domains dropped")
	assert.Equal(t, 1, result.Summary.Found)
	assert.Equal(t, 1, result.Summary.Succeeded)
	require.Len(t, result.Outcomes, 1)
	assert.True(t, result.Outcomes[0].Success)
	assert.Equal(t, submitter.PreparedNote, result.Outcomes[0].Notes)

	filled := driver.Filled(applyURL)
	assert.Equal(t, "John Doe", filled["full_name"])
	assert.Equal(t, "john.doe@example.com", filled["email"])

	require.NotEmpty(t, result.CSVPath)
	assert.Equal(t, outDir, filepath.Dir(result.CSVPath), "request output dir overrides config")
	persisted, err := tracker.ReadCSV(result.CSVPath)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, applyURL, persisted[0].Job.URL)

	_, err = os.Stat(result.TextPath)
	assert.NoError(t, err)
}

func TestPipelineRunEmptySourceWritesNothing(t *testing.T) {
	dir := t.TempDir()
	p := NewPipeline(testPipelineConfig(dir), testLogger, nil,
		WithDriver(browsertest.NewDriver()), WithDescriber(&stubDescriber{}), WithSource(&stubSource{}))

	result, err := p.Run(context.Background(), runRequest(""))
	require.NoError(t, err)
	assert.Empty(t, result.Outcomes)
	assert.Empty(t, result.CSVPath)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipelineRunSourceFailure(t *testing.T) {
	srcErr := errors.NewSourceError(errors.ErrCodeSourceUnavailable, "all domains failed", nil)
	p := NewPipeline(testPipelineConfig(t.TempDir()), testLogger, nil,
		WithDriver(browsertest.NewDriver()), WithDescriber(&stubDescriber{}), WithSource(&stubSource{err: srcErr}))

	result, err := p.Run(context.Background(), runRequest(""))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSource))
	require.NotNil(t, result)
	assert.Empty(t, result.Outcomes)
}

func TestPipelineRunRejectsInvalidRequest(t *testing.T) {
	p := NewPipeline(testPipelineConfig(t.TempDir()), testLogger, nil,
		WithDriver(browsertest.NewDriver()), WithDescriber(&stubDescriber{}), WithSource(&stubSource{}))

	_, err := p.Run(context.Background(), types.RunRequest{Domains: []string{"lever.co"}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestPipelineInspect(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(applyURL, &browsertest.FakePage{HTML: applyHTML, Text: "Apply now"})
	desc := &stubDescriber{desc: applicationForm()}
	p := NewPipeline(testPipelineConfig(t.TempDir()), testLogger, nil,
		WithDriver(driver), WithDescriber(desc), WithSource(&stubSource{}))

	got, err := p.Inspect(context.Background(), applyURL)
	require.NoError(t, err)
	assert.Equal(t, applicationForm(), got)

	_, err = p.Inspect(context.Background(), "not a url")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	info := p.ModelInfo()
	require.NotNil(t, info)
	assert.Equal(t, "stub", info.Provider)
}

func TestPipelineCloseLeavesInjectedDescriber(t *testing.T) {
	driver := browsertest.NewDriver()
	desc := &stubDescriber{}
	p := NewPipeline(testPipelineConfig(t.TempDir()), testLogger, nil,
		WithDriver(driver), WithDescriber(desc), WithSource(&stubSource{}))

	require.NoError(t, p.Close())
	assert.True(t, driver.Closed())
	assert.False(t, desc.closed)
}

func TestPipelineWithoutAPIKeyFailsOnFirstInspection(t *testing.T) {
	cfg := testPipelineConfig(t.TempDir())
	cfg.AI = config.AIConfig{Provider: "gemini", Model: "gemini-2.0-flash", Timeout: time.Second, MaxRetries: 1}
	p := NewPipeline(cfg, testLogger, nil, WithDriver(browsertest.NewDriver()), WithSource(&stubSource{}))

	assert.Nil(t, p.ModelInfo())
	_, err := p.Inspect(context.Background(), applyURL)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

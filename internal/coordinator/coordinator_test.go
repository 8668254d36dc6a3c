package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"jobapplicator/internal/ai"
	"jobapplicator/internal/browser/browsertest"
	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"
	"jobapplicator/internal/inspector"
	"jobapplicator/internal/submitter"
	"jobapplicator/internal/tracker"
	"jobapplicator/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = errors.NewLogger(slog.LevelDebug)

var profile = types.UserProfile{Name: "John Doe", Email: "john@example.com", Phone: "+1 555 0100"}

var criteria = types.SearchCriteria{Title: "Software Engineer", Location: "Remote", Experience: 2}

type fakeSource struct {
	listings []types.JobListing
	err      error
	calls    int
}

func (f *fakeSource) Find(_ context.Context, _ types.SearchCriteria, _ []string) ([]types.JobListing, error) {
	f.calls++
	return f.listings, f.err
}

type fakeInspector struct {
	forms   map[string]*types.FormDescription
	errs    map[string]error
	panics  map[string]any
	visited []string
	onCall  func()
}

func (f *fakeInspector) Inspect(_ context.Context, url string) (*types.FormDescription, error) {
	f.visited = append(f.visited, url)
	if f.onCall != nil {
		f.onCall()
	}
	if v, ok := f.panics[url]; ok {
		panic(v)
	}
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return f.forms[url], nil
}

type formDescriber struct {
	form *types.FormDescription
}

func (d *formDescriber) Describe(context.Context, types.PageSnapshot) (*types.FormDescription, *ai.TokenUsage, error) {
	return d.form, nil, nil
}

func (d *formDescriber) GetModelInfo() *ai.ModelInfo { return &ai.ModelInfo{Provider: "stub"} }
func (d *formDescriber) Close() error                { return nil }

type fakeSubmitter struct {
	fail  map[string]bool
	calls []string
}

func (f *fakeSubmitter) Submit(_ context.Context, job types.JobListing, _ types.UserProfile, _ types.FormDescription) types.ApplicationOutcome {
	f.calls = append(f.calls, job.URL)
	if f.fail[job.URL] {
		return types.ApplicationOutcome{Job: job, Success: false, Timestamp: time.Now(), Notes: "could not load application page"}
	}
	return types.ApplicationOutcome{Job: job, Success: true, Timestamp: time.Now(), Notes: submitter.PreparedNote}
}

type memTracker struct {
	mu        sync.Mutex
	outcomes  []types.ApplicationOutcome
	recordErr error
	flushes   int
}

func (m *memTracker) Record(o types.ApplicationOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
	return m.recordErr
}

func (m *memTracker) All() []types.ApplicationOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.ApplicationOutcome(nil), m.outcomes...)
}

func (m *memTracker) Flush() error {
	m.flushes++
	return nil
}

type countingRecorder struct {
	found    int
	skipped  []string
	outcomes map[bool]int
	runs     int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: map[bool]int{}}
}

func (r *countingRecorder) RecordListingsFound(_ context.Context, n int) { r.found += n }
func (r *countingRecorder) RecordFormSkipped(_ context.Context, reason string) {
	r.skipped = append(r.skipped, reason)
}
func (r *countingRecorder) RecordOutcome(_ context.Context, success bool) { r.outcomes[success]++ }
func (r *countingRecorder) RecordRun(context.Context, time.Duration, error) { r.runs++ }

func listing(n int) types.JobListing {
	return types.JobListing{
		URL:    fmt.Sprintf("https://boards.greenhouse.io/x/jobs/%d", n),
		Domain: "greenhouse.io",
		Title:  fmt.Sprintf("Job %d", n),
	}
}

func simpleForm() *types.FormDescription {
	return &types.FormDescription{Fields: []types.FormField{{ID: "name", Label: "Full Name", Required: true}}}
}

func TestRunEmptySource(t *testing.T) {
	src := &fakeSource{}
	insp := &fakeInspector{}
	sub := &fakeSubmitter{}
	tr := &memTracker{}

	out, err := New(src, insp, sub, tr, testLogger).Run(context.Background(), profile, criteria, []string{"greenhouse.io"})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NotNil(t, out)
	assert.Empty(t, insp.visited, "no inspection when nothing was found")
	assert.Empty(t, sub.calls)
}

func TestRunSourceUnavailableIsTerminal(t *testing.T) {
	srcErr := errors.NewSourceError(errors.ErrCodeSourceUnavailable, "all domains failed", nil)
	src := &fakeSource{err: srcErr}
	insp := &fakeInspector{}

	out, err := New(src, insp, &fakeSubmitter{}, &memTracker{}, testLogger).Run(context.Background(), profile, criteria, []string{"greenhouse.io"})
	assert.Same(t, srcErr, err)
	assert.Empty(t, out)
	assert.Empty(t, insp.visited)
}

func TestRunSkipsAbsentFormsAndContinues(t *testing.T) {
	l1, l2, l3 := listing(1), listing(2), listing(3)
	src := &fakeSource{listings: []types.JobListing{l1, l2, l3}}
	insp := &fakeInspector{
		forms: map[string]*types.FormDescription{l3.URL: simpleForm()},
		errs:  map[string]error{l1.URL: errors.NewFormError(errors.ErrCodeFormUnparseable, "no JSON", nil)},
	}
	sub := &fakeSubmitter{}
	tr := &memTracker{}
	rec := newCountingRecorder()

	summary, out, err := New(src, insp, sub, tr, testLogger, WithRecorder(rec), WithRunID(func() string { return "run-1" })).
		RunWithSummary(context.Background(), profile, criteria, []string{"greenhouse.io"})
	require.NoError(t, err)

	assert.Equal(t, []string{l1.URL, l2.URL, l3.URL}, insp.visited, "discovery order")
	assert.Equal(t, []string{l3.URL}, sub.calls)
	require.Len(t, out, 1)
	assert.Equal(t, l3, out[0].Job)
	assert.Equal(t, types.RunSummary{RunID: "run-1", Found: 3, Skipped: 2, Succeeded: 1}, summary)

	assert.Equal(t, 3, rec.found)
	assert.Equal(t, []string{errors.ErrCodeFormUnparseable, "no_form"}, rec.skipped)
	assert.Equal(t, 1, rec.outcomes[true])
	assert.Equal(t, 1, rec.runs)
	assert.Equal(t, 1, tr.flushes)
}

func TestRunRecordsFailedOutcomes(t *testing.T) {
	l1, l2 := listing(1), listing(2)
	src := &fakeSource{listings: []types.JobListing{l1, l2}}
	insp := &fakeInspector{forms: map[string]*types.FormDescription{l1.URL: simpleForm(), l2.URL: simpleForm()}}
	sub := &fakeSubmitter{fail: map[string]bool{l1.URL: true}}

	summary, out, err := New(src, insp, sub, &memTracker{}, testLogger).RunWithSummary(context.Background(), profile, criteria, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.False(t, out[0].Success)
	assert.True(t, out[1].Success)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestRunReturnsTrackerLifetime(t *testing.T) {
	l1 := listing(1)
	tr := &memTracker{}
	c := New(&fakeSource{listings: []types.JobListing{l1}},
		&fakeInspector{forms: map[string]*types.FormDescription{l1.URL: simpleForm()}},
		&fakeSubmitter{}, tr, testLogger)

	_, err := c.Run(context.Background(), profile, criteria, nil)
	require.NoError(t, err)
	out, err := c.Run(context.Background(), profile, criteria, nil)
	require.NoError(t, err)
	assert.Len(t, out, 2, "outcomes accumulate across runs on one tracker")
}

func TestRunPersistenceFailureDoesNotStopRun(t *testing.T) {
	l1, l2 := listing(1), listing(2)
	tr := &memTracker{recordErr: errors.NewPersistenceError(errors.ErrCodePersistenceFailed, "disk full", nil)}
	sub := &fakeSubmitter{}
	c := New(&fakeSource{listings: []types.JobListing{l1, l2}},
		&fakeInspector{forms: map[string]*types.FormDescription{l1.URL: simpleForm(), l2.URL: simpleForm()}},
		sub, tr, testLogger)

	out, err := c.Run(context.Background(), profile, criteria, nil)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Len(t, sub.calls, 2)
}

func TestRunCancellationReturnsAccumulated(t *testing.T) {
	l1, l2, l3 := listing(1), listing(2), listing(3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	insp := &fakeInspector{forms: map[string]*types.FormDescription{
		l1.URL: simpleForm(), l2.URL: simpleForm(), l3.URL: simpleForm(),
	}}
	insp.onCall = func() {
		if len(insp.visited) == 2 {
			cancel()
		}
	}
	sub := &fakeSubmitter{}

	out, err := New(&fakeSource{listings: []types.JobListing{l1, l2, l3}}, insp, sub, &memTracker{}, testLogger).
		Run(ctx, profile, criteria, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, out, 2, "listing in flight completes, the next one is not started")
	assert.Equal(t, []string{l1.URL, l2.URL}, insp.visited)
}

// End to end over the real submitter and tracker with a fake browser.
func TestRunScenarioSingleGreenhouseListing(t *testing.T) {
	const url = "https://boards.greenhouse.io/x/jobs/1"
	job := types.JobListing{URL: url, Domain: "greenhouse.io", Title: "Software Engineer"}

	driver := browsertest.NewDriver()
	driver.Serve(url, &browsertest.FakePage{IDs: []string{"name", "email"}})

	browserCfg := config.BrowserConfig{ListingTimeout: 5 * time.Second, RetryBackoff: time.Millisecond}
	sub := submitter.New(driver, browserCfg, testLogger)
	tr := tracker.New(config.TrackerConfig{OutputDir: t.TempDir(), PersistEvery: 1, FilePrefix: "successful_applications"}, testLogger)

	insp := &fakeInspector{forms: map[string]*types.FormDescription{url: {
		Fields: []types.FormField{
			{ID: "name", Label: "Full Name", Required: true},
			{ID: "email", Label: "Email", Required: true},
		},
	}}}

	out, err := New(&fakeSource{listings: []types.JobListing{job}}, insp, sub, tr, testLogger).
		Run(context.Background(), profile, criteria, []string{"greenhouse.io"})
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, job, out[0].Job)
	assert.True(t, out[0].Success)
	assert.Equal(t, out, tr.All())
	assert.Equal(t, map[string]string{"name": "John Doe", "email": "john@example.com"}, driver.Filled(url))

	csvPath, _ := tr.Paths()
	persisted, err := tracker.ReadCSV(csvPath)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, url, persisted[0].Job.URL)
}

func TestRunScenarioOnlyListingHasNoForm(t *testing.T) {
	l1 := listing(1)
	tr := tracker.New(config.TrackerConfig{OutputDir: t.TempDir(), PersistEvery: 1, FilePrefix: "successful_applications"}, testLogger)

	out, err := New(&fakeSource{listings: []types.JobListing{l1}},
		&fakeInspector{errs: map[string]error{l1.URL: errors.NewFormError(errors.ErrCodeFormUnparseable, "no form", nil)}},
		&fakeSubmitter{}, tr, testLogger).
		Run(context.Background(), profile, criteria, []string{"greenhouse.io"})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, tr.All())
}

func TestRunSurvivesInspectorPanic(t *testing.T) {
	l1, l2 := listing(1), listing(2)
	insp := &fakeInspector{
		panics: map[string]any{l1.URL: "boom"},
		forms:  map[string]*types.FormDescription{l2.URL: {Fields: []types.FormField{{ID: "name", Label: "Name"}}}},
	}
	sub := &fakeSubmitter{}
	rec := newCountingRecorder()

	var out []types.ApplicationOutcome
	var err error
	require.NotPanics(t, func() {
		out, err = New(&fakeSource{listings: []types.JobListing{l1, l2}}, insp, sub, &memTracker{}, testLogger, WithRecorder(rec)).
			Run(context.Background(), profile, criteria, []string{"greenhouse.io"})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{l2.URL}, sub.calls)
	require.Len(t, out, 1)
	assert.Equal(t, l2.URL, out[0].Job.URL)
	assert.Equal(t, []string{errors.ErrCodeFormUnparseable}, rec.skipped)
}

func TestRunSurvivesBrowserPanicDuringInspection(t *testing.T) {
	l1, l2 := listing(1), listing(2)
	driver := browsertest.NewDriver()
	driver.Serve(l1.URL, &browsertest.FakePage{Panic: "boom"})
	driver.Serve(l2.URL, &browsertest.FakePage{HTML: `<form><input id="name"></form>`, Text: "Job 2"})

	browserCfg := config.BrowserConfig{ListingTimeout: 5 * time.Second, RetryBackoff: time.Millisecond}
	describer := &formDescriber{form: &types.FormDescription{Fields: []types.FormField{{ID: "name", Label: "Full Name"}}}}
	insp := inspector.New(driver, describer, browserCfg, testLogger)
	sub := &fakeSubmitter{}

	out, err := New(&fakeSource{listings: []types.JobListing{l1, l2}}, insp, sub, &memTracker{}, testLogger).
		Run(context.Background(), profile, criteria, []string{"greenhouse.io"})
	require.NoError(t, err)
	assert.Equal(t, []string{l2.URL}, sub.calls)
	require.Len(t, out, 1)
	assert.True(t, out[0].Success)
}

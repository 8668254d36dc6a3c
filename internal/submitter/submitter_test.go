package submitter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jobapplicator/internal/browser/browsertest"
	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"
	"jobapplicator/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = errors.NewLogger(slog.LevelDebug)

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

var profile = types.UserProfile{
	Name:  "John Doe",
	Email: "john@example.com",
	Phone: "+1 555 0100",
}

const jobURL = "https://boards.greenhouse.io/x/jobs/1"

var job = types.JobListing{URL: jobURL, Domain: "greenhouse.io", Title: "Software Engineer"}

func newSubmitter(driver *browsertest.Driver) *Submitter {
	cfg := config.BrowserConfig{ListingTimeout: 5 * time.Second, RetryBackoff: time.Millisecond}
	return New(driver, cfg, testLogger, WithClock(func() time.Time { return fixedTime }))
}

func TestResolveValue(t *testing.T) {
	tests := []struct {
		label  string
		want   string
		wantOK bool
	}{
		{"Full Name", profile.Name, true},
		{"NAME", profile.Name, true},
		{"Email Address", profile.Email, true},
		{"e-mail", "", false},
		{"Phone", profile.Phone, true},
		{"Telephone number", profile.Phone, true},
		{"Mobile", profile.Phone, true},
		{"LinkedIn Profile", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ResolveValue(tt.label, profile)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveValueIgnoresIDAndType(t *testing.T) {
	// Only the label participates in the lookup
	for _, f := range []types.FormField{
		{ID: "phone", Type: "tel", Label: "Email Address"},
		{ID: "q1", Type: "text", Label: "Email Address"},
		{ID: "", Type: "", Label: "Email Address"},
	} {
		got, ok := ResolveValue(f.Label, profile)
		assert.True(t, ok)
		assert.Equal(t, profile.Email, got)
	}
}

func TestSubmitFillsByIDThenName(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{
		IDs:   []string{"name", "apply"},
		Names: []string{"email"},
	})

	form := types.FormDescription{
		Fields: []types.FormField{
			{ID: "name", Type: "text", Label: "Full Name", Required: true},
			{ID: "email", Type: "email", Label: "Email", Required: true},
			{ID: "phone", Type: "tel", Label: "Phone"},
			{ID: "linkedin", Type: "url", Label: "LinkedIn"},
		},
		SubmitButtonID: "apply",
	}

	out := newSubmitter(driver).Submit(context.Background(), job, profile, form)
	assert.True(t, out.Success)
	assert.Equal(t, PreparedNote, out.Notes)
	assert.Equal(t, fixedTime, out.Timestamp)
	assert.Equal(t, job, out.Job)

	filled := driver.Filled(jobURL)
	assert.Equal(t, map[string]string{"name": "John Doe", "email": "john@example.com"}, filled,
		"missing phone input is a logged miss; the submit button is never touched")
}

func TestSubmitUploadsResume(t *testing.T) {
	dir := t.TempDir()
	resume := filepath.Join(dir, "resume.pdf")
	require.NoError(t, os.WriteFile(resume, []byte("%PDF"), 0600))

	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{Names: []string{"resume"}})

	p := profile
	p.ResumePath = resume
	out := newSubmitter(driver).Submit(context.Background(), job, p, types.FormDescription{ResumeUploadID: "resume"})
	assert.True(t, out.Success)
	assert.Equal(t, map[string]string{"resume": resume}, driver.Files(jobURL))
}

func TestSubmitResumeProblemsAreNonFatal(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{IDs: []string{"resume"}})

	p := profile
	p.ResumePath = filepath.Join(t.TempDir(), "missing.pdf")
	out := newSubmitter(driver).Submit(context.Background(), job, p, types.FormDescription{ResumeUploadID: "resume"})
	assert.True(t, out.Success)
	assert.Empty(t, driver.Files(jobURL))
}

func TestSubmitPageLoadFailure(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{GotoErrs: []error{fmt.Errorf("net::ERR_NAME_NOT_RESOLVED"), fmt.Errorf("net::ERR_NAME_NOT_RESOLVED")}})

	out := newSubmitter(driver).Submit(context.Background(), job, profile, types.FormDescription{})
	assert.False(t, out.Success)
	assert.Contains(t, out.Notes, "could not load application page")
	assert.Len(t, driver.Visited, 2, "one retry")
}

func TestSubmitFillErrorSkipsField(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{
		IDs:        []string{"company_name", "email"},
		IDFillErrs: map[string]error{"company_name": fmt.Errorf("element is not an <input>, <textarea> or <select>")},
	})

	form := types.FormDescription{Fields: []types.FormField{
		{ID: "company_name", Label: "Company Name"},
		{ID: "email", Label: "Email"},
	}}
	out := newSubmitter(driver).Submit(context.Background(), job, profile, form)
	assert.True(t, out.Success)
	assert.Equal(t, PreparedNote, out.Notes)
	assert.Equal(t, map[string]string{"email": profile.Email}, driver.Filled(jobURL))
}

func TestSubmitFillErrorFallsBackToName(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{
		IDs:        []string{"name"},
		Names:      []string{"name"},
		IDFillErrs: map[string]error{"name": fmt.Errorf("element is not editable")},
	})

	form := types.FormDescription{Fields: []types.FormField{{ID: "name", Label: "Name"}}}
	out := newSubmitter(driver).Submit(context.Background(), job, profile, form)
	assert.True(t, out.Success)
	assert.Equal(t, profile.Name, driver.Filled(jobURL)["name"])
}

func TestSubmitFillErrorOnEveryFieldStillPrepares(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{IDs: []string{"name"}, FillErr: fmt.Errorf("element is not editable")})

	form := types.FormDescription{Fields: []types.FormField{{ID: "name", Label: "Name"}}}
	out := newSubmitter(driver).Submit(context.Background(), job, profile, form)
	assert.True(t, out.Success)
	assert.Empty(t, driver.Filled(jobURL))
}

func TestSubmitNeverPanics(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{Panic: "boom"})

	var out types.ApplicationOutcome
	require.NotPanics(t, func() {
		out = newSubmitter(driver).Submit(context.Background(), job, profile, types.FormDescription{})
	})
	assert.False(t, out.Success)
	assert.Contains(t, out.Notes, "internal fault: boom")
	assert.Equal(t, fixedTime, out.Timestamp)
}

func TestSubmitBrowserUnavailable(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.NewErr = fmt.Errorf("chromium missing")

	out := newSubmitter(driver).Submit(context.Background(), job, profile, types.FormDescription{})
	assert.False(t, out.Success)
	assert.Contains(t, out.Notes, "chromium missing")
}

func TestSubmitTimeoutIsFailedOutcome(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{IDs: []string{"name"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := newSubmitter(driver).Submit(ctx, job, profile, types.FormDescription{Fields: []types.FormField{{ID: "name", Label: "Name"}}})
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Notes)
}

package inspector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"jobapplicator/internal/ai"
	"jobapplicator/internal/browser/browsertest"
	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"
	"jobapplicator/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = errors.NewLogger(slog.LevelDebug)

type stubDescriber struct {
	desc  *types.FormDescription
	err   error
	calls []types.PageSnapshot
}

func (s *stubDescriber) Describe(_ context.Context, page types.PageSnapshot) (*types.FormDescription, *ai.TokenUsage, error) {
	s.calls = append(s.calls, page)
	return s.desc, &ai.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, s.err
}

func (s *stubDescriber) GetModelInfo() *ai.ModelInfo { return &ai.ModelInfo{Provider: "stub"} }
func (s *stubDescriber) Close() error                { return nil }

type countingRecorder struct {
	calls  int
	input  int64
	errors int
}

func (r *countingRecorder) RecordDescribe(_ context.Context, _ time.Duration, in, _ int64, err error) {
	r.calls++
	r.input += in
	if err != nil {
		r.errors++
	}
}

func browserConfig() config.BrowserConfig {
	return config.BrowserConfig{
		ListingTimeout: 5 * time.Second,
		RetryBackoff:   time.Millisecond,
		PageTextLimit:  20,
	}
}

const jobURL = "https://boards.greenhouse.io/x/jobs/1"

const formHTML = `<html><body><h1>Engineer</h1>
<form id="application"><label for="name">Full Name</label><input id="name" required>
<input id="email" type="email"><input type="file" id="resume"></form></body></html>`

func TestInspectDescribesForm(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{HTML: formHTML, Text: "Engineer role. Join our wonderful remote team today."})

	want := &types.FormDescription{Fields: []types.FormField{{ID: "name", Label: "Full Name", Required: true}}}
	desc := &stubDescriber{desc: want}
	rec := &countingRecorder{}

	got, err := New(driver, desc, browserConfig(), testLogger, WithRecorder(rec)).Inspect(context.Background(), jobURL)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.Len(t, desc.calls, 1)
	snap := desc.calls[0]
	assert.Equal(t, jobURL, snap.URL)
	assert.Len(t, []rune(snap.Text), 20, "page text is limited")
	require.Len(t, snap.Forms, 1)
	assert.True(t, strings.HasPrefix(snap.Forms[0], `<form id="application">`))
	assert.Contains(t, snap.Forms[0], `id="resume"`)

	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, int64(10), rec.input)
}

func TestInspectNoFormIsAbsence(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{HTML: `<html><body><p>Closed</p><input type="hidden" name="csrf"></body></html>`})
	desc := &stubDescriber{}

	got, err := New(driver, desc, browserConfig(), testLogger).Inspect(context.Background(), jobURL)
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeForm))
	assert.Empty(t, desc.calls, "no model call without form inputs")
}

func TestInspectLooseControls(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{HTML: `<div><input id="email" type="email"><button id="apply">Apply</button></div>`})
	desc := &stubDescriber{desc: &types.FormDescription{ResumeUploadID: "cv"}}

	_, err := New(driver, desc, browserConfig(), testLogger).Inspect(context.Background(), jobURL)
	require.NoError(t, err)
	require.Len(t, desc.calls, 1)
	require.Len(t, desc.calls[0].Forms, 1)
	assert.Contains(t, desc.calls[0].Forms[0], `id="apply"`)
}

func TestInspectRetriesPageLoadOnce(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{HTML: formHTML, GotoErrs: []error{fmt.Errorf("net::ERR_TIMED_OUT")}})
	desc := &stubDescriber{desc: &types.FormDescription{ResumeUploadID: "resume"}}

	_, err := New(driver, desc, browserConfig(), testLogger).Inspect(context.Background(), jobURL)
	require.NoError(t, err)
	assert.Len(t, driver.Visited, 2)

	other := "https://jobs.lever.co/y/2"
	driver.Serve(other, &browsertest.FakePage{HTML: formHTML, GotoErrs: []error{fmt.Errorf("down"), fmt.Errorf("still down")}})
	_, err = New(driver, desc, browserConfig(), testLogger).Inspect(context.Background(), other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), errors.ErrCodePageLoadFailed)
}

func TestInspectDescriberFailure(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{HTML: formHTML})

	desc := &stubDescriber{err: errors.NewAIError(errors.ErrCodeAIServiceFailed, "quota", nil)}
	rec := &countingRecorder{}
	got, err := New(driver, desc, browserConfig(), testLogger, WithRecorder(rec)).Inspect(context.Background(), jobURL)
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeForm), "describer failures surface as absence")
	assert.Equal(t, 1, rec.errors)
}

func TestLimitRunes(t *testing.T) {
	assert.Equal(t, "héll", limitRunes("héllo", 4))
	assert.Equal(t, "héllo", limitRunes("héllo", 0))
	assert.Equal(t, "hi", limitRunes("hi", 10))
}

func TestInspectRecoversFromPanic(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{Panic: "boom"})
	desc := &stubDescriber{}

	var got *types.FormDescription
	var err error
	require.NotPanics(t, func() {
		got, err = New(driver, desc, browserConfig(), testLogger).Inspect(context.Background(), jobURL)
	})
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeForm))
	assert.Contains(t, err.Error(), "internal fault: boom")
	assert.Empty(t, desc.calls)
}

func TestInspectNilDescriptionIsAbsence(t *testing.T) {
	driver := browsertest.NewDriver()
	driver.Serve(jobURL, &browsertest.FakePage{HTML: formHTML, Text: "Engineer"})

	got, err := New(driver, &stubDescriber{}, browserConfig(), testLogger).Inspect(context.Background(), jobURL)
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeForm))
}

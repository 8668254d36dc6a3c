package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"jobapplicator/internal/ai"
	"jobapplicator/internal/common"
	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"
	"jobapplicator/internal/formatters"
	"jobapplicator/internal/observability"
	"jobapplicator/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = errors.NewLogger(slog.LevelDebug)

type fakeRunner struct {
	result        *common.RunResult
	err           error
	info          *ai.ModelInfo
	got           []types.RunRequest
	resumeExisted bool
}

func (f *fakeRunner) Run(_ context.Context, req types.RunRequest) (*common.RunResult, error) {
	f.got = append(f.got, req)
	if req.Profile.ResumePath != "" {
		_, err := os.Stat(req.Profile.ResumePath)
		f.resumeExisted = err == nil
	}
	return f.result, f.err
}

func (f *fakeRunner) ModelInfo() *ai.ModelInfo { return f.info }

func sampleResult() *common.RunResult {
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)
	return &common.RunResult{
		Summary: types.RunSummary{RunID: "run-1", Found: 2, Succeeded: 1, Failed: 1},
		Outcomes: []types.ApplicationOutcome{
			{
				Job:       types.JobListing{URL: "https://boards.greenhouse.io/acme/jobs/1", Domain: "greenhouse.io", Title: "Backend Engineer"},
				Success:   true,
				Timestamp: ts,
				Notes:     "Form filled",
			},
			{
				Job:       types.JobListing{URL: "https://jobs.lever.co/acme/2", Domain: "lever.co", Title: "Platform Engineer"},
				Success:   false,
				Timestamp: ts,
				Notes:     "could not load application page",
			},
		},
	}
}

func newTestServer(t *testing.T, runner Runner, mutate func(*ServerConfig)) *Server {
	t.Helper()
	cfg := ServerConfig{Version: "test", MaxRequestSize: 1 << 20, RunTimeout: time.Minute}
	if mutate != nil {
		mutate(&cfg)
	}
	appCfg := &config.Config{Tracker: config.TrackerConfig{OutputDir: t.TempDir(), FilePrefix: "successful_applications"}}
	return NewServer(appCfg, cfg, runner, nil, testLogger)
}

const jsonRun = `{"user_details": {"name": "John Doe", "email": "john@example.com", "phone": "555"},
"job_criteria": {"title": "Software Engineer", "location": "Remote", "experience": 2},
"domains": ["greenhouse.io", "lever.co"]}`

func postJSON(t *testing.T, h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndexRendersForm(t *testing.T) {
	h := newTestServer(t, &fakeRunner{}, nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, `value="greenhouse.io, lever.co, workday.com"`)
	assert.Contains(t, body, `name="resume"`)
	assert.NotContains(t, body, `name="api_key"`)
}

func TestRunJSONAndExport(t *testing.T) {
	runner := &fakeRunner{result: sampleResult()}
	h := newTestServer(t, runner, nil).Handler()

	rec := postJSON(t, h, jsonRun, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.Summary.RunID)
	assert.Len(t, resp.Outcomes, 2)
	assert.Equal(t, "/runs/run-1/export.csv", resp.ExportURL)

	require.Len(t, runner.got, 1)
	assert.Equal(t, []string{"greenhouse.io", "lever.co"}, runner.got[0].Domains)
	assert.NotEmpty(t, runner.got[0].OutputDir, "output dir defaults from config")
	assert.Equal(t, common.DefaultProfile.ResumePath, runner.got[0].Profile.ResumePath)

	exp := httptest.NewRecorder()
	h.ServeHTTP(exp, httptest.NewRequest(http.MethodGet, resp.ExportURL, nil))
	require.Equal(t, http.StatusOK, exp.Code)
	assert.Contains(t, exp.Header().Get("Content-Disposition"), "successful_applications_run-1.csv")

	var want bytes.Buffer
	require.NoError(t, formatters.WriteOutcomesCSV(&want, sampleResult().Outcomes))
	assert.Equal(t, want.String(), exp.Body.String())
}

func TestRunSourceUnavailableRendersEmpty(t *testing.T) {
	runner := &fakeRunner{err: errors.NewSourceError(errors.ErrCodeSourceUnavailable, "all domains failed", nil)}
	h := newTestServer(t, runner, nil).Handler()

	rec := postJSON(t, h, jsonRun, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "No applications processed", resp.Message)
	assert.NotNil(t, resp.Outcomes)
	assert.Empty(t, resp.Outcomes)
	assert.Empty(t, resp.ExportURL)
}

func TestRunFailureIsServerError(t *testing.T) {
	runner := &fakeRunner{err: errors.NewConfigError(errors.ErrCodeMissingAPIKey, "no AI API key configured", nil)}
	h := newTestServer(t, runner, nil).Handler()

	rec := postJSON(t, h, jsonRun, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "no AI API key configured")
}

func TestRunJSONValidation(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestServer(t, runner, nil).Handler()

	rec := postJSON(t, h, `{"domains": ["lever.co"]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h, `{"domains": `, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, runner.got)
}

func multipartRun(t *testing.T, fields map[string]string, resumeName string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if resumeName != "" {
		fw, err := mw.CreateFormFile("resume", resumeName)
		require.NoError(t, err)
		_, err = fw.Write([]byte("%PDF-1.4 resume"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/run", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func formFields() map[string]string {
	return map[string]string{
		"name":       "John Doe",
		"email":      "john@example.com",
		"phone":      "123-456-7890",
		"title":      "Software Engineer",
		"location":   "Remote",
		"experience": "2",
		"domains":    "greenhouse.io, lever.co",
	}
}

func TestRunFormRendersBadges(t *testing.T) {
	runner := &fakeRunner{result: sampleResult()}
	h := newTestServer(t, runner, nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRun(t, formFields(), "John_Doe.pdf"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, "Backend Engineer")
	assert.Contains(t, body, `class="badge ok"`)
	assert.Contains(t, body, `class="badge fail"`)
	assert.Contains(t, body, "/runs/run-1/export.csv")
	assert.Contains(t, body, "2024-05-01 09:30:00")

	require.Len(t, runner.got, 1)
	got := runner.got[0]
	assert.Equal(t, 2, got.Criteria.Experience)
	assert.Equal(t, []string{"greenhouse.io", "lever.co"}, got.Domains)
	assert.True(t, runner.resumeExisted, "resume is on disk while the run executes")
	_, err := os.Stat(got.Profile.ResumePath)
	assert.True(t, os.IsNotExist(err), "uploaded resume removed after the run")
}

func TestRunFormEmptyResult(t *testing.T) {
	runner := &fakeRunner{result: &common.RunResult{Summary: types.RunSummary{RunID: "run-2"}, Outcomes: []types.ApplicationOutcome{}}}
	h := newTestServer(t, runner, nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRun(t, formFields(), "resume.pdf"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No applications processed")
	assert.NotContains(t, rec.Body.String(), "export.csv")
}

func TestRunFormRequiresFields(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestServer(t, runner, nil).Handler()

	fields := formFields()
	delete(fields, "phone")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRun(t, fields, "resume.pdf"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please fill in all required fields")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRun(t, formFields(), ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "resume is required")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRun(t, formFields(), "payload.exe"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, runner.got)
}

func TestAuthentication(t *testing.T) {
	runner := &fakeRunner{result: sampleResult()}
	h := newTestServer(t, runner, func(c *ServerConfig) { c.APIKeys = []string{"secret-key-123456"} }).Handler()

	assert.Equal(t, http.StatusUnauthorized, postJSON(t, h, jsonRun, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, postJSON(t, h, jsonRun, map[string]string{"X-API-Key": "wrong"}).Code)
	assert.Equal(t, http.StatusOK, postJSON(t, h, jsonRun, map[string]string{"X-API-Key": "secret-key-123456"}).Code)
	assert.Equal(t, http.StatusOK, postJSON(t, h, jsonRun, map[string]string{"Authorization": "Bearer secret-key-123456"}).Code)

	fields := formFields()
	fields["api_key"] = "secret-key-123456"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRun(t, fields, "resume.pdf"))
	assert.Equal(t, http.StatusOK, rec.Code)

	index := httptest.NewRecorder()
	h.ServeHTTP(index, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, index.Body.String(), `name="api_key"`)
}

func TestRateLimit(t *testing.T) {
	runner := &fakeRunner{result: sampleResult()}
	srv := newTestServer(t, runner, func(c *ServerConfig) {
		c.RateLimit = &config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 1, ByIP: true}
	})
	defer srv.RateLimiter.Close()
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, postJSON(t, h, jsonRun, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, postJSON(t, h, jsonRun, nil).Code)
	assert.Len(t, runner.got, 1)
}

func TestRequestSizeLimit(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestServer(t, runner, func(c *ServerConfig) { c.MaxRequestSize = 16 }).Handler()

	rec := postJSON(t, h, jsonRun, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "too large")
}

func TestExportUnknownRun(t *testing.T) {
	h := newTestServer(t, &fakeRunner{}, nil).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/nope/export.csv", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		info       *ai.ModelInfo
		wantStatus int
		wantBody   string
	}{
		{name: "not started", info: nil, wantStatus: http.StatusOK, wantBody: `"initialized":false`},
		{name: "healthy", info: &ai.ModelInfo{Provider: "gemini", Name: "gemini-2.0-flash", Healthy: true}, wantStatus: http.StatusOK, wantBody: `"status":"healthy"`},
		{
			name:       "breaker open",
			info:       &ai.ModelInfo{Provider: "gemini", Healthy: false, Breaker: map[string]any{"state": "open"}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `"status":"degraded"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeRunner{info: tt.info}, nil).Handler()
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestStats(t *testing.T) {
	h := newTestServer(t, &fakeRunner{}, nil).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "jobapplicator", stats["service"])
	assert.Equal(t, map[string]any{"enabled": false}, stats["rate_limiting"])
}

func TestRunStoreEvictsOldest(t *testing.T) {
	store := NewRunStore(2)
	for _, id := range []string{"a", "b", "c"} {
		store.Put(&common.RunResult{Summary: types.RunSummary{RunID: id}})
	}
	store.Put(nil)

	assert.Equal(t, 2, store.Len())
	_, ok := store.Get("a")
	assert.False(t, ok)
	_, ok = store.Get("c")
	assert.True(t, ok)
}

func TestGetRateLimitKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	req.Header.Set("X-Forwarded-For", "not-an-ip, 203.0.113.7")

	assert.Equal(t, "ip:203.0.113.7", getRateLimitKey(req, false, true))
	assert.Equal(t, "", getRateLimitKey(req, true, false), "no key and IP limiting off")

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "api:abc", getRateLimitKey(req, true, true))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.0.0.5", getClientIP(req))
}

func TestMetricsMountedOnServer(t *testing.T) {
	om, err := observability.NewObservabilityManager(observability.ObservabilityConfig{
		ServiceName: "jobapplicator-test",
		Enabled:     true,
		SampleRate:  1,
		Prometheus:  observability.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })
	om.RecordListingsFound(context.Background(), 2)

	appCfg := &config.Config{Tracker: config.TrackerConfig{OutputDir: t.TempDir()}}
	srv := NewServer(appCfg, ServerConfig{Version: "test", MaxRequestSize: 1 << 20}, &fakeRunner{}, om, testLogger)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jobapplicator_listings_found_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetricsNotMountedWithoutPrometheus(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

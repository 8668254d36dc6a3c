package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"
	"jobapplicator/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = errors.NewLogger(slog.LevelDebug)

func testConfig(engineURL string) config.SearchConfig {
	return config.SearchConfig{
		EngineURL:         engineURL,
		MaxPerDomain:      3,
		RequestsPerSecond: 100,
		Burst:             10,
		RequestTimeout:    5 * time.Second,
		UserAgent:         "jobapplicator-test",
		ParallelDomains:   2,
	}
}

// engine serves a results page per site: query, as a map of domain to anchors.
func engine(t *testing.T, pages map[string]string, status map[string]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		for domain, body := range pages {
			if strings.HasPrefix(q, "site:"+domain+" ") {
				if code, ok := status[domain]; ok {
					w.WriteHeader(code)
					return
				}
				fmt.Fprintf(w, "<html><body>%s</body></html>", body)
				return
			}
		}
		fmt.Fprint(w, "<html><body>no results</body></html>")
	}))
}

var criteria = types.SearchCriteria{Title: "Software Engineer", Location: "Remote", Experience: 2}

func TestFindFiltersAndCaps(t *testing.T) {
	srv := engine(t, map[string]string{
		"greenhouse.io": `
			<a href="/url?q=https://boards.greenhouse.io/acme/jobs/1/apply&sa=U">Backend Engineer</a>
			<a href="https://boards.greenhouse.io/acme/jobs/2?apply=1">Platform Engineer</a>
			<a href="https://boards.greenhouse.io/acme/jobs/2?apply=1#top">Platform Engineer (dup)</a>
			<a href="https://boards.greenhouse.io/acme/about">About</a>
			<a href="https://evil.example.com/greenhouse.io/apply">Lookalike</a>
			<a href="https://boards.greenhouse.io/acme/jobs/3/apply">   </a>
			<a href="https://boards.greenhouse.io/acme/jobs/4/apply">Fourth</a>`,
	}, nil)
	defer srv.Close()

	src := NewSource(testConfig(srv.URL), testLogger)
	listings, err := src.Find(context.Background(), criteria, []string{" GreenHouse.io "})
	require.NoError(t, err)
	require.Len(t, listings, 3, "capped at maxPerDomain")

	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/1/apply", listings[0].URL)
	assert.Equal(t, "Backend Engineer", listings[0].Title)
	assert.Equal(t, "greenhouse.io", listings[0].Domain)
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/2?apply=1", listings[1].URL)
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/3/apply", listings[2].Title, "URL is the last-resort title")
}

func TestFindPreservesDomainOrderAndDedupes(t *testing.T) {
	srv := engine(t, map[string]string{
		"lever.co":      `<a href="https://jobs.lever.co/acme/1/apply">Lever One</a>`,
		"greenhouse.io": `<a href="https://boards.greenhouse.io/acme/jobs/9/apply">GH Nine</a>`,
	}, nil)
	defer srv.Close()

	src := NewSource(testConfig(srv.URL), testLogger)
	listings, err := src.Find(context.Background(), criteria, []string{"lever.co", "greenhouse.io", "lever.co", ""})
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "lever.co", listings[0].Domain)
	assert.Equal(t, "greenhouse.io", listings[1].Domain)
}

func TestFindPartialAndTotalFailure(t *testing.T) {
	srv := engine(t, map[string]string{
		"lever.co":      `<a href="https://jobs.lever.co/acme/1/apply">Lever One</a>`,
		"greenhouse.io": ``,
	}, map[string]int{"greenhouse.io": http.StatusTooManyRequests})
	defer srv.Close()

	src := NewSource(testConfig(srv.URL), testLogger)

	listings, err := src.Find(context.Background(), criteria, []string{"greenhouse.io", "lever.co"})
	require.NoError(t, err, "one failing domain does not fail the search")
	assert.Len(t, listings, 1)

	_, err = src.Find(context.Background(), criteria, []string{"greenhouse.io"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSource))
}

func TestFindEmpty(t *testing.T) {
	srv := engine(t, map[string]string{}, nil)
	defer srv.Close()

	src := NewSource(testConfig(srv.URL), testLogger)

	listings, err := src.Find(context.Background(), criteria, nil)
	require.NoError(t, err)
	assert.Empty(t, listings)

	listings, err = src.Find(context.Background(), criteria, []string{"workday.com"})
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestFindHydratesListings(t *testing.T) {
	var hits atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search":
			fmt.Fprintf(w, `<a href="%s/jobs/1/apply">x</a><a href="%s/jobs/2/apply">Broken</a>`, srv.URL, srv.URL)
		case r.URL.Path == "/jobs/1/apply":
			hits.Add(1)
			fmt.Fprint(w, `<html><h1> Staff   Engineer </h1><p>Build things.</p><p>second</p></html>`)
		default:
			http.Error(w, "gone", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL + "/search")
	cfg.Hydrate = true
	src := NewSource(cfg, testLogger)

	listings, err := src.Find(context.Background(), criteria, []string{"127.0.0.1"})
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "Staff Engineer", listings[0].Title)
	assert.Equal(t, "Build things.", listings[0].Description)
	assert.Equal(t, "Broken", listings[1].Title, "hydration failure keeps the minimal listing")
	assert.Equal(t, int32(1), hits.Load())
}

func TestUnwrapRedirect(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.google.com/url?q=https://jobs.lever.co/a/apply&sa=U", "https://jobs.lever.co/a/apply"},
		{"https://duckduckgo.com/l/?uddg=https%3A%2F%2Fboards.greenhouse.io%2Fx%2Fapply", "https://boards.greenhouse.io/x/apply"},
		{"https://www.google.com/search?q=https://x.test", "https://www.google.com/search?q=https://x.test"},
		{"https://jobs.lever.co/a/apply", "https://jobs.lever.co/a/apply"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unwrapRedirect(tt.in), tt.in)
	}
}

func TestMatchesDomain(t *testing.T) {
	assert.True(t, matchesDomain("https://boards.greenhouse.io/x/APPLY", "greenhouse.io"))
	assert.True(t, matchesDomain("https://greenhouse.io/apply", "greenhouse.io"))
	assert.False(t, matchesDomain("https://boards.greenhouse.io/x/jobs", "greenhouse.io"))
	assert.False(t, matchesDomain("https://notgreenhouse.io/apply", "greenhouse.io"))
	assert.False(t, matchesDomain("mailto:apply@greenhouse.io", "greenhouse.io"))
}

func TestHostLimiterHonorsContext(t *testing.T) {
	hl := NewHostLimiter(0.001, 1)
	ctx := context.Background()
	require.NoError(t, hl.WaitURL(ctx, "https://a.test/1"))

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, hl.WaitURL(ctx, "https://a.test/2"), "second request to the same host must wait")
	assert.NoError(t, hl.WaitURL(context.Background(), "https://b.test/1"), "hosts are limited independently")
}

package formatters

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"jobapplicator/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOutcomes() []types.ApplicationOutcome {
	return []types.ApplicationOutcome{
		{
			Job:       types.JobListing{URL: "https://boards.greenhouse.io/x/jobs/1", Domain: "greenhouse.io", Title: "Software Engineer"},
			Success:   true,
			Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
			Notes:     "prepared, not submitted",
		},
		{
			Job:       types.JobListing{URL: "https://jobs.lever.co/y/2", Domain: "lever.co", Title: `Backend, "Payments"`},
			Success:   false,
			Timestamp: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			Notes:     "could not load application page:\nHTTP 503",
		},
	}
}

func TestWriteOutcomesText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOutcomesText(&buf, sampleOutcomes()[:1]))

	want := "Title: Software Engineer\n" +
		"URL: https://boards.greenhouse.io/x/jobs/1\n" +
		"Domain: greenhouse.io\n" +
		"Success: true\n" +
		"Timestamp: 2026-03-14 09:26:53\n" +
		"Notes: prepared, not submitted\n" +
		strings.Repeat("-", 50) + "\n"
	assert.Equal(t, want, buf.String())
}

func TestOutcomesCSVRoundTrip(t *testing.T) {
	in := sampleOutcomes()

	var buf bytes.Buffer
	require.NoError(t, WriteOutcomesCSV(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), "url,domain,title,success,timestamp,notes\n"))

	out, err := ReadOutcomesCSV(&buf, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadOutcomesCSVErrors(t *testing.T) {
	out, err := ReadOutcomesCSV(strings.NewReader(""), time.UTC)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = ReadOutcomesCSV(strings.NewReader("a,b,c,d,e,f\n"), time.UTC)
	assert.Error(t, err)

	_, err = ReadOutcomesCSV(strings.NewReader("url,domain,title,success,timestamp,notes\nu,d,t,maybe,2026-01-01 00:00:00,n\n"), time.UTC)
	assert.ErrorContains(t, err, "invalid success value")

	// The original log wrote Python-style booleans
	out, err = ReadOutcomesCSV(strings.NewReader("url,domain,title,success,timestamp,notes\nu,d,t,True,2026-01-01 00:00:00,n\n"), time.UTC)
	require.NoError(t, err)
	assert.True(t, out[0].Success)
}

func TestRegistryFormats(t *testing.T) {
	reg := NewFormatterRegistry()
	assert.Equal(t, []string{"csv", "json", "markdown", "text"}, reg.GetSupportedFormats())

	text, err := reg.Format(sampleOutcomes(), "text")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteOutcomesText(&buf, sampleOutcomes()))
	assert.Equal(t, buf.String(), text, "text output matches the persisted text log")

	md, err := reg.Format(sampleOutcomes(), "markdown")
	require.NoError(t, err)
	assert.Contains(t, md, "**Prepared:** 1 of 2")
	assert.Contains(t, md, `Backend, "Payments"`)

	empty, err := reg.Format([]types.ApplicationOutcome{}, "text")
	require.NoError(t, err)
	assert.Equal(t, "No applications processed\n", empty)

	js, err := reg.Format(types.RunSummary{RunID: "r1", Found: 2}, "json")
	require.NoError(t, err)
	assert.Contains(t, js, `"run_id": "r1"`)

	_, err = reg.Format(types.RunSummary{}, "text")
	assert.ErrorContains(t, err, "no formatter found")
}

func TestListingAndFormFormatters(t *testing.T) {
	reg := NewFormatterRegistry()

	listings := []types.JobListing{{URL: "https://jobs.lever.co/y/2/apply", Domain: "lever.co", Title: "SRE", Description: "On-call"}}
	text, err := reg.Format(listings, "text")
	require.NoError(t, err)
	assert.Equal(t, "1. SRE [lever.co]\n   https://jobs.lever.co/y/2/apply\n   On-call\n", text)

	form := &types.FormDescription{
		Fields:         []types.FormField{{ID: "email", Type: "email", Label: "Email", Required: true}},
		ResumeUploadID: "resume",
	}
	text, err = reg.Format(form, "text")
	require.NoError(t, err)
	assert.Contains(t, text, `- email (email) "Email" *required*`)
	assert.Contains(t, text, "Resume upload: resume")
	assert.Contains(t, text, "Submit button: (none)")

	md, err := reg.Format(*form, "markdown")
	require.NoError(t, err)
	assert.Contains(t, md, "| `email` | email | Email | true |")
}

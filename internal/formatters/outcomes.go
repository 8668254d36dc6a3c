package formatters

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"jobapplicator/internal/types"
)

// OutcomeCSVHeader is the column order of the tabular outcome log.
var OutcomeCSVHeader = []string{"url", "domain", "title", "success", "timestamp", "notes"}

// textRule separates outcome blocks in the human-readable log.
var textRule = strings.Repeat("-", 50)

// WriteOutcomesCSV writes the tabular outcome log.
func WriteOutcomesCSV(w io.Writer, outcomes []types.ApplicationOutcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(OutcomeCSVHeader); err != nil {
		return err
	}
	for _, o := range outcomes {
		record := []string{
			o.Job.URL,
			o.Job.Domain,
			o.Job.Title,
			strconv.FormatBool(o.Success),
			o.Timestamp.Format(types.OutcomeTimeLayout),
			o.Notes,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteOutcomesText writes one block per outcome, each closed by a rule line.
func WriteOutcomesText(w io.Writer, outcomes []types.ApplicationOutcome) error {
	for _, o := range outcomes {
		_, err := fmt.Fprintf(w, "Title: %s\nURL: %s\nDomain: %s\nSuccess: %t\nTimestamp: %s\nNotes: %s\n%s\n",
			o.Job.Title,
			o.Job.URL,
			o.Job.Domain,
			o.Success,
			o.Timestamp.Format(types.OutcomeTimeLayout),
			o.Notes,
			textRule)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadOutcomesCSV parses a tabular outcome log. Timestamps are read in loc.
func ReadOutcomesCSV(r io.Reader, loc *time.Location) ([]types.ApplicationOutcome, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(OutcomeCSVHeader)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, col := range OutcomeCSVHeader {
		if strings.TrimSpace(header[i]) != col {
			return nil, fmt.Errorf("unexpected column %q at position %d, want %q", header[i], i, col)
		}
	}

	var outcomes []types.ApplicationOutcome
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		success, err := strconv.ParseBool(rec[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid success value %q", line, rec[3])
		}
		ts, err := time.ParseInLocation(types.OutcomeTimeLayout, rec[4], loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid timestamp %q", line, rec[4])
		}

		outcomes = append(outcomes, types.ApplicationOutcome{
			Job:       types.JobListing{URL: rec[0], Domain: rec[1], Title: rec[2]},
			Success:   success,
			Timestamp: ts,
			Notes:     rec[5],
		})
	}
	return outcomes, nil
}

// OutcomesTextFormatter renders outcomes exactly as the text log stores them
type OutcomesTextFormatter struct{}

func (otf *OutcomesTextFormatter) Format(data any) (string, error) {
	outcomes, ok := data.([]types.ApplicationOutcome)
	if !ok {
		return "", fmt.Errorf("invalid data type for outcomes text formatter")
	}
	if len(outcomes) == 0 {
		return "No applications processed\n", nil
	}
	var buf bytes.Buffer
	if err := WriteOutcomesText(&buf, outcomes); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (otf *OutcomesTextFormatter) SupportedType() string {
	return "Outcomes"
}

// OutcomesCSVFormatter renders outcomes as the tabular log
type OutcomesCSVFormatter struct{}

func (ocf *OutcomesCSVFormatter) Format(data any) (string, error) {
	outcomes, ok := data.([]types.ApplicationOutcome)
	if !ok {
		return "", fmt.Errorf("invalid data type for outcomes csv formatter")
	}
	var buf bytes.Buffer
	if err := WriteOutcomesCSV(&buf, outcomes); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (ocf *OutcomesCSVFormatter) SupportedType() string {
	return "Outcomes"
}

// OutcomesMarkdownFormatter renders outcomes as a markdown report
type OutcomesMarkdownFormatter struct{}

func (omf *OutcomesMarkdownFormatter) Format(data any) (string, error) {
	outcomes, ok := data.([]types.ApplicationOutcome)
	if !ok {
		return "", fmt.Errorf("invalid data type for outcomes markdown formatter")
	}

	var sb strings.Builder
	sb.WriteString("# Application Results\n\n")
	if len(outcomes) == 0 {
		sb.WriteString("_No applications processed._\n")
		return sb.String(), nil
	}

	succeeded := 0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
		}
	}
	fmt.Fprintf(&sb, "**Prepared:** %d of %d\n\n", succeeded, len(outcomes))
	sb.WriteString("| Status | Title | Domain | Timestamp | Notes |\n|---|---|---|---|---|\n")
	for _, o := range outcomes {
		status := "❌ failed"
		if o.Success {
			status = "✅ success"
		}
		fmt.Fprintf(&sb, "| %s | [%s](%s) | %s | %s | %s |\n",
			status,
			escapeCell(o.Job.Title),
			o.Job.URL,
			o.Job.Domain,
			o.Timestamp.Format(types.OutcomeTimeLayout),
			escapeCell(o.Notes))
	}
	return sb.String(), nil
}

func (omf *OutcomesMarkdownFormatter) SupportedType() string {
	return "Outcomes"
}

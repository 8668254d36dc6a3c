package formatters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"jobapplicator/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	// Register default formatters
	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "Outcomes", &OutcomesTextFormatter{})
	registry.RegisterFormatter("markdown", "Outcomes", &OutcomesMarkdownFormatter{})
	registry.RegisterFormatter("csv", "Outcomes", &OutcomesCSVFormatter{})
	registry.RegisterFormatter("text", "Listings", &ListingsTextFormatter{})
	registry.RegisterFormatter("markdown", "Listings", &ListingsMarkdownFormatter{})
	registry.RegisterFormatter("text", "FormDescription", &FormTextFormatter{})
	registry.RegisterFormatter("markdown", "FormDescription", &FormMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case []types.ApplicationOutcome:
		return "Outcomes"
	case []types.JobListing:
		return "Listings"
	case types.FormDescription, *types.FormDescription:
		return "FormDescription"
	default:
		return "unknown"
	}
}

// JSONFormatter handles JSON output for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// ListingsTextFormatter prints one line per discovered listing
type ListingsTextFormatter struct{}

func (ltf *ListingsTextFormatter) Format(data any) (string, error) {
	listings, ok := data.([]types.JobListing)
	if !ok {
		return "", fmt.Errorf("invalid data type for listings text formatter")
	}
	if len(listings) == 0 {
		return "No listings found\n", nil
	}

	var sb strings.Builder
	for i, l := range listings {
		fmt.Fprintf(&sb, "%d. %s [%s]\n   %s\n", i+1, l.Title, l.Domain, l.URL)
		if l.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", l.Description)
		}
	}
	return sb.String(), nil
}

func (ltf *ListingsTextFormatter) SupportedType() string {
	return "Listings"
}

// ListingsMarkdownFormatter renders listings as a markdown table
type ListingsMarkdownFormatter struct{}

func (lmf *ListingsMarkdownFormatter) Format(data any) (string, error) {
	listings, ok := data.([]types.JobListing)
	if !ok {
		return "", fmt.Errorf("invalid data type for listings markdown formatter")
	}

	var sb strings.Builder
	sb.WriteString("# Job Listings\n\n")
	if len(listings) == 0 {
		sb.WriteString("_No listings found._\n")
		return sb.String(), nil
	}
	sb.WriteString("| # | Title | Domain | URL |\n|---|---|---|---|\n")
	for i, l := range listings {
		fmt.Fprintf(&sb, "| %d | %s | %s | %s |\n", i+1, escapeCell(l.Title), l.Domain, l.URL)
	}
	return sb.String(), nil
}

func (lmf *ListingsMarkdownFormatter) SupportedType() string {
	return "Listings"
}

// FormTextFormatter prints a form description
type FormTextFormatter struct{}

func (ftf *FormTextFormatter) Format(data any) (string, error) {
	form, err := asForm(data)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("=== APPLICATION FORM ===\n\n")
	fmt.Fprintf(&sb, "Fields (%d):\n", len(form.Fields))
	for _, f := range form.Fields {
		req := ""
		if f.Required {
			req = " *required*"
		}
		fmt.Fprintf(&sb, "  - %s (%s) %q%s\n", f.ID, f.Type, f.Label, req)
	}
	fmt.Fprintf(&sb, "\nResume upload: %s\n", orNone(form.ResumeUploadID))
	fmt.Fprintf(&sb, "Submit button: %s\n", orNone(form.SubmitButtonID))
	return sb.String(), nil
}

func (ftf *FormTextFormatter) SupportedType() string {
	return "FormDescription"
}

// FormMarkdownFormatter renders a form description as markdown
type FormMarkdownFormatter struct{}

func (fmf *FormMarkdownFormatter) Format(data any) (string, error) {
	form, err := asForm(data)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Application Form\n\n")
	sb.WriteString("| Field | Type | Label | Required |\n|---|---|---|---|\n")
	for _, f := range form.Fields {
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %t |\n", f.ID, f.Type, escapeCell(f.Label), f.Required)
	}
	fmt.Fprintf(&sb, "\n**Resume upload:** %s\n\n**Submit button:** %s\n", orNone(form.ResumeUploadID), orNone(form.SubmitButtonID))
	return sb.String(), nil
}

func (fmf *FormMarkdownFormatter) SupportedType() string {
	return "FormDescription"
}

func asForm(data any) (types.FormDescription, error) {
	switch f := data.(type) {
	case types.FormDescription:
		return f, nil
	case *types.FormDescription:
		if f == nil {
			return types.FormDescription{}, fmt.Errorf("nil form description")
		}
		return *f, nil
	}
	return types.FormDescription{}, fmt.Errorf("invalid data type for form formatter")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

// GlobalRegistry is the registry shared by the CLI and the server
var GlobalRegistry = NewFormatterRegistry()

package types

import (
	"fmt"
	"strings"
	"time"
)

// UserProfile holds the applicant details used to populate forms.
type UserProfile struct {
	Name            string   `json:"name" yaml:"name"`
	Email           string   `json:"email" yaml:"email"`
	Phone           string   `json:"phone" yaml:"phone"`
	ResumePath      string   `json:"resume_path" yaml:"resume_path"`
	Skills          []string `json:"skills,omitempty" yaml:"skills,omitempty"`
	YearsExperience int      `json:"years_experience,omitempty" yaml:"years_experience,omitempty"`
}

// SearchCriteria describes the postings a run is looking for.
type SearchCriteria struct {
	Title      string   `json:"title" yaml:"title"`
	Location   string   `json:"location" yaml:"location"`
	Experience int      `json:"experience" yaml:"experience"`
	Keywords   []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// Query builds the search-engine query for one domain.
func (c SearchCriteria) Query(domain string) string {
	parts := []string{"site:" + domain}
	for _, p := range []string{c.Title, c.Location} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if c.Experience > 0 {
		parts = append(parts, fmt.Sprintf("%d", c.Experience))
	}
	for _, k := range c.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			parts = append(parts, k)
		}
	}
	parts = append(parts, "apply")
	return strings.Join(parts, " ")
}

// JobListing is a candidate posting discovered by the search step.
// URL is the key within a run.
type JobListing struct {
	URL         string `json:"url" yaml:"url"`
	Domain      string `json:"domain" yaml:"domain"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// FormField is one input of an application form.
type FormField struct {
	ID       string `json:"field_id"`
	Type     string `json:"field_type"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// FormDescription is the machine-usable summary of an application page.
type FormDescription struct {
	Fields         []FormField `json:"form_fields"`
	ResumeUploadID string      `json:"resume_upload_id,omitempty"`
	SubmitButtonID string      `json:"submit_button_id,omitempty"`
}

// ApplicationOutcome records one attempt to populate an application form.
// Outcomes are never mutated after creation.
type ApplicationOutcome struct {
	Job       JobListing `json:"job"`
	Success   bool       `json:"success"`
	Timestamp time.Time  `json:"timestamp"`
	Notes     string     `json:"notes"`
}

// PageSnapshot is what the form describer sees of a rendered page.
type PageSnapshot struct {
	URL   string   `json:"url"`
	Text  string   `json:"text"`
	Forms []string `json:"forms"`
}

// RunRequest is the headless configuration payload for a single run.
type RunRequest struct {
	Profile   UserProfile    `json:"user_details" yaml:"user_details"`
	Criteria  SearchCriteria `json:"job_criteria" yaml:"job_criteria"`
	Domains   []string       `json:"domains" yaml:"domains"`
	OutputDir string         `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
}

// RunSummary counts what happened during one run.
type RunSummary struct {
	RunID     string `json:"run_id"`
	Found     int    `json:"found"`
	Skipped   int    `json:"skipped"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// OutcomeTimeLayout is the timestamp layout used in persisted outcome logs.
const OutcomeTimeLayout = "2006-01-02 15:04:05"

package common

import (
	"testing"

	"jobapplicator/internal/types"
)

func TestValidateOutputFormat(t *testing.T) {
	supported := []string{"json", "text", "markdown", "csv"}

	tests := []struct {
		name             string
		format           string
		supportedFormats []string
		expectError      bool
		expectedError    string
	}{
		{name: "json", format: "json", supportedFormats: supported},
		{name: "csv", format: "csv", supportedFormats: supported},
		{
			name:             "invalid format - xml",
			format:           "xml",
			supportedFormats: supported,
			expectError:      true,
			expectedError:    "unsupported output format 'xml'. Supported formats: [json text markdown csv]",
		},
		{
			name:             "case sensitive",
			format:           "CSV",
			supportedFormats: supported,
			expectError:      true,
			expectedError:    "unsupported output format 'CSV'. Supported formats: [json text markdown csv]",
		},
		{name: "no restrictions", format: "anything", supportedFormats: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.supportedFormats)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
					return
				}
				if err.Error() != tt.expectedError {
					t.Errorf("expected error %q, got %q", tt.expectedError, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("expected no error but got: %v", err)
			}
		})
	}
}

func TestValidatePageURL(t *testing.T) {
	valid := []string{"https://boards.greenhouse.io/x/jobs/1", "http://jobs.lever.co/acme/2/apply"}
	for _, u := range valid {
		if err := ValidatePageURL(u); err != nil {
			t.Errorf("ValidatePageURL(%q) = %v", u, err)
		}
	}

	invalid := []string{"", "greenhouse.io/jobs/1", "ftp://example.com/file", "https://"}
	for _, u := range invalid {
		if err := ValidatePageURL(u); err == nil {
			t.Errorf("ValidatePageURL(%q) expected error", u)
		}
	}
}

func TestValidateRunRequest(t *testing.T) {
	ok := &types.RunRequest{
		Criteria: types.SearchCriteria{Title: "Software Engineer"},
		Domains:  []string{"greenhouse.io"},
	}
	if err := ValidateRunRequest(ok); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	noDomains := &types.RunRequest{Criteria: types.SearchCriteria{Title: "SRE"}, Domains: []string{" ", ""}}
	if err := ValidateRunRequest(noDomains); err == nil {
		t.Error("expected error for blank domains")
	}

	noCriteria := &types.RunRequest{Domains: []string{"lever.co"}}
	if err := ValidateRunRequest(noCriteria); err == nil {
		t.Error("expected error for empty criteria")
	}

	if err := ValidateRunRequest(nil); err == nil {
		t.Error("expected error for nil request")
	}
}

func TestSplitDomains(t *testing.T) {
	got := SplitDomains(" greenhouse.io, lever.co,,workday.com ")
	want := []string{"greenhouse.io", "lever.co", "workday.com"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if SplitDomains("") != nil {
		t.Error("empty list should yield nil")
	}
}

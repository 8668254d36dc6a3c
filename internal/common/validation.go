package common

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"jobapplicator/internal/types"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ValidatePageURL checks that raw is an absolute http(s) URL.
func ValidatePageURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

// ValidateRunRequest reports the first problem that would make a run pointless.
func ValidateRunRequest(req *types.RunRequest) error {
	if req == nil {
		return fmt.Errorf("run request is required")
	}
	if len(SplitDomains(strings.Join(req.Domains, ","))) == 0 {
		return fmt.Errorf("at least one domain is required")
	}
	if strings.TrimSpace(req.Criteria.Title) == "" && len(req.Criteria.Keywords) == 0 {
		return fmt.Errorf("job criteria need a title or keywords")
	}
	return nil
}

// SplitDomains parses a comma-separated domain list, dropping blanks.
func SplitDomains(list string) []string {
	var domains []string
	for d := range strings.SplitSeq(list, ",") {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

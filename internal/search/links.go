package search

import (
	"net/url"
	"strings"
)

// unwrapRedirect returns the destination of a search-engine redirect link
// (/url?q=... or /l/?uddg=...), or href unchanged.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if !strings.HasPrefix(u.Path, "/url") && !strings.HasPrefix(u.Path, "/l/") {
		return href
	}
	q := u.Query()
	for _, key := range []string{"q", "url", "uddg"} {
		if v := q.Get(key); strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			return v
		}
	}
	return href
}

// matchesDomain reports whether href is an application link on domain or one of its subdomains.
func matchesDomain(href, domain string) bool {
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host != domain && !strings.HasSuffix(host, "."+domain) {
		return false
	}
	return strings.Contains(strings.ToLower(href), "apply")
}

// normalizeDomains trims, lowercases, and drops blank or repeated domains.
func normalizeDomains(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(strings.TrimPrefix(d, "https://"), "http://")
		d = strings.TrimSuffix(d, "/")
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// stripFragment drops the #fragment so the same posting is not listed twice.
func stripFragment(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// Package search discovers job postings by querying a web search engine
// once per target domain.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"
	"jobapplicator/internal/types"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/sync/errgroup"
)

// Source finds candidate listings for a set of domains.
type Source struct {
	cfg     config.SearchConfig
	limiter *HostLimiter
	client  *http.Client
	logger  *errors.Logger
}

// NewSource creates a search source sharing one per-host limiter across domains.
func NewSource(cfg config.SearchConfig, logger *errors.Logger) *Source {
	return &Source{
		cfg:     cfg,
		limiter: NewHostLimiter(cfg.RequestsPerSecond, cfg.Burst),
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		logger:  logger,
	}
}

// domainResult holds what one domain search produced.
type domainResult struct {
	listings []types.JobListing
	err      error
}

// Find searches every domain and returns listings in domain order, deduplicated
// by URL. It fails with SourceUnavailable only when every domain search failed.
func (s *Source) Find(ctx context.Context, criteria types.SearchCriteria, domains []string) ([]types.JobListing, error) {
	domains = normalizeDomains(domains)
	if len(domains) == 0 {
		return nil, nil
	}

	results := make([]domainResult, len(domains))

	var g errgroup.Group
	g.SetLimit(max(1, s.cfg.ParallelDomains))
	for i, domain := range domains {
		g.Go(func() error {
			listings, err := s.searchDomain(ctx, criteria, domain)
			results[i] = domainResult{listings: listings, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var listings []types.JobListing
	failed := 0
	for i, r := range results {
		if r.err != nil {
			failed++
			s.logger.LogError(r.err, "Domain search failed", "domain", domains[i])
			continue
		}
		for _, l := range r.listings {
			if seen[l.URL] {
				continue
			}
			seen[l.URL] = true
			listings = append(listings, l)
		}
	}

	if failed == len(domains) {
		return nil, errors.NewSourceError(errors.ErrCodeSourceUnavailable,
			fmt.Sprintf("search failed for all %d domains", len(domains)), results[0].err)
	}

	s.logger.Info("Search completed",
		"domains", len(domains),
		"failed_domains", failed,
		"listings", len(listings))
	return listings, nil
}

// searchDomain runs one engine query and collects up to MaxPerDomain matching links.
func (s *Source) searchDomain(ctx context.Context, criteria types.SearchCriteria, domain string) ([]types.JobListing, error) {
	query := criteria.Query(domain)
	searchURL := s.cfg.EngineURL + "?q=" + url.QueryEscape(query)

	c := colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.StdlibContext(ctx),
	)
	if s.cfg.RequestTimeout > 0 {
		c.SetRequestTimeout(s.cfg.RequestTimeout)
	}

	var (
		mu       sync.Mutex
		found    []types.JobListing
		seen     = make(map[string]bool)
		visitErr error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := stripFragment(unwrapRedirect(e.Request.AbsoluteURL(e.Attr("href"))))
		if href == "" || !matchesDomain(href, domain) {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if seen[href] || len(found) >= s.cfg.MaxPerDomain {
			return
		}
		seen[href] = true
		found = append(found, types.JobListing{
			URL:    href,
			Domain: domain,
			Title:  strings.Join(strings.Fields(e.Text), " "),
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("search request returned %d: %w", r.StatusCode, err)
	})

	if err := s.limiter.WaitURL(ctx, searchURL); err != nil {
		return nil, err
	}

	s.logger.Debug("Searching domain", "domain", domain, "query", query)
	if err := c.Visit(searchURL); err != nil {
		if visitErr != nil {
			return nil, visitErr
		}
		return nil, err
	}
	if visitErr != nil {
		return nil, visitErr
	}

	if s.cfg.Hydrate {
		for i := range found {
			s.hydrate(ctx, &found[i])
		}
	}
	for i := range found {
		if found[i].Title == "" {
			found[i].Title = found[i].URL
		}
	}

	s.logger.Debug("Domain search finished", "domain", domain, "listings", len(found))
	return found, nil
}

// hydrate fills title and description from the posting page. Failures keep
// the minimal listing.
func (s *Source) hydrate(ctx context.Context, l *types.JobListing) {
	if err := s.limiter.WaitURL(ctx, l.URL); err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("Listing hydration failed", "url", l.URL, "error", err.Error())
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Debug("Listing hydration failed", "url", l.URL, "status", resp.StatusCode)
		return
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return
	}

	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		l.Title = strings.Join(strings.Fields(h1), " ")
	}
	if p := strings.TrimSpace(doc.Find("p").First().Text()); p != "" {
		l.Description = strings.Join(strings.Fields(p), " ")
	}
}

// Package inspector renders a posting page and asks the form describer what
// application form it carries.
package inspector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobapplicator/internal/ai"
	"jobapplicator/internal/browser"
	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"
	"jobapplicator/internal/types"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Recorder receives one observation per describe call.
type Recorder interface {
	RecordDescribe(ctx context.Context, duration time.Duration, inputTokens, outputTokens int64, err error)
}

type noopRecorder struct{}

func (noopRecorder) RecordDescribe(context.Context, time.Duration, int64, int64, error) {}

// Inspector produces FormDescriptions from posting URLs.
type Inspector struct {
	driver    browser.Driver
	describer ai.FormDescriber
	cfg       config.BrowserConfig
	logger    *errors.Logger
	recorder  Recorder
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithRecorder reports describe calls to r.
func WithRecorder(r Recorder) Option {
	return func(i *Inspector) {
		if r != nil {
			i.recorder = r
		}
	}
}

// New creates an inspector sharing driver with the submitter.
func New(driver browser.Driver, describer ai.FormDescriber, cfg config.BrowserConfig, logger *errors.Logger, opts ...Option) *Inspector {
	i := &Inspector{
		driver:    driver,
		describer: describer,
		cfg:       cfg,
		logger:    logger,
		recorder:  noopRecorder{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Inspect loads url and returns its form description. A nil description with
// an error means absence: the page had no usable form, or could not be read.
func (i *Inspector) Inspect(ctx context.Context, url string) (desc *types.FormDescription, err error) {
	ctx, span := otel.Tracer("jobapplicator.inspector").Start(ctx, "inspector.inspect")
	defer span.End()
	span.SetAttributes(attribute.String("page.url", url))

	defer func() {
		if r := recover(); r != nil {
			err = errors.NewFormError(errors.ErrCodeFormUnparseable, fmt.Sprintf("internal fault: %v", r), nil).
				WithContext("url", url)
			i.logger.LogError(err, "Recovered from panic while inspecting page", "url", url)
			span.RecordError(err)
			desc = nil
		}
	}()

	if i.cfg.ListingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.ListingTimeout)
		defer cancel()
	}

	snapshot, err := i.snapshot(ctx, url)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	start := time.Now()
	desc, usage, err := i.describer.Describe(ctx, *snapshot)
	var in, out int64
	if usage != nil {
		in, out = usage.InputTokens, usage.OutputTokens
	}
	i.recorder.RecordDescribe(ctx, time.Since(start), in, out, err)
	if err != nil {
		span.RecordError(err)
		if errors.IsType(err, errors.ErrorTypeForm) {
			return nil, err
		}
		return nil, errors.NewFormError(errors.ErrCodeFormUnparseable, "form description failed", err)
	}
	if desc == nil {
		err := errors.NewFormError(errors.ErrCodeFormUnparseable, "describer returned no form description", nil).
			WithContext("url", url)
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("form.field_count", len(desc.Fields)))
	i.logger.Debug("Form described",
		"url", url,
		"fields", len(desc.Fields),
		"resume_upload_id", desc.ResumeUploadID,
		"submit_button_id", desc.SubmitButtonID)
	return desc, nil
}

// snapshot loads the page (retrying once) and extracts what the describer sees.
func (i *Inspector) snapshot(ctx context.Context, url string) (*types.PageSnapshot, error) {
	page, err := i.driver.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = page.Close() }()

	if err := browser.LoadWithRetry(ctx, page, url, i.cfg.RetryBackoff, i.logger); err != nil {
		return nil, err
	}

	html, err := page.Content(ctx)
	if err != nil {
		return nil, errors.NewFormError(errors.ErrCodeFormUnparseable, "failed to read page content", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.NewFormError(errors.ErrCodeFormUnparseable, "failed to parse page HTML", err)
	}

	forms := extractForms(doc)
	if len(forms) == 0 {
		return nil, errors.NewFormError(errors.ErrCodeFormUnparseable, "page has no form inputs", nil).
			WithContext("url", url)
	}

	text, err := page.Text(ctx)
	if err != nil || strings.TrimSpace(text) == "" {
		text = doc.Find("body").Text()
	}

	return &types.PageSnapshot{
		URL:   url,
		Text:  limitRunes(strings.Join(strings.Fields(text), " "), i.cfg.PageTextLimit),
		Forms: forms,
	}, nil
}

// extractForms returns the outer HTML of each <form>. Pages that render inputs
// outside a form element contribute their loose controls instead.
func extractForms(doc *goquery.Document) []string {
	var forms []string
	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		if h, err := goquery.OuterHtml(s); err == nil {
			forms = append(forms, h)
		}
	})
	if len(forms) > 0 {
		return forms
	}

	var controls []string
	doc.Find("input, textarea, select, button").Each(func(_ int, s *goquery.Selection) {
		if t, _ := s.Attr("type"); strings.EqualFold(t, "hidden") {
			return
		}
		if h, err := goquery.OuterHtml(s); err == nil {
			controls = append(controls, h)
		}
	})
	if len(controls) == 0 {
		return nil
	}
	return []string{strings.Join(controls, "\n")}
}

func limitRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

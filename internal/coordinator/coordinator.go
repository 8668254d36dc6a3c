// Package coordinator drives one application run: search, inspect each
// listing, prepare its form, record the outcome.
package coordinator

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"jobapplicator/internal/errors"
	"jobapplicator/internal/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ListingSource discovers candidate postings.
type ListingSource interface {
	Find(ctx context.Context, criteria types.SearchCriteria, domains []string) ([]types.JobListing, error)
}

// FormInspector describes the application form behind a posting URL. A nil
// description means the listing has no usable form.
type FormInspector interface {
	Inspect(ctx context.Context, url string) (*types.FormDescription, error)
}

// FormSubmitter prepares a form and reports what happened. It must not panic.
type FormSubmitter interface {
	Submit(ctx context.Context, job types.JobListing, profile types.UserProfile, form types.FormDescription) types.ApplicationOutcome
}

// OutcomeTracker is the append-only outcome log.
type OutcomeTracker interface {
	Record(outcome types.ApplicationOutcome) error
	All() []types.ApplicationOutcome
	Flush() error
}

// Recorder receives run-level observations.
type Recorder interface {
	RecordListingsFound(ctx context.Context, count int)
	RecordFormSkipped(ctx context.Context, reason string)
	RecordOutcome(ctx context.Context, success bool)
	RecordRun(ctx context.Context, duration time.Duration, err error)
}

type noopRecorder struct{}

func (noopRecorder) RecordListingsFound(context.Context, int) {}
func (noopRecorder) RecordFormSkipped(context.Context, string) {}
func (noopRecorder) RecordOutcome(context.Context, bool) {}
func (noopRecorder) RecordRun(context.Context, time.Duration, error) {}

// Coordinator wires the four run stages together.
type Coordinator struct {
	source    ListingSource
	inspector FormInspector
	submitter FormSubmitter
	tracker   OutcomeTracker
	logger    *errors.Logger
	recorder  Recorder
	newID     func() string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRecorder reports run metrics to r.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithRunID overrides run id generation.
func WithRunID(fn func() string) Option {
	return func(c *Coordinator) { c.newID = fn }
}

// New creates a coordinator.
func New(source ListingSource, inspector FormInspector, submitter FormSubmitter, tracker OutcomeTracker, logger *errors.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:    source,
		inspector: inspector,
		submitter: submitter,
		tracker:   tracker,
		logger:    logger,
		recorder:  noopRecorder{},
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run performs one run and returns every outcome the tracker holds, including
// those from earlier runs sharing the same tracker.
func (c *Coordinator) Run(ctx context.Context, profile types.UserProfile, criteria types.SearchCriteria, domains []string) ([]types.ApplicationOutcome, error) {
	_, outcomes, err := c.RunWithSummary(ctx, profile, criteria, domains)
	return outcomes, err
}

// RunWithSummary is Run plus the counts for this run alone.
//
// Source failures end the run and are returned unchanged. Inspection failures
// skip the listing. Cancellation stops before the next listing and returns
// what was recorded so far together with the context error.
func (c *Coordinator) RunWithSummary(ctx context.Context, profile types.UserProfile, criteria types.SearchCriteria, domains []string) (types.RunSummary, []types.ApplicationOutcome, error) {
	summary := types.RunSummary{RunID: c.newID()}
	logger := c.logger.With("run_id", summary.RunID)
	start := time.Now()

	ctx, span := otel.Tracer("jobapplicator.coordinator").Start(ctx, "coordinator.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", summary.RunID),
		attribute.String("criteria.title", criteria.Title),
		attribute.StringSlice("run.domains", domains),
	)

	finish := func(err error) (types.RunSummary, []types.ApplicationOutcome, error) {
		if flushErr := c.tracker.Flush(); flushErr != nil {
			logger.LogError(flushErr, "Final persistence of outcomes failed")
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(
			attribute.Int("run.found", summary.Found),
			attribute.Int("run.skipped", summary.Skipped),
			attribute.Int("run.succeeded", summary.Succeeded),
			attribute.Int("run.failed", summary.Failed),
		)
		c.recorder.RecordRun(ctx, time.Since(start), err)
		return summary, c.tracker.All(), err
	}

	logger.Info("Run started", "title", criteria.Title, "location", criteria.Location, "domains", domains)

	listings, err := c.source.Find(ctx, criteria, domains)
	if err != nil {
		logger.LogError(err, "Job listing search failed")
		c.recorder.RecordRun(ctx, time.Since(start), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return summary, nil, err
	}

	summary.Found = len(listings)
	c.recorder.RecordListingsFound(ctx, len(listings))
	if len(listings) == 0 {
		logger.Info("No job listings found")
		c.recorder.RecordRun(ctx, time.Since(start), nil)
		return summary, []types.ApplicationOutcome{}, nil
	}

	for i, listing := range listings {
		if err := ctx.Err(); err != nil {
			logger.Warn("Run cancelled", "remaining", len(listings)-i)
			return finish(err)
		}
		c.processListing(ctx, logger, &summary, profile, listing)
	}

	logger.Info("Run completed",
		"found", summary.Found,
		"skipped", summary.Skipped,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed)
	return finish(nil)
}

func (c *Coordinator) processListing(ctx context.Context, logger *errors.Logger, summary *types.RunSummary, profile types.UserProfile, listing types.JobListing) {
	ctx, span := otel.Tracer("jobapplicator.coordinator").Start(ctx, "coordinator.listing")
	defer span.End()
	span.SetAttributes(attribute.String("page.url", listing.URL), attribute.String("listing.domain", listing.Domain))

	logger = logger.With("url", listing.URL)

	form, err := c.inspect(ctx, listing.URL)
	if err != nil || form == nil {
		summary.Skipped++
		reason := skipReason(err)
		c.recorder.RecordFormSkipped(ctx, reason)
		span.SetAttributes(attribute.String("listing.skipped", reason))
		if err != nil {
			logger.LogError(err, "Skipping listing without usable form")
		} else {
			logger.Info("Skipping listing without usable form")
		}
		return
	}

	outcome := c.submitter.Submit(ctx, listing, profile, *form)
	if outcome.Success {
		summary.Succeeded++
	} else {
		summary.Failed++
	}
	c.recorder.RecordOutcome(ctx, outcome.Success)
	span.SetAttributes(attribute.Bool("success", outcome.Success))

	// The tracker keeps the outcome in memory and reports the failure itself
	if err := c.tracker.Record(outcome); err != nil {
		logger.Warn("Outcome recorded in memory only", "error", err.Error())
	}
}

// inspect turns an inspector panic into an unparseable-form absence.
func (c *Coordinator) inspect(ctx context.Context, url string) (form *types.FormDescription, err error) {
	defer func() {
		if r := recover(); r != nil {
			form = nil
			err = errors.NewFormError(errors.ErrCodeFormUnparseable, fmt.Sprintf("internal fault: %v", r), nil)
		}
	}()
	return c.inspector.Inspect(ctx, url)
}

func skipReason(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	if err != nil {
		return "error"
	}
	return "no_form"
}

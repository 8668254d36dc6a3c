// Package submitter populates application forms from a user profile. It never
// activates the submit control.
package submitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jobapplicator/internal/browser"
	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"
	"jobapplicator/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// PreparedNote is the note attached to every successfully prepared form.
const PreparedNote = "prepared, not submitted"

// Submitter fills forms on the shared browser session.
type Submitter struct {
	driver browser.Driver
	cfg    config.BrowserConfig
	logger *errors.Logger
	now    func() time.Time
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithClock overrides the outcome timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Submitter) { s.now = now }
}

// New creates a submitter sharing driver with the inspector.
func New(driver browser.Driver, cfg config.BrowserConfig, logger *errors.Logger, opts ...Option) *Submitter {
	s := &Submitter{driver: driver, cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit prepares the application form for job and reports the outcome. It
// never returns an error or panics; every fault becomes a failed outcome.
func (s *Submitter) Submit(ctx context.Context, job types.JobListing, profile types.UserProfile, form types.FormDescription) (outcome types.ApplicationOutcome) {
	ctx, span := otel.Tracer("jobapplicator.submitter").Start(ctx, "submitter.submit")
	defer span.End()
	span.SetAttributes(attribute.String("page.url", job.URL), attribute.Int("form.field_count", len(form.Fields)))

	timestamp := s.now()
	defer func() {
		if r := recover(); r != nil {
			err := errors.NewSubmissionError(errors.ErrCodeSubmissionFailed, fmt.Sprintf("internal fault: %v", r), nil)
			s.logger.LogError(err, "Recovered from panic while preparing form", "url", job.URL)
			outcome = failed(job, timestamp, err)
		}
		span.SetAttributes(attribute.Bool("success", outcome.Success))
	}()

	if s.cfg.ListingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ListingTimeout)
		defer cancel()
	}

	if err := s.prepare(ctx, job, profile, form); err != nil {
		span.RecordError(err)
		s.logger.LogError(err, "Form preparation failed", "url", job.URL)
		return failed(job, timestamp, err)
	}

	s.logger.Info("Form prepared", "url", job.URL, "title", job.Title)
	return types.ApplicationOutcome{
		Job:       job,
		Success:   true,
		Timestamp: timestamp,
		Notes:     PreparedNote,
	}
}

func (s *Submitter) prepare(ctx context.Context, job types.JobListing, profile types.UserProfile, form types.FormDescription) error {
	page, err := s.driver.NewPage(ctx)
	if err != nil {
		return errors.NewSubmissionError(errors.ErrCodeSubmissionFailed, "could not open browser page", err)
	}
	defer func() { _ = page.Close() }()

	if err := browser.LoadWithRetry(ctx, page, job.URL, s.cfg.RetryBackoff, s.logger); err != nil {
		return errors.NewSubmissionError(errors.ErrCodePageLoadFailed, "could not load application page", err)
	}

	filled := 0
	for _, field := range form.Fields {
		value, ok := ResolveValue(field.Label, profile)
		if !ok {
			continue
		}
		if value == "" {
			s.logger.Debug("No profile value for field", "url", job.URL, "field_id", field.ID, "label", field.Label)
			continue
		}

		found, err := fillField(ctx, page, field.ID, value)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return errors.NewSubmissionError(errors.ErrCodeNetworkTimeout, "form preparation timed out", ctxErr)
			}
			s.logger.Warn("Form field could not be filled, skipping",
				"url", job.URL, "field_id", field.ID, "label", field.Label, "error", err.Error())
			continue
		}
		if !found {
			s.logger.Info("Form field not found on page", "url", job.URL, "field_id", field.ID, "label", field.Label)
			continue
		}
		filled++
	}

	if form.ResumeUploadID != "" && profile.ResumePath != "" {
		s.uploadResume(ctx, page, job.URL, form.ResumeUploadID, profile.ResumePath)
	}

	if form.SubmitButtonID != "" {
		s.logger.Debug("Submit control left untouched", "url", job.URL, "submit_button_id", form.SubmitButtonID)
	}

	if err := ctx.Err(); err != nil {
		return errors.NewSubmissionError(errors.ErrCodeNetworkTimeout, "form preparation timed out", err)
	}

	s.logger.Debug("Form fields populated", "url", job.URL, "filled", filled, "fields", len(form.Fields))
	return nil
}

// fillField looks the input up by id, then by name. The by-name lookup also
// runs when the element found by id rejects the value.
func fillField(ctx context.Context, page browser.Page, id, value string) (bool, error) {
	found, idErr := page.FillByID(ctx, id, value)
	if found && idErr == nil {
		return true, nil
	}
	found, nameErr := page.FillByName(ctx, id, value)
	if found && nameErr == nil {
		return true, nil
	}
	if idErr != nil {
		return false, idErr
	}
	return false, nameErr
}

// uploadResume attaches the resume file. Failures are logged and ignored.
func (s *Submitter) uploadResume(ctx context.Context, page browser.Page, url, target, resumePath string) {
	path, err := filepath.Abs(resumePath)
	if err != nil {
		s.logger.Warn("Resume path could not be resolved", "url", url, "path", resumePath, "error", err.Error())
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.logger.Warn("Resume file is not readable", "url", url, "path", path, "error", err.Error())
		return
	}

	found, err := page.SetFilesByID(ctx, target, path)
	if err == nil && !found {
		found, err = page.SetFilesByName(ctx, target, path)
	}
	switch {
	case err != nil:
		s.logger.Warn("Resume upload failed", "url", url, "target", target, "error", err.Error())
	case !found:
		s.logger.Info("Resume upload target not found on page", "url", url, "target", target)
	default:
		s.logger.Debug("Resume attached", "url", url, "target", target)
	}
}

func failed(job types.JobListing, ts time.Time, err error) types.ApplicationOutcome {
	return types.ApplicationOutcome{
		Job:       job,
		Success:   false,
		Timestamp: ts,
		Notes:     err.Error(),
	}
}

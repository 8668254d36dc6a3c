// Package browser wraps the page-rendering automation session shared by the
// form inspector and the form submitter.
package browser

import (
	"context"
	"strings"
	"time"

	"jobapplicator/internal/errors"
)

// Driver hands out pages from one automation session.
type Driver interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single browser tab. Fill and SetFiles report whether a matching
// element existed; a false result with a nil error is a miss, not a failure.
type Page interface {
	Goto(ctx context.Context, url string) error
	Content(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
	FillByID(ctx context.Context, id, value string) (bool, error)
	FillByName(ctx context.Context, name, value string) (bool, error)
	SetFilesByID(ctx context.Context, id, path string) (bool, error)
	SetFilesByName(ctx context.Context, name, path string) (bool, error)
	Close() error
}

// idSelector matches an element by id without relying on CSS identifier escaping.
func idSelector(id string) string {
	return `[id="` + quoteAttr(id) + `"]`
}

func nameSelector(name string) string {
	return `[name="` + quoteAttr(name) + `"]`
}

func quoteAttr(v string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v)
}

// timeoutMillis converts the time left on ctx into a playwright timeout,
// capped by limit. A context without a deadline uses limit as is; zero means
// no timeout.
func timeoutMillis(ctx context.Context, limit time.Duration) float64 {
	d := limit
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); d <= 0 || left < d {
			d = left
		}
		if d <= 0 {
			d = time.Millisecond
		}
	}
	return float64(d.Milliseconds())
}

// LoadWithRetry navigates page to url, retrying once after backoff.
func LoadWithRetry(ctx context.Context, page Page, url string, backoff time.Duration, logger *errors.Logger) error {
	err := page.Goto(ctx, url)
	if err == nil {
		return nil
	}
	logger.Warn("Page load failed, retrying once", "url", url, "error", err.Error())

	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return errors.NewNetworkError(errors.ErrCodePageLoadFailed, "page load cancelled", ctx.Err())
	}

	if err := page.Goto(ctx, url); err != nil {
		if errors.IsType(err, errors.ErrorTypeNetwork) {
			return err
		}
		return errors.NewNetworkError(errors.ErrCodePageLoadFailed, "failed to load "+url, err)
	}
	return nil
}

package browser

import (
	"context"
	"fmt"
	"sync"

	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"

	"github.com/playwright-community/playwright-go"
)

// Session is a lazily started Chromium instance. The first NewPage call
// starts the driver; Close releases the browser and then the driver.
type Session struct {
	cfg    config.BrowserConfig
	logger *errors.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	closed  bool
}

var _ Driver = (*Session)(nil)

// NewSession creates a session; nothing is launched until a page is requested.
func NewSession(cfg config.BrowserConfig, logger *errors.Logger) *Session {
	return &Session{cfg: cfg, logger: logger}
}

func (s *Session) start() error {
	if s.context != nil {
		return nil
	}
	if s.closed {
		return errors.NewInternalError(errors.ErrCodeBrowserUnavailable, "browser session already closed", nil)
	}

	pw, err := playwright.Run()
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeBrowserUnavailable,
			"failed to start playwright driver (run 'playwright install chromium')", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.cfg.Headless),
		Args:     s.cfg.LaunchArgs,
	})
	if err != nil {
		_ = pw.Stop()
		return errors.NewInternalError(errors.ErrCodeBrowserUnavailable, "failed to launch chromium", err)
	}

	ctxOpts := playwright.BrowserNewContextOptions{}
	if s.cfg.UserAgent != "" {
		ctxOpts.UserAgent = playwright.String(s.cfg.UserAgent)
	}
	bctx, err := browser.NewContext(ctxOpts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return errors.NewInternalError(errors.ErrCodeBrowserUnavailable, "failed to create browser context", err)
	}

	s.pw, s.browser, s.context = pw, browser, bctx
	s.logger.Info("Browser session started", "headless", s.cfg.Headless)
	return nil
}

// NewPage opens a tab, starting the browser on first use.
func (s *Session) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.start(); err != nil {
		return nil, err
	}

	page, err := s.context.NewPage()
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeBrowserUnavailable, "failed to open page", err)
	}
	page.SetDefaultTimeout(float64(s.cfg.ActionTimeout.Milliseconds()))
	page.SetDefaultNavigationTimeout(float64(s.cfg.PageLoadTimeout.Milliseconds()))

	return &playwrightPage{page: page, cfg: s.cfg}, nil
}

// Close releases the browser and the driver. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			firstErr = fmt.Errorf("closing browser: %w", err)
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stopping playwright: %w", err)
		}
		s.logger.Info("Browser session closed")
	}
	s.pw, s.browser, s.context = nil, nil, nil
	return firstErr
}

// playwrightPage adapts a playwright.Page to Page.
type playwrightPage struct {
	page playwright.Page
	cfg  config.BrowserConfig
}

func (p *playwrightPage) Goto(ctx context.Context, url string) error {
	resp, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(timeoutMillis(ctx, p.cfg.PageLoadTimeout)),
	})
	if err != nil {
		return errors.NewNetworkError(errors.ErrCodePageLoadFailed, "failed to load "+url, err)
	}
	if resp != nil && resp.Status() >= 400 {
		return errors.NewNetworkError(errors.ErrCodePageLoadFailed,
			fmt.Sprintf("loading %s returned HTTP %d", url, resp.Status()), nil)
	}
	return nil
}

func (p *playwrightPage) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Content()
}

func (p *playwrightPage) Text(ctx context.Context) (string, error) {
	return p.page.Locator("body").InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(timeoutMillis(ctx, p.cfg.ActionTimeout)),
	})
}

func (p *playwrightPage) FillByID(ctx context.Context, id, value string) (bool, error) {
	return p.fill(ctx, idSelector(id), value)
}

func (p *playwrightPage) FillByName(ctx context.Context, name, value string) (bool, error) {
	return p.fill(ctx, nameSelector(name), value)
}

func (p *playwrightPage) SetFilesByID(ctx context.Context, id, path string) (bool, error) {
	return p.setFiles(ctx, idSelector(id), path)
}

func (p *playwrightPage) SetFilesByName(ctx context.Context, name, path string) (bool, error) {
	return p.setFiles(ctx, nameSelector(name), path)
}

func (p *playwrightPage) locate(ctx context.Context, selector string) (playwright.Locator, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	loc := p.page.Locator(selector)
	count, err := loc.Count()
	if err != nil {
		return nil, false, err
	}
	if count == 0 {
		return nil, false, nil
	}
	return loc.First(), true, nil
}

func (p *playwrightPage) fill(ctx context.Context, selector, value string) (bool, error) {
	loc, ok, err := p.locate(ctx, selector)
	if !ok || err != nil {
		return false, err
	}
	err = loc.Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(timeoutMillis(ctx, p.cfg.ActionTimeout)),
	})
	return true, err
}

func (p *playwrightPage) setFiles(ctx context.Context, selector, path string) (bool, error) {
	loc, ok, err := p.locate(ctx, selector)
	if !ok || err != nil {
		return false, err
	}
	err = loc.SetInputFiles(path, playwright.LocatorSetInputFilesOptions{
		Timeout: playwright.Float(timeoutMillis(ctx, p.cfg.ActionTimeout)),
	})
	return true, err
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}

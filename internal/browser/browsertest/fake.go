// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"

	"jobapplicator/internal/browser"
)

// FakePage describes what a URL serves and records what was done to it.
type FakePage struct {
	HTML string
	Text string
	// IDs and Names list the element ids and names present on the page.
	IDs   []string
	Names []string

	// GotoErrs are returned by successive Goto calls before loads succeed.
	GotoErrs []error
	// FillErr is returned by every fill that finds its element.
	FillErr error
	// IDFillErrs fail fills of the element found by that id only.
	IDFillErrs map[string]error
	// Panic makes Goto panic with this value.
	Panic any
}

// Driver serves FakePages keyed by URL.
type Driver struct {
	mu      sync.Mutex
	pages   map[string]*FakePage
	gotos   map[string]int
	filled  map[string]map[string]string
	files   map[string]map[string]string
	opened  int
	closed  bool
	NewErr  error
	Visited []string
}

var _ browser.Driver = (*Driver)(nil)

// NewDriver creates an empty fake driver.
func NewDriver() *Driver {
	return &Driver{
		pages:  make(map[string]*FakePage),
		gotos:  make(map[string]int),
		filled: make(map[string]map[string]string),
		files:  make(map[string]map[string]string),
	}
}

// Serve registers the page returned for url.
func (d *Driver) Serve(url string, p *FakePage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pages[url] = p
}

// Filled returns the values written on url, keyed by element id or name.
func (d *Driver) Filled(url string) map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.filled[url]))
	for k, v := range d.filled[url] {
		out[k] = v
	}
	return out
}

// Files returns the file paths attached on url, keyed by element id or name.
func (d *Driver) Files(url string) map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.files[url]))
	for k, v := range d.files[url] {
		out[k] = v
	}
	return out
}

// Opened reports how many pages were requested.
func (d *Driver) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Driver) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NewErr != nil {
		return nil, d.NewErr
	}
	d.opened++
	return &page{d: d}, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type page struct {
	d   *Driver
	url string
	fp  *FakePage
}

func (p *page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.d.mu.Lock()
	fp, ok := p.d.pages[url]
	n := p.d.gotos[url]
	p.d.gotos[url] = n + 1
	p.d.Visited = append(p.d.Visited, url)
	p.d.mu.Unlock()

	if !ok {
		return fmt.Errorf("no page served at %s", url)
	}
	if fp.Panic != nil {
		panic(fp.Panic)
	}
	if n < len(fp.GotoErrs) && fp.GotoErrs[n] != nil {
		return fp.GotoErrs[n]
	}
	p.url, p.fp = url, fp
	return nil
}

func (p *page) Content(ctx context.Context) (string, error) {
	if p.fp == nil {
		return "", fmt.Errorf("no page loaded")
	}
	return p.fp.HTML, ctx.Err()
}

func (p *page) Text(ctx context.Context) (string, error) {
	if p.fp == nil {
		return "", fmt.Errorf("no page loaded")
	}
	return p.fp.Text, ctx.Err()
}

func (p *page) FillByID(ctx context.Context, id, value string) (bool, error) {
	if err := p.fp.IDFillErrs[id]; err != nil && contains(p.fp.IDs, id) {
		return true, err
	}
	return p.set(ctx, p.fp.IDs, id, value, p.d.filled)
}

func (p *page) FillByName(ctx context.Context, name, value string) (bool, error) {
	return p.set(ctx, p.fp.Names, name, value, p.d.filled)
}

func (p *page) SetFilesByID(ctx context.Context, id, path string) (bool, error) {
	return p.set(ctx, p.fp.IDs, id, path, p.d.files)
}

func (p *page) SetFilesByName(ctx context.Context, name, path string) (bool, error) {
	return p.set(ctx, p.fp.Names, name, path, p.d.files)
}

func (p *page) set(ctx context.Context, present []string, key, value string, into map[string]map[string]string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !contains(present, key) {
		return false, nil
	}
	if p.fp.FillErr != nil {
		return true, p.fp.FillErr
	}
	p.d.mu.Lock()
	defer p.d.mu.Unlock()
	if into[p.url] == nil {
		into[p.url] = make(map[string]string)
	}
	into[p.url][key] = value
	return true, nil
}

func (p *page) Close() error { return nil }

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

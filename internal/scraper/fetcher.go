// Package scraper fetches company web pages and extracts the text used to
// compose a factsheet.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/raphaelgruber/factsheet-go/internal/models"
)

// ErrFetch is returned when a page cannot be retrieved.
var ErrFetch = errors.New("fetch failed")

const (
	maxBodyBytes    = 2 << 20
	maxRedirects    = 5
	maxContentChars = 3000
)

// Options configures a Fetcher.
type Options struct {
	Timeout   time.Duration
	Delay     time.Duration // minimum spacing between requests to the same host
	UserAgent string
	Client    *http.Client // optional, overrides Timeout
	Logger    *slog.Logger
}

// Fetcher retrieves a homepage and, when one is linked, its about page.
type Fetcher struct {
	client    *http.Client
	userAgent string
	delay     time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:    client,
		userAgent: opts.UserAgent,
		delay:     opts.Delay,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Fetch scrapes the homepage at rawURL and tries to add its about page.
// Only a homepage failure is reported as an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.CompanyData, error) {
	f.logger.Info("scraping company", "url", rawURL)

	home, doc, err := f.page(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	data := &models.CompanyData{URL: rawURL, Homepage: *home}

	aboutURL := findAboutLink(rawURL, doc)
	if aboutURL == "" {
		return data, nil
	}

	f.logger.Info("found about page", "url", aboutURL)
	about, _, err := f.page(ctx, aboutURL)
	if err != nil {
		f.logger.Warn("could not scrape about page", "url", aboutURL, "error", err)
		return data, nil
	}
	data.About = *about
	return data, nil
}

func (f *Fetcher) page(ctx context.Context, rawURL string) (*models.PageData, *html.Node, error) {
	if err := f.wait(ctx, rawURL); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrFetch, rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrFetch, rawURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrFetch, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("%w: %s: HTTP %d", ErrFetch, rawURL, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse %s: %w", ErrFetch, rawURL, err)
	}

	p := extractPage(doc)
	p.URL = rawURL
	p.Success = true
	return &p, doc, nil
}

// wait blocks until the per-host limiter allows another request.
func (f *Fetcher) wait(ctx context.Context, rawURL string) error {
	if f.delay <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	host := strings.ToLower(u.Hostname())

	f.mu.Lock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(f.delay), 1)
		f.limiters[host] = lim
	}
	f.mu.Unlock()

	return lim.Wait(ctx)
}

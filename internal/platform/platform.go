// Package platform implements the marketplace search adapters and the registry that resolves them.
package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sethvargo/go-retry"

	"market_bot/internal/browser"
	"market_bot/internal/filter"
	"market_bot/internal/model"
)

// ErrBlocked means the marketplace refused the request (anti-bot page, rate limit).
var ErrBlocked = errors.New("blocked by marketplace")

var priceRe = regexp.MustCompile(`R\$\s*[\d.,]+`)

// PageFetcher downloads a search result page.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// Adapter is a single marketplace integration.
type Adapter interface {
	Key() string
	Name() string
	// SearchURL builds the search page URL for a keyword and filter-set.
	SearchURL(keyword string, fs filter.Set) string
	// Search returns the listings currently on the first result page.
	// Transient failures are retried with backoff before an error is returned.
	Search(ctx context.Context, keyword string, fs filter.Set) ([]model.Listing, error)
	ToggleFilter(fs filter.Set, key, value string) filter.Set
	SummarizeFilters(fs filter.Set) string
	FilterView(fs filter.Set) filter.View
}

// Options tunes the retrying fetch shared by every adapter.
type Options struct {
	Retries uint64
	Backoff time.Duration
}

// Scraper is an Adapter backed by HTML result pages.
type Scraper struct {
	key     string
	name    string
	fetcher PageFetcher
	opts    Options
	log     *slog.Logger

	buildURL func(keyword string, fs filter.Set) string
	extract  func(doc *goquery.Document) []model.Listing
}

func newScraper(key, name string, fetcher PageFetcher, opts Options, log *slog.Logger) *Scraper {
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	return &Scraper{
		key:     key,
		name:    name,
		fetcher: fetcher,
		opts:    opts,
		log:     log.With("platform", key),
	}
}

func (s *Scraper) Key() string  { return s.key }
func (s *Scraper) Name() string { return s.name }

func (s *Scraper) SearchURL(keyword string, fs filter.Set) string {
	return s.buildURL(keyword, s.own(fs))
}

func (s *Scraper) Search(ctx context.Context, keyword string, fs filter.Set) ([]model.Listing, error) {
	url := s.SearchURL(keyword, fs)

	var body []byte
	attempt := 0
	backoff := retry.WithMaxRetries(s.opts.Retries, retry.NewExponential(s.opts.Backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		data, err := s.fetcher.FetchPage(ctx, url)
		if err != nil {
			err = classify(err)
			s.log.Warn("fetch attempt failed", "keyword", keyword, "attempt", attempt, "error", err)
			if isPermanent(err) {
				return err
			}
			return retry.RetryableError(err)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search %s %q: %w", s.key, keyword, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s page: %w", s.key, err)
	}
	listings := normalize(s.extract(doc))
	s.log.Debug("search done", "keyword", keyword, "results", len(listings))
	return listings, nil
}

func (s *Scraper) ToggleFilter(fs filter.Set, key, value string) filter.Set {
	if key == filter.KeyClear {
		return filter.Empty(s.key)
	}
	return s.own(fs).Toggle(key, value)
}

func (s *Scraper) SummarizeFilters(fs filter.Set) string {
	return s.own(fs).Summary()
}

func (s *Scraper) FilterView(fs filter.Set) filter.View {
	return s.own(fs).View()
}

// own returns fs if it belongs to this platform, the defaults otherwise.
func (s *Scraper) own(fs filter.Set) filter.Set {
	if fs == nil || fs.Platform() != s.key {
		return filter.Empty(s.key)
	}
	return fs
}

func classify(err error) error {
	var se *browser.StatusError
	if errors.As(err, &se) && (se.Code == http.StatusForbidden || se.Code == http.StatusTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrBlocked, err)
	}
	return err
}

func isPermanent(err error) bool {
	var se *browser.StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// normalize trims fields, strips tracking parameters and drops duplicate or id-less entries.
func normalize(in []model.Listing) []model.Listing {
	out := make([]model.Listing, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, l := range in {
		l.ID = strings.TrimSpace(l.ID)
		l.Title = strings.Join(strings.Fields(l.Title), " ")
		l.Price = strings.TrimSpace(l.Price)
		l.URL = stripQuery(strings.TrimSpace(l.URL))
		l.Image = strings.TrimSpace(l.Image)
		if l.ID == "" {
			continue
		}
		if _, dup := seen[l.ID]; dup {
			continue
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	return out
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

func absolute(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return base + "/" + strings.TrimPrefix(href, "/")
}

func slug(keyword string) string {
	return strings.Join(strings.Fields(keyword), "-")
}

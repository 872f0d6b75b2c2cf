// Package browser owns the long-lived page-fetch resource shared by all platform adapters.
package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
	maxBodySize      = 8 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// Options configures a Session.
type Options struct {
	// MaxAge is how long a client is reused before it is replaced. Zero disables recycling.
	MaxAge    time.Duration
	Timeout   time.Duration
	UserAgent string
	// NewClient builds the underlying client. Defaults to an http.Client with a cookie jar.
	NewClient func() HTTPClient
}

// Session lazily creates an HTTP client, reuses it across fetches and
// recycles it after MaxAge so cookies and connections do not go stale.
type Session struct {
	mu        sync.Mutex
	client    HTTPClient
	createdAt time.Time

	maxAge    time.Duration
	userAgent string
	newClient func() HTTPClient
	now       func() time.Time
	log       *slog.Logger
}

// New creates a Session. No network resource is held until the first fetch.
func New(opts Options, log *slog.Logger) *Session {
	s := &Session{
		maxAge:    opts.MaxAge,
		userAgent: opts.UserAgent,
		newClient: opts.NewClient,
		now:       time.Now,
		log:       log,
	}
	if s.userAgent == "" {
		s.userAgent = defaultUserAgent
	}
	if s.newClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		s.newClient = func() HTTPClient {
			jar, _ := cookiejar.New(nil)
			return &http.Client{Timeout: timeout, Jar: jar}
		}
	}
	return s
}

// FetchPage downloads the page at url and returns its body.
func (s *Session) FetchPage(ctx context.Context, url string) ([]byte, error) {
	client := s.acquire()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.6")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// Close releases the current client. A later fetch creates a fresh one.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release()
	return nil
}

func (s *Session) acquire() HTTPClient {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil && s.maxAge > 0 && s.now().Sub(s.createdAt) >= s.maxAge {
		s.log.Info("recycling browser session", "age", s.now().Sub(s.createdAt).Round(time.Second))
		s.release()
	}
	if s.client == nil {
		s.client = s.newClient()
		s.createdAt = s.now()
		s.log.Debug("browser session created")
	}
	return s.client
}

func (s *Session) release() {
	if s.client == nil {
		return
	}
	if c, ok := s.client.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
	s.client = nil
}

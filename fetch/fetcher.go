// Package fetch retrieves documents over HTTP for the pipeline. A fetch is a
// single attempt: failures are reported, never retried.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"

	"golang.org/x/net/html/charset"
)

// DefaultUserAgent presents the fetcher as a desktop browser. Several of the
// sites serve reduced or blocked pages to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultTimeout bounds a single request.
const DefaultTimeout = 15 * time.Second

// maxBodySize caps how much of a response is read.
const maxBodySize = 10 << 20

// FetchResult is a fetched document. Body is UTF-8 for HTML responses.
type FetchResult struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// FetchError describes a failed fetch: a transport failure, a timeout or a
// non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the fetch failed because a deadline passed.
func (e *FetchError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// Config configures a Fetcher.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	// CookieFile is a Netscape cookies.txt file sent with every request.
	// A missing file is ignored.
	CookieFile string
	// Transport overrides the HTTP transport, mostly for tests.
	Transport http.RoundTripper
}

// Fetcher performs HTTP GET requests with a browser identity.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a fetcher from cfg.
func NewFetcher(cfg Config) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: cfg.Transport,
	}

	if cfg.CookieFile != "" {
		if _, err := os.Stat(cfg.CookieFile); err == nil {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create cookie jar: %w", err)
			}
			if err := LoadCookieFile(jar, cfg.CookieFile); err != nil {
				return nil, err
			}
			client.Jar = jar
		}
	}

	return &Fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
	}, nil
}

// UserAgent returns the agent string sent with requests.
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// Fetch retrieves url. Any non-2xx status is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	result, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	if result.StatusCode < 200 || result.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: result.StatusCode}
	}

	if isHTML(result.ContentType) {
		decoded, err := decodeHTML(result.Body, result.ContentType)
		if err != nil {
			return nil, &FetchError{URL: url, Err: err}
		}
		result.Body = decoded
	}

	return result, nil
}

// get performs the request and reads the body whatever the status.
func (f *Fetcher) get(ctx context.Context, url string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/rss+xml,*/*;q=0.8")
	req.Header.Set("Accept-Language", "bs,hr;q=0.9,sr;q=0.8,en;q=0.7")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	return &FetchResult{
		URL:         url,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now(),
	}, nil
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// decodeHTML converts body to UTF-8 using the declared or sniffed charset.
func decodeHTML(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode body: %w", err)
	}
	return decoded, nil
}

package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestFetcher(t *testing.T, cfg Config) *Fetcher {
	t.Helper()
	f, err := NewFetcher(cfg)
	require.NoError(t, err)
	return f
}

// TestFetch_Success verifies a successful fetch sends a browser user agent
// and returns the body.
func TestFetch_Success(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>Zdravo</body></html>")
	}))
	defer server.Close()

	f := createTestFetcher(t, Config{})
	result, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Contains(t, string(result.Body), "Zdravo")
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.False(t, result.FetchedAt.IsZero())
}

// TestFetch_Non2xx verifies non-2xx responses become a FetchError.
func TestFetch_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	f := createTestFetcher(t, Config{})
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), "HTTP 404")
}

// TestFetch_Timeout verifies a slow server produces a timeout FetchError.
func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := createTestFetcher(t, Config{Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.True(t, fetchErr.Timeout())
}

// TestFetch_DecodesCharset verifies non-UTF-8 HTML is decoded.
func TestFetch_DecodesCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1250")
		// "Bihać" in windows-1250: ć is 0xE6
		w.Write([]byte("<html><body>Biha\xe6</body></html>"))
	}))
	defer server.Close()

	f := createTestFetcher(t, Config{})
	result, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(result.Body), "Bihać")
}

// TestFetch_CookieFile verifies cookies from a cookies.txt file are sent.
func TestFetch_CookieFile(t *testing.T) {
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, "<rss></rss>")
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	cookieFile := filepath.Join(t.TempDir(), "cookies.txt")
	content := "# Netscape HTTP Cookie File\n" +
		u.Hostname() + "\tFALSE\t/\tFALSE\t0\tsession\tabc123\n" +
		"#HttpOnly_" + u.Hostname() + "\tFALSE\t/\tFALSE\t1\texpired\told\n"
	require.NoError(t, os.WriteFile(cookieFile, []byte(content), 0o600))

	f := createTestFetcher(t, Config{CookieFile: cookieFile})
	_, err = f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "abc123", gotCookie)
}

// TestNewFetcher_MissingCookieFile verifies a missing cookie file is ignored.
func TestNewFetcher_MissingCookieFile(t *testing.T) {
	_, err := NewFetcher(Config{CookieFile: filepath.Join(t.TempDir(), "missing.txt")})
	assert.NoError(t, err)
}

// TestLoadCookieFile_Malformed verifies malformed lines are reported.
func TestLoadCookieFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte("example.ba\tFALSE\t/\n"), 0o600))

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	err = LoadCookieFile(jar, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 7 fields")
}

// TestRobotsChecker verifies robots.txt rules are honored and cached.
func TestRobotsChecker(t *testing.T) {
	robotsHits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits++
			fmt.Fprint(w, "User-agent: *\nDisallow: /admin/\n")
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	checker := NewRobotsChecker(createTestFetcher(t, Config{}), nil)

	allowed, err := checker.Allowed(context.Background(), server.URL+"/vijesti/1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = checker.Allowed(context.Background(), server.URL+"/admin/login")
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.Equal(t, 1, robotsHits)
}

// TestRobotsChecker_Missing verifies a missing robots.txt allows everything.
func TestRobotsChecker_Missing(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	checker := NewRobotsChecker(createTestFetcher(t, Config{}), nil)
	allowed, err := checker.Allowed(context.Background(), server.URL+"/anything")
	require.NoError(t, err)
	assert.True(t, allowed)
}

// TestRobotsChecker_UsesHostLimiter verifies the robots.txt request counts
// against the host's politeness interval.
func TestRobotsChecker_UsesHostLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nAllow: /\n")
	}))
	defer server.Close()

	limiter := NewHostLimiter(100 * time.Millisecond)
	checker := NewRobotsChecker(createTestFetcher(t, Config{}), limiter)
	ctx := context.Background()

	start := time.Now()
	allowed, err := checker.Allowed(ctx, server.URL+"/vijesti/1")
	require.NoError(t, err)
	assert.True(t, allowed)

	// The page request right after robots.txt has to wait its turn.
	require.NoError(t, limiter.Wait(ctx, server.URL+"/vijesti/1"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

// TestHostLimiter verifies requests to one host are spaced while other hosts
// proceed immediately.
func TestHostLimiter(t *testing.T) {
	l := NewHostLimiter(100 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://a.example/1"))
	require.NoError(t, l.Wait(ctx, "https://b.example/1"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	require.NoError(t, l.Wait(ctx, "https://a.example/2"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

// TestHostLimiter_Cancelled verifies waiting honors context cancellation.
func TestHostLimiter_Cancelled(t *testing.T) {
	l := NewHostLimiter(time.Hour)
	require.NoError(t, l.Wait(context.Background(), "https://a.example/"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Wait(ctx, "https://a.example/"))
}

// TestHostLimiter_Disabled verifies a zero interval never waits.
func TestHostLimiter_Disabled(t *testing.T) {
	l := NewHostLimiter(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://a.example/"))
	}
}

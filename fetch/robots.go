package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsChecker answers whether a URL may be fetched according to its
// host's robots.txt. Rules are fetched once per host and cached.
type RobotsChecker struct {
	fetcher *Fetcher
	limiter *HostLimiter

	mu    sync.Mutex
	hosts map[string]*robotstxt.RobotsData
}

// NewRobotsChecker creates a checker that fetches robots.txt with fetcher
// and tests paths against its user agent. robots.txt requests wait on
// limiter like any other request to the host; limiter may be nil.
func NewRobotsChecker(fetcher *Fetcher, limiter *HostLimiter) *RobotsChecker {
	return &RobotsChecker{
		fetcher: fetcher,
		limiter: limiter,
		hosts:   make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether rawURL may be fetched. An unreachable robots.txt
// allows everything; robotstxt treats 5xx responses as a full disallow.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("failed to parse url: %w", err)
	}

	data, err := r.rules(ctx, u)
	if err != nil {
		return false, err
	}
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, r.fetcher.UserAgent()), nil
}

func (r *RobotsChecker) rules(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	key := u.Scheme + "://" + u.Host

	r.mu.Lock()
	data, ok := r.hosts[key]
	r.mu.Unlock()
	if ok {
		return data, nil
	}

	if err := r.limiter.Wait(ctx, key); err != nil {
		return nil, err
	}
	result, err := r.fetcher.get(ctx, key+"/robots.txt")
	if err != nil {
		r.store(key, nil)
		return nil, nil
	}

	data, err = robotstxt.FromStatusAndBytes(result.StatusCode, result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse robots.txt for %s: %w", u.Host, err)
	}
	r.store(key, data)
	return data, nil
}

func (r *RobotsChecker) store(key string, data *robotstxt.RobotsData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosts[key] = data
}

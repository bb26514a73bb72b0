package fetcher

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
)

// domainRateLimiter enforces a minimum delay between requests to the same target domain.
// It is safe for concurrent use from multiple goroutines.
type domainRateLimiter struct {
	overrides   map[string]time.Duration
	lastRequest sync.Map // map[string]time.Time
	mu          sync.Map // map[string]*sync.Mutex
	overrideMu  sync.RWMutex
	minDelay    time.Duration
}

func newDomainRateLimiter(minDelay time.Duration) *domainRateLimiter {
	return &domainRateLimiter{
		minDelay:  minDelay,
		overrides: map[string]time.Duration{},
	}
}

// SetDomainDelay sets a custom minimum delay for a domain and its subdomains.
// This overrides the default minDelay for requests to that domain.
func (r *domainRateLimiter) SetDomainDelay(domain string, delay time.Duration) {
	r.overrideMu.Lock()
	defer r.overrideMu.Unlock()
	r.overrides[strings.ToLower(strings.TrimPrefix(domain, "."))] = delay
}

// delayFor returns the delay for host, preferring the most specific override.
func (r *domainRateLimiter) delayFor(host string) time.Duration {
	r.overrideMu.RLock()
	defer r.overrideMu.RUnlock()

	h := strings.ToLower(host)
	for {
		if d, ok := r.overrides[h]; ok {
			return d
		}
		_, rest, found := strings.Cut(h, ".")
		if !found || !strings.Contains(rest, ".") {
			return r.minDelay
		}
		h = rest
	}
}

// Wait blocks until it is safe to request rawURL's domain or ctx is done.
func (r *domainRateLimiter) Wait(ctx context.Context, rawURL string, logger *slog.Logger) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}
	domain := u.Host

	delay := r.delayFor(domain)
	if delay <= 0 {
		return nil
	}

	muI, _ := r.mu.LoadOrStore(domain, &sync.Mutex{})
	mu, ok := muI.(*sync.Mutex)
	if !ok {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()

	if lastI, ok := r.lastRequest.Load(domain); ok {
		if last, ok := lastI.(time.Time); ok {
			if elapsed := time.Since(last); elapsed < delay {
				waitTime := delay - elapsed
				if logger != nil {
					logger.Debug("rate limit pause", "domain", domain, "wait", waitTime.Round(time.Millisecond))
				}
				timer := time.NewTimer(waitTime)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
	}

	r.lastRequest.Store(domain, time.Now())
	return nil
}

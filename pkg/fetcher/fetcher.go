// Package fetcher retrieves remote page markup through a CORS proxy with a bounded timeout.
//
// Every failure (timeout, non-2xx status, network error, proxy error) collapses to an
// empty result from Fetch; FetchBytes exposes the underlying error for diagnostics.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// UserAgent is the browser User-Agent string sent with every request.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:146.0) Gecko/20100101 Firefox/146.0"

// Mode selects how the target page is reached.
type Mode string

// Fetch modes.
const (
	// ModeRaw uses a proxy that passes the target body through unchanged.
	ModeRaw Mode = "raw"
	// ModeJSON uses a proxy that wraps the target body in {"contents": "..."}.
	ModeJSON Mode = "json"
	// ModeDirect fetches the target without a proxy.
	ModeDirect Mode = "direct"
)

// Defaults.
const (
	DefaultRawProxy  = "https://api.codetabs.com/v1/proxy?quest="
	DefaultJSONProxy = "https://api.allorigins.win/get?url="
	DefaultTimeout   = 8 * time.Second
	DefaultMinDelay  = time.Second

	maxBodyBytes = 8 << 20
)

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeRaw, ModeJSON, ModeDirect:
		return m, nil
	case "":
		return ModeRaw, nil
	default:
		return "", fmt.Errorf("unknown fetch mode %q", s)
	}
}

// HTMLFetcher returns a page's markup, or "" when it could not be retrieved.
type HTMLFetcher interface {
	Fetch(ctx context.Context, target string) string
}

// HTTPError represents a non-success HTTP status from the proxy or the target.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// Fetcher retrieves raw HTML for target URLs.
type Fetcher struct {
	httpClient *http.Client
	cache      Cacher
	limiter    *domainRateLimiter
	logger     *slog.Logger
	proxyBase  string
	mode       Mode
	timeout    time.Duration
	attempts   uint
}

// Option configures a Fetcher.
type Option func(*config)

//nolint:govet // fieldalignment: intentional layout for readability
type config struct {
	cache      Cacher
	jar        http.CookieJar
	httpClient *http.Client
	logger     *slog.Logger
	proxyBase  string
	upstream   string
	mode       Mode
	timeout    time.Duration
	minDelay   time.Duration
	attempts   uint
	delays     map[string]time.Duration
}

// WithMode sets the fetch mode. The proxy base defaults to the matching public proxy.
func WithMode(m Mode) Option {
	return func(c *config) { c.mode = m }
}

// WithProxyBase sets the proxy endpoint prefix; the escaped target URL is appended to it.
func WithProxyBase(base string) Option {
	return func(c *config) { c.proxyBase = base }
}

// WithTimeout bounds each Fetch call, including rate limit waits.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithAttempts sets the number of attempts per fetch. The default is a single attempt.
func WithAttempts(n uint) Option {
	return func(c *config) { c.attempts = n }
}

// WithMinDelay sets the minimum spacing between requests to the same target domain.
// Zero disables rate limiting.
func WithMinDelay(d time.Duration) Option {
	return func(c *config) { c.minDelay = d }
}

// WithDomainDelay overrides the minimum spacing for one target domain and its subdomains.
func WithDomainDelay(domain string, d time.Duration) Option {
	return func(c *config) {
		if c.delays == nil {
			c.delays = make(map[string]time.Duration)
		}
		c.delays[domain] = d
	}
}

// WithHTTPCache sets the response cache.
func WithHTTPCache(cache Cacher) Option {
	return func(c *config) { c.cache = cache }
}

// WithCookieJar attaches session cookies. Only meaningful in ModeDirect.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *config) { c.jar = jar }
}

// WithUpstreamProxy routes the fetcher's own traffic through an http(s):// or socks5:// proxy.
func WithUpstreamProxy(proxyURL string) Option {
	return func(c *config) { c.upstream = proxyURL }
}

// WithHTTPClient replaces the HTTP client. Cookie jar and upstream options are ignored.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New creates a Fetcher.
func New(opts ...Option) (*Fetcher, error) {
	cfg := &config{
		logger:   slog.Default(),
		mode:     ModeRaw,
		timeout:  DefaultTimeout,
		minDelay: DefaultMinDelay,
		attempts: 1,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.attempts == 0 {
		cfg.attempts = 1
	}
	if cfg.timeout <= 0 {
		cfg.timeout = DefaultTimeout
	}
	if cfg.proxyBase == "" {
		switch cfg.mode {
		case ModeJSON:
			cfg.proxyBase = DefaultJSONProxy
		case ModeRaw:
			cfg.proxyBase = DefaultRawProxy
		case ModeDirect:
		default:
			return nil, fmt.Errorf("unknown fetch mode %q", cfg.mode)
		}
	}

	client := cfg.httpClient
	if client == nil {
		transport, err := newTransport(cfg.upstream)
		if err != nil {
			return nil, err
		}
		client = &http.Client{Transport: transport}
		if cfg.mode == ModeDirect {
			client.Jar = cfg.jar
		}
	}

	limiter := newDomainRateLimiter(cfg.minDelay)
	for domain, d := range cfg.delays {
		limiter.SetDomainDelay(domain, d)
	}

	return &Fetcher{
		httpClient: client,
		cache:      cfg.cache,
		limiter:    limiter,
		logger:     cfg.logger,
		proxyBase:  cfg.proxyBase,
		mode:       cfg.mode,
		timeout:    cfg.timeout,
		attempts:   cfg.attempts,
	}, nil
}

// Mode returns the configured fetch mode.
func (f *Fetcher) Mode() Mode { return f.mode }

// Timeout returns the per-fetch bound.
func (f *Fetcher) Timeout() time.Duration { return f.timeout }

// RequestURL returns the URL actually requested for target.
func (f *Fetcher) RequestURL(target string) string {
	if f.mode == ModeDirect {
		return target
	}
	return f.proxyBase + url.QueryEscape(target)
}

// Fetch returns the target page's HTML, or "" if it could not be retrieved within the timeout.
func (f *Fetcher) Fetch(ctx context.Context, target string) string {
	body, err := f.FetchBytes(ctx, target)
	if err != nil {
		f.logger.DebugContext(ctx, "fetch failed", "target", target, "mode", f.mode, "error", err)
		return ""
	}
	return string(body)
}

// FetchBytes is Fetch with the failure cause preserved.
func (f *Fetcher) FetchBytes(ctx context.Context, target string) ([]byte, error) {
	if target == "" {
		return nil, errors.New("empty target URL")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	reqURL := f.RequestURL(target)
	body, err := f.cachedFetch(ctx, target, reqURL)
	if err != nil {
		return nil, err
	}

	if f.mode == ModeJSON {
		return unwrapEnvelope(body, target)
	}
	return body, nil
}

func (f *Fetcher) cachedFetch(ctx context.Context, target, reqURL string) ([]byte, error) {
	if f.cache == nil {
		return f.doFetch(ctx, target, reqURL)
	}

	var wasFetched bool
	data, err := f.cache.GetSet(ctx, URLToKey(string(f.mode)+"|"+reqURL), func(ctx context.Context) ([]byte, error) {
		wasFetched = true
		f.logger.Info("CACHE MISS", "url", reqURL)
		body, fetchErr := f.doFetch(ctx, target, reqURL)
		if fetchErr != nil {
			// Status errors are cached to avoid hammering the proxy; network errors are not.
			var httpErr *HTTPError
			if errors.As(fetchErr, &httpErr) {
				return fmt.Appendf(nil, "ERROR:%d", httpErr.StatusCode), nil
			}
			return nil, fetchErr
		}
		return body, nil
	}, f.cache.TTL())
	if err != nil {
		return nil, err
	}
	if !wasFetched {
		f.logger.Debug("cache hit", "url", reqURL)
	}

	if code, found := strings.CutPrefix(string(data), "ERROR:"); found {
		status, _ := strconv.Atoi(code) //nolint:errcheck // 0 is acceptable default
		return nil, &HTTPError{StatusCode: status, URL: reqURL}
	}
	return data, nil
}

func (f *Fetcher) doFetch(ctx context.Context, target, reqURL string) ([]byte, error) {
	return retry.DoWithData(
		func() ([]byte, error) {
			if err := f.limiter.Wait(ctx, target, f.logger); err != nil {
				return nil, err
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
			if err != nil {
				return nil, fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("User-Agent", UserAgent)
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
			req.Header.Set("Accept-Language", "en-US,en;q=0.9")

			resp, err := f.httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close() //nolint:errcheck // intentional

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return nil, &HTTPError{StatusCode: resp.StatusCode, URL: reqURL}
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if err != nil {
				return nil, fmt.Errorf("read body: %w", err)
			}
			if len(body) == 0 {
				return nil, errors.New("empty response body")
			}
			return body, nil
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(200*time.Millisecond),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(isRetryableError),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Debug("retrying fetch", "attempt", n+1, "url", reqURL, "error", err)
		}),
	)
}

// isRetryableError returns true for transient errors that should be retried.
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	return true
}

type envelope struct {
	Contents *string `json:"contents"`
	Status   struct {
		HTTPCode int `json:"http_code"`
	} `json:"status"`
}

// unwrapEnvelope extracts the target body from a JSON proxy envelope.
func unwrapEnvelope(data []byte, target string) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse proxy envelope: %w", err)
	}
	if code := env.Status.HTTPCode; code != 0 && (code < 200 || code > 299) {
		return nil, &HTTPError{StatusCode: code, URL: target}
	}
	if env.Contents == nil || *env.Contents == "" {
		return nil, errors.New("proxy envelope has no contents")
	}
	return []byte(*env.Contents), nil
}

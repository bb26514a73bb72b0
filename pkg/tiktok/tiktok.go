// Package tiktok reads a TikTok profile's follower count from its public page.
package tiktok

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/codeGROOVE-dev/linkhub/pkg/extract"
	"github.com/codeGROOVE-dev/linkhub/pkg/fetcher"
	"github.com/codeGROOVE-dev/linkhub/pkg/link"
)

// DefaultLabel is the unit shown after the count.
const DefaultLabel = "Seguidores"

// platformInfo implements link.Detector for TikTok.
type platformInfo struct{}

func (platformInfo) Tag() link.Platform    { return link.TikTok }
func (platformInfo) Match(url string) bool { return Match(url) }

func init() { link.Register(platformInfo{}) }

// Match returns true if the URL is a TikTok profile URL.
func Match(urlStr string) bool {
	return strings.Contains(strings.ToLower(urlStr), "tiktok.com/@")
}

var usernamePattern = regexp.MustCompile(`(?i)tiktok\.com/@([^/?#]+)`)

// Handle extracts the username from a TikTok URL or an @username string.
func Handle(s string) string {
	if strings.Contains(s, "/") {
		if m := usernamePattern.FindStringSubmatch(s); len(m) > 1 {
			return m[1]
		}
		return ""
	}
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}

// ProfileURL returns the public profile page for a handle.
func ProfileURL(handle string) string {
	return "https://www.tiktok.com/@" + handle
}

var pattern = extract.Pattern{
	Inline: regexp.MustCompile(`(?i)(` + extract.Number + `)\s+Followers`),
}

// Client reads TikTok follower counts.
type Client struct {
	fetcher fetcher.HTMLFetcher
	logger  *slog.Logger
	label   string
}

// Option configures a Client.
type Option func(*config)

type config struct {
	fetcher fetcher.HTMLFetcher
	logger  *slog.Logger
	label   string
}

// WithFetcher sets the page fetcher.
func WithFetcher(f fetcher.HTMLFetcher) Option {
	return func(c *config) { c.fetcher = f }
}

// WithLabel overrides the unit label.
func WithLabel(label string) Option {
	return func(c *config) {
		if label != "" {
			c.label = label
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New creates a TikTok client.
func New(_ context.Context, opts ...Option) (*Client, error) {
	cfg := &config{logger: slog.Default(), label: DefaultLabel}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.fetcher == nil {
		f, err := fetcher.New(fetcher.WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
		cfg.fetcher = f
	}

	return &Client{fetcher: cfg.fetcher, logger: cfg.logger, label: cfg.label}, nil
}

// Handle extracts the username from a profile URL.
func (*Client) Handle(urlStr string) string { return Handle(urlStr) }

// Followers returns "<count> <label>" for handle, or false if it could not be determined.
func (c *Client) Followers(ctx context.Context, handle string) (string, bool) {
	handle = Handle(handle)
	if handle == "" {
		return "", false
	}

	profileURL := ProfileURL(handle)
	body := c.fetcher.Fetch(ctx, profileURL)
	if body == "" {
		c.logger.DebugContext(ctx, "tiktok page unavailable", "url", profileURL)
		return "", false
	}

	n, ok := extract.Count(body, pattern)
	if !ok {
		c.logger.DebugContext(ctx, "tiktok follower count not found", "url", profileURL)
		return "", false
	}
	return extract.Format(n, c.label), true
}

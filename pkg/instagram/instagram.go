// Package instagram reads an Instagram profile's follower count from its public page.
package instagram

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

// platformInfo implements link.Detector for Instagram.
type platformInfo struct{}

func (platformInfo) Tag() link.Platform    { return link.Instagram }
func (platformInfo) Match(url string) bool { return Match(url) }

func init() { link.Register(platformInfo{}) }

// Match returns true if the URL is an Instagram profile URL.
func Match(urlStr string) bool {
	if !strings.Contains(strings.ToLower(urlStr), "instagram.com/") {
		return false
	}
	return Handle(urlStr) != ""
}

var usernamePattern = regexp.MustCompile(`(?i)instagram\.com/([a-zA-Z0-9_.]+)`)

// systemPaths are first path segments that are not profiles.
var systemPaths = map[string]bool{
	"p": true, "reel": true, "reels": true, "stories": true,
	"explore": true, "direct": true, "accounts": true,
	"about": true, "legal": true, "privacy": true,
	"terms": true, "api": true, "developer": true,
}

// Handle extracts the username from an Instagram profile URL.
func Handle(urlStr string) string {
	matches := usernamePattern.FindStringSubmatch(urlStr)
	if len(matches) < 2 {
		return ""
	}
	if systemPaths[strings.ToLower(matches[1])] {
		return ""
	}
	return matches[1]
}

// ProfileURL returns the public profile page for a handle.
func ProfileURL(handle string) string {
	return "https://www.instagram.com/" + handle + "/"
}

// The description meta tag reads "120K Followers, 500 Following, 80 Posts - ...".
var pattern = extract.Pattern{
	Meta:      []string{"og:description", "description"},
	MetaCount: regexp.MustCompile(`(?i)^(` + extract.Number + `)\s+(?:Followers|Seguidores)`),
	Inline:    regexp.MustCompile(`(?i)content="(` + extract.Number + `)\s+(?:Followers|Seguidores)`),
}

// Client reads Instagram follower counts.
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

// New creates an Instagram client. Without WithFetcher it fetches through the default proxy.
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
	handle = strings.Trim(strings.TrimPrefix(strings.TrimSpace(handle), "@"), "/")
	if handle == "" {
		return "", false
	}

	profileURL := ProfileURL(handle)
	body := c.fetcher.Fetch(ctx, profileURL)
	if body == "" {
		c.logger.DebugContext(ctx, "instagram page unavailable", "url", profileURL)
		return "", false
	}

	n, ok := extract.Count(body, pattern)
	if !ok {
		c.logger.DebugContext(ctx, "instagram follower count not found", "url", profileURL)
		return "", false
	}
	return extract.Format(n, c.label), true
}

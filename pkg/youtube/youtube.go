// Package youtube reads a YouTube channel's subscriber count from its public page.
package youtube

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
const DefaultLabel = "Inscritos"

// platformInfo implements link.Detector for YouTube.
type platformInfo struct{}

func (platformInfo) Tag() link.Platform    { return link.YouTube }
func (platformInfo) Match(url string) bool { return Match(url) }

func init() { link.Register(platformInfo{}) }

// Match returns true if the URL is a YouTube channel/user URL.
func Match(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	return strings.Contains(lower, "youtube.com/") &&
		(strings.Contains(lower, "/@") ||
			strings.Contains(lower, "/channel/") ||
			strings.Contains(lower, "/c/") ||
			strings.Contains(lower, "/user/"))
}

var handlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)youtube\.com/@([^/?#]+)`),
	regexp.MustCompile(`(?i)youtube\.com/((?:c|user|channel)/[^/?#]+)`),
}

// Handle extracts the channel handle from a YouTube URL. Legacy paths keep their prefix,
// so "youtube.com/channel/UC123" yields "channel/UC123".
func Handle(s string) string {
	if !strings.Contains(s, "/") || strings.HasPrefix(s, "c/") || strings.HasPrefix(s, "user/") || strings.HasPrefix(s, "channel/") {
		return strings.TrimPrefix(strings.TrimSpace(s), "@")
	}
	for _, re := range handlePatterns {
		if m := re.FindStringSubmatch(s); len(m) > 1 {
			if kind, id, ok := strings.Cut(m[1], "/"); ok {
				return strings.ToLower(kind) + "/" + id
			}
			return m[1]
		}
	}
	return ""
}

// ProfileURL returns the public channel page for a handle.
func ProfileURL(handle string) string {
	if strings.Contains(handle, "/") {
		return "https://www.youtube.com/" + handle
	}
	return "https://www.youtube.com/@" + handle
}

var pattern = extract.Pattern{
	Inline: regexp.MustCompile(`(?i)(` + extract.Number + `)\s+subscribers`),
}

// Client reads YouTube subscriber counts.
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

// New creates a YouTube client.
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

// Handle extracts the channel handle from a URL.
func (*Client) Handle(urlStr string) string { return Handle(urlStr) }

// Followers returns "<count> <label>" for handle, or false if it could not be determined.
func (c *Client) Followers(ctx context.Context, handle string) (string, bool) {
	handle = Handle(handle)
	if handle == "" {
		return "", false
	}

	channelURL := ProfileURL(handle)
	body := c.fetcher.Fetch(ctx, channelURL)
	if body == "" {
		c.logger.DebugContext(ctx, "youtube page unavailable", "url", channelURL)
		return "", false
	}

	n, ok := extract.Count(body, pattern)
	if !ok {
		c.logger.DebugContext(ctx, "youtube subscriber count not found", "url", channelURL)
		return "", false
	}
	return extract.Format(n, c.label), true
}

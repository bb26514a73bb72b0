// Package discord reads a guild's public widget: name, online count and invite link.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/linkhub/pkg/fetcher"
)

// Defaults.
const (
	DefaultBaseURL = "https://discord.com/api"
	DefaultName    = "Comunidade Discord"
	FallbackInvite = "https://discord.com/app"
)

var serverIDPattern = regexp.MustCompile(`^[0-9]{5,25}$`)

// Widget is the subset of widget.json used here.
type Widget struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	InstantInvite string `json:"instant_invite"`
	PresenceCount int    `json:"presence_count"`
}

// Info is what the page shows for the server. It is always renderable.
type Info struct {
	Name      string `json:"name"`
	Invite    string `json:"invite"`
	Online    int    `json:"online"`
	Available bool   `json:"available"`
}

// Client looks up one guild's widget.
type Client struct {
	httpClient *http.Client
	cache      fetcher.Cacher
	logger     *slog.Logger
	baseURL    string
	serverID   string
	invite     string
}

// Option configures a Client.
type Option func(*config)

type config struct {
	httpClient *http.Client
	cache      fetcher.Cacher
	logger     *slog.Logger
	baseURL    string
	invite     string
}

// WithInvite sets the configured invite link, which takes precedence over the widget's.
func WithInvite(u string) Option {
	return func(c *config) { c.invite = u }
}

// WithBaseURL overrides the Discord API root.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithHTTPCache caches widget responses.
func WithHTTPCache(cache fetcher.Cacher) Option {
	return func(c *config) { c.cache = cache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New creates a Client for serverID.
func New(serverID string, opts ...Option) (*Client, error) {
	if !serverIDPattern.MatchString(serverID) {
		return nil, fmt.Errorf("invalid discord server id %q", serverID)
	}
	cfg := &config{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     slog.Default(),
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Client{
		httpClient: cfg.httpClient,
		cache:      cfg.cache,
		logger:     cfg.logger,
		baseURL:    cfg.baseURL,
		serverID:   serverID,
		invite:     cfg.invite,
	}, nil
}

// WidgetURL returns the widget.json endpoint.
func (c *Client) WidgetURL() string {
	return c.baseURL + "/guilds/" + c.serverID + "/widget.json"
}

// Widget fetches the guild widget. The widget must be enabled in the server settings.
func (c *Client) Widget(ctx context.Context) (Widget, error) {
	var data []byte
	var err error
	if c.cache != nil {
		data, err = c.cache.GetSet(ctx, fetcher.URLToKey(c.WidgetURL()), c.fetch, c.cache.TTL())
	} else {
		data, err = c.fetch(ctx)
	}
	if err != nil {
		return Widget{}, err
	}

	var w Widget
	if err := json.Unmarshal(data, &w); err != nil {
		return Widget{}, fmt.Errorf("decode widget: %w", err)
	}
	return w, nil
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	widgetURL := c.WidgetURL()
	return retry.DoWithData(
		func() ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, widgetURL, http.NoBody)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", "application/json")
			req.Header.Set("User-Agent", fetcher.UserAgent)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close() //nolint:errcheck // intentional

			if resp.StatusCode != http.StatusOK {
				return nil, &fetcher.HTTPError{StatusCode: resp.StatusCode, URL: widgetURL}
			}
			return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(200*time.Millisecond),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(func(err error) bool {
			var httpErr *fetcher.HTTPError
			if errors.As(err, &httpErr) {
				return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
			}
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying discord widget", "attempt", n+1, "error", err)
		}),
	)
}

// Info returns displayable server info. Lookup failures fall back to defaults.
func (c *Client) Info(ctx context.Context) Info {
	w, err := c.Widget(ctx)
	if err != nil {
		c.logger.DebugContext(ctx, "discord widget unavailable", "server", c.serverID, "error", err)
		return Info{Name: DefaultName, Invite: InviteURL(c.invite, "")}
	}

	name := w.Name
	if name == "" {
		name = DefaultName
	}
	return Info{
		Name:      name,
		Invite:    InviteURL(c.invite, w.InstantInvite),
		Online:    w.PresenceCount,
		Available: true,
	}
}

// InviteURL picks the configured invite, then the widget's instant invite, then the Discord app.
func InviteURL(configured, instant string) string {
	if s := strings.TrimSpace(configured); s != "" {
		return s
	}
	if s := strings.TrimSpace(instant); s != "" {
		return s
	}
	return FallbackInvite
}

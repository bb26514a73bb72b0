// Package postgrest reads and updates page records through a Supabase PostgREST endpoint.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/linkhub/pkg/fetcher"
	"github.com/codeGROOVE-dev/linkhub/pkg/link"
	"github.com/codeGROOVE-dev/linkhub/pkg/store"
)

const maxResponseBytes = 4 << 20

// Client talks to <base>/rest/v1 with an anon key.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	base       string
	key        string
	attempts   uint
}

// Option configures a Client.
type Option func(*config)

type config struct {
	httpClient *http.Client
	logger     *slog.Logger
	attempts   uint
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) { cfg.httpClient = c }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}

// WithAttempts sets how many times counter updates are tried. Reads are tried once.
func WithAttempts(n uint) Option {
	return func(cfg *config) { cfg.attempts = n }
}

// New creates a Client for the project at baseURL (e.g. https://xyz.supabase.co).
func New(baseURL, anonKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid supabase url %q", baseURL)
	}
	if anonKey == "" {
		return nil, errors.New("supabase anon key required")
	}

	cfg := &config{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
		attempts:   3,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.attempts == 0 {
		cfg.attempts = 1
	}

	return &Client{
		httpClient: cfg.httpClient,
		logger:     cfg.logger,
		base:       strings.TrimRight(u.String(), "/") + "/rest/v1/",
		key:        anonKey,
		attempts:   cfg.attempts,
	}, nil
}

// flexID accepts identifiers stored as numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type profileRow struct {
	ID        flexID `json:"id"`
	Name      string `json:"name"`
	Handle    string `json:"handle"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
	Likes     int64  `json:"likes_count"`
}

type linkRow struct {
	ID         flexID `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Icon       string `json:"icon"`
	ColorClass string `json:"color_class"`
	CTA        string `json:"cta"`
}

type mapRow struct {
	ID          flexID         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Mirrors     []store.Mirror `json:"mirrors"`
	Downloads   int64          `json:"downloads"`
}

type locationRow struct {
	ID                flexID `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	ImageURL          string `json:"image_url"`
	CoordinateCommand string `json:"coordinate_command"`
}

// Profile reads the single profile row.
func (c *Client) Profile(ctx context.Context) (store.Profile, error) {
	var rows []profileRow
	if err := c.get(ctx, "profile", url.Values{"select": {"*"}, "limit": {"1"}}, &rows); err != nil {
		return store.Profile{}, err
	}
	if len(rows) == 0 {
		return store.Profile{}, fmt.Errorf("profile: %w", store.ErrNotFound)
	}
	r := rows[0]
	return store.Profile{
		ID:        string(r.ID),
		Name:      r.Name,
		Handle:    r.Handle,
		Bio:       r.Bio,
		AvatarURL: r.AvatarURL,
		Likes:     r.Likes,
	}, nil
}

// Links reads social links ordered by sort_order.
func (c *Client) Links(ctx context.Context) ([]link.Entry, error) {
	var rows []linkRow
	if err := c.get(ctx, "social_links", url.Values{"select": {"*"}, "order": {"sort_order.asc"}}, &rows); err != nil {
		return nil, err
	}
	out := make([]link.Entry, 0, len(rows))
	for _, r := range rows {
		p, _ := link.ParsePlatform(r.Icon)
		out = append(out, link.Entry{
			ID:       string(r.ID),
			Title:    r.Title,
			URL:      r.URL,
			Platform: p,
			Accent:   r.ColorClass,
			Subtitle: r.CTA,
			State:    link.Unenriched,
		})
	}
	return out, nil
}

// Maps reads map versions with their mirrors.
func (c *Client) Maps(ctx context.Context) ([]store.MapVersion, error) {
	var rows []mapRow
	if err := c.get(ctx, "map_versions", url.Values{"select": {"*"}}, &rows); err != nil {
		return nil, err
	}
	out := make([]store.MapVersion, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.MapVersion{
			ID:          string(r.ID),
			Title:       r.Title,
			Description: r.Description,
			Mirrors:     r.Mirrors,
			Downloads:   r.Downloads,
		})
	}
	return out, nil
}

// Locations reads world locations.
func (c *Client) Locations(ctx context.Context) ([]store.Location, error) {
	var rows []locationRow
	if err := c.get(ctx, "world_locations", url.Values{"select": {"*"}}, &rows); err != nil {
		return nil, err
	}
	out := make([]store.Location, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.Location{
			ID:                string(r.ID),
			Name:              r.Name,
			Description:       r.Description,
			ImageURL:          r.ImageURL,
			CoordinateCommand: r.CoordinateCommand,
		})
	}
	return out, nil
}

// IncrementLikes calls increment_profile_like.
func (c *Client) IncrementLikes(ctx context.Context, profileID string) error {
	n, err := numericID(profileID)
	if err != nil {
		return err
	}
	return c.rpc(ctx, "increment_profile_like", map[string]any{"profile_id": n})
}

// IncrementClicks calls increment_link_click.
func (c *Client) IncrementClicks(ctx context.Context, linkID string) error {
	n, err := numericID(linkID)
	if err != nil {
		return err
	}
	return c.rpc(ctx, "increment_link_click", map[string]any{"link_id": n})
}

// IncrementDownloads calls increment_download.
func (c *Client) IncrementDownloads(ctx context.Context, mapID string) error {
	if !store.ValidID(mapID) {
		return store.ErrInvalidID
	}
	return c.rpc(ctx, "increment_download", map[string]any{"map_id": mapID})
}

func numericID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%q: %w", id, store.ErrInvalidID)
	}
	return n, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // intentional

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("postgrest error", "url", req.URL.String(), "status", resp.StatusCode, "body", string(data))
		return nil, &fetcher.HTTPError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, table string, q url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, table+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	data, err := c.do(req)
	if err != nil {
		return fmt.Errorf("read %s: %w", table, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", table, err)
	}
	return nil
}

func (c *Client) rpc(ctx context.Context, fn string, args map[string]any) error {
	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode %s args: %w", fn, err)
	}

	_, err = retry.DoWithData(
		func() ([]byte, error) {
			req, err := c.newRequest(ctx, http.MethodPost, "rpc/"+fn, body)
			if err != nil {
				return nil, err
			}
			return c.do(req)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(250*time.Millisecond),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying rpc", "function", fn, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", fn, err)
	}
	return nil
}

// isRetryable reports whether an rpc can be resent without double counting.
// Increments are not idempotent, so only a 429 or a failed dial qualifies: in
// both cases the server did not apply the call.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *fetcher.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

package linkhub

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/cookiejar"

	"github.com/codeGROOVE-dev/linkhub/pkg/auth"
	"github.com/codeGROOVE-dev/linkhub/pkg/bio"
	"github.com/codeGROOVE-dev/linkhub/pkg/config"
	"github.com/codeGROOVE-dev/linkhub/pkg/discord"
	"github.com/codeGROOVE-dev/linkhub/pkg/enrich"
	"github.com/codeGROOVE-dev/linkhub/pkg/fetcher"
	"github.com/codeGROOVE-dev/linkhub/pkg/link"
	"github.com/codeGROOVE-dev/linkhub/pkg/store"
	"github.com/codeGROOVE-dev/linkhub/pkg/store/postgrest"
	"github.com/codeGROOVE-dev/linkhub/pkg/store/sqlite"
	"github.com/codeGROOVE-dev/linkhub/pkg/store/static"
)

// NewFromConfig builds a Service with every component configured from cfg.
func NewFromConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fallback := static.Default()
	if cfg.Store.DataFile != "" {
		snap, err := static.LoadFile(cfg.Store.DataFile)
		if err != nil {
			return nil, err
		}
		fallback = snap
	}

	cache := NewCache(ctx, cfg, logger)
	f, err := NewFetcher(ctx, cfg, cache, logger)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithLogger(logger),
		WithFallback(fallback),
		WithFetcher(f),
		WithDeadline(cfg.Enrich.Deadline),
		WithBioRotation(cfg.Bio.RotateEvery),
	}
	for tag, label := range cfg.Enrich.Labels {
		if p, ok := link.ParsePlatform(tag); ok {
			opts = append(opts, WithLabel(p, label))
		}
	}

	if cfg.Enrich.Disabled {
		opts = append(opts, WithCoordinator(enrich.New(enrich.WithLogger(logger))))
	}

	s, closer, err := OpenStore(ctx, cfg, fallback, logger)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithStore(s))
	if closer != nil {
		opts = append(opts, WithCloser(closer))
	}

	if cfg.Discord.ServerID != "" {
		dopts := []discord.Option{discord.WithInvite(cfg.Discord.Invite), discord.WithLogger(logger)}
		if cache != nil {
			dopts = append(dopts, discord.WithHTTPCache(cache))
		}
		d, err := discord.New(cfg.Discord.ServerID, dopts...)
		if err != nil {
			logger.WarnContext(ctx, "discord disabled", "error", err)
		} else {
			opts = append(opts, WithDiscord(d))
		}
	}

	g, err := bio.New(ctx, bio.WithAPIKey(cfg.Bio.APIKey), bio.WithModel(cfg.Bio.Model), bio.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithBioGenerator(g))

	svc, err := New(ctx, opts...)
	if err != nil {
		if closer != nil {
			closer.Close() //nolint:errcheck // already failing
		}
		return nil, err
	}
	return svc, nil
}

// NewCache returns the shared response cache, or nil when caching is off or unavailable.
func NewCache(ctx context.Context, cfg config.Config, logger *slog.Logger) fetcher.Cacher {
	if !cfg.Fetch.Cache {
		return nil
	}
	var c *fetcher.Cache
	var err error
	if cfg.Fetch.CacheDir != "" {
		c, err = fetcher.NewCacheWithPath(cfg.Fetch.CacheTTL, cfg.Fetch.CacheDir)
	} else {
		c, err = fetcher.NewCache(cfg.Fetch.CacheTTL)
	}
	if err != nil {
		logger.WarnContext(ctx, "response cache disabled", "error", err)
		return nil
	}
	return c
}

// NewFetcher builds the page fetcher described by cfg. In direct mode it carries a cookie
// jar filled from the environment and, when enabled, local browser stores.
func NewFetcher(ctx context.Context, cfg config.Config, cache fetcher.Cacher, logger *slog.Logger) (*fetcher.Fetcher, error) {
	opts := []fetcher.Option{
		fetcher.WithMode(cfg.FetchMode()),
		fetcher.WithProxyBase(cfg.Fetch.ProxyBase),
		fetcher.WithTimeout(cfg.Fetch.Timeout),
		fetcher.WithAttempts(cfg.Fetch.Attempts),
		fetcher.WithMinDelay(cfg.Fetch.MinDelay),
		fetcher.WithUpstreamProxy(cfg.Fetch.UpstreamProxy),
		fetcher.WithLogger(logger),
	}

	if cache != nil {
		opts = append(opts, fetcher.WithHTTPCache(cache))
	}
	for domain, d := range cfg.Fetch.DomainDelays {
		opts = append(opts, fetcher.WithDomainDelay(domain, d))
	}

	if cfg.FetchMode() == fetcher.ModeDirect {
		jar, err := newCookieJar(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fetcher.WithCookieJar(jar))
	}

	return fetcher.New(opts...)
}

// newCookieJar collects direct-mode cookies. Configured cookies win over the
// environment, which wins over the browser.
func newCookieJar(ctx context.Context, cfg config.Config, logger *slog.Logger) (*cookiejar.Jar, error) {
	sources := []auth.Source{auth.NewStaticSource(cfg.Fetch.Cookies), auth.EnvSource{}}
	if cfg.Fetch.BrowserCookie {
		sources = append(sources, auth.NewBrowserSource(logger))
	}
	jar, n, err := auth.BuildJar(ctx, logger, auth.Platforms(), sources...)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	logger.InfoContext(ctx, "direct fetch cookies loaded", "platforms", n)
	return jar, nil
}

// OpenStore opens the configured backend. The returned closer is nil when the backend
// holds no resources.
func OpenStore(ctx context.Context, cfg config.Config, fallback store.Snapshot, logger *slog.Logger) (store.Store, io.Closer, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		n, err := db.Seed(ctx, fallback)
		if err != nil {
			db.Close() //nolint:errcheck // already failing
			return nil, nil, err
		}
		logger.InfoContext(ctx, "sqlite store ready", "path", db.Path(), "seeded", n)
		return db, db, nil
	case config.BackendPostgREST:
		c, err := postgrest.New(cfg.Store.SupabaseURL, cfg.Store.SupabaseKey, postgrest.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return c, nil, nil
	default:
		return static.New(fallback), nil, nil
	}
}

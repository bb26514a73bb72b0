// Package linkhub provides the link-in-bio page service: page records, best-effort follower
// enrichment, visitor counters, Discord info and bio generation.
//
// Basic usage:
//
//	svc, err := linkhub.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	links := svc.EnrichedLinks(ctx)
//
// Or build everything from a configuration file:
//
//	cfg, _ := config.Load("linkhub.yaml")
//	svc, _ := linkhub.NewFromConfig(ctx, cfg, logger)
package linkhub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/linkhub/pkg/bio"
	"github.com/codeGROOVE-dev/linkhub/pkg/discord"
	"github.com/codeGROOVE-dev/linkhub/pkg/enrich"
	"github.com/codeGROOVE-dev/linkhub/pkg/fetcher"
	"github.com/codeGROOVE-dev/linkhub/pkg/inapp"
	"github.com/codeGROOVE-dev/linkhub/pkg/instagram"
	"github.com/codeGROOVE-dev/linkhub/pkg/link"
	"github.com/codeGROOVE-dev/linkhub/pkg/store"
	"github.com/codeGROOVE-dev/linkhub/pkg/store/static"
	"github.com/codeGROOVE-dev/linkhub/pkg/tiktok"
	"github.com/codeGROOVE-dev/linkhub/pkg/youtube"
)

// ErrBioUnavailable is returned by GenerateBio when no model is configured.
var ErrBioUnavailable = bio.ErrNotConfigured

// Page is everything the page renders on first load. Link subtitles are static.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Page struct {
	Profile   store.Profile      `json:"profile"`
	Bio       string             `json:"bio"`
	Links     []link.Entry       `json:"links"`
	Maps      []store.MapVersion `json:"maps"`
	Locations []store.Location   `json:"locations"`
	Discord   discord.Info       `json:"discord"`
	Browser   inapp.Result       `json:"browser"`
}

// Service is the page backend.
type Service struct {
	store       store.Store
	closer      io.Closer
	coordinator *enrich.Coordinator
	discord     *discord.Client
	bio         *bio.Generator
	logger      *slog.Logger
	now         func() time.Time
	fallback    store.Snapshot
	rotate      time.Duration
}

// Option configures a Service.
type Option func(*config)

//nolint:govet // fieldalignment: intentional layout for readability
type config struct {
	store       store.Store
	closer      io.Closer
	fetcher     fetcher.HTMLFetcher
	coordinator *enrich.Coordinator
	discord     *discord.Client
	bio         *bio.Generator
	logger      *slog.Logger
	now         func() time.Time
	labels      map[link.Platform]string
	fallback    *store.Snapshot
	deadline    time.Duration
	rotate      time.Duration
}

// WithStore sets the record store. Without it the built-in static data is served.
func WithStore(s store.Store) Option {
	return func(c *config) { c.store = s }
}

// WithCloser registers a resource released by Close.
func WithCloser(cl io.Closer) Option {
	return func(c *config) { c.closer = cl }
}

// WithFallback sets the records served when a store read fails.
func WithFallback(snap store.Snapshot) Option {
	return func(c *config) { c.fallback = &snap }
}

// WithFetcher sets the fetcher shared by the platform adapters.
func WithFetcher(f fetcher.HTMLFetcher) Option {
	return func(c *config) { c.fetcher = f }
}

// WithCoordinator replaces the default adapter set entirely.
func WithCoordinator(co *enrich.Coordinator) Option {
	return func(c *config) { c.coordinator = co }
}

// WithLabel overrides the count label for one platform.
func WithLabel(p link.Platform, label string) Option {
	return func(c *config) { c.labels[p] = label }
}

// WithDeadline bounds a whole enrichment run.
func WithDeadline(d time.Duration) Option {
	return func(c *config) { c.deadline = d }
}

// WithDiscord sets the Discord widget client.
func WithDiscord(d *discord.Client) Option {
	return func(c *config) { c.discord = d }
}

// WithBioGenerator sets the bio generator.
func WithBioGenerator(g *bio.Generator) Option {
	return func(c *config) { c.bio = g }
}

// WithBioRotation sets how long each built-in bio is shown.
func WithBioRotation(d time.Duration) Option {
	return func(c *config) { c.rotate = d }
}

// WithClock sets the time source used for bio rotation.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New creates a Service.
func New(ctx context.Context, opts ...Option) (*Service, error) {
	cfg := &config{
		logger: slog.Default(),
		labels: make(map[link.Platform]string),
		now:    time.Now,
		rotate: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	fallback := static.Default()
	if cfg.fallback != nil {
		fallback = *cfg.fallback
	}
	if cfg.store == nil {
		cfg.store = static.New(fallback)
	}

	if cfg.coordinator == nil {
		co, err := newCoordinator(ctx, cfg)
		if err != nil {
			return nil, err
		}
		cfg.coordinator = co
	}

	if cfg.bio == nil {
		g, err := bio.New(ctx, bio.WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
		cfg.bio = g
	}

	return &Service{
		store:       cfg.store,
		closer:      cfg.closer,
		coordinator: cfg.coordinator,
		discord:     cfg.discord,
		bio:         cfg.bio,
		logger:      cfg.logger,
		now:         cfg.now,
		fallback:    fallback,
		rotate:      cfg.rotate,
	}, nil
}

func newCoordinator(ctx context.Context, cfg *config) (*enrich.Coordinator, error) {
	if cfg.fetcher == nil {
		f, err := fetcher.New(fetcher.WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
		cfg.fetcher = f
	}

	ig, err := instagram.New(ctx,
		instagram.WithFetcher(cfg.fetcher),
		instagram.WithLabel(cfg.labels[link.Instagram]),
		instagram.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("instagram adapter: %w", err)
	}
	tt, err := tiktok.New(ctx,
		tiktok.WithFetcher(cfg.fetcher),
		tiktok.WithLabel(cfg.labels[link.TikTok]),
		tiktok.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("tiktok adapter: %w", err)
	}
	yt, err := youtube.New(ctx,
		youtube.WithFetcher(cfg.fetcher),
		youtube.WithLabel(cfg.labels[link.YouTube]),
		youtube.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("youtube adapter: %w", err)
	}

	return enrich.New(
		enrich.WithAdapter(link.Instagram, ig),
		enrich.WithAdapter(link.TikTok, tt),
		enrich.WithAdapter(link.YouTube, yt),
		enrich.WithDeadline(cfg.deadline),
		enrich.WithLogger(cfg.logger),
	), nil
}

// Close releases the store, if it holds resources.
func (s *Service) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Snapshot reads all records, keeping the fallback for any kind whose read fails.
func (s *Service) Snapshot(ctx context.Context) store.Snapshot {
	return store.Load(ctx, s.fallback, s.store, s.logger)
}

// Page returns the first-load view for a visitor with the given User-Agent.
func (s *Service) Page(ctx context.Context, userAgent string, forceBanner bool) Page {
	snap := s.Snapshot(ctx)
	p := Page{
		Profile:   snap.Profile,
		Bio:       s.CurrentBio(),
		Links:     snap.Links,
		Maps:      snap.Maps,
		Locations: snap.Locations,
		Browser:   inapp.ClassifyRequest(userAgent, forceBanner),
	}
	if s.discord != nil {
		p.Discord = s.discord.Info(ctx)
	} else {
		p.Discord = discord.Info{Name: discord.DefaultName, Invite: discord.FallbackInvite}
	}
	return p
}

// CurrentBio returns the built-in bio shown at this moment.
func (s *Service) CurrentBio() string {
	return bio.At(s.now(), s.rotate)
}

// Links returns the link list with static subtitles.
func (s *Service) Links(ctx context.Context) []link.Entry {
	return s.Snapshot(ctx).Links
}

// EnrichedLinks returns the link list after one enrichment run. Entries whose adapter
// failed keep their static subtitle.
func (s *Service) EnrichedLinks(ctx context.Context) []link.Entry {
	l := link.NewList(s.Links(ctx))
	s.coordinator.Enrich(ctx, l)
	return l.Snapshot()
}

// StreamLinks calls onLinks with the static list, then onPatch for each enriched entry
// as it resolves. It returns the number of entries enriched.
func (s *Service) StreamLinks(ctx context.Context, onLinks func([]link.Entry), onPatch func(link.Entry)) int {
	l := link.NewList(s.Links(ctx))
	if onLinks != nil {
		onLinks(l.Snapshot())
	}
	return s.coordinator.Run(ctx, l, onPatch)
}

// Like records one like for the profile.
func (s *Service) Like(ctx context.Context, profileID string) error {
	if err := s.store.IncrementLikes(ctx, profileID); err != nil {
		return fmt.Errorf("like %s: %w", profileID, err)
	}
	return nil
}

// Click records a click on a link.
func (s *Service) Click(ctx context.Context, linkID string) error {
	if err := s.store.IncrementClicks(ctx, linkID); err != nil {
		return fmt.Errorf("click %s: %w", linkID, err)
	}
	return nil
}

// Download records a map download.
func (s *Service) Download(ctx context.Context, mapID string) error {
	if err := s.store.IncrementDownloads(ctx, mapID); err != nil {
		return fmt.Errorf("download %s: %w", mapID, err)
	}
	return nil
}

// BioConfigured reports whether GenerateBio can reach a model.
func (s *Service) BioConfigured() bool { return s.bio.Configured() }

// GenerateBio asks the model for a new bio.
func (s *Service) GenerateBio(ctx context.Context, keywords, tone string) (string, error) {
	text, err := s.bio.Generate(ctx, keywords, tone)
	if err != nil && !errors.Is(err, bio.ErrNotConfigured) && !errors.Is(err, bio.ErrNoKeywords) {
		s.logger.WarnContext(ctx, "bio generation failed", "error", err)
	}
	return text, err
}

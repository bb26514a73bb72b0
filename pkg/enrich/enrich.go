// Package enrich runs platform adapters concurrently and patches their results into a link list.
//
// Enrichment is best effort: an entry whose adapter fails, times out or panics keeps its
// static subtitle, and no failure is ever surfaced to the caller.
package enrich

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/linkhub/pkg/link"
)

// Adapter resolves a display subtitle for one platform.
type Adapter interface {
	// Handle extracts the account handle from a profile URL, or "" if it has none.
	Handle(url string) string
	// Followers returns the formatted count for handle, or false when unavailable.
	Followers(ctx context.Context, handle string) (string, bool)
}

// Outcome is the result of enriching one entry.
type Outcome struct {
	ID       string        `json:"id"`
	Platform link.Platform `json:"icon"`
	Subtitle string        `json:"cta,omitempty"`
	OK       bool          `json:"ok"`
}

// Coordinator dispatches entries to the adapter registered for their platform.
type Coordinator struct {
	adapters map[link.Platform]Adapter
	logger   *slog.Logger
	deadline time.Duration
}

// Option configures a Coordinator.
type Option func(*config)

type config struct {
	adapters map[link.Platform]Adapter
	logger   *slog.Logger
	deadline time.Duration
}

// WithAdapter registers the adapter used for entries tagged with platform.
func WithAdapter(platform link.Platform, a Adapter) Option {
	return func(c *config) {
		if a != nil {
			c.adapters[platform] = a
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithDeadline bounds a whole run. Zero means only the adapters' own timeouts apply.
func WithDeadline(d time.Duration) Option {
	return func(c *config) { c.deadline = d }
}

// New creates a Coordinator.
func New(opts ...Option) *Coordinator {
	cfg := &config{
		adapters: make(map[link.Platform]Adapter),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Coordinator{adapters: cfg.adapters, logger: cfg.logger, deadline: cfg.deadline}
}

// Platforms returns the platforms that have an adapter, sorted.
func (c *Coordinator) Platforms() []link.Platform {
	out := make([]link.Platform, 0, len(c.adapters))
	for p := range c.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Eligible reports whether an adapter exists for the entry's platform.
func (c *Coordinator) Eligible(e link.Entry) bool {
	_, ok := c.adapters[e.Platform]
	return ok
}

// Stream enriches every eligible entry concurrently and sends each outcome as it resolves.
// The channel is closed once all adapters have returned. Outcomes arrive in no particular order.
func (c *Coordinator) Stream(ctx context.Context, entries []link.Entry) <-chan Outcome {
	type job struct {
		adapter Adapter
		entry   link.Entry
	}
	var jobs []job
	for _, e := range entries {
		if a, ok := c.adapters[e.Platform]; ok {
			jobs = append(jobs, job{adapter: a, entry: e})
		}
	}

	out := make(chan Outcome, len(jobs))
	if len(jobs) == 0 {
		close(out)
		return out
	}

	cancel := context.CancelFunc(func() {})
	if c.deadline > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.deadline)
	}

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out <- c.resolve(ctx, j.entry, j.adapter)
		}()
	}

	go func() {
		wg.Wait()
		cancel()
		close(out)
	}()
	return out
}

func (c *Coordinator) resolve(ctx context.Context, e link.Entry, a Adapter) (out Outcome) {
	out = Outcome{ID: e.ID, Platform: e.Platform}
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "adapter panicked", "id", e.ID, "platform", e.Platform, "panic", r)
			out = Outcome{ID: e.ID, Platform: e.Platform}
		}
	}()

	handle := a.Handle(e.URL)
	if handle == "" {
		c.logger.DebugContext(ctx, "no handle in link", "id", e.ID, "url", e.URL)
		return out
	}

	subtitle, ok := a.Followers(ctx, handle)
	if !ok || subtitle == "" {
		c.logger.DebugContext(ctx, "enrichment unavailable", "id", e.ID, "platform", e.Platform, "handle", handle)
		return out
	}
	out.Subtitle = subtitle
	out.OK = true
	return out
}

// Enrich patches l in place and returns the number of entries whose subtitle was replaced.
func (c *Coordinator) Enrich(ctx context.Context, l *link.List) int {
	return c.Run(ctx, l, nil)
}

// Run is Enrich with a callback invoked with each entry right after its subtitle is replaced.
// Entries that were already enriched or in flight are not started again.
func (c *Coordinator) Run(ctx context.Context, l *link.List, onPatch func(link.Entry)) int {
	start := time.Now()

	var started []link.Entry
	for _, e := range l.Snapshot() {
		if c.Eligible(e) && l.Begin(e.ID) {
			started = append(started, e)
		}
	}

	patched := 0
	for o := range c.Stream(ctx, started) {
		if !l.Resolve(o.ID, o.Subtitle, o.OK) {
			continue
		}
		patched++
		if onPatch != nil {
			if e, ok := l.Get(o.ID); ok {
				onPatch(e)
			}
		}
	}
	l.Settle()

	c.logger.InfoContext(ctx, "enrichment finished",
		"eligible", len(started),
		"enriched", patched,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return patched
}

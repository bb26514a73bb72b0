// Package store defines the records a page renders and the backends that hold them.
package store

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/linkhub/pkg/link"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidID is returned for identifiers a backend cannot address.
	ErrInvalidID = errors.New("invalid id")
)

// Profile is the creator shown at the top of the page.
type Profile struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Handle    string `json:"handle" yaml:"handle"`
	Bio       string `json:"bio" yaml:"bio"`
	AvatarURL string `json:"avatarUrl" yaml:"avatar_url"`
	Likes     int64  `json:"likes" yaml:"likes"`
}

// Mirror is one download location for a map version.
type Mirror struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// MapVersion is a downloadable world build.
type MapVersion struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Mirrors     []Mirror `json:"mirrors" yaml:"mirrors"`
	Downloads   int64    `json:"downloads" yaml:"downloads"`
}

// Location is a notable place in the world with its teleport command.
type Location struct {
	ID                string `json:"id" yaml:"id"`
	Name              string `json:"name" yaml:"name"`
	Description       string `json:"description" yaml:"description"`
	ImageURL          string `json:"imageUrl" yaml:"image_url"`
	CoordinateCommand string `json:"coordinateCommand" yaml:"coordinate_command"`
}

// Snapshot is everything a page load renders.
type Snapshot struct {
	Profile   Profile      `json:"profile" yaml:"profile"`
	Links     []link.Entry `json:"links" yaml:"links"`
	Maps      []MapVersion `json:"maps" yaml:"maps"`
	Locations []Location   `json:"locations" yaml:"locations"`
}

// Reader reads page records.
type Reader interface {
	Profile(ctx context.Context) (Profile, error)
	Links(ctx context.Context) ([]link.Entry, error)
	Maps(ctx context.Context) ([]MapVersion, error)
	Locations(ctx context.Context) ([]Location, error)
}

// Counter records visitor actions.
type Counter interface {
	IncrementLikes(ctx context.Context, profileID string) error
	IncrementClicks(ctx context.Context, linkID string) error
	IncrementDownloads(ctx context.Context, mapID string) error
}

// Store is a full backend.
type Store interface {
	Reader
	Counter
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidID reports whether id is acceptable as a record identifier.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Load reads all records from r concurrently. Each kind of record replaces the
// corresponding part of fallback only when its read succeeds; failures are logged.
func Load(ctx context.Context, fallback Snapshot, r Reader, logger *slog.Logger) Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	if r == nil {
		return fallback
	}

	out := fallback
	var g errgroup.Group

	g.Go(func() error {
		p, err := r.Profile(ctx)
		if err != nil {
			logger.WarnContext(ctx, "profile read failed, keeping fallback", "error", err)
			return nil
		}
		out.Profile = p
		return nil
	})
	g.Go(func() error {
		links, err := r.Links(ctx)
		if err != nil {
			logger.WarnContext(ctx, "links read failed, keeping fallback", "error", err)
			return nil
		}
		normalized := make([]link.Entry, len(links))
		for i, e := range links {
			normalized[i] = link.Normalize(e)
		}
		out.Links = normalized
		return nil
	})
	g.Go(func() error {
		maps, err := r.Maps(ctx)
		if err != nil {
			logger.WarnContext(ctx, "maps read failed, keeping fallback", "error", err)
			return nil
		}
		out.Maps = maps
		return nil
	})
	g.Go(func() error {
		locs, err := r.Locations(ctx)
		if err != nil {
			logger.WarnContext(ctx, "locations read failed, keeping fallback", "error", err)
			return nil
		}
		out.Locations = locs
		return nil
	})

	_ = g.Wait() //nolint:errcheck // read errors are logged per record kind
	return out
}

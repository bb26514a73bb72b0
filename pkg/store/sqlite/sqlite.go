// Package sqlite keeps page records and counters in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/codeGROOVE-dev/linkhub/pkg/link"
	"github.com/codeGROOVE-dev/linkhub/pkg/store"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS profile (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	handle TEXT NOT NULL DEFAULT '',
	bio TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT '',
	likes_count INTEGER NOT NULL DEFAULT 0
)`, `
CREATE TABLE IF NOT EXISTS social_links (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	url TEXT NOT NULL,
	icon TEXT NOT NULL DEFAULT 'generic',
	color_class TEXT NOT NULL DEFAULT '',
	cta TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0,
	clicks INTEGER NOT NULL DEFAULT 0
)`, `
CREATE TABLE IF NOT EXISTS map_versions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	mirrors TEXT NOT NULL DEFAULT '[]',
	sort_order INTEGER NOT NULL DEFAULT 0,
	downloads INTEGER NOT NULL DEFAULT 0
)`, `
CREATE TABLE IF NOT EXISTS world_locations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	coordinate_command TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0
)`}

// Store is a store.Store backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	path   string
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close() //nolint:errcheck,gosec // already failing
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	logger.DebugContext(ctx, "sqlite store opened", "path", path)
	return &Store{db: db, logger: logger, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Seed inserts every record from snap that is not already present. Existing rows,
// including their counters, are left untouched. It returns the number of rows inserted.
func (s *Store) Seed(ctx context.Context, snap store.Snapshot) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var inserted int64
	exec := func(query string, args ...any) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted += n
		return nil
	}

	p := snap.Profile
	if p.ID != "" {
		if err := exec(`INSERT OR IGNORE INTO profile (id, name, handle, bio, avatar_url, likes_count) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Handle, p.Bio, p.AvatarURL, p.Likes); err != nil {
			return 0, fmt.Errorf("seed profile: %w", err)
		}
	}
	for i, e := range snap.Links {
		if err := exec(`INSERT OR IGNORE INTO social_links (id, title, url, icon, color_class, cta, sort_order) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Title, e.URL, string(e.Platform), e.Accent, e.Subtitle, i); err != nil {
			return 0, fmt.Errorf("seed link %s: %w", e.ID, err)
		}
	}
	for i, m := range snap.Maps {
		mirrors, err := json.Marshal(m.Mirrors)
		if err != nil {
			return 0, fmt.Errorf("encode mirrors for %s: %w", m.ID, err)
		}
		if err := exec(`INSERT OR IGNORE INTO map_versions (id, title, description, mirrors, sort_order, downloads) VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, m.Title, m.Description, string(mirrors), i, m.Downloads); err != nil {
			return 0, fmt.Errorf("seed map %s: %w", m.ID, err)
		}
	}
	for i, l := range snap.Locations {
		if err := exec(`INSERT OR IGNORE INTO world_locations (id, name, description, image_url, coordinate_command, sort_order) VALUES (?, ?, ?, ?, ?, ?)`,
			l.ID, l.Name, l.Description, l.ImageURL, l.CoordinateCommand, i); err != nil {
			return 0, fmt.Errorf("seed location %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	s.logger.InfoContext(ctx, "sqlite store seeded", "inserted", inserted)
	return inserted, nil
}

// Profile returns the first profile row.
func (s *Store) Profile(ctx context.Context) (store.Profile, error) {
	var p store.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, handle, bio, avatar_url, likes_count FROM profile ORDER BY id LIMIT 1`).
		Scan(&p.ID, &p.Name, &p.Handle, &p.Bio, &p.AvatarURL, &p.Likes)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Profile{}, fmt.Errorf("profile: %w", store.ErrNotFound)
	}
	if err != nil {
		return store.Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return p, nil
}

// Links returns links in sort order.
func (s *Store) Links(ctx context.Context) ([]link.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, url, icon, color_class, cta FROM social_links ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("read links: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []link.Entry
	for rows.Next() {
		var e link.Entry
		var icon string
		if err := rows.Scan(&e.ID, &e.Title, &e.URL, &icon, &e.Accent, &e.Subtitle); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		e.Platform, _ = link.ParsePlatform(icon)
		e.State = link.Unenriched
		out = append(out, e)
	}
	return out, rows.Err()
}

// Maps returns map versions in sort order.
func (s *Store) Maps(ctx context.Context) ([]store.MapVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, mirrors, downloads FROM map_versions ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("read maps: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []store.MapVersion
	for rows.Next() {
		var m store.MapVersion
		var mirrors string
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &mirrors, &m.Downloads); err != nil {
			return nil, fmt.Errorf("scan map: %w", err)
		}
		if err := json.Unmarshal([]byte(mirrors), &m.Mirrors); err != nil {
			return nil, fmt.Errorf("decode mirrors for %s: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Locations returns world locations in sort order.
func (s *Store) Locations(ctx context.Context) ([]store.Location, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, image_url, coordinate_command FROM world_locations ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("read locations: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []store.Location
	for rows.Next() {
		var l store.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.ImageURL, &l.CoordinateCommand); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// IncrementLikes adds one like to the profile.
func (s *Store) IncrementLikes(ctx context.Context, profileID string) error {
	return s.increment(ctx, `UPDATE profile SET likes_count = likes_count + 1 WHERE id = ?`, "profile", profileID)
}

// IncrementClicks counts a click on a link.
func (s *Store) IncrementClicks(ctx context.Context, linkID string) error {
	return s.increment(ctx, `UPDATE social_links SET clicks = clicks + 1 WHERE id = ?`, "link", linkID)
}

// IncrementDownloads counts a download of a map version.
func (s *Store) IncrementDownloads(ctx context.Context, mapID string) error {
	return s.increment(ctx, `UPDATE map_versions SET downloads = downloads + 1 WHERE id = ?`, "map", mapID)
}

// Clicks returns the clicks counted for a link.
func (s *Store) Clicks(ctx context.Context, linkID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT clicks FROM social_links WHERE id = ?`, linkID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("link %s: %w", linkID, store.ErrNotFound)
	}
	return n, err
}

func (s *Store) increment(ctx context.Context, query, kind, id string) error {
	if !store.ValidID(id) {
		return store.ErrInvalidID
	}
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment %s %s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}

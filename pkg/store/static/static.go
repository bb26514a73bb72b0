// Package static serves page records from memory: the built-in defaults or a YAML data file.
package static

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/codeGROOVE-dev/linkhub/pkg/bio"
	"github.com/codeGROOVE-dev/linkhub/pkg/link"
	"github.com/codeGROOVE-dev/linkhub/pkg/store"
)

// Default returns the built-in page data.
func Default() store.Snapshot {
	return store.Snapshot{
		Profile: store.Profile{
			ID:        "1",
			Name:      "@TeDabliukk",
			Handle:    "Criador de Conteúdo",
			Bio:       bio.Options()[0],
			AvatarURL: "https://i.ibb.co/SDDy2fB6/Design-sem-nome-6.png",
		},
		Links: []link.Entry{
			{ID: "3", Title: "YouTube", URL: "https://www.youtube.com/@TeDabliukk", Platform: link.YouTube, Accent: "red-600", Subtitle: "Vídeos épicos e Tutoriais! 🎬", State: link.Unenriched},
			{ID: "1", Title: "Instagram", URL: "https://www.instagram.com/davi_psss/", Platform: link.Instagram, Accent: "pink-600", Subtitle: "Bastidores e fotos 📸", State: link.Unenriched},
			{ID: "2", Title: "TikTok", URL: "https://www.tiktok.com/@tedabliu.kk", Platform: link.TikTok, Accent: "black", Subtitle: "Vídeos Curtos! 🤣", State: link.Unenriched},
		},
		Maps: []store.MapVersion{
			{
				ID:          "4",
				Title:       "Baixar Mundo (Bedrock)",
				Description: "Para Celular/Console",
				Mirrors:     []store.Mirror{{Name: "Google Drive", URL: "https://drive.google.com/file/d/1gJu1o0ZlwIfN2z6NbQc2fYwJd3yWc_jD/view?usp=sharing"}},
			},
			{
				ID:          "5",
				Title:       "Baixar Mundo (Java)",
				Description: "Versão para PC",
				Mirrors:     []store.Mirror{{Name: "Google Drive", URL: "https://drive.google.com/file/d/1PJ6VMg4SPUI1s8emKCJU7c2z4b8G3LBD/view?usp=drive_link"}},
			},
		},
		Locations: []store.Location{},
	}
}

// LoadFile reads a YAML data file. Sections missing from the file keep their defaults.
func LoadFile(path string) (store.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("read data file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML page data over the defaults.
func Parse(data []byte) (store.Snapshot, error) {
	var file struct {
		Profile   *store.Profile     `yaml:"profile"`
		Links     []link.Entry       `yaml:"links"`
		Maps      []store.MapVersion `yaml:"maps"`
		Locations []store.Location   `yaml:"locations"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return store.Snapshot{}, fmt.Errorf("parse data file: %w", err)
	}

	snap := Default()
	if file.Profile != nil {
		snap.Profile = *file.Profile
	}
	if file.Links != nil {
		snap.Links = make([]link.Entry, len(file.Links))
		for i, e := range file.Links {
			snap.Links[i] = link.Normalize(e)
		}
	}
	if file.Maps != nil {
		snap.Maps = file.Maps
	}
	if file.Locations != nil {
		snap.Locations = file.Locations
	}
	return snap, nil
}

// Store is an in-memory store.Store. Counters live only as long as the process.
type Store struct {
	clicks map[string]int64
	snap   store.Snapshot
	mu     sync.RWMutex
}

// New creates a Store holding a copy of snap.
func New(snap store.Snapshot) *Store {
	return &Store{snap: clone(snap), clicks: make(map[string]int64)}
}

func clone(s store.Snapshot) store.Snapshot {
	out := s
	out.Links = slices.Clone(s.Links)
	out.Maps = make([]store.MapVersion, len(s.Maps))
	for i, m := range s.Maps {
		m.Mirrors = slices.Clone(m.Mirrors)
		out.Maps[i] = m
	}
	out.Locations = slices.Clone(s.Locations)
	return out
}

// Snapshot returns a copy of everything held.
func (s *Store) Snapshot() store.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.snap)
}

// Profile returns the profile.
func (s *Store) Profile(context.Context) (store.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Profile, nil
}

// Links returns the links in display order.
func (s *Store) Links(context.Context) ([]link.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snap.Links), nil
}

// Maps returns the map versions.
func (s *Store) Maps(context.Context) ([]store.MapVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(store.Snapshot{Maps: s.snap.Maps}).Maps, nil
}

// Locations returns the world locations.
func (s *Store) Locations(context.Context) ([]store.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snap.Locations), nil
}

// IncrementLikes adds one like to the profile.
func (s *Store) IncrementLikes(_ context.Context, profileID string) error {
	if !store.ValidID(profileID) {
		return store.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Profile.ID != "" && s.snap.Profile.ID != profileID {
		return fmt.Errorf("profile %s: %w", profileID, store.ErrNotFound)
	}
	s.snap.Profile.Likes++
	return nil
}

// IncrementClicks counts a click on a link.
func (s *Store) IncrementClicks(_ context.Context, linkID string) error {
	if !store.ValidID(linkID) {
		return store.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.ContainsFunc(s.snap.Links, func(e link.Entry) bool { return e.ID == linkID }) {
		return fmt.Errorf("link %s: %w", linkID, store.ErrNotFound)
	}
	s.clicks[linkID]++
	return nil
}

// Clicks returns the clicks counted for a link.
func (s *Store) Clicks(linkID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clicks[linkID]
}

// IncrementDownloads counts a download of a map version.
func (s *Store) IncrementDownloads(_ context.Context, mapID string) error {
	if !store.ValidID(mapID) {
		return store.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.snap.Maps {
		if s.snap.Maps[i].ID == mapID {
			s.snap.Maps[i].Downloads++
			return nil
		}
	}
	return fmt.Errorf("map %s: %w", mapID, store.ErrNotFound)
}

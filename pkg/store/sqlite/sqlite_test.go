package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/linkhub/pkg/link"
	"github.com/codeGROOVE-dev/linkhub/pkg/store"
)

func testSnapshot() store.Snapshot {
	return store.Snapshot{
		Profile: store.Profile{ID: "1", Name: "@TeDabliukk", Handle: "Criador de Conteúdo", Bio: "bio", AvatarURL: "https://i/a.png"},
		Links: []link.Entry{
			{ID: "3", Title: "YouTube", URL: "https://www.youtube.com/@TeDabliukk", Platform: link.YouTube, Accent: "red-600", Subtitle: "Vídeos", State: link.Unenriched},
			{ID: "1", Title: "Instagram", URL: "https://www.instagram.com/davi_psss/", Platform: link.Instagram, Accent: "pink-600", Subtitle: "Fotos", State: link.Unenriched},
		},
		Maps: []store.MapVersion{
			{ID: "4", Title: "Bedrock", Description: "Celular", Mirrors: []store.Mirror{{Name: "Google Drive", URL: "https://drive/1"}}},
		},
		Locations: []store.Location{
			{ID: "1", Name: "Spawn", CoordinateCommand: "/tp @s 0 64 0"},
		},
	}
}

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "linkhub.db"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() }) //nolint:errcheck,gosec // test cleanup
	return s
}

func TestSeedAndRead(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	n, err := s.Seed(ctx, testSnapshot())
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if n != 5 {
		t.Errorf("Seed() inserted %d rows, want 5", n)
	}

	got := store.Load(ctx, store.Snapshot{}, s, nil)
	if diff := cmp.Diff(testSnapshot(), got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSeedKeepsCounters(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	if _, err := s.Seed(ctx, testSnapshot()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if err := s.IncrementLikes(ctx, "1"); err != nil {
		t.Fatalf("IncrementLikes() error = %v", err)
	}
	n, err := s.Seed(ctx, testSnapshot())
	if err != nil {
		t.Fatalf("second Seed() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second Seed() inserted %d rows, want 0", n)
	}
	p, err := s.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if p.Likes != 1 {
		t.Errorf("likes = %d, want 1", p.Likes)
	}
}

func TestEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	if _, err := s.Profile(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Profile() error = %v, want ErrNotFound", err)
	}
	links, err := s.Links(ctx)
	if err != nil || len(links) != 0 {
		t.Errorf("Links() = %v, %v; want empty", links, err)
	}
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	if _, err := s.Seed(ctx, testSnapshot()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.IncrementClicks(ctx, "3"); err != nil {
				t.Errorf("IncrementClicks() error = %v", err)
			}
		}()
	}
	wg.Wait()

	clicks, err := s.Clicks(ctx, "3")
	if err != nil {
		t.Fatalf("Clicks() error = %v", err)
	}
	if clicks != 10 {
		t.Errorf("clicks = %d, want 10", clicks)
	}

	if err := s.IncrementDownloads(ctx, "4"); err != nil {
		t.Fatalf("IncrementDownloads() error = %v", err)
	}
	maps, err := s.Maps(ctx)
	if err != nil {
		t.Fatalf("Maps() error = %v", err)
	}
	if maps[0].Downloads != 1 {
		t.Errorf("downloads = %d, want 1", maps[0].Downloads)
	}
}

func TestCounterErrors(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	if _, err := s.Seed(ctx, testSnapshot()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	if err := s.IncrementLikes(ctx, "2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("IncrementLikes(unknown) error = %v, want ErrNotFound", err)
	}
	if err := s.IncrementDownloads(ctx, "x' OR '1'='1"); !errors.Is(err, store.ErrInvalidID) {
		t.Errorf("IncrementDownloads(injection) error = %v, want ErrInvalidID", err)
	}
	if _, err := s.Clicks(ctx, "99"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Clicks(unknown) error = %v, want ErrNotFound", err)
	}
}

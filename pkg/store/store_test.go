package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/linkhub/pkg/link"
)

type fakeReader struct {
	profile    Profile
	links      []link.Entry
	maps       []MapVersion
	locations  []Location
	profileErr error
	linksErr   error
	mapsErr    error
	locErr     error
}

func (f *fakeReader) Profile(context.Context) (Profile, error)      { return f.profile, f.profileErr }
func (f *fakeReader) Links(context.Context) ([]link.Entry, error)   { return f.links, f.linksErr }
func (f *fakeReader) Maps(context.Context) ([]MapVersion, error)    { return f.maps, f.mapsErr }
func (f *fakeReader) Locations(context.Context) ([]Location, error) { return f.locations, f.locErr }

func fallback() Snapshot {
	return Snapshot{
		Profile: Profile{ID: "1", Name: "@TeDabliukk"},
		Links: []link.Entry{
			{ID: "1", Title: "Instagram", URL: "https://www.instagram.com/davi_psss/", Platform: link.Instagram, Subtitle: "Bastidores e fotos 📸", State: link.Unenriched},
		},
		Maps: []MapVersion{{ID: "4", Title: "Bedrock"}},
	}
}

func TestLoadAllSucceed(t *testing.T) {
	r := &fakeReader{
		profile:   Profile{ID: "1", Name: "Remote", Likes: 42},
		links:     []link.Entry{{ID: "9", Title: "Site", URL: "https://example.com"}},
		maps:      []MapVersion{{ID: "7", Title: "Java", Mirrors: []Mirror{{Name: "Drive", URL: "https://drive.example/x"}}}},
		locations: []Location{{ID: "1", Name: "Spawn", CoordinateCommand: "/tp @s 0 64 0"}},
	}

	got := Load(context.Background(), fallback(), r, nil)
	want := Snapshot{
		Profile:   r.profile,
		Links:     []link.Entry{{ID: "9", Title: "Site", URL: "https://example.com", Platform: link.Generic, State: link.Unenriched}},
		Maps:      r.maps,
		Locations: r.locations,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadKeepsFallbackPerKind(t *testing.T) {
	boom := errors.New("connection refused")
	r := &fakeReader{
		profile:    Profile{ID: "1", Name: "Remote"},
		profileErr: nil,
		linksErr:   boom,
		mapsErr:    boom,
		locations:  []Location{{ID: "2", Name: "Castle"}},
	}

	got := Load(context.Background(), fallback(), r, nil)
	want := fallback()
	want.Profile = Profile{ID: "1", Name: "Remote"}
	want.Locations = []Location{{ID: "2", Name: "Castle"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadNilReader(t *testing.T) {
	if diff := cmp.Diff(fallback(), Load(context.Background(), fallback(), nil, nil)); diff != "" {
		t.Errorf("Load(nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestValidID(t *testing.T) {
	tests := map[string]bool{
		"1":                                    true,
		"abc_DEF-9":                            true,
		"3f2504e0-4f89-11d3-9a0c-0305e82c3301": true,
		"":                                     false,
		"1; drop table":                        false,
		"../etc":                               false,
	}
	for id, want := range tests {
		if got := ValidID(id); got != want {
			t.Errorf("ValidID(%q) = %v, want %v", id, got, want)
		}
	}
}

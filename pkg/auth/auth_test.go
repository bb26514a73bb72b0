package auth

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type failingSource struct{}

func (failingSource) Cookies(context.Context, string) (map[string]string, error) {
	return nil, errors.New("keychain locked")
}

func TestEnvSource(t *testing.T) {
	t.Setenv("INSTAGRAM_SESSIONID", "test-session")
	t.Setenv("INSTAGRAM_CSRFTOKEN", "test-csrf")

	cookies, err := EnvSource{}.Cookies(context.Background(), "instagram")
	if err != nil {
		t.Fatalf("Cookies failed: %v", err)
	}
	want := map[string]string{"sessionid": "test-session", "csrftoken": "test-csrf"}
	if diff := cmp.Diff(want, cookies); diff != "" {
		t.Errorf("Cookies() mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvSourceUnknownPlatform(t *testing.T) {
	cookies, err := EnvSource{}.Cookies(context.Background(), "myspace")
	if err != nil {
		t.Fatalf("Cookies failed: %v", err)
	}
	if cookies != nil {
		t.Error("cookies should be nil for unknown platform")
	}
}

func TestEnvSourceNoCookies(t *testing.T) {
	t.Setenv("TIKTOK_SESSIONID", "")
	t.Setenv("TIKTOK_TTWID", "")
	cookies, err := EnvSource{}.Cookies(context.Background(), "tiktok")
	if err != nil {
		t.Fatalf("Cookies failed: %v", err)
	}
	if cookies != nil {
		t.Error("cookies should be nil when env vars not set")
	}
}

func TestEnvVarsForPlatform(t *testing.T) {
	want := []string{"YOUTUBE_CONSENT", "YOUTUBE_SOCS"}
	if diff := cmp.Diff(want, EnvVarsForPlatform("youtube")); diff != "" {
		t.Errorf("EnvVarsForPlatform() mismatch (-want +got):\n%s", diff)
	}
	if got := EnvVarsForPlatform("myspace"); got != nil {
		t.Errorf("EnvVarsForPlatform(unknown) = %v, want nil", got)
	}
}

func TestStaticSourceReturnsCopy(t *testing.T) {
	src := NewStaticSource(map[string]map[string]string{
		"tiktok": {"sessionid": "abc"},
	})

	got, err := src.Cookies(context.Background(), "tiktok")
	if err != nil {
		t.Fatalf("Cookies failed: %v", err)
	}
	got["sessionid"] = "mutated"

	again, _ := src.Cookies(context.Background(), "tiktok") //nolint:errcheck // static source never fails
	if again["sessionid"] != "abc" {
		t.Errorf("static source was mutated: %q", again["sessionid"])
	}

	if none, _ := src.Cookies(context.Background(), "youtube"); none != nil { //nolint:errcheck // static source never fails
		t.Errorf("Cookies(youtube) = %v, want nil", none)
	}
}

func TestChainSources(t *testing.T) {
	empty := NewStaticSource(nil)
	second := NewStaticSource(map[string]map[string]string{"instagram": {"sessionid": "second"}})
	third := NewStaticSource(map[string]map[string]string{"instagram": {"sessionid": "third"}})

	cookies, err := ChainSources(context.Background(), "instagram", empty, second, third)
	if err != nil {
		t.Fatalf("ChainSources failed: %v", err)
	}
	if cookies["sessionid"] != "second" {
		t.Errorf("sessionid = %q, want first non-empty source", cookies["sessionid"])
	}

	if _, err := ChainSources(context.Background(), "instagram", empty, failingSource{}); err == nil {
		t.Error("ChainSources should surface source errors")
	}

	none, err := ChainSources(context.Background(), "instagram")
	if err != nil || none != nil {
		t.Errorf("ChainSources() with no sources = %v, %v", none, err)
	}
}

func TestBuildJar(t *testing.T) {
	src := NewStaticSource(map[string]map[string]string{
		"instagram": {"sessionid": "ig", "csrftoken": ""},
		"youtube":   {"SOCS": "yt"},
	})

	jar, filled, err := BuildJar(context.Background(), nil, []string{"instagram", "tiktok", "youtube", "unknown"}, src)
	if err != nil {
		t.Fatalf("BuildJar failed: %v", err)
	}
	if filled != 2 {
		t.Errorf("filled = %d, want 2", filled)
	}

	u, _ := url.Parse("https://www.instagram.com/davi_psss/") //nolint:errcheck // constant URL
	got := jar.Cookies(u)
	if len(got) != 1 || got[0].Name != "sessionid" || got[0].Value != "ig" {
		t.Errorf("instagram cookies = %v, want only sessionid=ig", got)
	}

	u, _ = url.Parse("https://www.tiktok.com/@tedabliu.kk") //nolint:errcheck // constant URL
	if got := jar.Cookies(u); len(got) != 0 {
		t.Errorf("tiktok cookies = %v, want none", got)
	}
}

func TestBuildJarSourceError(t *testing.T) {
	if _, _, err := BuildJar(context.Background(), nil, []string{"tiktok"}, failingSource{}); err == nil {
		t.Error("BuildJar should fail when a source fails")
	}
}

func TestFilterEssential(t *testing.T) {
	all := map[string]string{"sessionid": "s", "csrftoken": "c", "mid": "tracking", "ds_user_id": "1"}
	want := map[string]string{"sessionid": "s", "csrftoken": "c"}
	if diff := cmp.Diff(want, filterEssential(all, "instagram")); diff != "" {
		t.Errorf("filterEssential() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(all, filterEssential(all, "other")); diff != "" {
		t.Errorf("filterEssential(unfiltered) mismatch (-want +got):\n%s", diff)
	}
}

func TestBrowserSourceUnknownPlatform(t *testing.T) {
	cookies, err := NewBrowserSource(nil).Cookies(context.Background(), "myspace")
	if err != nil || cookies != nil {
		t.Errorf("Cookies(unknown) = %v, %v; want nil, nil", cookies, err)
	}
}

func TestPlatformsAndDomain(t *testing.T) {
	if diff := cmp.Diff([]string{"instagram", "tiktok", "youtube"}, Platforms()); diff != "" {
		t.Errorf("Platforms() mismatch (-want +got):\n%s", diff)
	}
	if got := Domain("youtube"); got != "youtube.com" {
		t.Errorf("Domain(youtube) = %q", got)
	}
}

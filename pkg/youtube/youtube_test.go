package youtube

import (
	"context"
	"testing"

	"github.com/codeGROOVE-dev/linkhub/pkg/link"
)

type stubFetcher struct {
	pages     map[string]string
	requested []string
}

func (s *stubFetcher) Fetch(_ context.Context, target string) string {
	s.requested = append(s.requested, target)
	return s.pages[target]
}

func TestMatch(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/@TeDabliukk", true},
		{"https://youtube.com/channel/UC123", true},
		{"https://youtube.com/c/SomeName", true},
		{"https://youtube.com/user/legacy", true},
		{"https://www.youtube.com/watch?v=abc", false},
		{"https://vimeo.com/@someone", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := Match(tt.url); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestHandleAndProfileURL(t *testing.T) {
	tests := []struct {
		in      string
		handle  string
		profile string
	}{
		{"https://www.youtube.com/@TeDabliukk", "TeDabliukk", "https://www.youtube.com/@TeDabliukk"},
		{"https://youtube.com/@TeDabliukk/videos", "TeDabliukk", "https://www.youtube.com/@TeDabliukk"},
		{"https://youtube.com/channel/UC123?view=0", "channel/UC123", "https://www.youtube.com/channel/UC123"},
		{"https://youtube.com/c/SomeName", "c/SomeName", "https://www.youtube.com/c/SomeName"},
		{"@TeDabliukk", "TeDabliukk", "https://www.youtube.com/@TeDabliukk"},
		{"user/legacy", "user/legacy", "https://www.youtube.com/user/legacy"},
		{"https://www.YouTube.com/@TeDabliukk", "TeDabliukk", "https://www.youtube.com/@TeDabliukk"},
		{"HTTPS://WWW.YOUTUBE.COM/@TeDabliukk", "TeDabliukk", "https://www.youtube.com/@TeDabliukk"},
		{"https://www.YouTube.com/Channel/UC123", "channel/UC123", "https://www.youtube.com/channel/UC123"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h := Handle(tt.in)
			if h != tt.handle {
				t.Fatalf("Handle(%q) = %q, want %q", tt.in, h, tt.handle)
			}
			if got := ProfileURL(h); got != tt.profile {
				t.Errorf("ProfileURL(%q) = %q, want %q", h, got, tt.profile)
			}
		})
	}
	if got := Handle("https://www.youtube.com/watch?v=abc"); got != "" {
		t.Errorf("Handle(watch URL) = %q, want empty", got)
	}
}

func TestDetectRegistered(t *testing.T) {
	if got := link.Detect("https://www.youtube.com/@TeDabliukk"); got != link.YouTube {
		t.Errorf("link.Detect() = %q, want %q", got, link.YouTube)
	}
}

func TestFollowers(t *testing.T) {
	tests := []struct {
		name   string
		page   string
		want   string
		wantOK bool
	}{
		{
			name:   "header metadata",
			page:   `"metadataParts":[{"text":{"content":"@TeDabliukk"}},{"text":{"content":"12.3K subscribers"}}]`,
			want:   "12.3K Inscritos",
			wantOK: true,
		},
		{
			name:   "lowercase unit",
			page:   `<span>1.05m Subscribers</span>`,
			want:   "1.05M Inscritos",
			wantOK: true,
		},
		{
			name:   "consent wall",
			page:   `<title>Before you continue to YouTube</title>`,
			wantOK: false,
		},
		{
			name:   "unavailable",
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubFetcher{pages: map[string]string{ProfileURL("TeDabliukk"): tt.page}}
			c, err := New(context.Background(), WithFetcher(stub))
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}
			got, ok := c.Followers(context.Background(), "TeDabliukk")
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Followers() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFollowersLabel(t *testing.T) {
	stub := &stubFetcher{pages: map[string]string{ProfileURL("TeDabliukk"): "845 subscribers"}}
	c, err := New(context.Background(), WithFetcher(stub), WithLabel("subscribers"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if got, _ := c.Followers(context.Background(), "TeDabliukk"); got != "845 subscribers" {
		t.Errorf("Followers() = %q", got)
	}
}

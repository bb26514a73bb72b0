package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/linkhub/pkg/bio"
	"github.com/codeGROOVE-dev/linkhub/pkg/inapp"
	"github.com/codeGROOVE-dev/linkhub/pkg/link"
	"github.com/codeGROOVE-dev/linkhub/pkg/linkhub"
	"github.com/codeGROOVE-dev/linkhub/pkg/store/static"
)

type pageFetcher struct {
	mu    sync.Mutex
	pages map[string]string
}

func (f *pageFetcher) Fetch(_ context.Context, target string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[target]
}

var profilePages = map[string]string{
	"https://www.instagram.com/davi_psss/": `<meta name="description" content="120K Followers, 500 Following">`,
	"https://www.tiktok.com/@tedabliu.kk":  `<div class="stats"><span>45.6K Followers</span></div>`,
}

func newTestServer(t *testing.T, wrap func(*linkhub.Service) Service) (*httptest.Server, *static.Store) {
	t.Helper()
	st := static.New(static.Default())
	svc, err := linkhub.New(context.Background(),
		linkhub.WithFetcher(&pageFetcher{pages: profilePages}),
		linkhub.WithStore(st))
	if err != nil {
		t.Fatalf("linkhub.New() error = %v", err)
	}
	var api Service = svc
	if wrap != nil {
		api = wrap(svc)
	}
	ts := httptest.NewServer(New(api).Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func do(t *testing.T, method, url, body string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 13; Pixel 7; wv) AppleWebKit/537.36 Chrome/120.0 Mobile Safari/537.36")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck // test cleanup
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp := do(t, http.MethodGet, ts.URL+"/healthz", "")
	body, _ := io.ReadAll(resp.Body) //nolint:errcheck // checked via content
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
}

func TestPage(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp := do(t, http.MethodGet, ts.URL+"/api/page", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var p linkhub.Page
	decode(t, resp, &p)
	if p.Profile.ID != "1" || len(p.Links) != 3 || len(p.Maps) != 2 {
		t.Errorf("page = %+v", p)
	}
	if want := (inapp.Result{Kind: inapp.AndroidWebView, OS: inapp.Android}); p.Browser != want {
		t.Errorf("Browser = %+v, want %+v", p.Browser, want)
	}
	for _, e := range p.Links {
		if strings.Contains(e.Subtitle, "Seguidores") {
			t.Errorf("page served enriched subtitle %q", e.Subtitle)
		}
	}
}

func TestBrowser(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	const desktop = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"
	tests := []struct {
		ua    string
		query string
		want  inapp.Kind
	}{
		{desktop, "", inapp.None},
		{desktop, "?debug_banner=true", inapp.Forced},
		{desktop, "?debug_banner=nope", inapp.None},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) musical_ly_32.0", "", inapp.TikTok},
	}
	for _, tt := range tests {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL+"/api/browser"+tt.query, http.NoBody)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("User-Agent", tt.ua)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		var got inapp.Result
		decode(t, resp, &got)
		resp.Body.Close() //nolint:errcheck // test
		if got.Kind != tt.want {
			t.Errorf("browser%s kind = %q, want %q", tt.query, got.Kind, tt.want)
		}
	}
}

func TestEnrichedLinks(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	var plain, enriched []link.Entry
	decode(t, do(t, http.MethodGet, ts.URL+"/api/links", ""), &plain)
	decode(t, do(t, http.MethodGet, ts.URL+"/api/links/enriched", ""), &enriched)

	got := map[string]string{}
	for _, e := range enriched {
		got[e.ID] = e.Subtitle
	}
	want := map[string]string{
		"3": plain[0].Subtitle,
		"1": "120K Seguidores",
		"2": "45.6K Seguidores",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("enriched mismatch (-want +got):\n%s", diff)
	}
}

type event struct {
	name string
	data string
}

func readEvents(t *testing.T, r io.Reader) []event {
	t.Helper()
	var out []event
	var cur event
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			out = append(out, cur)
			cur = event{}
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	return out
}

func TestStream(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp := do(t, http.MethodGet, ts.URL+"/api/links/stream", "")
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := readEvents(t, resp.Body)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %+v", len(events), events)
	}
	if events[0].name != "links" || events[3].name != "done" {
		t.Errorf("event order = %+v", events)
	}
	if events[3].data != `{"enriched":2}` {
		t.Errorf("done data = %s", events[3].data)
	}

	patched := map[string]string{}
	for _, ev := range events[1:3] {
		if ev.name != "patch" {
			t.Errorf("event = %q, want patch", ev.name)
			continue
		}
		var e link.Entry
		if err := json.Unmarshal([]byte(ev.data), &e); err != nil {
			t.Fatalf("patch data: %v", err)
		}
		patched[e.ID] = e.Subtitle
	}
	want := map[string]string{"1": "120K Seguidores", "2": "45.6K Seguidores"}
	if diff := cmp.Diff(want, patched); diff != "" {
		t.Errorf("patches mismatch (-want +got):\n%s", diff)
	}
}

func TestLikeOncePerVisitor(t *testing.T) {
	ts, st := newTestServer(t, nil)

	resp := do(t, http.MethodPost, ts.URL+"/api/like", "")
	var first likeResponse
	decode(t, resp, &first)
	if !first.Counted {
		t.Fatalf("first like = %+v, want counted", first)
	}
	var liked *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == LikedCookie {
			liked = c
		}
	}
	if liked == nil || liked.Value != "1" {
		t.Fatalf("liked cookie = %+v", liked)
	}

	var second likeResponse
	decode(t, do(t, http.MethodPost, ts.URL+"/api/like", "", liked), &second)
	if second.Counted || !second.Liked {
		t.Errorf("second like = %+v, want liked but not counted", second)
	}
	if got := st.Snapshot().Profile.Likes; got != 1 {
		t.Errorf("likes = %d, want 1", got)
	}
}

func TestLikeErrors(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed body", `{"profileId":`, http.StatusBadRequest},
		{"unknown profile", `{"profileId":"42"}`, http.StatusNotFound},
		{"invalid id", `{"profileId":"a b"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := do(t, http.MethodPost, ts.URL+"/api/like", tt.body); resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestCounters(t *testing.T) {
	ts, st := newTestServer(t, nil)
	tests := []struct {
		name string
		path string
		want int
	}{
		{"click", "/api/links/2/click", http.StatusNoContent},
		{"click unknown", "/api/links/77/click", http.StatusNotFound},
		{"click invalid", "/api/links/bad.id/click", http.StatusBadRequest},
		{"download", "/api/maps/4/download", http.StatusNoContent},
		{"download unknown", "/api/maps/9/download", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := do(t, http.MethodPost, ts.URL+tt.path, ""); resp.StatusCode != tt.want {
				t.Errorf("POST %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
			}
		})
	}
	if st.Clicks("2") != 1 || st.Snapshot().Maps[0].Downloads != 1 {
		t.Errorf("counters not recorded: clicks %d downloads %d", st.Clicks("2"), st.Snapshot().Maps[0].Downloads)
	}
}

// failingStore breaks every counter write.
type failingStore struct{ *linkhub.Service }

func (failingStore) Click(context.Context, string) error { return errors.New("connection refused") }

func TestCounterStoreFailure(t *testing.T) {
	ts, _ := newTestServer(t, func(s *linkhub.Service) Service { return failingStore{s} })
	if resp := do(t, http.MethodPost, ts.URL+"/api/links/1/click", ""); resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

// cannedBio answers bio requests without a model.
type cannedBio struct {
	*linkhub.Service
	text string
	err  error
}

func (c cannedBio) GenerateBio(_ context.Context, keywords, _ string) (string, error) {
	if keywords == "" {
		return "", bio.ErrNoKeywords
	}
	return c.text, c.err
}

func TestBio(t *testing.T) {
	tests := []struct {
		name   string
		wrap   func(*linkhub.Service) Service
		body   string
		status int
		want   string
	}{
		{"not configured", nil, `{"keywords":"minecraft"}`, http.StatusServiceUnavailable, ""},
		{"generated", func(s *linkhub.Service) Service { return cannedBio{Service: s, text: "Construindo mundos 🌍"} }, `{"keywords":"minecraft","tone":"Épico"}`, http.StatusOK, "Construindo mundos 🌍"},
		{"no keywords", func(s *linkhub.Service) Service { return cannedBio{Service: s} }, `{"keywords":""}`, http.StatusBadRequest, ""},
		{"model error", func(s *linkhub.Service) Service { return cannedBio{Service: s, err: errors.New("quota")} }, `{"keywords":"x"}`, http.StatusBadGateway, ""},
		{"bad body", nil, `nope`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := newTestServer(t, tt.wrap)
			resp := do(t, http.MethodPost, ts.URL+"/api/bio", tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.want == "" {
				return
			}
			var got map[string]string
			decode(t, resp, &got)
			if got["bio"] != tt.want {
				t.Errorf("bio = %q, want %q", got["bio"], tt.want)
			}
		})
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	svc, err := linkhub.New(context.Background(), linkhub.WithFetcher(&pageFetcher{}))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(svc).ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("ListenAndServe() = %v, want nil after cancel", err)
	}
}

package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiterSpacesSameDomain(t *testing.T) {
	r := newDomainRateLimiter(100 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := r.Wait(ctx, "https://www.instagram.com/a/", nil); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if err := r.Wait(ctx, "https://www.instagram.com/b/", nil); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("second request to same domain after %v, want >= 100ms", elapsed)
	}
}

func TestRateLimiterIndependentDomains(t *testing.T) {
	r := newDomainRateLimiter(time.Second)
	ctx := context.Background()

	start := time.Now()
	for _, u := range []string{"https://www.instagram.com/", "https://www.tiktok.com/@x", "https://www.youtube.com/@y"} {
		if err := r.Wait(ctx, u, nil); err != nil {
			t.Fatalf("Wait(%q) error = %v", u, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("distinct domains waited %v, want no spacing", elapsed)
	}
}

func TestRateLimiterHonorsContext(t *testing.T) {
	r := newDomainRateLimiter(time.Hour)
	if err := r.Wait(context.Background(), "https://example.com/", nil); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.Wait(ctx, "https://example.com/again", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	r := newDomainRateLimiter(0)
	for range 5 {
		if err := r.Wait(context.Background(), "https://example.com/", nil); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
}

func TestRateLimiterDomainDelay(t *testing.T) {
	r := newDomainRateLimiter(time.Second)
	r.SetDomainDelay("instagram.com", 3*time.Second)
	r.SetDomainDelay("example.com", 0)

	tests := []struct {
		host string
		want time.Duration
	}{
		{"instagram.com", 3 * time.Second},
		{"www.instagram.com", 3 * time.Second},
		{"WWW.Instagram.COM", 3 * time.Second},
		{"www.tiktok.com", time.Second},
		{"notinstagram.com", time.Second},
		{"example.com", 0},
	}
	for _, tt := range tests {
		if got := r.delayFor(tt.host); got != tt.want {
			t.Errorf("delayFor(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}

	start := time.Now()
	for range 3 {
		if err := r.Wait(context.Background(), "https://example.com/", nil); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("zero override still spaced requests: %v", elapsed)
	}
}

func TestNewAppliesDomainDelays(t *testing.T) {
	f, err := New(WithMinDelay(100*time.Millisecond), WithDomainDelay("instagram.com", 2*time.Second))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := f.limiter.delayFor("www.instagram.com"); got != 2*time.Second {
		t.Errorf("delayFor(www.instagram.com) = %v, want 2s", got)
	}
	if got := f.limiter.delayFor("www.youtube.com"); got != 100*time.Millisecond {
		t.Errorf("delayFor(www.youtube.com) = %v, want 100ms", got)
	}
}

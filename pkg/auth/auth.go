// Package auth collects session cookies for fetching profile pages without a proxy.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
)

// Source represents a source of session cookies.
type Source interface {
	// Cookies returns cookies for the given platform, or nil if unavailable.
	Cookies(ctx context.Context, platform string) (map[string]string, error)
}

// ChainSources returns cookies from the first source that provides them.
func ChainSources(ctx context.Context, platform string, sources ...Source) (map[string]string, error) {
	for _, src := range sources {
		cookies, err := src.Cookies(ctx, platform)
		if err != nil {
			return nil, err
		}
		if len(cookies) > 0 {
			return cookies, nil
		}
	}
	return nil, nil //nolint:nilnil // no source had cookies, but this is not an error
}

// Domain returns the cookie domain for a platform, or "" if it has none.
func Domain(platform string) string {
	return platformDomains[platform]
}

// Platforms lists the platforms cookies can be collected for.
func Platforms() []string {
	out := make([]string, 0, len(platformDomains))
	for p := range platformDomains {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SetCookies adds cookies for domain to jar.
func SetCookies(jar http.CookieJar, domain string, cookies map[string]string) error {
	u, err := url.Parse("https://" + domain)
	if err != nil {
		return err
	}

	var httpCookies []*http.Cookie
	for name, value := range cookies {
		if value == "" {
			continue
		}
		httpCookies = append(httpCookies, &http.Cookie{
			Name:   name,
			Value:  value,
			Domain: "." + domain,
			Path:   "/",
		})
	}
	jar.SetCookies(u, httpCookies)
	return nil
}

// BuildJar creates one cookie jar holding cookies for every platform any source can supply.
// Platforms without cookies are skipped; the returned count says how many were filled.
func BuildJar(ctx context.Context, logger *slog.Logger, platforms []string, sources ...Source) (*cookiejar.Jar, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, 0, err
	}

	filled := 0
	for _, platform := range platforms {
		domain := Domain(platform)
		if domain == "" {
			continue
		}
		cookies, err := ChainSources(ctx, platform, sources...)
		if err != nil {
			return nil, 0, fmt.Errorf("%s cookies: %w", platform, err)
		}
		if len(cookies) == 0 {
			logger.DebugContext(ctx, "no cookies", "platform", platform)
			continue
		}
		if err := SetCookies(jar, domain, cookies); err != nil {
			return nil, 0, fmt.Errorf("%s cookies: %w", platform, err)
		}
		filled++
	}
	return jar, filled, nil
}

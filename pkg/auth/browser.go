package auth

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // Import all browser cookie stores
	"github.com/browserutils/kooky/browser/firefox"
)

// platformDomains maps platform names to their cookie domains.
var platformDomains = map[string]string{
	"instagram": "instagram.com",
	"tiktok":    "tiktok.com",
	"youtube":   "youtube.com",
}

// platformEssentialCookies maps platform names to the cookies worth forwarding.
var platformEssentialCookies = map[string][]string{
	"instagram": {"sessionid", "csrftoken"},
	"tiktok":    {"sessionid", "ttwid"},
	"youtube":   {"CONSENT", "SOCS"},
}

// firefoxProfileGlobs lists Firefox-family profile locations kooky does not always find on its own.
var firefoxProfileGlobs = []string{
	filepath.Join(".mozilla", "firefox", "*", "cookies.sqlite"),
	filepath.Join("Library", "Application Support", "Firefox", "Profiles", "*", "cookies.sqlite"),
	filepath.Join("Library", "Application Support", "zen", "Profiles", "*", "cookies.sqlite"),
}

// BrowserSource reads cookies from local browser cookie stores.
type BrowserSource struct {
	logger *slog.Logger
	home   string
}

// NewBrowserSource creates a new browser cookie source.
func NewBrowserSource(logger *slog.Logger) *BrowserSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserSource{logger: logger, home: os.Getenv("HOME")}
}

// Cookies returns cookies for the given platform from browser stores.
func (s *BrowserSource) Cookies(ctx context.Context, platform string) (map[string]string, error) {
	domain, ok := platformDomains[platform]
	if !ok {
		return nil, nil //nolint:nilnil // no cookies for unknown platform is not an error
	}

	s.logger.DebugContext(ctx, "reading browser cookies", "platform", platform, "domain", domain)

	if cookies := s.tryFirefoxProfiles(ctx, domain, platform); len(cookies) > 0 {
		return cookies, nil
	}

	kookies, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(domain))
	if err != nil && len(kookies) == 0 {
		s.logger.Debug("failed to read browser cookies", "platform", platform, "error", err)
		return nil, nil //nolint:nilnil // failed browser read is not a fatal error
	}

	cookies := filterEssential(cookieMap(kookies), platform)
	if len(cookies) == 0 {
		return nil, nil //nolint:nilnil // no browser cookies is not an error
	}
	s.logger.Info("browser cookies found", "platform", platform, "count", len(cookies))
	return cookies, nil
}

func (s *BrowserSource) tryFirefoxProfiles(ctx context.Context, domain, platform string) map[string]string {
	if s.home == "" {
		return nil
	}

	for _, g := range firefoxProfileGlobs {
		matches, err := filepath.Glob(filepath.Join(s.home, g))
		if err != nil {
			continue
		}
		for _, f := range matches {
			kookies, err := firefox.ReadCookies(ctx, f, kooky.Valid, kooky.DomainHasSuffix(domain))
			if err != nil {
				s.logger.Debug("failed to read Firefox cookies",
					"profile", filepath.Base(filepath.Dir(f)),
					"platform", platform,
					"error", err)
				continue
			}
			if cookies := filterEssential(cookieMap(kookies), platform); len(cookies) > 0 {
				s.logger.Debug("found Firefox cookies",
					"profile", filepath.Base(filepath.Dir(f)),
					"platform", platform,
					"count", len(cookies))
				return cookies
			}
		}
	}
	return nil
}

func cookieMap(kookies []*kooky.Cookie) map[string]string {
	m := make(map[string]string, len(kookies))
	for _, c := range kookies {
		if c != nil {
			m[c.Name] = c.Value
		}
	}
	return m
}

// filterEssential keeps only the cookies a platform needs. Platforms without a list keep everything.
func filterEssential(all map[string]string, platform string) map[string]string {
	essential, ok := platformEssentialCookies[platform]
	if !ok {
		return all
	}
	out := make(map[string]string, len(essential))
	for _, name := range essential {
		if v := all[name]; v != "" {
			out[name] = v
		}
	}
	return out
}

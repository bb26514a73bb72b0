package fetcher

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/net/proxy"
)

// newTransport builds the fetcher's own transport. An empty upstream dials directly;
// socks5:// upstreams use a SOCKS5 dialer and anything else is treated as an HTTP proxy.
func newTransport(upstream string) (*http.Transport, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("unexpected default transport %T", http.DefaultTransport)
	}
	t := base.Clone()
	if upstream == "" {
		return t, nil
	}

	proxyURL, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream proxy URL: %w", err)
	}

	switch proxyURL.Scheme {
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if proxyURL.User != nil {
			pass, _ := proxyURL.User.Password()
			auth = &proxy.Auth{User: proxyURL.User.Username(), Password: pass}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("create SOCKS5 dialer: %w", err)
		}
		cd, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("SOCKS5 dialer does not support contexts")
		}
		t.Proxy = nil
		t.DialContext = cd.DialContext
	case "http", "https":
		t.Proxy = http.ProxyURL(proxyURL)
	default:
		return nil, fmt.Errorf("unsupported upstream proxy scheme %q", proxyURL.Scheme)
	}
	return t, nil
}

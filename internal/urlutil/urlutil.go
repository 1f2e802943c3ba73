// Package urlutil normalizes the loosely formed URLs that arrive from voice
// recognition and extracts the registrable domain used to key crawls and
// menus.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Fix repairs a URL as spoken or transcribed: stray whitespace, a missing
// scheme, uppercase hosts. An empty input stays empty; anything that still
// does not parse is returned unchanged so the fetch error surfaces to the
// user instead of being swallowed here.
func Fix(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// Domain returns the registrable domain (eTLD+1) of a URL, e.g.
// "news.bbc.co.uk" yields "bbc.co.uk".
func Domain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Bare hosts (localhost, IPs) have no public suffix; use them as is.
		return host, nil
	}
	return domain, nil
}

// SameDomain reports whether two URLs share a registrable domain. The
// crawler uses it to stay inside the site it was started on.
func SameDomain(a, b string) bool {
	da, errA := Domain(a)
	db, errB := Domain(b)
	if errA != nil || errB != nil {
		return false
	}
	return da == db
}

// Resolve resolves a possibly relative href against its page URL.
func Resolve(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url %q: %w", pageURL, err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parsing href %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

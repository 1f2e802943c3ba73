// Package search resolves free-text queries to the URL of their best result
// by scraping a lightweight HTML search frontend.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/voxsurf/voxsurf/api/schemas"
	"github.com/voxsurf/voxsurf/internal/config"
)

// ErrNoResults is returned when the search frontend yields no usable link.
var ErrNoResults = errors.New("no search results")

// Resolver implements schemas.SearchResolver.
type Resolver struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ schemas.SearchResolver = (*Resolver)(nil)

// New creates a Resolver against the configured search frontend.
func New(cfg config.SearchConfig, logger *zap.Logger) *Resolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("search"),
	}
}

// ResolveQuery returns the first result URL for the query.
func (r *Resolver) ResolveQuery(ctx context.Context, query string) (string, error) {
	reqURL := fmt.Sprintf("%s?q=%s", r.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("User-Agent", "voxsurf/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	root, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing search results: %w", err)
	}

	result := firstResult(root, resp.Request.URL)
	if result == "" {
		return "", fmt.Errorf("query %q: %w", query, ErrNoResults)
	}

	r.logger.Info("Query resolved", zap.String("query", query), zap.String("url", result))
	return result, nil
}

// firstResult walks the result page for the first outbound link. Frontends
// wrap results in redirect links carrying the destination in a "uddg" query
// parameter; those are unwrapped, anything else pointing back at the search
// host is navigation chrome and skipped.
func firstResult(root *html.Node, searchURL *url.URL) string {
	var find func(n *html.Node) string
	find = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.Data == "a" {
			if link := resultHref(n, searchURL); link != "" {
				return link
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if link := find(c); link != "" {
				return link
			}
		}
		return ""
	}
	return find(root)
}

func resultHref(n *html.Node, searchURL *url.URL) string {
	var href string
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = attr.Val
			break
		}
	}
	if href == "" {
		return ""
	}

	u, err := searchURL.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}

	// Redirect wrapper: the real destination rides in the uddg parameter.
	if dest := u.Query().Get("uddg"); dest != "" {
		if unwrapped, err := url.QueryUnescape(dest); err == nil {
			return unwrapped
		}
		return dest
	}

	if strings.EqualFold(u.Host, searchURL.Host) {
		return ""
	}
	return u.String()
}

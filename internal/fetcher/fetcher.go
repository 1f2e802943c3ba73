// Package fetcher retrieves web pages and extracts the parts the voice
// interface can work with: the title, readable sentences, and links. The
// quick path is a tuned plain HTTP client; pages that need JavaScript go
// through the rendered path (see rendered.go).
package fetcher

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"

	"github.com/voxsurf/voxsurf/api/schemas"
	"github.com/voxsurf/voxsurf/internal/config"
)

// Transport tuning for interactive fetches.
const (
	defaultDialTimeout           = 5 * time.Second
	defaultKeepAliveInterval     = 15 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
	defaultMaxIdleConns          = 100
	defaultMaxIdleConnsPerHost   = 10
	defaultIdleConnTimeout       = 30 * time.Second

	maxBodyBytes = 8 << 20
)

// FetchError reports a page that could not be retrieved or parsed. Its text
// is user-facing: handlers speak it to the user instead of failing the turn.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return "Error while visiting the page." }

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher implements schemas.PageFetcher.
type Fetcher struct {
	cfg    config.FetcherConfig
	client *http.Client
	logger *zap.Logger
}

var _ schemas.PageFetcher = (*Fetcher)(nil)

// New creates a Fetcher with a transport tuned for short interactive
// requests.
func New(cfg config.FetcherConfig, logger *zap.Logger) *Fetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: defaultKeepAliveInterval,
		}).DialContext,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		// Content negotiation is handled manually so brotli works too.
		DisableCompression: true,
	}
	if cfg.IgnoreTLSErrors {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		logger: logger.Named("fetcher"),
	}
}

// Fetch downloads the page over plain HTTP and extracts it.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*schemas.Page, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	page, err := Extract(finalURL, body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	f.logger.Debug("Fetched page",
		zap.String("url", finalURL),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("sentences", len(page.Sentences)),
		zap.Int("links", len(page.Links)))
	return page, nil
}

// decodeBody undoes the negotiated content encoding.
func decodeBody(resp *http.Response) (io.Reader, error) {
	limited := io.LimitReader(resp.Body, maxBodyBytes)
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		return brotli.NewReader(limited), nil
	case "gzip":
		gz, err := gzip.NewReader(limited)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		return gz, nil
	default:
		return limited, nil
	}
}

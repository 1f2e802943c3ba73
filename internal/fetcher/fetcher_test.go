package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxsurf/voxsurf/internal/config"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Example Domain</title></head>
<body>
<h1>Welcome to Example</h1>
<p>This is the first paragraph. It has two sentences.</p>
<a href="/news">Latest News</a>
</body>
</html>`

func testFetcher() *Fetcher {
	return New(config.FetcherConfig{
		RequestTimeout: 5 * time.Second,
		UserAgent:      "voxsurf-test/1.0",
	}, zap.NewNop())
}

func TestFetchPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "voxsurf-test/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	page, err := testFetcher().Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "Example Domain", page.Title)
	assert.Contains(t, page.Sentences, "Welcome to Example")
	assert.Contains(t, page.Sentences, "This is the first paragraph.")
	assert.Contains(t, page.Sentences, "It has two sentences.")
	require.Len(t, page.Links, 1)
	assert.Equal(t, "Latest News", page.Links[0].Label)
	assert.Equal(t, srv.URL+"/news", page.Links[0].TargetURL)
}

func TestFetchGzipBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "gzip")
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		gz.Write([]byte(samplePage))
		gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	page, err := testFetcher().Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "Example Domain", page.Title)
}

func TestFetchBrotliBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte(samplePage))
		bw.Close()
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	page, err := testFetcher().Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "Example Domain", page.Title)
}

func TestFetchFollowsRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
			return
		}
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	page, err := testFetcher().Fetch(context.Background(), srv.URL+"/old")

	require.NoError(t, err)
	// The page carries the final URL, not the one the user asked for.
	assert.Equal(t, srv.URL+"/new", page.URL)
}

func TestFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFetcher().Fetch(context.Background(), srv.URL)

	require.Error(t, err)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	// The error text is the spoken payload, not a technical message.
	assert.Equal(t, "Error while visiting the page.", err.Error())
}

func TestFetchUnreachableHost(t *testing.T) {
	_, err := testFetcher().Fetch(context.Background(), "http://127.0.0.1:1")

	require.Error(t, err)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Error while visiting the page.", err.Error())
	assert.Error(t, errors.Unwrap(err))
}

func TestFetchRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := testFetcher().Fetch(ctx, srv.URL)
	require.Error(t, err)
}

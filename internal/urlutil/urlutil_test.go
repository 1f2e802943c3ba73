package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFix(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare hostname gets a scheme", "example.com", "https://example.com"},
		{"path preserved", "example.com/news/today", "https://example.com/news/today"},
		{"existing scheme untouched", "http://example.com", "http://example.com"},
		{"whitespace trimmed", "  example.com  ", "https://example.com"},
		{"host lowercased", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"empty stays empty", "", ""},
		{"whitespace only stays empty", "   ", ""},
		{"unparseable returned as is", "https://exa mple.com", "https://exa mple.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Fix(tc.input))
		})
	}
}

func TestDomain(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain domain", "https://example.com/page", "example.com"},
		{"subdomain collapses", "https://news.example.com", "example.com"},
		{"multi-part public suffix", "https://news.bbc.co.uk/stories", "bbc.co.uk"},
		{"localhost passes through", "http://localhost:8080/x", "localhost"},
		{"ip passes through", "http://127.0.0.1:9999/", "127.0.0.1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Domain(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestDomainRejectsHostless(t *testing.T) {
	_, err := Domain("not a url")
	require.Error(t, err)
}

func TestSameDomain(t *testing.T) {
	assert.True(t, SameDomain("https://example.com/a", "https://www.example.com/b"))
	assert.False(t, SameDomain("https://example.com", "https://example.org"))
	assert.False(t, SameDomain("https://example.com", "garbage"))
}

func TestResolve(t *testing.T) {
	got, err := Resolve("https://example.com/section/page.html", "../other.html")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/other.html", got)

	got, err = Resolve("https://example.com/section/", "sub.html")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/section/sub.html", got)

	got, err = Resolve("https://example.com/", "https://absolute.example.org/x")
	require.NoError(t, err)
	assert.Equal(t, "https://absolute.example.org/x", got)
}

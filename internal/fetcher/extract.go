package fetcher

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/voxsurf/voxsurf/api/schemas"
	"github.com/voxsurf/voxsurf/internal/urlutil"
)

// blockElements are the elements whose text is worth reading aloud.
var blockElements = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "li": true,
}

// skipElements subtrees contribute no readable text.
var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "iframe": true,
}

// Extract parses HTML and pulls out the title, readable sentences, and links.
func Extract(pageURL string, r io.Reader) (*schemas.Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	page := &schemas.Page{URL: pageURL}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case skipElements[n.Data]:
				return
			case n.Data == "title" && page.Title == "":
				page.Title = strings.TrimSpace(textContent(n))
				return
			case n.Data == "a":
				if link, ok := anchor(pageURL, n); ok {
					page.Links = append(page.Links, link)
				}
			case blockElements[n.Data]:
				if text := strings.TrimSpace(textContent(n)); text != "" {
					page.Sentences = append(page.Sentences, SplitSentences(text)...)
				}
				// Nested blocks would duplicate the flattened text; only
				// anchors remain to be collected below this node.
				collectAnchors(pageURL, n, page)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return page, nil
}

// collectAnchors gathers the anchors below a node without re-extracting its
// text.
func collectAnchors(pageURL string, n *html.Node, page *schemas.Page) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			if skipElements[c.Data] {
				continue
			}
			if c.Data == "a" {
				if link, ok := anchor(pageURL, c); ok {
					page.Links = append(page.Links, link)
				}
				continue
			}
		}
		collectAnchors(pageURL, c, page)
	}
}

// anchor turns an <a> node into a MenuEntry with an absolute URL.
func anchor(pageURL string, n *html.Node) (schemas.MenuEntry, bool) {
	var href string
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = attr.Val
			break
		}
	}
	label := strings.TrimSpace(textContent(n))
	if href == "" || label == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return schemas.MenuEntry{}, false
	}
	abs, err := urlutil.Resolve(pageURL, href)
	if err != nil {
		return schemas.MenuEntry{}, false
	}
	return schemas.MenuEntry{Label: label, TargetURL: abs}, true
}

// textContent flattens the text nodes under n, normalizing whitespace.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// sentence terminators; abbreviations are not worth special-casing for
// speech output.
var terminators = ".!?"

// SplitSentences chops a text block into sentences suitable for reading two
// at a time.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if strings.ContainsRune(terminators, r) {
			// Sentence ends at a terminator followed by space or end of text.
			if i == len(runes)-1 || runes[i+1] == ' ' {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

package crawler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// maxSitemapSeeds caps how many sitemap URLs are added to the first crawl
// frontier; the breadth-first walk finds the rest.
const maxSitemapSeeds = 50

// sitemapSeeds fetches /sitemap.xml at the site's origin and returns its
// page URLs. Sites without a sitemap just seed from the start URL alone.
func (c *Crawler) sitemapSeeds(ctx context.Context, startURL string) []string {
	origin, err := url.Parse(startURL)
	if err != nil {
		return nil
	}
	sitemapURL := origin.Scheme + "://" + origin.Host + "/sitemap.xml"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("No sitemap", zap.String("url", sitemapURL), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(resp.Body); err != nil {
		c.logger.Debug("Unparseable sitemap", zap.String("url", sitemapURL), zap.Error(err))
		return nil
	}

	root := doc.Root()
	if root == nil {
		return nil
	}

	var seeds []string
	// Both <urlset> entries and nested <sitemap> index entries carry the
	// target in a <loc> child.
	for _, el := range root.ChildElements() {
		if loc := el.FindElement("loc"); loc != nil {
			if len(seeds) >= maxSitemapSeeds {
				break
			}
			seeds = append(seeds, loc.Text())
		}
	}

	c.logger.Debug("Sitemap seeded", zap.String("url", sitemapURL), zap.Int("seeds", len(seeds)))
	return seeds
}

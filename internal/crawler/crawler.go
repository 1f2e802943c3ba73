// Package crawler builds the link corpus for a domain. It is started
// fire-and-forget when the user first visits a domain; nothing in the turn
// path waits for it, it just makes future menus better.
package crawler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/voxsurf/voxsurf/api/schemas"
	"github.com/voxsurf/voxsurf/internal/config"
	"github.com/voxsurf/voxsurf/internal/urlutil"
)

// Crawler walks a domain breadth-first and persists every in-domain link it
// sees through the history store.
type Crawler struct {
	cfg     config.CrawlerConfig
	fetcher schemas.PageFetcher
	store   schemas.HistoryStore
	client  *http.Client
	logger  *zap.Logger
}

var _ schemas.Crawler = (*Crawler)(nil)

// New creates a Crawler.
func New(cfg config.CrawlerConfig, fetcher schemas.PageFetcher, store schemas.HistoryStore, logger *zap.Logger) *Crawler {
	return &Crawler{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger.Named("crawler"),
	}
}

// Run crawls the domain of startURL up to the configured depth and page
// budget, then marks the domain crawled. It blocks until done; callers
// wanting fire-and-forget start it on their own goroutine.
func (c *Crawler) Run(ctx context.Context, startURL string) error {
	crawlID := uuid.New().String()
	domain, err := urlutil.Domain(startURL)
	if err != nil {
		return err
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	log := c.logger.With(zap.String("crawl_id", crawlID), zap.String("domain", domain))
	log.Info("Crawl started", zap.String("start_url", startURL))
	start := time.Now()

	limiter := rate.NewLimiter(rate.Limit(c.cfg.RequestsPerSec), 1)
	sem := semaphore.NewWeighted(int64(c.cfg.Concurrency))

	visited := map[string]bool{}
	pages := 0
	frontier := append([]string{startURL}, c.sitemapSeeds(ctx, startURL)...)

	for depth := 0; depth <= c.cfg.MaxDepth && len(frontier) > 0; depth++ {
		var (
			mu   sync.Mutex
			next []string
		)

		g, gctx := errgroup.WithContext(ctx)
		for _, pageURL := range frontier {
			if visited[pageURL] || pages >= c.cfg.MaxPages {
				continue
			}
			visited[pageURL] = true
			pages++

			g.Go(func() error {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)

				links, outbound := c.visit(gctx, pageURL, domain)
				if len(links) > 0 {
					if err := c.store.SaveLinks(gctx, links); err != nil {
						log.Warn("Failed to save link batch", zap.Error(err))
					}
				}

				mu.Lock()
				next = append(next, outbound...)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			log.Warn("Crawl cut short", zap.Error(err), zap.Int("pages", pages))
			break
		}
		frontier = next
	}

	if err := c.store.MarkDomainCrawled(context.WithoutCancel(ctx), domain); err != nil {
		log.Warn("Failed to mark domain crawled", zap.Error(err))
		return err
	}

	log.Info("Crawl finished",
		zap.Int("pages", pages),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// visit fetches one page and returns its persistable links plus the
// same-domain URLs to crawl next. Fetch failures just end this branch.
func (c *Crawler) visit(ctx context.Context, pageURL, domain string) ([]schemas.Link, []string) {
	page, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		c.logger.Debug("Fetch failed during crawl", zap.String("url", pageURL), zap.Error(err))
		return nil, nil
	}

	links := make([]schemas.Link, 0, len(page.Links))
	var outbound []string
	for i, l := range page.Links {
		linkDomain, err := urlutil.Domain(l.TargetURL)
		if err != nil || linkDomain != domain {
			continue
		}
		// Document order stands in for pixel position: the quick fetch does
		// not lay the page out, but earlier in the document is almost always
		// higher on the page.
		links = append(links, schemas.Link{
			PageURL:  page.URL,
			LinkURL:  l.TargetURL,
			LinkText: l.Label,
			Y:        i,
		})
		outbound = append(outbound, l.TargetURL)
	}
	return links, outbound
}

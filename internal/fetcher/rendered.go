package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/voxsurf/voxsurf/api/schemas"
)

// FetchRendered loads the page in a headless browser so JavaScript-driven
// content is present, then runs the same extraction as the quick path. Each
// call gets its own browser context; the interactive flow renders rarely
// enough that keeping a warm browser around is not worth the memory.
func (f *Fetcher) FetchRendered(ctx context.Context, url string) (*schemas.Page, error) {
	start := time.Now()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.UserAgent(f.cfg.UserAgent),
	)
	if f.cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	navTimeout := f.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(browserCtx, navTimeout)
	defer navCancel()

	quiet := f.cfg.PostLoadWait
	if quiet <= 0 {
		quiet = 2 * time.Second
	}

	var rawHTML, finalURL string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(quiet),
		chromedp.Location(&finalURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			root, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			rawHTML, err = dom.GetOuterHTML().WithNodeID(root.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		f.logger.Warn("Rendered fetch failed", zap.String("url", url), zap.Error(err))
		return nil, &FetchError{URL: url, Err: err}
	}

	page, err := Extract(finalURL, strings.NewReader(rawHTML))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	f.logger.Debug("Rendered page",
		zap.String("url", finalURL),
		zap.Duration("elapsed", time.Since(start)))
	return page, nil
}

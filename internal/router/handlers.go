package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/voxsurf/voxsurf/api/schemas"
	"github.com/voxsurf/voxsurf/internal/cursor"
	"github.com/voxsurf/voxsurf/internal/pagination"
	"github.com/voxsurf/voxsurf/internal/urlutil"
)

// User-facing messages.
const (
	msgEndOfPage         = "You have reached the end of the page."
	msgWrongInput        = "Wrong input."
	msgNoLinkToOpen      = "There is no link to open."
	msgNothingToGoBackTo = "There is nothing to go back to."
	msgNoSearchResults   = "I could not find any results for that."
	msgSectionNotFound   = "I could not find that section."
	msgEmptyMenu         = "There is no menu for this page yet."
	msgUnknownAction     = "I did not understand that."
	menuHeader           = "You can choose between: \n"
)

// visitPage opens the cursor's URL: fetch and parse, reset the read and menu
// offsets, and kick off a background crawl the first time a domain is seen.
// Fetch failures become the spoken payload; the turn still completes.
func (r *Router) visitPage(ctx context.Context, cur *cursor.Cursor) string {
	cur.IdxParagraph = 0
	cur.IdxMenu = 0

	page, err := r.fetcher.Fetch(ctx, cur.URL)
	if err != nil {
		r.logger.Warn("Visit failed", zap.String("url", cur.URL), zap.Error(err))
		return err.Error()
	}
	cur.URL = page.URL

	r.maybeCrawl(page.URL)
	return r.describe(ctx, page)
}

// getInfo fetches with full rendering and describes the page: title, topic,
// language.
func (r *Router) getInfo(ctx context.Context, cur *cursor.Cursor) string {
	page, err := r.fetcher.FetchRendered(ctx, cur.URL)
	if err != nil {
		r.logger.Warn("Info fetch failed", zap.String("url", cur.URL), zap.Error(err))
		return err.Error()
	}
	return r.describe(ctx, page)
}

// describe builds the descriptive text for a page. Classification failures
// degrade to the title alone.
func (r *Router) describe(ctx context.Context, page *schemas.Page) string {
	var b strings.Builder
	if page.Title != "" {
		fmt.Fprintf(&b, "The title of this page is %s.\n", page.Title)
	}

	c, err := r.analyzer.Classify(ctx, strings.Join(page.Sentences, " "))
	if err != nil {
		r.logger.Warn("Classification failed", zap.String("url", page.URL), zap.Error(err))
		if b.Len() == 0 {
			return "I opened the page, but I could not find out more about it."
		}
		return b.String()
	}

	fmt.Fprintf(&b, "The topic of this web page is %s.", c.Topic)
	fmt.Fprintf(&b, "The language of this web page is %s.", c.Language)
	return b.String()
}

// maybeCrawl starts a detached crawl of the page's domain if it has not been
// crawled yet. The crawl owns its own lifetime; nothing here waits for it.
func (r *Router) maybeCrawl(pageURL string) {
	domain, err := urlutil.Domain(pageURL)
	if err != nil {
		return
	}
	crawled, err := r.store.DomainCrawled(context.Background(), domain)
	if err != nil {
		r.logger.Error("Crawl check failed", zap.String("domain", domain), zap.Error(err))
		return
	}
	if crawled {
		return
	}

	r.logger.Info("Starting background crawl", zap.String("domain", domain))
	go func() {
		if err := r.crawler.Run(context.Background(), pageURL); err != nil {
			r.logger.Warn("Background crawl failed", zap.String("domain", domain), zap.Error(err))
		}
	}()
}

// getMenu reads the next window of the domain's menu and advances the menu
// offset by one page, wrapping once the offset runs past the end.
func (r *Router) getMenu(ctx context.Context, cur *cursor.Cursor) string {
	entries, err := r.menu.Entries(ctx, cur.URL)
	if err != nil {
		r.logger.Warn("Menu build failed", zap.String("url", cur.URL), zap.Error(err))
		return msgEmptyMenu
	}
	if len(entries) == 0 {
		return msgEmptyMenu
	}

	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.Label
	}

	start := cur.IdxMenu
	if start >= len(labels) {
		start = 0
	}
	text := menuHeader + pagination.FormatPage(labels, start, r.browse.MenuPageSize)
	cur.IdxMenu = start + r.browse.MenuPageSize
	return text
}

// readPage speaks the next sentences from the read offset, advancing it by
// the read step; running off the end resets the offset and says so.
func (r *Router) readPage(ctx context.Context, cur *cursor.Cursor) string {
	page, err := r.fetcher.FetchRendered(ctx, cur.URL)
	if err != nil {
		r.logger.Warn("Read fetch failed", zap.String("url", cur.URL), zap.Error(err))
		return err.Error()
	}

	// A read needs a full window: a tail shorter than the read step counts
	// as the end of the page.
	idx := cur.IdxParagraph
	end := idx + r.browse.ReadStep
	if end > len(page.Sentences) {
		cur.IdxParagraph = 0
		return msgEndOfPage
	}

	cur.IdxParagraph = end
	return strings.Join(page.Sentences[idx:end], " ")
}

// openLink swaps the cursor's pending link into the URL and visits it.
func (r *Router) openLink(ctx context.Context, cur *cursor.Cursor) string {
	if cur.Link == "" {
		return msgNoLinkToOpen
	}
	cur.URL, cur.Link = cur.Link, ""
	return r.visitPage(ctx, cur)
}

// goToSection resolves a menu section by name or 1-based number, then visits
// it. The section slots ride either on the turn parameters or on the cursor
// context, depending on how the dialog agent filled them.
func (r *Router) goToSection(ctx context.Context, turn *schemas.Turn, cursorCtx *schemas.Context, cur *cursor.Cursor) string {
	name := sectionParam(turn, cursorCtx, paramSectionName)
	rawNumber := sectionParam(turn, cursorCtx, paramSectionNumber)

	number := 0
	if rawNumber != "" {
		n, err := strconv.Atoi(strings.TrimSpace(rawNumber))
		if err != nil {
			return msgWrongInput
		}
		number = n
	}

	target, err := r.menu.ResolveSection(ctx, cur.URL, name, number)
	if err != nil {
		r.logger.Warn("Section resolution failed",
			zap.String("name", name), zap.Int("number", number), zap.Error(err))
		return msgSectionNotFound
	}

	cur.URL = target
	return r.visitPage(ctx, cur)
}

// sectionParam reads a slot from the turn parameters, falling back to the
// cursor context.
func sectionParam(turn *schemas.Turn, cursorCtx *schemas.Context, key string) string {
	if v := turn.Param(key); v != "" {
		return v
	}
	if cursorCtx == nil {
		return ""
	}
	switch v := cursorCtx.Parameters[key].(type) {
	case string:
		return v
	case float64:
		return strconv.Itoa(int(v))
	default:
		return ""
	}
}

// Package router resolves a turn to one of the fixed browsing actions and
// executes it against the collaborators: fetcher, history store, analyzer,
// menu builder, search resolver, and the background crawler.
package router

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/voxsurf/voxsurf/api/schemas"
	"github.com/voxsurf/voxsurf/internal/arbiter"
	"github.com/voxsurf/voxsurf/internal/config"
	"github.com/voxsurf/voxsurf/internal/cursor"
	"github.com/voxsurf/voxsurf/internal/history"
	"github.com/voxsurf/voxsurf/internal/urlutil"
)

// Browsing actions recognized by the router.
const (
	ActionVisitPage   = "VisitPage"
	ActionGetInfo     = "GetInfo"
	ActionGetMenu     = "GetMenu"
	ActionReadPage    = "ReadPage"
	ActionOpenLink    = "OpenLink"
	ActionGoToSection = "GoToSection"
	ActionGoBack      = "GoBack"
)

// Turn parameter keys filled by the dialog agent.
const (
	paramURL           = "url"
	paramQuery         = "query"
	paramSectionName   = "section-name"
	paramSectionNumber = "section-number"
)

// MenuSource is the router's view of the menu builder: the ranked entries of
// a domain plus section resolution.
type MenuSource interface {
	Entries(ctx context.Context, pageURL string) ([]schemas.MenuEntry, error)
	ResolveSection(ctx context.Context, pageURL, name string, number int) (string, error)
}

// Router implements arbiter.Handler.
type Router struct {
	fetcher  schemas.PageFetcher
	store    schemas.HistoryStore
	analyzer schemas.TextAnalyzer
	crawler  schemas.Crawler
	search   schemas.SearchResolver
	menu     MenuSource

	browse config.BrowseConfig
	logger *zap.Logger
}

var _ arbiter.Handler = (*Router)(nil)

// New creates a Router over the given collaborators.
func New(
	fetcher schemas.PageFetcher,
	store schemas.HistoryStore,
	analyzer schemas.TextAnalyzer,
	crawler schemas.Crawler,
	search schemas.SearchResolver,
	menu MenuSource,
	browse config.BrowseConfig,
	logger *zap.Logger,
) *Router {
	return &Router{
		fetcher:  fetcher,
		store:    store,
		analyzer: analyzer,
		crawler:  crawler,
		search:   search,
		menu:     menu,
		browse:   browse,
		logger:   logger.Named("router"),
	}
}

// HandleTurn resolves the turn's effective URL and action, records the pair
// to history, and dispatches to the matching handler. It never returns an
// error: every failure degrades to a spoken message so the turn completes.
func (r *Router) HandleTurn(ctx context.Context, turn *schemas.Turn, snap *arbiter.Snapshot) *schemas.WebhookResponse {
	action := turn.Action
	cursorCtx := turn.CursorContext()

	// URL is either in the turn's parameters (VisitPage) or in the cursor
	// context carried over from the previous turn.
	url := turn.Param(paramURL)
	if url == "" && cursorCtx != nil {
		if v, ok := cursorCtx.Parameters[cursor.KeyURL].(string); ok {
			url = v
		}
	}
	url = urlutil.Fix(url)

	// A free-text query overrides the URL with its top search result.
	if query := turn.Param(paramQuery); query != "" {
		resolved, err := r.search.ResolveQuery(ctx, query)
		if err != nil {
			r.logger.Warn("Query resolution failed", zap.String("query", query), zap.Error(err))
			cur := cursor.New(cursorCtx, url)
			snap.Publish(cur)
			return r.respond(turn, cur, msgNoSearchResults)
		}
		url = resolved
	}

	// GoBack replays the previous (action, url) pair instead of whatever was
	// resolved above.
	if action == ActionGoBack {
		prevAction, prevURL, err := r.store.PreviousAction(ctx, turn.Session)
		if err != nil {
			if !errors.Is(err, history.ErrNoHistory) {
				r.logger.Error("History lookup failed", zap.Error(err))
			}
			cur := cursor.New(cursorCtx, url)
			snap.Publish(cur)
			return r.respond(turn, cur, msgNothingToGoBackTo)
		}
		action, url = prevAction, prevURL
	}

	cur := cursor.New(cursorCtx, url)
	snap.Publish(cur)

	// Every resolved pair lands in history before the handler runs, even if
	// the handler then fails.
	if err := r.store.RecordAction(ctx, turn.Session, action, url); err != nil {
		r.logger.Error("Failed to record action", zap.String("action", action), zap.Error(err))
	}

	var text string
	switch action {
	case ActionVisitPage:
		text = r.visitPage(ctx, cur)
	case ActionGetInfo:
		text = r.getInfo(ctx, cur)
	case ActionGetMenu:
		text = r.getMenu(ctx, cur)
	case ActionReadPage:
		text = r.readPage(ctx, cur)
	case ActionOpenLink:
		text = r.openLink(ctx, cur)
	case ActionGoToSection:
		text = r.goToSection(ctx, turn, cursorCtx, cur)
	default:
		r.logger.Warn("Unknown action", zap.String("action", action))
		text = msgUnknownAction
	}

	return r.respond(turn, cur, text)
}

// respond packages the payload text and the cursor into the outbound
// envelope: fulfillment text plus a single cursor context that lives for
// exactly one turn.
func (r *Router) respond(turn *schemas.Turn, cur *cursor.Cursor, text string) *schemas.WebhookResponse {
	return &schemas.WebhookResponse{
		FulfillmentText: text,
		OutputContexts: []schemas.Context{{
			Name:          turn.Session + "/contexts/" + schemas.CursorContextName,
			LifespanCount: 1,
			Parameters:    cur.Params(),
		}},
	}
}

// Package history is the PostgreSQL-backed store for browsing history and
// the crawled link corpus that menus are built from.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/voxsurf/voxsurf/api/schemas"
	"github.com/voxsurf/voxsurf/internal/urlutil"
)

// ErrNoHistory is returned when a session has no usable previous action.
var ErrNoHistory = errors.New("no previous action in history")

// DBPool abstracts pgxpool.Pool so the store can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides the PostgreSQL implementation of schemas.HistoryStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
	// freshness bounds how old a history row may be before GoBack stops
	// trusting it.
	freshness time.Duration
}

var _ schemas.HistoryStore = (*Store)(nil)

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, freshness time.Duration, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool:      pool,
		log:       logger.Named("history"),
		freshness: freshness,
	}, nil
}

// EnsureSchema creates the tables the store needs if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS actions (
            id         BIGSERIAL PRIMARY KEY,
            session    TEXT NOT NULL,
            action     TEXT NOT NULL,
            url        TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
        CREATE INDEX IF NOT EXISTS actions_session_idx ON actions (session, created_at DESC);

        CREATE TABLE IF NOT EXISTS links (
            id         BIGSERIAL PRIMARY KEY,
            domain     TEXT NOT NULL,
            page_url   TEXT NOT NULL,
            link_url   TEXT NOT NULL,
            link_text  TEXT NOT NULL,
            x_position INT NOT NULL DEFAULT 0,
            y_position INT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
        CREATE INDEX IF NOT EXISTS links_domain_idx ON links (domain);

        CREATE TABLE IF NOT EXISTS crawled_domains (
            domain     TEXT PRIMARY KEY,
            crawled_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
    `
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// RecordAction appends one (action, url) pair to the session's history.
func (s *Store) RecordAction(ctx context.Context, session, action, url string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO actions (session, action, url) VALUES ($1, $2, $3)`,
		session, action, url)
	if err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}
	s.log.Debug("Action saved in history",
		zap.String("session", session), zap.String("action", action), zap.String("url", url))
	return nil
}

// PreviousAction returns the action recorded immediately before the most
// recent one, skipping entries older than the freshness window. Voice
// sessions are short; going "back" to something from an hour ago is never
// what the user meant.
func (s *Store) PreviousAction(ctx context.Context, session string) (string, string, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT action, url FROM actions
         WHERE session = $1 AND created_at >= now() - $2::interval
         ORDER BY created_at DESC, id DESC
         OFFSET 1 LIMIT 1`,
		session, s.freshness.String())

	var action, url string
	if err := row.Scan(&action, &url); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrNoHistory
		}
		return "", "", fmt.Errorf("failed to query previous action: %w", err)
	}
	return action, url, nil
}

// DomainCrawled reports whether a crawl of the domain has completed.
func (s *Store) DomainCrawled(ctx context.Context, domain string) (bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM crawled_domains WHERE domain = $1)`, domain)
	var crawled bool
	if err := row.Scan(&crawled); err != nil {
		return false, fmt.Errorf("failed to query crawled domain: %w", err)
	}
	return crawled, nil
}

// MarkDomainCrawled records a completed crawl.
func (s *Store) MarkDomainCrawled(ctx context.Context, domain string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crawled_domains (domain) VALUES ($1)
         ON CONFLICT (domain) DO UPDATE SET crawled_at = now()`, domain)
	if err != nil {
		return fmt.Errorf("failed to mark domain crawled: %w", err)
	}
	return nil
}

// SaveLinks persists a crawled link batch with a single CopyFrom.
func (s *Store) SaveLinks(ctx context.Context, links []schemas.Link) error {
	if len(links) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(links))
	for _, l := range links {
		domain, err := urlutil.Domain(l.PageURL)
		if err != nil {
			s.log.Debug("Skipping link with unparseable page url",
				zap.String("page_url", l.PageURL), zap.Error(err))
			continue
		}
		rows = append(rows, []interface{}{domain, l.PageURL, l.LinkURL, l.LinkText, l.X, l.Y})
	}

	copyCount, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"links"},
		[]string{"domain", "page_url", "link_url", "link_text", "x_position", "y_position"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy links: %w", err)
	}
	if int(copyCount) != len(rows) {
		return fmt.Errorf("mismatch in copied links count: expected %d, got %d", len(rows), copyCount)
	}
	return nil
}

// TopLinks aggregates the domain's link corpus into its menu: links carried
// by the most pages first, ties broken by how high on the page they sit.
func (s *Store) TopLinks(ctx context.Context, domain string, n int) ([]schemas.MenuEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT link_url, MIN(link_text) AS label
         FROM links
         WHERE domain = $1 AND link_text <> ''
         GROUP BY link_url
         ORDER BY COUNT(DISTINCT page_url) DESC, MIN(y_position) ASC, link_url ASC
         LIMIT $2`,
		domain, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query top links: %w", err)
	}
	defer rows.Close()

	var entries []schemas.MenuEntry
	for rows.Next() {
		var e schemas.MenuEntry
		if err := rows.Scan(&e.TargetURL, &e.Label); err != nil {
			return nil, fmt.Errorf("failed to scan link row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}

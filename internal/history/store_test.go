package history

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxsurf/voxsurf/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for
// more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newTestStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	store, err := New(context.Background(), mockPool, 5*time.Minute, zap.NewNop())
	require.NoError(t, err)
	return store, mockPool
}

func TestNewStorePingFails(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)

	_, err = New(context.Background(), mockPool, time.Minute, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRecordAction(t *testing.T) {
	store, mockPool := newTestStore(t)

	mockPool.ExpectExec(flexibleSQLMatcher(
		`INSERT INTO actions (session, action, url) VALUES ($1, $2, $3)`)).
		WithArgs("s1", "VisitPage", "https://example.com").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.RecordAction(context.Background(), "s1", "VisitPage", "https://example.com")
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPreviousActionSkipsMostRecent(t *testing.T) {
	store, mockPool := newTestStore(t)

	// OFFSET 1: the most recent row is the action being undone; the one
	// before it is the answer.
	mockPool.ExpectQuery(flexibleSQLMatcher(
		`SELECT action, url FROM actions
         WHERE session = $1 AND created_at >= now() - $2::interval
         ORDER BY created_at DESC, id DESC
         OFFSET 1 LIMIT 1`)).
		WithArgs("s1", (5 * time.Minute).String()).
		WillReturnRows(pgxmock.NewRows([]string{"action", "url"}).
			AddRow("VisitPage", "https://previous.example.com"))

	action, url, err := store.PreviousAction(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "VisitPage", action)
	assert.Equal(t, "https://previous.example.com", url)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPreviousActionNoHistory(t *testing.T) {
	store, mockPool := newTestStore(t)

	mockPool.ExpectQuery(`SELECT action, url FROM actions`).
		WithArgs("s1", (5 * time.Minute).String()).
		WillReturnError(pgx.ErrNoRows)

	_, _, err := store.PreviousAction(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestDomainCrawled(t *testing.T) {
	store, mockPool := newTestStore(t)

	mockPool.ExpectQuery(flexibleSQLMatcher(
		`SELECT EXISTS (SELECT 1 FROM crawled_domains WHERE domain = $1)`)).
		WithArgs("example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	crawled, err := store.DomainCrawled(context.Background(), "example.com")
	require.NoError(t, err)
	assert.True(t, crawled)
}

func TestMarkDomainCrawled(t *testing.T) {
	store, mockPool := newTestStore(t)

	mockPool.ExpectExec(`INSERT INTO crawled_domains`).
		WithArgs("example.com").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.MarkDomainCrawled(context.Background(), "example.com"))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveLinks(t *testing.T) {
	store, mockPool := newTestStore(t)

	links := []schemas.Link{
		{PageURL: "https://example.com/a", LinkURL: "https://example.com/x", LinkText: "X", X: 10, Y: 20},
		{PageURL: "https://example.com/b", LinkURL: "https://example.com/y", LinkText: "Y", X: 30, Y: 40},
	}

	mockPool.ExpectCopyFrom(pgx.Identifier{"links"},
		[]string{"domain", "page_url", "link_url", "link_text", "x_position", "y_position"}).
		WillReturnResult(2)

	require.NoError(t, store.SaveLinks(context.Background(), links))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

// Links whose page URL cannot be parsed into a domain are dropped, not
// fatal; the rest of the batch still lands.
func TestSaveLinksSkipsUnparseable(t *testing.T) {
	store, mockPool := newTestStore(t)

	links := []schemas.Link{
		{PageURL: "://broken", LinkURL: "https://example.com/x", LinkText: "X"},
		{PageURL: "https://example.com/a", LinkURL: "https://example.com/y", LinkText: "Y"},
	}

	mockPool.ExpectCopyFrom(pgx.Identifier{"links"},
		[]string{"domain", "page_url", "link_url", "link_text", "x_position", "y_position"}).
		WillReturnResult(1)

	require.NoError(t, store.SaveLinks(context.Background(), links))
}

func TestSaveLinksEmptyBatch(t *testing.T) {
	store, mockPool := newTestStore(t)

	// No expectations: an empty batch must not touch the database.
	require.NoError(t, store.SaveLinks(context.Background(), nil))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestTopLinks(t *testing.T) {
	store, mockPool := newTestStore(t)

	mockPool.ExpectQuery(`SELECT link_url, MIN\(link_text\) AS label`).
		WithArgs("example.com", 50).
		WillReturnRows(pgxmock.NewRows([]string{"link_url", "label"}).
			AddRow("https://example.com/news", "News").
			AddRow("https://example.com/sport", "Sport"))

	entries, err := store.TopLinks(context.Background(), "example.com", 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "News", entries[0].Label)
	assert.Equal(t, "https://example.com/news", entries[0].TargetURL)
}

func TestEnsureSchema(t *testing.T) {
	store, mockPool := newTestStore(t)

	mockPool.ExpectExec(`CREATE TABLE IF NOT EXISTS actions`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
}

package schemas

import "context"

// -- Collaborator Interfaces --
// The turn-handling core talks to the outside world only through these
// narrow interfaces, which keeps the arbiter and router testable with mocks.

// PageFetcher retrieves and extracts a web page. Implementations decide how
// to obtain the HTML (plain HTTP, headless browser).
type PageFetcher interface {
	// Fetch downloads the page quickly, without JavaScript execution.
	Fetch(ctx context.Context, url string) (*Page, error)
	// FetchRendered loads the page in a real browser so that
	// JavaScript-driven content is present in the extraction.
	FetchRendered(ctx context.Context, url string) (*Page, error)
}

// HistoryStore persists the conversation's browsing history and the link
// corpus built by the crawler. Implementations must tolerate concurrent use:
// the crawler writes links while turn handlers read and record actions.
type HistoryStore interface {
	// RecordAction appends an (action, url) pair to the session's history.
	RecordAction(ctx context.Context, session, action, url string) error
	// PreviousAction returns the action recorded immediately before the most
	// recent one for the session.
	PreviousAction(ctx context.Context, session string) (action, url string, err error)
	// DomainCrawled reports whether the crawler has already visited the domain.
	DomainCrawled(ctx context.Context, domain string) (bool, error)
	// SaveLinks persists a batch of crawled links.
	SaveLinks(ctx context.Context, links []Link) error
	// TopLinks returns the domain's most prominent links, ranked by how many
	// pages carry them and how high on the page they sit.
	TopLinks(ctx context.Context, domain string, n int) ([]MenuEntry, error)
	// MarkDomainCrawled records that a crawl of the domain completed.
	MarkDomainCrawled(ctx context.Context, domain string) error
}

// TextAnalyzer classifies extracted page text.
type TextAnalyzer interface {
	Classify(ctx context.Context, text string) (*Classification, error)
}

// Crawler builds a link corpus for a domain. Run blocks until the crawl
// finishes; callers that want fire-and-forget semantics start it on their own
// goroutine and never observe completion.
type Crawler interface {
	Run(ctx context.Context, startURL string) error
}

// SearchResolver turns a free-text query into the URL of its best result.
type SearchResolver interface {
	ResolveQuery(ctx context.Context, query string) (string, error)
}

// SectionResolver maps a menu section, by name or 1-based number, to its URL.
type SectionResolver interface {
	ResolveSection(ctx context.Context, pageURL, name string, number int) (string, error)
}

// Package menu builds the spoken navigation menu of a domain from the
// crawled link corpus and resolves section references back to URLs.
package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/voxsurf/voxsurf/api/schemas"
	"github.com/voxsurf/voxsurf/internal/urlutil"
)

// ErrSectionNotFound is returned when a section name or number matches no
// menu entry.
var ErrSectionNotFound = errors.New("section not found")

// menuLimit caps how many corpus links one menu aggregates. The user pages
// through these ten at a time.
const menuLimit = 50

// Builder implements schemas.SectionResolver on top of the history store's
// link corpus.
type Builder struct {
	store  schemas.HistoryStore
	logger *zap.Logger
}

var _ schemas.SectionResolver = (*Builder)(nil)

// NewBuilder creates a menu Builder.
func NewBuilder(store schemas.HistoryStore, logger *zap.Logger) *Builder {
	return &Builder{
		store:  store,
		logger: logger.Named("menu"),
	}
}

// Entries returns the menu of the page's domain, most prominent links first.
func (b *Builder) Entries(ctx context.Context, pageURL string) ([]schemas.MenuEntry, error) {
	domain, err := urlutil.Domain(pageURL)
	if err != nil {
		return nil, err
	}
	entries, err := b.store.TopLinks(ctx, domain, menuLimit)
	if err != nil {
		return nil, fmt.Errorf("building menu for %s: %w", domain, err)
	}
	b.logger.Debug("Menu built", zap.String("domain", domain), zap.Int("entries", len(entries)))
	return entries, nil
}

// ResolveSection maps a section, by case-insensitive name or 1-based number,
// to its URL. Exactly one of name and number is consulted: a non-zero number
// wins, mirroring how the dialog agent fills the two slots.
func (b *Builder) ResolveSection(ctx context.Context, pageURL, name string, number int) (string, error) {
	entries, err := b.Entries(ctx, pageURL)
	if err != nil {
		return "", err
	}

	if number != 0 {
		if number < 1 || number > len(entries) {
			return "", fmt.Errorf("section number %d: %w", number, ErrSectionNotFound)
		}
		return entries[number-1].TargetURL, nil
	}

	want := strings.ToLower(strings.TrimSpace(name))
	for _, e := range entries {
		if strings.ToLower(e.Label) == want {
			return e.TargetURL, nil
		}
	}
	return "", fmt.Errorf("section %q: %w", name, ErrSectionNotFound)
}

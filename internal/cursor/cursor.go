// Package cursor tracks where in a browsing session the user currently is.
// The cursor is not persisted server-side: it is rebuilt from the inbound
// dialog context on every turn and serialized back into the response, so the
// dialog platform round-trips it for us.
package cursor

import (
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/voxsurf/voxsurf/api/schemas"
)

// Canonical parameter keys of the serialized cursor.
const (
	KeyURL            = "url"
	KeyIdxParagraph   = "idx_paragraph"
	KeyIdxMenu        = "idx_menu"
	KeyLink           = "link"
	KeySentenceNumber = "sentence_number"
)

// OriginalSuffix tags context parameters that are platform bookkeeping
// snapshots of the user's raw input. They are not cursor state and are
// dropped on rehydration.
const OriginalSuffix = "original"

// Cursor is the navigational state of one conversation turn.
type Cursor struct {
	// URL of the page currently "open".
	URL string
	// IdxParagraph is the read offset into the page's sentences.
	IdxParagraph int
	// IdxMenu is the offset into the current domain's menu.
	IdxMenu int
	// Link is a surfaced link the user may open next; empty if none.
	Link string
	// SentenceNumber is an auxiliary read counter carried for the caller.
	SentenceNumber int
}

// New builds a Cursor from the inbound cursor context and the resolved URL.
// Every context parameter whose key does not end in the "original" suffix is
// copied onto the cursor; the URL always comes from the caller's resolution
// (search result, history lookup, normalization), never from the context
// directly. A nil context yields a cursor with zeroed offsets.
func New(cursorCtx *schemas.Context, url string) *Cursor {
	c := &Cursor{}
	if cursorCtx != nil {
		for key, value := range cursorCtx.Parameters {
			if strings.HasSuffix(key, OriginalSuffix) {
				continue
			}
			c.set(key, value)
		}
	}
	c.URL = url
	return c
}

// set assigns one serialized parameter onto its field. Numbers arrive as
// float64 from JSON decoding and as strings from followup event echoes, so
// both are accepted.
func (c *Cursor) set(key string, value any) {
	switch key {
	case KeyURL:
		c.URL = asString(value)
	case KeyIdxParagraph:
		c.IdxParagraph = asInt(value)
	case KeyIdxMenu:
		c.IdxMenu = asInt(value)
	case KeyLink:
		c.Link = asString(value)
	case KeySentenceNumber:
		c.SentenceNumber = asInt(value)
	}
}

// Params serializes the cursor into context parameters. All five canonical
// keys are always present.
func (c *Cursor) Params() map[string]any {
	params := map[string]any{
		KeyURL:            c.URL,
		KeyIdxParagraph:   c.IdxParagraph,
		KeyIdxMenu:        c.IdxMenu,
		KeySentenceNumber: c.SentenceNumber,
	}
	if c.Link == "" {
		params[KeyLink] = nil
	} else {
		params[KeyLink] = c.Link
	}
	return params
}

// MarshalLogObject implements zapcore.ObjectMarshaler so the cursor state can
// be logged structurally after every delivered turn.
func (c *Cursor) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("url", c.URL)
	enc.AddInt("idx_paragraph", c.IdxParagraph)
	enc.AddInt("idx_menu", c.IdxMenu)
	enc.AddString("link", c.Link)
	enc.AddInt("sentence_number", c.SentenceNumber)
	return nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return ""
	}
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSuffix(n, ".0")); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return int(f)
		}
		return 0
	default:
		return 0
	}
}

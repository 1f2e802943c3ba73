// Package pagination holds the index arithmetic used to window long lists
// (menus, sentences) into fixed-size spoken pages.
package pagination

import (
	"fmt"
	"strings"
)

// Navigation actions understood by Advance.
const (
	ActionNext     = "next"
	ActionPrevious = "previous"
)

// Advance moves an index through a bounded list. "next" advances by step and
// wraps to 0 as soon as the advanced index would reach or exceed size;
// "previous" steps back and clamps to 0 instead of wrapping to the end. The
// asymmetry is intentional: reading forward cycles through the list, reading
// backward stops at the beginning. Any other action leaves the index as is.
func Advance(action string, oldIdx, step, size int) int {
	switch action {
	case ActionNext:
		if oldIdx+step < size {
			return oldIdx + step
		}
		return 0
	case ActionPrevious:
		if oldIdx-step > 0 {
			return oldIdx - step
		}
		return 0
	default:
		return oldIdx
	}
}

// FormatPage renders a window of items as a numbered list suitable for being
// read aloud: a count header followed by one "<n>: <item>." line per item,
// numbered 1-based from startIdx+1. A startIdx beyond the end of the list
// resets to 0; a window shorter than pageSize just yields fewer lines.
func FormatPage(items []string, startIdx, pageSize int) string {
	if startIdx >= len(items) {
		startIdx = 0
	}
	end := startIdx + pageSize
	if end > len(items) {
		end = len(items)
	}

	var window []string
	if startIdx < len(items) {
		window = items[startIdx:end]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d items found are: \n", len(window), len(items))
	for i, item := range window {
		fmt.Fprintf(&b, "%d: %s. \n", startIdx+i+1, item)
	}
	return b.String()
}

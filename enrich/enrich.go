// Package enrich turns articles into the Telegram message bodies the
// pipeline sends: per-article captions and the end-of-day digest.
package enrich

import (
	"fmt"
	"strings"

	"newsbuzz/types"
)

// Enricher renders message bodies for outgoing articles.
type Enricher interface {
	Caption(a types.Article) string
	Digest(items []types.Article) string
}

// New picks the richest enricher the environment supports: Cohere-backed
// sentiment tagging when a key is configured, plain formatting otherwise.
func New(cohereKey string) Enricher {
	if cohereKey != "" {
		return NewCohere(cohereKey)
	}
	return Plain{}
}

// Plain renders Markdown captions with no model in the loop.
type Plain struct{}

func (Plain) Caption(a types.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*", a.Title)
	if a.Summary != "" {
		b.WriteString("\n\n")
		b.WriteString(a.Summary)
	}
	if a.Link != "" {
		fmt.Fprintf(&b, "\n\n[Read more](%s)", a.Link)
	}
	return b.String()
}

func (Plain) Digest(items []types.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📰 *Daily Digest: %d stories*\n", len(items))
	for _, a := range items {
		if a.Link != "" {
			fmt.Fprintf(&b, "\n• [%s](%s)", a.Title, a.Link)
		} else {
			fmt.Fprintf(&b, "\n• %s", a.Title)
		}
	}
	return b.String()
}

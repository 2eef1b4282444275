// Package extract pulls article fields out of one raw source node using
// ordered fallback rules. Listing pages render the same story in wildly
// different markup, so each field is described as a priority list of
// candidate elements and the first non-empty match wins.
package extract

import (
	"strings"

	"newsbuzz/types"
)

// PlaceholderTitle is used when neither a title nor a summary could be found.
const PlaceholderTitle = "No title"

// Node abstracts one candidate article element. The page reader implements
// it on top of a goquery selection; tests implement it with a map.
type Node interface {
	// Text returns the trimmed text of the first descendant matching the
	// element kind, or "".
	Text(kind string) string
	// Attr returns the named attribute of the first descendant matching the
	// element kind, or "".
	Attr(kind, attr string) string
}

// Rule names one candidate element for a field. When Attr is empty the
// element's text is taken, otherwise the attribute value.
type Rule struct {
	Kind string
	Attr string
}

// Rules holds the per-field candidate lists, evaluated in order.
type Rules struct {
	Title   []Rule
	Link    []Rule
	Summary []Rule
	Date    []Rule
	Image   []Rule
}

// DefaultRules covers the listing-page markup of the configured sources:
// headlines in h2/h3 or anchor text, links on the first anchor, summaries in
// p/span/div, dates in <time datetime> or a bare <span>, thumbnails on img.
func DefaultRules() Rules {
	return Rules{
		Title:   []Rule{{Kind: "h2"}, {Kind: "h3"}, {Kind: "a"}, {Kind: "span"}},
		Link:    []Rule{{Kind: "a", Attr: "href"}},
		Summary: []Rule{{Kind: "p"}, {Kind: "span"}, {Kind: "div"}},
		Date:    []Rule{{Kind: "time", Attr: "datetime"}, {Kind: "time"}, {Kind: "span"}},
		Image:   []Rule{{Kind: "img", Attr: "data-src"}, {Kind: "img", Attr: "src"}},
	}
}

// First evaluates the rule list against the node and returns the first
// non-empty value.
func First(n Node, rules []Rule) string {
	for _, r := range rules {
		var v string
		if r.Attr != "" {
			v = n.Attr(r.Kind, r.Attr)
		} else {
			v = n.Text(r.Kind)
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Record extracts a RawRecord from the node. The second return is false when
// the node does not describe a usable article: no resolvable link, or no
// title even after falling back to the summary and the placeholder. Dropping
// those here keeps unusable entries away from the notifier.
func Record(n Node, rules Rules) (types.RawRecord, bool) {
	rec := types.RawRecord{
		Title:    First(n, rules.Title),
		Link:     First(n, rules.Link),
		Summary:  First(n, rules.Summary),
		RawDate:  First(n, rules.Date),
		ImageURL: First(n, rules.Image),
	}

	if rec.Title == "" {
		if rec.Summary != "" {
			rec.Title = rec.Summary
		} else {
			rec.Title = PlaceholderTitle
		}
	}

	if rec.Link == "" || (rec.Title == PlaceholderTitle && rec.Summary == "") {
		return types.RawRecord{}, false
	}
	return rec, true
}

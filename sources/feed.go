package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"newsbuzz/config"
	"newsbuzz/types"
)

// FeedReader parses a syndication feed and maps entries directly to records;
// dates and summaries come from named fields rather than markup heuristics.
type FeedReader struct {
	cfg      config.SourceConfig
	fetcher  *Fetcher
	parser   *gofeed.Parser
	maxItems int
}

// NewFeedReader creates a structured-feed reader.
func NewFeedReader(cfg config.SourceConfig, fetcher *Fetcher, maxItems int) *FeedReader {
	return &FeedReader{
		cfg:      cfg,
		fetcher:  fetcher,
		parser:   gofeed.NewParser(),
		maxItems: maxItems,
	}
}

func (r *FeedReader) Name() string { return r.cfg.Name }

// Read fetches the document through the shared retrying fetcher and maps up
// to maxItems entries.
func (r *FeedReader) Read(ctx context.Context) ([]types.RawRecord, error) {
	body, err := r.fetcher.Get(ctx, r.cfg.URL)
	if err != nil {
		return nil, err
	}

	feed, err := r.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	count := len(feed.Items)
	if count > r.maxItems {
		count = r.maxItems
	}

	records := make([]types.RawRecord, 0, count)
	for _, item := range feed.Items[:count] {
		rawDate := item.Published
		if rawDate == "" {
			rawDate = item.Updated
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		records = append(records, types.RawRecord{
			Title:    item.Title,
			Link:     item.Link,
			Summary:  summary,
			RawDate:  rawDate,
			ImageURL: feedImage(item),
			GUID:     item.GUID,
		})
	}
	return records, nil
}

// feedImage resolves an entry's image through the ordered fallback: the
// item's own image field, then a media:thumbnail extension, then the first
// enclosure with an image content type.
func feedImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	if media, ok := item.Extensions["media"]; ok {
		if thumbs, ok := media["thumbnail"]; ok {
			for _, t := range thumbs {
				if url := t.Attrs["url"]; url != "" {
					return url
				}
			}
		}
	}

	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

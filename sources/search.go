package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"newsbuzz/config"
	"newsbuzz/types"
)

// SearchReader queries a date-bounded JSON search endpoint (GNews-shaped
// response) and maps the result array to records. Results outside the
// half-open window [from, to) are discarded before mapping.
type SearchReader struct {
	cfg      config.SourceConfig
	fetcher  *Fetcher
	loc      *time.Location
	maxItems int
	now      func() time.Time
}

// searchResponse is the shape of the endpoint's result document.
type searchResponse struct {
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Image       string `json:"image"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// NewSearchReader creates a search-API reader.
func NewSearchReader(cfg config.SourceConfig, fetcher *Fetcher, loc *time.Location, maxItems int) *SearchReader {
	if loc == nil {
		loc = time.Local
	}
	return &SearchReader{
		cfg:      cfg,
		fetcher:  fetcher,
		loc:      loc,
		maxItems: maxItems,
		now:      time.Now,
	}
}

func (r *SearchReader) Name() string { return r.cfg.Name }

// Window returns the half-open date window [from, to) for the current run:
// the current calendar day in the pinned timezone.
func (r *SearchReader) Window() (time.Time, time.Time) {
	now := r.now().In(r.loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
	return from, from.AddDate(0, 0, 1)
}

// Read issues the search query and maps in-window results.
func (r *SearchReader) Read(ctx context.Context) ([]types.RawRecord, error) {
	apiKey := ""
	if r.cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(r.cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("search source %s: %s is not set", r.cfg.Name, r.cfg.APIKeyEnv)
		}
	}

	from, to := r.Window()
	q := url.Values{}
	q.Set("q", r.cfg.Query)
	q.Set("lang", "en")
	q.Set("in", "title,description")
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))
	q.Set("max", strconv.Itoa(r.maxItems))
	if apiKey != "" {
		q.Set("apikey", apiKey)
	}

	body, err := r.fetcher.Get(ctx, r.cfg.URL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	return r.mapResults(resp, from, to), nil
}

func (r *SearchReader) mapResults(resp searchResponse, from, to time.Time) []types.RawRecord {
	records := make([]types.RawRecord, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		// The endpoint is asked for the window, but it is not trusted to
		// honor it.
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			if t.Before(from) || !t.Before(to) {
				continue
			}
		}
		records = append(records, types.RawRecord{
			Title:    a.Title,
			Link:     a.URL,
			Summary:  a.Description,
			RawDate:  a.PublishedAt,
			ImageURL: a.Image,
		})
		if len(records) >= r.maxItems {
			break
		}
	}
	return records
}

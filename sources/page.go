package sources

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"newsbuzz/config"
	"newsbuzz/extract"
	"newsbuzz/normalize"
	"newsbuzz/types"
)

// alternativeSelectors is probed when the primary selector matches nothing.
// The probe only logs what each alternative would have found; listing pages
// change their markup often and the counts tell us which selector to move to.
var alternativeSelectors = []string{
	"div.story", "div.article", "div.newsItem", "li.article", "div.storyItem", "div.each-story",
}

// articleLookupCap bounds the article-page fetches per read; the lookups are
// an enrichment, not worth a full page fetch per record.
const articleLookupCap = 3

// articlePageTimeout bounds each enrichment fetch of an article page.
const articlePageTimeout = 5 * time.Second

// PageReader scrapes an HTML listing page with a CSS selector and extracts
// one record per matched node.
type PageReader struct {
	cfg         config.SourceConfig
	fetcher     *Fetcher
	rules       extract.Rules
	maxItems    int
	imageClient *http.Client
	readArticle func(url string) (readability.Article, error)
}

// NewPageReader creates a selector-based page reader.
func NewPageReader(cfg config.SourceConfig, fetcher *Fetcher, maxItems int) *PageReader {
	return &PageReader{
		cfg:         cfg,
		fetcher:     fetcher,
		rules:       extract.DefaultRules(),
		maxItems:    maxItems,
		imageClient: &http.Client{Timeout: articlePageTimeout},
		readArticle: func(url string) (readability.Article, error) {
			return readability.FromURL(url, articlePageTimeout)
		},
	}
}

func (r *PageReader) Name() string { return r.cfg.Name }

// Read fetches the listing page and extracts up to maxItems records.
func (r *PageReader) Read(ctx context.Context) ([]types.RawRecord, error) {
	body, err := r.fetcher.Get(ctx, r.cfg.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	nodes := doc.Find(r.cfg.Selector)
	log.Printf("Found %d candidate nodes for %s with selector %q", nodes.Length(), r.cfg.URL, r.cfg.Selector)
	if nodes.Length() == 0 {
		r.probeAlternatives(doc)
	}

	records := make([]types.RawRecord, 0, r.maxItems)
	nodes.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rec, ok := extract.Record(selectionNode{s}, r.rules)
		if !ok {
			log.Printf("Warning: skipping node with missing data on %s", r.cfg.URL)
			return true
		}
		rec.Link = normalize.ResolveLink(rec.Link, r.cfg.URL)
		if rec.ImageURL != "" {
			rec.ImageURL = normalize.ResolveLink(rec.ImageURL, r.cfg.URL)
		}
		records = append(records, rec)
		return len(records) < r.maxItems
	})

	r.enrichFromArticlePages(ctx, records)
	return records, nil
}

// probeAlternatives logs what each known alternative selector would match.
// Diagnostic only; it never changes what Read returns.
func (r *PageReader) probeAlternatives(doc *goquery.Document) {
	for _, alt := range alternativeSelectors {
		log.Printf("Alternative selector %q found %d nodes on %s", alt, doc.Find(alt).Length(), r.cfg.URL)
	}
}

// enrichFromArticlePages fills gaps in the extracted records from their own
// article pages, at most articleLookupCap fetches per read. A record with no
// summary gets the page's readability excerpt; a record with no image gets
// the readability lead image or the og:image / twitter:image metadata.
func (r *PageReader) enrichFromArticlePages(ctx context.Context, records []types.RawRecord) {
	looked := 0
	for i := range records {
		needSummary := records[i].Summary == ""
		needImage := records[i].ImageURL == ""
		if (!needSummary && !needImage) || records[i].Link == "" {
			continue
		}
		if looked >= articleLookupCap {
			return
		}
		looked++

		if needSummary {
			art, err := r.readArticle(records[i].Link)
			if err != nil {
				log.Printf("Warning: readability extraction failed for %s: %v", records[i].Link, err)
			} else {
				records[i].Summary = strings.TrimSpace(art.Excerpt)
				if needImage && art.Image != "" {
					records[i].ImageURL = art.Image
					needImage = false
				}
			}
		}
		if needImage {
			records[i].ImageURL = metaImage(ctx, r.imageClient, records[i].Link)
		}
	}
}

// metaImage fetches url and returns its og:image or twitter:image content,
// or "". Failures are silent; an image is never worth failing a record over.
func metaImage(ctx context.Context, client *http.Client, url string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", userAgents[0])

	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}
	if v, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`meta[name="twitter:image"]`).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return ""
}

// selectionNode adapts a goquery selection to the extractor's Node interface.
type selectionNode struct {
	sel *goquery.Selection
}

func (n selectionNode) Text(kind string) string {
	return strings.TrimSpace(n.sel.Find(kind).First().Text())
}

func (n selectionNode) Attr(kind, attr string) string {
	v, _ := n.sel.Find(kind).First().Attr(attr)
	return strings.TrimSpace(v)
}

// Package pipeline runs one batch cycle: read every configured source,
// normalize and filter the records, drop everything already delivered, send
// the remainder to Telegram, and persist the per-source state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"newsbuzz/config"
	"newsbuzz/enrich"
	"newsbuzz/normalize"
	"newsbuzz/sources"
	"newsbuzz/store"
	"newsbuzz/types"
)

// Sender delivers rendered messages. *notify.Notifier implements it.
type Sender interface {
	SendArticle(a types.Article, body string) error
	SendText(text string) error
}

// Pipeline wires the readers, stores and notifier for repeated runs.
type Pipeline struct {
	cfg      *config.Config
	sender   Sender
	enricher enrich.Enricher
	mirror   *store.Mirror
	loc      *time.Location

	now         func() time.Time
	newReader   func(src config.SourceConfig) (sources.Reader, error)
	newIdentity func(src config.SourceConfig) store.IdentitySet
	newArchive  func(src config.SourceConfig) *store.ArchiveStore
}

// New assembles a pipeline from validated configuration.
func New(cfg *config.Config, sender Sender, enricher enrich.Enricher, mirror *store.Mirror) *Pipeline {
	loc := cfg.Location()
	p := &Pipeline{
		cfg:      cfg,
		sender:   sender,
		enricher: enricher,
		mirror:   mirror,
		loc:      loc,
		now:      time.Now,
	}
	p.newReader = func(src config.SourceConfig) (sources.Reader, error) {
		return sources.New(src, cfg.Retry, loc, cfg.ItemCap(src))
	}
	p.newIdentity = p.defaultIdentitySet
	p.newArchive = func(src config.SourceConfig) *store.ArchiveStore {
		return store.NewArchiveStore(src.ArchiveFile, src.Name, src.URL, loc)
	}
	return p
}

// defaultIdentitySet prefers Redis when configured and degrades to the
// per-source file store if the connection fails.
func (p *Pipeline) defaultIdentitySet(src config.SourceConfig) store.IdentitySet {
	if p.cfg.RedisAddr != "" {
		rs, err := store.NewRedisIdentitySet(p.cfg.RedisAddr, "newsbuzz:sent:"+src.Name, 0)
		if err == nil {
			return rs
		}
		log.Printf("Warning: %v (using file identity store for %s)", err, src.Name)
	}
	return store.LoadFileIdentitySet(src.SentIDsFile)
}

type sourceResult struct {
	name       string
	dispatched int
	err        error
}

// RunOnce executes one full batch cycle across all sources. Sources run on a
// bounded worker pool; delivery within a source stays sequential so articles
// arrive in page order.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	today := p.now().In(p.loc)

	srcs := make([]config.SourceConfig, len(p.cfg.Sources))
	copy(srcs, p.cfg.Sources)
	// Shuffling spreads the load order so one slow origin does not always
	// delay the same tail of sources.
	rand.Shuffle(len(srcs), func(i, j int) { srcs[i], srcs[j] = srcs[j], srcs[i] })

	jobs := make(chan config.SourceConfig, len(srcs))
	results := make(chan sourceResult, len(srcs))
	var wg sync.WaitGroup

	for i := 0; i < p.cfg.Workers; i++ {
		go func(workerID int) {
			for src := range jobs {
				res := p.processSource(ctx, src, today)
				if res.err != nil {
					log.Printf("[Worker %d] Source %s failed: %v", workerID, res.name, res.err)
				} else {
					log.Printf("[Worker %d] Source %s: %d new article(s)", workerID, res.name, res.dispatched)
				}
				results <- res
				wg.Done()
			}
		}(i)
	}

	for _, src := range srcs {
		wg.Add(1)
		jobs <- src
	}
	wg.Wait()
	close(jobs)
	close(results)

	var total, failed int
	var errs []error
	for res := range results {
		total += res.dispatched
		if res.err != nil {
			failed++
			errs = append(errs, fmt.Errorf("%s: %w", res.name, res.err))
		}
	}

	notice := fmt.Sprintf("✅ Run complete: %d new article(s) from %d source(s)", total, len(srcs))
	if failed > 0 {
		notice += fmt.Sprintf(", %d source(s) failed", failed)
	}
	if err := p.sender.SendText(notice); err != nil {
		log.Printf("Warning: run notice not delivered: %v", err)
	}

	if p.cfg.DigestHour >= 0 && today.Hour() == p.cfg.DigestHour {
		p.sendDigest(today)
	}

	return errors.Join(errs...)
}

// processSource runs the full per-source path: read, normalize, filter,
// dedupe, deliver, commit. State is committed only when at least one article
// went out, so a fruitless run leaves no trace.
func (p *Pipeline) processSource(ctx context.Context, src config.SourceConfig, today time.Time) sourceResult {
	res := sourceResult{name: src.Name}

	reader, err := p.newReader(src)
	if err != nil {
		res.err = err
		return res
	}

	records, err := reader.Read(ctx)
	if err != nil {
		res.err = fmt.Errorf("read failed: %w", err)
		return res
	}

	ids := p.newIdentity(src)
	fresh := p.selectFresh(records, src, today, ids)
	if len(fresh) == 0 {
		return res
	}

	archive := p.newArchive(src)
	var delivered []types.Article
	attempted := 0
	for _, cand := range fresh {
		// Claim before sending: a failed or timed-out send may still have
		// reached the server, so the identity stays claimed either way and
		// the article is never attempted twice.
		ids.Add(cand.id)
		attempted++
		if err := p.sender.SendArticle(cand.article, p.enricher.Caption(cand.article)); err != nil {
			log.Printf("Warning: delivery failed for %q (%s): %v", cand.article.Title, src.Name, err)
			continue
		}
		delivered = append(delivered, cand.article)
	}
	res.dispatched = len(delivered)

	// Claims persist for every attempt; the archive records successes only.
	if attempted > 0 {
		if err := ids.Commit(); err != nil {
			log.Printf("Warning: identity commit failed for %s: %v", src.Name, err)
		}
	}
	if len(delivered) > 0 {
		if err := archive.MergeAndPersist(delivered, today); err != nil {
			log.Printf("Warning: archive update failed for %s: %v", src.Name, err)
		} else {
			p.mirror.Upload(ctx, archive.Path())
		}
	}
	return res
}

type candidate struct {
	article types.Article
	id      string
}

// selectFresh normalizes raw records and applies the day window, keyword
// filters and deduplication, preserving source order.
func (p *Pipeline) selectFresh(records []types.RawRecord, src config.SourceConfig, today time.Time, ids store.IdentitySet) []candidate {
	seen := make(map[string]bool, len(records))
	var out []candidate

	for _, rec := range records {
		a := types.Article{
			Title:       rec.Title,
			Link:        rec.Link,
			Summary:     rec.Summary,
			PublishedAt: normalize.Date(rec.RawDate, p.loc),
			ImageURL:    rec.ImageURL,
			Source:      src.Name,
			GUID:        rec.GUID,
		}

		if !normalize.SameDay(a.PublishedAt, today, p.loc) {
			continue
		}
		if src.Include != "" && !containsKeyword(a, src.Include) {
			continue
		}
		if p.excluded(a) {
			continue
		}

		id := rec.GUID
		if id == "" {
			id = normalize.Identity(rec.Link, src.URL)
		}
		if id == "" {
			// Link-less entry (some feeds carry GUID-only stubs); hash the
			// content so reruns still recognize it.
			id = types.GenerateID(a.Title + a.PublishedAt.Format("2006-01-02"))
		}
		if seen[id] || ids.Contains(id) {
			continue
		}
		seen[id] = true
		out = append(out, candidate{article: a, id: id})
	}
	return out
}

func (p *Pipeline) excluded(a types.Article) bool {
	for _, kw := range p.cfg.ExcludeKeywords {
		if containsKeyword(a, kw) {
			return true
		}
	}
	return false
}

func containsKeyword(a types.Article, kw string) bool {
	haystack := strings.ToLower(a.Title + " " + a.Summary)
	return strings.Contains(haystack, strings.ToLower(kw))
}

// sendDigest collects today's archived items across all sources and delivers
// one digest message. Nothing goes out on an empty day.
func (p *Pipeline) sendDigest(today time.Time) {
	var items []types.Article
	seen := make(map[string]bool)
	for _, src := range p.cfg.Sources {
		a := p.newArchive(src).Load()
		for _, item := range a.Items {
			if !normalize.SameDay(item.PublishedAt, today, p.loc) {
				continue
			}
			// Sources overlap; the same story must not appear twice in one
			// digest.
			key := item.Identity()
			if key == "" {
				key = types.GenerateID(item.Title)
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return
	}
	if err := p.sender.SendText(p.enricher.Digest(items)); err != nil {
		log.Printf("Warning: digest not delivered: %v", err)
	}
}

package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"newsbuzz/normalize"
	"newsbuzz/types"
)

// Archive is the rolling same-day feed document persisted per source.
type Archive struct {
	Title         string          `json:"title"`
	Link          string          `json:"link"`
	Description   string          `json:"description"`
	LastBuildDate time.Time       `json:"lastBuildDate"`
	Items         []types.Article `json:"items"`
}

// ArchiveStore owns one source's archive file.
type ArchiveStore struct {
	path        string
	title       string
	link        string
	description string
	loc         *time.Location
}

// NewArchiveStore creates an archive store for one source. loc is the pinned
// timezone for calendar-day comparisons.
func NewArchiveStore(path, title, link string, loc *time.Location) *ArchiveStore {
	if loc == nil {
		loc = time.Local
	}
	return &ArchiveStore{
		path:        path,
		title:       title,
		link:        link,
		description: fmt.Sprintf("Rolling same-day feed for %s", title),
		loc:         loc,
	}
}

// Load reads the archive at the store's path. Structurally invalid content
// degrades to an empty archive with a warning.
func (s *ArchiveStore) Load() Archive {
	empty := Archive{Title: s.title, Link: s.link, Description: s.description}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: failed to read archive %s: %v (starting empty)", s.path, err)
		}
		return empty
	}

	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		log.Printf("Warning: failed to decode archive %s: %v (starting empty)", s.path, err)
		return empty
	}
	return a
}

// MergeAndPersist prunes the existing archive to items published on the
// given day, appends the same-day subset of newItems, and writes the result
// with a refreshed build date. Existing items keep their position; new items
// go after them.
func (s *ArchiveStore) MergeAndPersist(newItems []types.Article, today time.Time) error {
	existing := s.Load()

	merged := make([]types.Article, 0, len(existing.Items)+len(newItems))
	for _, item := range existing.Items {
		if normalize.SameDay(item.PublishedAt, today, s.loc) {
			merged = append(merged, item)
		}
	}
	for _, item := range newItems {
		if normalize.SameDay(item.PublishedAt, today, s.loc) {
			merged = append(merged, item)
		}
	}

	out := Archive{
		Title:         s.title,
		Link:          s.link,
		Description:   s.description,
		LastBuildDate: time.Now().In(s.loc),
		Items:         merged,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	log.Printf("Archive %s updated with %d item(s)", s.path, len(merged))
	return nil
}

// Path returns the archive's file path.
func (s *ArchiveStore) Path() string { return s.path }

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"newsbuzz/types"
)

func TestFileIdentitySetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sent_ids.json")

	s := LoadFileIdentitySet(path)
	if s.Len() != 0 {
		t.Fatalf("fresh store has %d entries", s.Len())
	}

	s.Add("https://example.com/a")
	s.Add("https://example.com/b")
	s.Add("") // ignored
	if err := s.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reloaded := LoadFileIdentitySet(path)
	if reloaded.Len() != 2 {
		t.Fatalf("reloaded %d entries; want 2", reloaded.Len())
	}
	if !reloaded.Contains("https://example.com/a") || !reloaded.Contains("https://example.com/b") {
		t.Fatal("committed identities missing after reload")
	}
	if reloaded.Contains("https://example.com/c") {
		t.Fatal("phantom identity present")
	}
}

func TestFileIdentitySetCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sent_ids.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := LoadFileIdentitySet(path)
	if s.Len() != 0 {
		t.Fatalf("corrupt store loaded %d entries; want empty set", s.Len())
	}

	// The corrupt file is recoverable: a commit replaces it cleanly.
	s.Add("id-1")
	if err := s.Commit(); err != nil {
		t.Fatalf("Commit over corrupt file: %v", err)
	}
	if !LoadFileIdentitySet(path).Contains("id-1") {
		t.Fatal("identity lost after recovery commit")
	}
}

func day(t *testing.T, loc *time.Location, y int, m time.Month, d, hh int) time.Time {
	t.Helper()
	return time.Date(y, m, d, hh, 0, 0, 0, loc)
}

func TestArchiveMergeKeepsOnlyToday(t *testing.T) {
	loc := time.UTC
	path := filepath.Join(t.TempDir(), "feed.json")
	s := NewArchiveStore(path, "Test Feed", "https://example.com", loc)

	today := day(t, loc, 2024, time.January, 5, 12)
	yesterday := day(t, loc, 2024, time.January, 4, 12)

	existing := Archive{
		Title: "Test Feed",
		Items: []types.Article{
			{Title: "old today 1", Link: "https://example.com/1", PublishedAt: day(t, loc, 2024, time.January, 5, 8)},
			{Title: "old today 2", Link: "https://example.com/2", PublishedAt: day(t, loc, 2024, time.January, 5, 9)},
			{Title: "yesterday 1", Link: "https://example.com/3", PublishedAt: yesterday},
			{Title: "yesterday 2", Link: "https://example.com/4", PublishedAt: yesterday},
			{Title: "yesterday 3", Link: "https://example.com/5", PublishedAt: yesterday},
		},
	}
	data, err := json.Marshal(existing)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	newItems := []types.Article{
		{Title: "new today", Link: "https://example.com/6", PublishedAt: day(t, loc, 2024, time.January, 5, 11)},
	}
	if err := s.MergeAndPersist(newItems, today); err != nil {
		t.Fatalf("MergeAndPersist: %v", err)
	}

	merged := s.Load()
	if len(merged.Items) != 3 {
		t.Fatalf("merged archive has %d items; want 3 (2 kept + 1 new)", len(merged.Items))
	}
	// Existing items keep their position; the new item is appended.
	if merged.Items[0].Title != "old today 1" || merged.Items[2].Title != "new today" {
		t.Fatalf("unexpected order: %q, %q, %q", merged.Items[0].Title, merged.Items[1].Title, merged.Items[2].Title)
	}
	if merged.LastBuildDate.IsZero() {
		t.Fatal("lastBuildDate not refreshed")
	}
}

func TestArchiveMergeFiltersNewItemsToToday(t *testing.T) {
	loc := time.UTC
	path := filepath.Join(t.TempDir(), "feed.json")
	s := NewArchiveStore(path, "Test Feed", "https://example.com", loc)

	today := day(t, loc, 2024, time.January, 5, 12)
	newItems := []types.Article{
		{Title: "today", Link: "https://example.com/a", PublishedAt: day(t, loc, 2024, time.January, 5, 10)},
		{Title: "stale", Link: "https://example.com/b", PublishedAt: day(t, loc, 2024, time.January, 3, 10)},
	}
	if err := s.MergeAndPersist(newItems, today); err != nil {
		t.Fatalf("MergeAndPersist: %v", err)
	}

	merged := s.Load()
	if len(merged.Items) != 1 || merged.Items[0].Title != "today" {
		t.Fatalf("stale new item not filtered: %+v", merged.Items)
	}
}

func TestArchiveLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	if err := os.WriteFile(path, []byte("<html>not json</html>"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := NewArchiveStore(path, "Test Feed", "https://example.com", time.UTC)
	a := s.Load()
	if len(a.Items) != 0 {
		t.Fatalf("corrupt archive loaded %d items; want empty", len(a.Items))
	}
	if a.Title != "Test Feed" {
		t.Fatalf("empty archive missing metadata: %+v", a)
	}
}

func TestNilMirrorUploadIsNoop(t *testing.T) {
	var m *Mirror
	// Must not panic.
	m.Upload(nil, "does-not-exist.json")
}

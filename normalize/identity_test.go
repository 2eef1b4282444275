package normalize

import (
	"testing"
	"time"
)

func TestIdentity(t *testing.T) {
	cases := []struct {
		name string
		link string
		base string
		want string
	}{
		{"plain", "https://example.com/news/story", "", "https://example.com/news/story"},
		{"query stripped", "https://example.com/news/story?utm_source=feed&ref=home", "", "https://example.com/news/story"},
		{"fragment stripped", "https://example.com/news/story#comments", "", "https://example.com/news/story"},
		{"uppercase host", "HTTPS://Example.COM/News/Story", "", "https://example.com/News/Story"},
		{"trailing slash", "https://example.com/news/story/", "", "https://example.com/news/story"},
		{"relative resolved", "/news/story?id=1", "https://example.com/section/", "https://example.com/news/story"},
		{"empty", "", "https://example.com", ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Identity(c.link, c.base)
			if got != c.want {
				t.Fatalf("Identity(%q, %q) = %q; want %q", c.link, c.base, got, c.want)
			}
		})
	}
}

func TestIdentityIgnoresQueryVariants(t *testing.T) {
	a := Identity("https://example.com/story?utm_source=tg", "")
	b := Identity("https://example.com/story?fbclid=abc123", "")
	if a != b {
		t.Fatalf("query variants produced different identities: %q vs %q", a, b)
	}
}

func TestDateStripsLabel(t *testing.T) {
	loc := time.UTC
	labeled := Date("Updated On : 05 Jan 2024 10:30:00", loc)
	bare := Date("05 Jan 2024 10:30:00", loc)
	if !labeled.Equal(bare) {
		t.Fatalf("labeled parse %v != bare parse %v", labeled, bare)
	}
	want := time.Date(2024, time.January, 5, 10, 30, 0, 0, loc)
	if !labeled.Equal(want) {
		t.Fatalf("parsed %v; want %v", labeled, want)
	}
}

func TestDateExplicitLayouts(t *testing.T) {
	loc := time.UTC
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"2024-01-05T10:30:00", time.Date(2024, 1, 5, 10, 30, 0, 0, loc)},
		{"05/01/2024 10:30", time.Date(2024, 1, 5, 10, 30, 0, 0, loc)},
		{"Fri, 05 Jan 2024 10:30:00 +0000", time.Date(2024, 1, 5, 10, 30, 0, 0, time.FixedZone("", 0))},
	}
	for _, c := range cases {
		got := Date(c.raw, loc)
		if !got.Equal(c.want) {
			t.Fatalf("Date(%q) = %v; want %v", c.raw, got, c.want)
		}
	}
}

func TestDateUnparseableReturnsNow(t *testing.T) {
	before := time.Now()
	got := Date("not a date at all", time.UTC)
	after := time.Now()
	if got.Before(before.Add(-time.Second)) || got.After(after.Add(time.Second)) {
		t.Fatalf("unparseable date returned %v, expected roughly now", got)
	}
}

func TestSameDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	day := time.Date(2024, 1, 5, 12, 0, 0, 0, loc)

	if !SameDay(time.Date(2024, 1, 5, 0, 1, 0, 0, loc), day, loc) {
		t.Fatal("early same-day instant rejected")
	}
	if SameDay(time.Date(2024, 1, 4, 23, 59, 0, 0, loc), day, loc) {
		t.Fatal("previous-day instant accepted")
	}
	// 2024-01-04 19:30 UTC is already 2024-01-05 01:00 in Kolkata.
	if !SameDay(time.Date(2024, 1, 4, 19, 30, 0, 0, time.UTC), day, loc) {
		t.Fatal("cross-zone same-day instant rejected")
	}
}

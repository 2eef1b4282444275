package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Article represents a single normalized news item ready for delivery and archival
type Article struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Summary     string    `json:"description"`
	PublishedAt time.Time `json:"pubDate"`
	ImageURL    string    `json:"image,omitempty"`
	Source      string    `json:"source"`
	GUID        string    `json:"guid,omitempty"`
}

// Identity returns the article's deduplication key: the explicit GUID when
// the source supplied one, otherwise the link. Callers are expected to pass
// a link that has already been canonicalized.
func (a *Article) Identity() string {
	if a.GUID != "" {
		return a.GUID
	}
	return a.Link
}

// RawRecord is one un-normalized record as yielded by a source reader,
// before date parsing and link canonicalization.
type RawRecord struct {
	Title    string
	Link     string
	Summary  string
	RawDate  string
	ImageURL string
	GUID     string
}

// GenerateID creates a short, stable ID by hashing the provided string input
func GenerateID(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

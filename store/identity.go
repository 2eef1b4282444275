// Package store holds the per-source persistent state: the identity set of
// already-delivered articles and the rolling same-day archive.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
)

// IdentitySet is the persisted set of identities already dispatched for one
// source. Identities only ever accumulate; there is no deletion or TTL at
// this interface. Storing an identity is cheap next to re-notifying a human
// audience.
type IdentitySet interface {
	Contains(id string) bool
	Add(id string)
	Len() int
	// Commit persists the full set. Called only when the run dispatched at
	// least one new article for the source.
	Commit() error
}

// FileIdentitySet is an IdentitySet backed by a JSON array on disk.
type FileIdentitySet struct {
	path string
	ids  map[string]bool
}

// LoadFileIdentitySet reads the set at path. An absent or unparseable file
// degrades to an empty set with a warning; a corrupt store must never abort
// the run.
func LoadFileIdentitySet(path string) *FileIdentitySet {
	s := &FileIdentitySet{path: path, ids: make(map[string]bool)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: failed to read identity store %s: %v (starting empty)", path, err)
		}
		return s
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		log.Printf("Warning: failed to decode identity store %s: %v (starting empty)", path, err)
		return s
	}
	for _, id := range ids {
		s.ids[id] = true
	}
	return s
}

func (s *FileIdentitySet) Contains(id string) bool { return s.ids[id] }

func (s *FileIdentitySet) Add(id string) {
	if id != "" {
		s.ids[id] = true
	}
}

func (s *FileIdentitySet) Len() int { return len(s.ids) }

// Commit writes the full set atomically (temp file + rename) so a crash
// mid-write cannot corrupt the previous state.
func (s *FileIdentitySet) Commit() error {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal identity store: %w", err)
	}
	return writeAtomic(s.path, data)
}

// writeAtomic writes data to path via a temporary file and rename.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

package visibility

import (
	"github.com/aukilabs/sjon/frustum"
	"github.com/aukilabs/sjon/navindex"
)

// Entry is a tile accepted by a visibility pass together with the LOD
// selected for it.
type Entry struct {
	Tile  int
	Lod   int
	Class frustum.Classification
}

// Set is the per-frame list of visible tiles. It is rebuilt from scratch by
// every pass and reuses its storage.
type Set struct {
	entries []Entry
}

func NewSet(capacity int) *Set {
	return &Set{entries: make([]Entry, 0, capacity)}
}

func (s *Set) Reset() {
	s.entries = s.entries[:0]
}

func (s *Set) Add(e Entry) {
	s.entries = append(s.entries, e)
}

// Entries returns the entries of the last pass. The slice is reused by the
// next pass.
func (s *Set) Entries() []Entry {
	return s.entries
}

func (s *Set) Len() int {
	return len(s.entries)
}

// VisibleEntities returns the number of entities accepted across all
// entries.
func (s *Set) VisibleEntities(idx *navindex.Index) int {
	n := 0
	for _, e := range s.entries {
		if l := idx.Lod(e.Tile, e.Lod); l != nil {
			n += l.VisibleCount()
		}
	}
	return n
}

// Contains reports whether tile is part of the set.
func (s *Set) Contains(tile int) bool {
	for _, e := range s.entries {
		if e.Tile == tile {
			return true
		}
	}
	return false
}

package faq

import "github.com/hamyarchat/backend/internal/analysis/match"

// DefaultThreshold is the minimum overlap score for a FAQ entry to answer a
// user message without consulting the LLM.
const DefaultThreshold = 0.6

// Store exposes FAQ retrieval for the chat routing path.
type Store interface {
	List() []Entry
	Match(question string) (Entry, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items     []Entry
	threshold float64
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied entries.
func NewMemoryStore(items []Entry) *MemoryStore {
	return &MemoryStore{items: append([]Entry(nil), items...), threshold: DefaultThreshold}
}

// List returns the configured FAQ entries.
func (s *MemoryStore) List() []Entry {
	return append([]Entry(nil), s.items...)
}

// Match returns the best-scoring entry at or above the threshold.
func (s *MemoryStore) Match(question string) (Entry, bool) {
	var best Entry
	bestScore := 0.0
	for _, item := range s.items {
		score := match.Score(question, item.Question)
		if score > bestScore {
			bestScore = score
			best = item
		}
	}
	if bestScore < s.threshold {
		return Entry{}, false
	}
	return best, true
}

package cache

import (
	"sort"
	"strings"
	"sync"

	"boardmeta-api/internal/model"
)

// DefaultMaxResults caps search output when the caller does not pass a limit.
const DefaultMaxResults = 10

// SearchCache holds an in-memory, queryable snapshot of the game catalog.
// Records are kept in load order; ties in the year sort preserve that
// order (sort is stable).
type SearchCache struct {
	mu     sync.RWMutex
	games  []model.GameRecord
	byID   map[int64]int
	loaded bool
}

// NewSearchCache creates an empty, unloaded search cache.
func NewSearchCache() *SearchCache {
	return &SearchCache{byID: make(map[int64]int)}
}

// LoadGames atomically replaces the entire cached catalog.
func (c *SearchCache) LoadGames(records []model.GameRecord) {
	games := make([]model.GameRecord, len(records))
	copy(games, records)

	byID := make(map[int64]int, len(games))
	for i, g := range games {
		byID[g.ID] = i
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.games = games
	c.byID = byID
	c.loaded = true
}

// Search returns up to maxResults games whose canonical name or any
// alternate name contains query case-insensitively. A primary-name match
// takes priority: MatchedAlternateName stays nil even if an alternate
// name also matches. Results are ordered by year published descending,
// with undated games strictly last.
func (c *SearchCache) Search(query string, maxResults int) []model.SearchResult {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.loaded || query == "" {
		return []model.SearchResult{}
	}

	q := strings.ToLower(query)

	var matches []model.SearchResult
	for i := range c.games {
		g := &c.games[i]

		var matched *string
		if strings.Contains(strings.ToLower(g.Name), q) {
			// primary match, matched alternate stays nil
		} else {
			for _, alt := range g.AlternateNames {
				if strings.Contains(strings.ToLower(alt), q) {
					altCopy := alt
					matched = &altCopy
					break
				}
			}
			if matched == nil {
				continue
			}
		}

		matches = append(matches, model.SearchResult{
			ID:                   g.ID,
			Name:                 g.Name,
			YearPublished:        g.YearPublished,
			Rank:                 g.Rank,
			Rating:               g.Rating,
			AlternateNames:       g.AlternateNames,
			MatchedAlternateName: matched,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		yi, yj := matches[i].YearPublished, matches[j].YearPublished
		if yi == nil {
			return false
		}
		if yj == nil {
			return true
		}
		return *yi > *yj
	})

	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	if matches == nil {
		return []model.SearchResult{}
	}
	return matches
}

// UpdateGameAlternateNames replaces the alternate-name list of one
// cached game. Unknown ids are a no-op, not an error.
func (c *SearchCache) UpdateGameAlternateNames(id int64, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.byID[id]
	if !ok {
		return
	}

	updated := make([]string, len(names))
	copy(updated, names)
	c.games[idx].AlternateNames = updated
}

// IsLoaded reports whether a catalog has been loaded.
func (c *SearchCache) IsLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Count returns the number of cached games.
func (c *SearchCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.games)
}

// Reset clears all cached state.
func (c *SearchCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.games = nil
	c.byID = make(map[int64]int)
	c.loaded = false
}

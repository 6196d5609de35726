package model

import "time"

// GameRecord is the in-memory catalog representation used by the search
// cache. Records are replaced wholesale on LoadGames; only the alternate
// name list is mutated in place afterwards.
type GameRecord struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	YearPublished  *int     `json:"year_published,omitempty"`
	Rank           int      `json:"rank"`
	Rating         *float64 `json:"rating,omitempty"`
	AlternateNames []string `json:"alternate_names,omitempty"`
}

// SearchResult is a per-query projection of a GameRecord.
// MatchedAlternateName is nil when the primary name matched (or no
// alternate name matched).
type SearchResult struct {
	ID                   int64    `json:"id"`
	Name                 string   `json:"name"`
	YearPublished        *int     `json:"year_published,omitempty"`
	Rank                 int      `json:"rank"`
	Rating               *float64 `json:"rating,omitempty"`
	AlternateNames       []string `json:"alternate_names,omitempty"`
	MatchedAlternateName *string  `json:"matched_alternate_name,omitempty"`
}

// BaseGame holds the catalog fields owned by the CSV import. A bulk
// re-import upserts exactly these columns and must never touch the
// enrichment fields (ScrapingDone/EnrichedAt/EnrichmentData).
type BaseGame struct {
	ID            int64
	Name          string
	YearPublished *int
	Rank          int
	BayesAverage  *float64
	Average       *float64
	UsersRated    *int
	IsExpansion   bool
	AbstractsRank *int
	CGSRank       *int
	ChildrensRank *int
	FamilyRank    *int
	PartyRank     *int
	StrategyRank  *int
	ThematicRank  *int
	WargamesRank  *int
}

// GameRow is a full store row: base catalog fields plus enrichment state.
type GameRow struct {
	BaseGame
	ScrapingDone   bool
	EnrichedAt     *time.Time
	EnrichmentData *EnrichmentData
}

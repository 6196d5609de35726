package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"boardmeta-api/internal/model"
)

// gameColumns is the shared select list; every adapter scans rows in
// this order. Timestamps are stored as RFC 3339 strings so the three
// backends behave identically.
const gameColumns = `id, name, year_published, game_rank, bayes_average, average, users_rated,
	is_expansion, abstracts_rank, cgs_rank, childrens_rank, family_rank,
	party_rank, strategy_rank, thematic_rank, wargames_rank,
	scraping_done, enriched_at, enrichment_data`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGameRow(row rowScanner) (*model.GameRow, error) {
	var (
		g              model.GameRow
		yearPublished  sql.NullInt64
		bayesAverage   sql.NullFloat64
		average        sql.NullFloat64
		usersRated     sql.NullInt64
		subRanks       [8]sql.NullInt64
		enrichedAt     sql.NullString
		enrichmentJSON sql.NullString
	)

	err := row.Scan(
		&g.ID, &g.Name, &yearPublished, &g.Rank, &bayesAverage, &average, &usersRated,
		&g.IsExpansion, &subRanks[0], &subRanks[1], &subRanks[2], &subRanks[3],
		&subRanks[4], &subRanks[5], &subRanks[6], &subRanks[7],
		&g.ScrapingDone, &enrichedAt, &enrichmentJSON,
	)
	if err != nil {
		return nil, err
	}

	g.YearPublished = nullableInt(yearPublished)
	g.BayesAverage = nullableFloat(bayesAverage)
	g.Average = nullableFloat(average)
	g.UsersRated = nullableInt(usersRated)
	g.AbstractsRank = nullableInt(subRanks[0])
	g.CGSRank = nullableInt(subRanks[1])
	g.ChildrensRank = nullableInt(subRanks[2])
	g.FamilyRank = nullableInt(subRanks[3])
	g.PartyRank = nullableInt(subRanks[4])
	g.StrategyRank = nullableInt(subRanks[5])
	g.ThematicRank = nullableInt(subRanks[6])
	g.WargamesRank = nullableInt(subRanks[7])

	if enrichedAt.Valid && enrichedAt.String != "" {
		t, err := time.Parse(time.RFC3339, enrichedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid enriched_at for game %d: %w", g.ID, err)
		}
		g.EnrichedAt = &t
	}

	if enrichmentJSON.Valid && enrichmentJSON.String != "" {
		var data model.EnrichmentData
		if err := json.Unmarshal([]byte(enrichmentJSON.String), &data); err != nil {
			return nil, fmt.Errorf("invalid enrichment_data for game %d: %w", g.ID, err)
		}
		g.EnrichmentData = &data
	}

	return &g, nil
}

// toCacheRecord projects a store row into a search cache record.
func toCacheRecord(g *model.GameRow) model.GameRecord {
	rec := model.GameRecord{
		ID:            g.ID,
		Name:          g.Name,
		YearPublished: g.YearPublished,
		Rank:          g.Rank,
		Rating:        g.Average,
	}
	if g.EnrichmentData != nil {
		rec.AlternateNames = g.EnrichmentData.AlternateNameStrings()
	}
	return rec
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

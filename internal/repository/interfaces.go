package repository

import (
	"context"
	"errors"
	"time"

	"boardmeta-api/internal/model"
)

// ErrGameNotFound signals that the requested catalog id does not exist.
var ErrGameNotFound = errors.New("game not found")

// GameRepository defines game store data access methods.
type GameRepository interface {
	// UpsertBaseGames inserts or updates base catalog rows. It must
	// never touch scraping_done, enriched_at or enrichment_data — a
	// catalog re-import on top of enriched rows preserves them.
	UpsertBaseGames(ctx context.Context, games []model.BaseGame) error

	// GetGame retrieves one row by id. Returns ErrGameNotFound if absent.
	GetGame(ctx context.Context, id int64) (*model.GameRow, error)

	// ListUnenriched returns all rows with scraping_done=false, newest
	// year first (undated rows last).
	ListUnenriched(ctx context.Context) ([]model.GameRow, error)

	// SaveEnrichment marks a row enriched and stores its metadata blob.
	SaveEnrichment(ctx context.Context, id int64, data *model.EnrichmentData, enrichedAt time.Time) error

	// LoadCatalog returns every game as a search cache record,
	// including alternate names parsed out of enrichment_data.
	LoadCatalog(ctx context.Context) ([]model.GameRecord, error)

	// CountGames returns the number of catalog rows.
	CountGames(ctx context.Context) (int64, error)

	// Close closes the repository connection.
	Close() error
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"boardmeta-api/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteGameRepository implements GameRepository using SQLite.
// Thread-safe with WAL mode for high-concurrency reads.
type SQLiteGameRepository struct {
	db *sql.DB
}

// NewSQLiteGameRepository creates a new SQLite game repository.
// dbPath is the path to the SQLite database file (e.g., "./data/games.db")
func NewSQLiteGameRepository(dbPath string) (*SQLiteGameRepository, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite handles one writer at a time
	db.SetMaxOpenConns(1)

	r := &SQLiteGameRepository{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[GameRepository] SQLite store ready at %s", dbPath)
	return r, nil
}

func (r *SQLiteGameRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		id              INTEGER PRIMARY KEY,
		name            TEXT NOT NULL,
		year_published  INTEGER,
		game_rank       INTEGER NOT NULL DEFAULT 0,
		bayes_average   REAL,
		average         REAL,
		users_rated     INTEGER,
		is_expansion    INTEGER NOT NULL DEFAULT 0,
		abstracts_rank  INTEGER,
		cgs_rank        INTEGER,
		childrens_rank  INTEGER,
		family_rank     INTEGER,
		party_rank      INTEGER,
		strategy_rank   INTEGER,
		thematic_rank   INTEGER,
		wargames_rank   INTEGER,
		scraping_done   INTEGER NOT NULL DEFAULT 0,
		enriched_at     TEXT,
		enrichment_data TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_games_scraping_done ON games(scraping_done);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpsertBaseGames bulk-upserts base catalog rows inside one transaction.
// The ON CONFLICT clause updates only the base columns, so enrichment
// state survives catalog re-imports.
func (r *SQLiteGameRepository) UpsertBaseGames(ctx context.Context, games []model.BaseGame) error {
	if len(games) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO games (
			id, name, year_published, game_rank, bayes_average, average, users_rated,
			is_expansion, abstracts_rank, cgs_rank, childrens_rank, family_rank,
			party_rank, strategy_rank, thematic_rank, wargames_rank
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			year_published = excluded.year_published,
			game_rank = excluded.game_rank,
			bayes_average = excluded.bayes_average,
			average = excluded.average,
			users_rated = excluded.users_rated,
			is_expansion = excluded.is_expansion,
			abstracts_rank = excluded.abstracts_rank,
			cgs_rank = excluded.cgs_rank,
			childrens_rank = excluded.childrens_rank,
			family_rank = excluded.family_rank,
			party_rank = excluded.party_rank,
			strategy_rank = excluded.strategy_rank,
			thematic_rank = excluded.thematic_rank,
			wargames_rank = excluded.wargames_rank`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, g := range games {
		if _, err := stmt.ExecContext(ctx,
			g.ID, g.Name, g.YearPublished, g.Rank, g.BayesAverage, g.Average, g.UsersRated,
			g.IsExpansion, g.AbstractsRank, g.CGSRank, g.ChildrensRank, g.FamilyRank,
			g.PartyRank, g.StrategyRank, g.ThematicRank, g.WargamesRank,
		); err != nil {
			return fmt.Errorf("failed to upsert game %d: %w", g.ID, err)
		}
	}

	return tx.Commit()
}

// GetGame retrieves one row by id.
func (r *SQLiteGameRepository) GetGame(ctx context.Context, id int64) (*model.GameRow, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = ?`, id)

	g, err := scanGameRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game %d: %w", id, err)
	}
	return g, nil
}

// ListUnenriched returns rows pending enrichment, newest year first.
func (r *SQLiteGameRepository) ListUnenriched(ctx context.Context) ([]model.GameRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE scraping_done = 0
		 ORDER BY year_published IS NULL, year_published DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unenriched games: %w", err)
	}
	defer rows.Close()

	var out []model.GameRow
	for rows.Next() {
		g, err := scanGameRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// SaveEnrichment marks a row enriched and stores the metadata blob.
func (r *SQLiteGameRepository) SaveEnrichment(ctx context.Context, id int64, data *model.EnrichmentData, enrichedAt time.Time) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal enrichment data: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE games SET scraping_done = 1, enriched_at = ?, enrichment_data = ? WHERE id = ?`,
		enrichedAt.UTC().Format(time.RFC3339), string(blob), id)
	if err != nil {
		return fmt.Errorf("failed to save enrichment for game %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrGameNotFound
	}
	return nil
}

// LoadCatalog returns every game as a search cache record.
func (r *SQLiteGameRepository) LoadCatalog(ctx context.Context) ([]model.GameRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games ORDER BY game_rank`)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	defer rows.Close()

	var out []model.GameRecord
	for rows.Next() {
		g, err := scanGameRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		out = append(out, toCacheRecord(g))
	}
	return out, rows.Err()
}

// CountGames returns the number of catalog rows.
func (r *SQLiteGameRepository) CountGames(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (r *SQLiteGameRepository) Close() error {
	return r.db.Close()
}

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

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLGameRepository implements GameRepository using MySQL.
type MySQLGameRepository struct {
	db *sql.DB
}

// NewMySQLGameRepository creates a new MySQL game repository.
// dsn format: "user:password@tcp(host:port)/dbname?parseTime=true"
func NewMySQLGameRepository(dsn string) (*MySQLGameRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	r := &MySQLGameRepository{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	log.Println("[GameRepository] MySQL store ready")
	return r, nil
}

func (r *MySQLGameRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		id              BIGINT PRIMARY KEY,
		name            VARCHAR(512) NOT NULL,
		year_published  INT,
		game_rank       INT NOT NULL DEFAULT 0,
		bayes_average   DOUBLE,
		average         DOUBLE,
		users_rated     INT,
		is_expansion    TINYINT(1) NOT NULL DEFAULT 0,
		abstracts_rank  INT,
		cgs_rank        INT,
		childrens_rank  INT,
		family_rank     INT,
		party_rank      INT,
		strategy_rank   INT,
		thematic_rank   INT,
		wargames_rank   INT,
		scraping_done   TINYINT(1) NOT NULL DEFAULT 0,
		enriched_at     VARCHAR(64),
		enrichment_data MEDIUMTEXT,
		INDEX idx_games_scraping_done (scraping_done)
	)`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpsertBaseGames bulk-upserts base catalog rows; enrichment columns are
// left untouched on conflict.
func (r *MySQLGameRepository) UpsertBaseGames(ctx context.Context, games []model.BaseGame) error {
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
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			year_published = VALUES(year_published),
			game_rank = VALUES(game_rank),
			bayes_average = VALUES(bayes_average),
			average = VALUES(average),
			users_rated = VALUES(users_rated),
			is_expansion = VALUES(is_expansion),
			abstracts_rank = VALUES(abstracts_rank),
			cgs_rank = VALUES(cgs_rank),
			childrens_rank = VALUES(childrens_rank),
			family_rank = VALUES(family_rank),
			party_rank = VALUES(party_rank),
			strategy_rank = VALUES(strategy_rank),
			thematic_rank = VALUES(thematic_rank),
			wargames_rank = VALUES(wargames_rank)`)
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
func (r *MySQLGameRepository) GetGame(ctx context.Context, id int64) (*model.GameRow, error) {
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
func (r *MySQLGameRepository) ListUnenriched(ctx context.Context) ([]model.GameRow, error) {
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
func (r *MySQLGameRepository) SaveEnrichment(ctx context.Context, id int64, data *model.EnrichmentData, enrichedAt time.Time) error {
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
func (r *MySQLGameRepository) LoadCatalog(ctx context.Context) ([]model.GameRecord, error) {
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
func (r *MySQLGameRepository) CountGames(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (r *MySQLGameRepository) Close() error {
	return r.db.Close()
}

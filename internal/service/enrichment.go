// Package service contains the enrichment orchestrator: single-game
// enrichment, the resilient bulk catch-up job, and the optional cron
// scheduler driving it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"boardmeta-api/internal/cache"
	"boardmeta-api/internal/config"
	"boardmeta-api/internal/fetcher"
	"boardmeta-api/internal/model"
	"boardmeta-api/internal/repository"
	"boardmeta-api/internal/scraper"
)

// PageFetcher is the fetch strategy used by the orchestrator.
type PageFetcher interface {
	FetchPage(ctx context.Context, id int64) (*fetcher.FetchResult, error)
}

// EnrichmentService turns fetched detail pages into structured metadata,
// persists it idempotently, and runs the bulk catch-up job.
type EnrichmentService struct {
	repo    repository.GameRepository
	fetcher PageFetcher
	search  *cache.SearchCache
	pages   cache.Cache
	pageTTL time.Duration
	cfg     config.EnrichmentConfig

	mu      sync.Mutex
	status  model.BulkJobStatus
	stopped bool
}

// NewEnrichmentService creates the orchestrator. pages may be nil to
// disable the fetched-page cache.
func NewEnrichmentService(
	repo repository.GameRepository,
	pageFetcher PageFetcher,
	search *cache.SearchCache,
	pages cache.Cache,
	pageTTL time.Duration,
	cfg config.EnrichmentConfig,
) *EnrichmentService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &EnrichmentService{
		repo:    repo,
		fetcher: pageFetcher,
		search:  search,
		pages:   pages,
		pageTTL: pageTTL,
		cfg:     cfg,
	}
}

func pageKey(id int64) string {
	return fmt.Sprintf("page:%d", id)
}

// EnrichGame enriches a single game. When the row is already enriched
// and force is false, the stored data is returned without any network
// call. Unknown ids return repository.ErrGameNotFound.
func (s *EnrichmentService) EnrichGame(ctx context.Context, id int64, force bool) (*model.EnrichmentData, error) {
	row, err := s.repo.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}

	if row.ScrapingDone && row.EnrichmentData != nil && !force {
		return row.EnrichmentData, nil
	}

	html, err := s.fetchHTML(ctx, id, force)
	if err != nil {
		return nil, err
	}

	data, err := scraper.Extract(html)
	if err != nil {
		return nil, fmt.Errorf("game %d: %w", id, err)
	}

	if err := s.repo.SaveEnrichment(ctx, id, data, time.Now()); err != nil {
		return nil, err
	}
	s.search.UpdateGameAlternateNames(id, data.AlternateNameStrings())

	log.Printf("[Enrichment] Game %d enriched (%d alternate names, %d designers)",
		id, len(data.AlternateNames), len(data.Designers))
	return data, nil
}

// fetchHTML consults the fetched-page cache for non-forced calls, then
// falls through to the network.
func (s *EnrichmentService) fetchHTML(ctx context.Context, id int64, force bool) (string, error) {
	if s.pages != nil && !force {
		if html, err := s.pages.Get(ctx, pageKey(id)); err == nil {
			return string(html), nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("[Enrichment] Page cache read failed for game %d: %v", id, err)
		}
	}

	res, err := s.fetcher.FetchPage(ctx, id)
	if err != nil {
		return "", err
	}

	if s.pages != nil && s.pageTTL > 0 {
		if err := s.pages.Set(ctx, pageKey(id), []byte(res.HTML), s.pageTTL); err != nil {
			log.Printf("[Enrichment] Page cache write failed for game %d: %v", id, err)
		}
	}
	return res.HTML, nil
}

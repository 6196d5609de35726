package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"boardmeta-api/internal/fetcher"
	"boardmeta-api/internal/model"
	"boardmeta-api/internal/scraper"
)

// StartBulk launches the bulk enrichment job. Only one run may be
// active; a second call while one is running is rejected, not queued.
func (s *EnrichmentService) StartBulk() model.StartResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Running {
		return model.StartResult{Started: false, Message: "bulk enrichment already running"}
	}

	now := time.Now()
	s.status = model.BulkJobStatus{Running: true, StartedAt: &now}
	s.stopped = false

	go s.runBulk(context.Background())

	return model.StartResult{Started: true}
}

// StopBulk requests a cooperative stop. The current item finishes; the
// loop checks the flag before starting the next one. Returns false when
// no job is running.
func (s *EnrichmentService) StopBulk() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.Running {
		return false
	}
	s.stopped = true
	return true
}

// BulkStatus returns a snapshot of the job status. While running, the
// ETA is recomputed by linear extrapolation from progress so far.
func (s *EnrichmentService) BulkStatus() model.BulkJobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.status
	snapshot.ETASeconds = s.etaSecondsLocked()
	snapshot.BytesHuman = humanize.Bytes(uint64(snapshot.BytesTransferred))
	return snapshot
}

// etaSecondsLocked computes elapsed/processed*(total-processed), or nil
// when no extrapolation base exists. Caller holds s.mu.
func (s *EnrichmentService) etaSecondsLocked() *int64 {
	st := &s.status
	if !st.Running || st.Processed == 0 || st.Total == 0 || st.StartedAt == nil {
		return nil
	}
	elapsed := time.Since(*st.StartedAt).Seconds()
	eta := int64(elapsed / float64(st.Processed) * float64(st.Total-st.Processed))
	return &eta
}

// runBulk processes every pending game, newest year first. Every exit
// path finalizes the status; a panic is downgraded to a stop reason so
// the job is never left stuck as running.
func (s *EnrichmentService) runBulk(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[BulkEnrichment] PANIC: %v", r)
			s.finalize(fmt.Sprintf("Aborted by internal error: %v", r))
		}
	}()

	items, err := s.repo.ListUnenriched(ctx)
	if err != nil {
		log.Printf("[BulkEnrichment] Failed to list pending games: %v", err)
		s.finalize(fmt.Sprintf("Failed to list pending games: %v", err))
		return
	}

	s.mu.Lock()
	s.status.Total = len(items)
	s.mu.Unlock()

	log.Printf("[BulkEnrichment] Started - %d games pending", len(items))

	consecutiveFailures := 0
	lastProgress := time.Now()

	for i := range items {
		row := &items[i]

		if s.stopRequested() {
			log.Printf("[BulkEnrichment] Stop requested, finishing after %d games", s.BulkStatus().Processed)
			s.finalize(model.StopReasonUser)
			return
		}

		// An interactive call may have enriched the row after the
		// pending list was taken.
		if row.ScrapingDone {
			s.markSkipped()
			continue
		}

		res, err := s.fetchWithRetry(ctx, row.ID)
		if err == nil {
			var data *model.EnrichmentData
			data, err = scraper.Extract(res.HTML)
			if err == nil {
				err = s.persist(ctx, row.ID, data, res.Bytes)
			}
		}

		if err != nil {
			if fe, ok := fetcher.AsError(err); ok && fe.Fatal() {
				log.Printf("[BulkEnrichment] Fatal provider error on game %d: %v", row.ID, fe)
				s.markError()
				s.finalize(fmt.Sprintf("Aborted: %s", fe.Error()))
				return
			}

			s.markError()
			consecutiveFailures++
			log.Printf("[BulkEnrichment] Game %d failed (%d consecutive): %v", row.ID, consecutiveFailures, err)
			if consecutiveFailures >= s.cfg.FailureThreshold {
				s.finalize(fmt.Sprintf("Aborted after %d consecutive failures", consecutiveFailures))
				return
			}
			continue
		}

		consecutiveFailures = 0

		if time.Since(lastProgress) >= s.cfg.ProgressInterval {
			s.logProgress()
			lastProgress = time.Now()
		}

		// Throttle between items, not after the last one.
		if i < len(items)-1 {
			time.Sleep(s.cfg.ItemDelay)
		}
	}

	s.logProgress()
	s.finalize(model.StopReasonCompleted)
}

// fetchWithRetry attempts the fetch up to MaxAttempts times, retrying
// only on retryable classified errors with a fixed delay in between.
func (s *EnrichmentService) fetchWithRetry(ctx context.Context, id int64) (*fetcher.FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		res, err := s.fetcher.FetchPage(ctx, id)
		if err == nil {
			return res, nil
		}
		lastErr = err

		fe, ok := fetcher.AsError(err)
		if !ok || !fe.Retryable() {
			return nil, err
		}
		if attempt < s.cfg.MaxAttempts {
			log.Printf("[BulkEnrichment] Game %d rate limited (attempt %d/%d), retrying in %s",
				id, attempt, s.cfg.MaxAttempts, s.cfg.RetryDelay)
			time.Sleep(s.cfg.RetryDelay)
		}
	}
	return nil, lastErr
}

// persist stores extracted data, refreshes the search cache and updates
// the running counters.
func (s *EnrichmentService) persist(ctx context.Context, id int64, data *model.EnrichmentData, fetchedBytes int) error {
	if err := s.repo.SaveEnrichment(ctx, id, data, time.Now()); err != nil {
		return err
	}
	s.search.UpdateGameAlternateNames(id, data.AlternateNameStrings())

	s.mu.Lock()
	s.status.Processed++
	s.status.BytesTransferred += int64(fetchedBytes)
	s.mu.Unlock()
	return nil
}

func (s *EnrichmentService) stopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *EnrichmentService) markSkipped() {
	s.mu.Lock()
	s.status.Skipped++
	s.mu.Unlock()
}

func (s *EnrichmentService) markError() {
	s.mu.Lock()
	s.status.Errors++
	s.mu.Unlock()
}

// finalize freezes the status: running=false, completedAt stamped, stop
// reason recorded.
func (s *EnrichmentService) finalize(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.Running {
		return
	}
	now := time.Now()
	s.status.Running = false
	s.status.CompletedAt = &now
	s.status.StopReason = reason

	log.Printf("[BulkEnrichment] Finished: %s - %d processed, %d skipped, %d errors, %s transferred",
		reason, s.status.Processed, s.status.Skipped, s.status.Errors,
		humanize.Bytes(uint64(s.status.BytesTransferred)))
}

// logProgress emits a periodic summary with a humanized byte count and
// the current ETA.
func (s *EnrichmentService) logProgress() {
	s.mu.Lock()
	defer s.mu.Unlock()

	etaStr := "n/a"
	if eta := s.etaSecondsLocked(); eta != nil {
		etaStr = (time.Duration(*eta) * time.Second).String()
	}
	log.Printf("[BulkEnrichment] Progress: %d/%d processed, %d skipped, %d errors, %s transferred, ETA %s",
		s.status.Processed, s.status.Total, s.status.Skipped, s.status.Errors,
		humanize.Bytes(uint64(s.status.BytesTransferred)), etaStr)
}

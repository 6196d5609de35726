package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardmeta-api/internal/fetcher"
	"boardmeta-api/internal/model"
	"boardmeta-api/internal/repository"
)

func awaitDone(t *testing.T, svc *EnrichmentService) model.BulkJobStatus {
	t.Helper()
	require.Eventually(t, func() bool {
		return !svc.BulkStatus().Running
	}, 5*time.Second, 5*time.Millisecond, "bulk job did not finish")
	return svc.BulkStatus()
}

func TestBulkCompletesAllPending(t *testing.T) {
	f := okFetcher("Catan")
	svc, repo, _ := newTestService(t, f, nil)
	seedCatalog(t, repo,
		model.BaseGame{ID: 1, Name: "Catan", YearPublished: year(1995)},
		model.BaseGame{ID: 2, Name: "Gloomhaven", YearPublished: year(2017)},
		model.BaseGame{ID: 3, Name: "Chess"},
	)

	res := svc.StartBulk()
	require.True(t, res.Started)

	status := awaitDone(t, svc)
	assert.Equal(t, model.StopReasonCompleted, status.StopReason)
	assert.Equal(t, 3, status.Processed)
	assert.Equal(t, 3, status.Total)
	assert.Equal(t, 0, status.Errors)
	assert.Equal(t, 0, status.Skipped)
	assert.Greater(t, status.BytesTransferred, int64(0))
	assert.NotEmpty(t, status.BytesHuman)
	assert.NotNil(t, status.StartedAt)
	assert.NotNil(t, status.CompletedAt)
	assert.Nil(t, status.ETASeconds)

	for id := int64(1); id <= 3; id++ {
		row, err := repo.GetGame(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, row.ScrapingDone, "game %d should be enriched", id)
	}
}

func TestBulkRejectsSecondStart(t *testing.T) {
	var entered sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	f := &stubFetcher{fn: func(id int64) (*fetcher.FetchResult, error) {
		entered.Do(func() { close(started) })
		<-release
		html := pageFor("Catan")
		return &fetcher.FetchResult{HTML: html, Bytes: len(html), StatusCode: 200}, nil
	}}
	svc, repo, _ := newTestService(t, f, nil)
	seedCatalog(t, repo, model.BaseGame{ID: 1, Name: "Catan"})

	require.True(t, svc.StartBulk().Started)
	<-started

	second := svc.StartBulk()
	assert.False(t, second.Started)
	assert.NotEmpty(t, second.Message)

	close(release)
	status := awaitDone(t, svc)
	assert.Equal(t, model.StopReasonCompleted, status.StopReason)
}

func TestBulkStopByUser(t *testing.T) {
	var entered sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	f := &stubFetcher{fn: func(id int64) (*fetcher.FetchResult, error) {
		entered.Do(func() { close(started) })
		<-release
		html := pageFor("Catan")
		return &fetcher.FetchResult{HTML: html, Bytes: len(html), StatusCode: 200}, nil
	}}
	svc, repo, _ := newTestService(t, f, nil)
	seedCatalog(t, repo,
		model.BaseGame{ID: 1, Name: "Catan", YearPublished: year(1995)},
		model.BaseGame{ID: 2, Name: "Gloomhaven", YearPublished: year(2017)},
		model.BaseGame{ID: 3, Name: "Chess"},
	)

	require.True(t, svc.StartBulk().Started)
	<-started

	// Stop lands while the first item is in flight; that item finishes,
	// the loop exits before the next one.
	assert.True(t, svc.StopBulk())
	close(release)

	status := awaitDone(t, svc)
	assert.Equal(t, model.StopReasonUser, status.StopReason)
	assert.Equal(t, 1, status.Processed)
	assert.Equal(t, 3, status.Total)

	// Nothing left to stop.
	assert.False(t, svc.StopBulk())
}

func TestBulkAbortsOnFatal(t *testing.T) {
	f := &stubFetcher{fn: func(id int64) (*fetcher.FetchResult, error) {
		return nil, &fetcher.Error{Kind: fetcher.KindFatal, StatusCode: 403,
			Provider: fetcher.ProviderPrimary, Message: "access denied, provider disabled until end of day"}
	}}
	svc, repo, _ := newTestService(t, f, nil)
	seedCatalog(t, repo,
		model.BaseGame{ID: 1, Name: "Catan"},
		model.BaseGame{ID: 2, Name: "Gloomhaven"},
	)

	require.True(t, svc.StartBulk().Started)
	status := awaitDone(t, svc)

	assert.Contains(t, status.StopReason, "Aborted:")
	assert.Contains(t, status.StopReason, "access denied")
	assert.Equal(t, 1, status.Errors)
	assert.Equal(t, 0, status.Processed)
	// The fatal error aborts immediately; the second game is never tried.
	assert.Equal(t, 1, f.callCount())
}

func TestBulkAbortsAfterConsecutiveFailures(t *testing.T) {
	f := &stubFetcher{fn: func(id int64) (*fetcher.FetchResult, error) {
		return nil, errors.New("connection reset")
	}}
	svc, repo, _ := newTestService(t, f, nil)
	seedCatalog(t, repo,
		model.BaseGame{ID: 1, Name: "Catan"},
		model.BaseGame{ID: 2, Name: "Gloomhaven"},
		model.BaseGame{ID: 3, Name: "Chess"},
		model.BaseGame{ID: 4, Name: "Azul"},
	)

	require.True(t, svc.StartBulk().Started)
	status := awaitDone(t, svc)

	assert.Equal(t, "Aborted after 3 consecutive failures", status.StopReason)
	assert.Equal(t, 3, status.Errors)
	assert.Equal(t, 0, status.Processed)
}

func TestBulkRetriesRateLimited(t *testing.T) {
	var calls atomic.Int32
	f := &stubFetcher{fn: func(id int64) (*fetcher.FetchResult, error) {
		if calls.Add(1) < 3 {
			return nil, &fetcher.Error{Kind: fetcher.KindRetryable, StatusCode: 429,
				Provider: fetcher.ProviderPrimary, Message: "rate limited"}
		}
		html := pageFor("Catan")
		return &fetcher.FetchResult{HTML: html, Bytes: len(html), StatusCode: 200}, nil
	}}
	svc, repo, _ := newTestService(t, f, nil)
	seedCatalog(t, repo, model.BaseGame{ID: 1, Name: "Catan"})

	require.True(t, svc.StartBulk().Started)
	status := awaitDone(t, svc)

	assert.Equal(t, model.StopReasonCompleted, status.StopReason)
	assert.Equal(t, 1, status.Processed)
	assert.Equal(t, 0, status.Errors)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBulkSkipFailuresBreakTheStreak(t *testing.T) {
	// Alternating skip errors never reach the consecutive-failure
	// threshold as long as successes land in between.
	var calls atomic.Int32
	f := &stubFetcher{fn: func(id int64) (*fetcher.FetchResult, error) {
		if calls.Add(1)%2 == 1 {
			return nil, &fetcher.Error{Kind: fetcher.KindSkip, StatusCode: 500,
				Provider: fetcher.ProviderPrimary, Message: "upstream retries exhausted"}
		}
		html := pageFor("Catan")
		return &fetcher.FetchResult{HTML: html, Bytes: len(html), StatusCode: 200}, nil
	}}
	svc, repo, _ := newTestService(t, f, nil)
	seedCatalog(t, repo,
		model.BaseGame{ID: 1, Name: "Catan"},
		model.BaseGame{ID: 2, Name: "Gloomhaven"},
		model.BaseGame{ID: 3, Name: "Chess"},
		model.BaseGame{ID: 4, Name: "Azul"},
	)

	require.True(t, svc.StartBulk().Started)
	status := awaitDone(t, svc)

	assert.Equal(t, model.StopReasonCompleted, status.StopReason)
	assert.Equal(t, 2, status.Processed)
	assert.Equal(t, 2, status.Errors)
}

func TestBulkStatusETAWhileRunning(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	f := &stubFetcher{fn: func(id int64) (*fetcher.FetchResult, error) {
		if calls.Add(1) > 1 {
			<-release
		}
		html := pageFor("Catan")
		return &fetcher.FetchResult{HTML: html, Bytes: len(html), StatusCode: 200}, nil
	}}
	svc, repo, _ := newTestService(t, f, nil)
	seedCatalog(t, repo,
		model.BaseGame{ID: 1, Name: "Catan"},
		model.BaseGame{ID: 2, Name: "Gloomhaven"},
		model.BaseGame{ID: 3, Name: "Chess"},
	)

	require.True(t, svc.StartBulk().Started)

	// Once the first item has landed there is an extrapolation base, so
	// the snapshot carries a live ETA.
	require.Eventually(t, func() bool {
		return svc.BulkStatus().Processed == 1
	}, 5*time.Second, 5*time.Millisecond)

	status := svc.BulkStatus()
	require.NotNil(t, status.ETASeconds)
	assert.GreaterOrEqual(t, *status.ETASeconds, int64(0))

	close(release)
	status = awaitDone(t, svc)
	assert.Equal(t, model.StopReasonCompleted, status.StopReason)
	assert.Nil(t, status.ETASeconds)
}

// listOverrideRepo serves a fixed pending list so tests can include
// rows that were enriched between listing and processing.
type listOverrideRepo struct {
	repository.GameRepository
	rows []model.GameRow
}

func (r *listOverrideRepo) ListUnenriched(ctx context.Context) ([]model.GameRow, error) {
	return r.rows, nil
}

func TestBulkSkipsRowsEnrichedMeanwhile(t *testing.T) {
	f := okFetcher("Catan")
	svc, repo, search := newTestService(t, f, nil)
	seedCatalog(t, repo,
		model.BaseGame{ID: 1, Name: "Catan"},
		model.BaseGame{ID: 2, Name: "Gloomhaven"},
	)

	// Rebuild the service around a repo whose pending list still holds
	// game 2 even though it is marked done.
	override := &listOverrideRepo{GameRepository: repo, rows: []model.GameRow{
		{BaseGame: model.BaseGame{ID: 1, Name: "Catan"}},
		{BaseGame: model.BaseGame{ID: 2, Name: "Gloomhaven"}, ScrapingDone: true},
	}}
	svc = NewEnrichmentService(override, f, search, nil, time.Hour, testConfig())

	require.True(t, svc.StartBulk().Started)
	status := awaitDone(t, svc)

	assert.Equal(t, model.StopReasonCompleted, status.StopReason)
	assert.Equal(t, 1, status.Processed)
	assert.Equal(t, 1, status.Skipped)
	assert.Equal(t, 1, f.callCount())
}

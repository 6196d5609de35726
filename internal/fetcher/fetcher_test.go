package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardmeta-api/internal/cache"
	"boardmeta-api/internal/config"
)

func newTestFetcher(t *testing.T, cfg config.FetcherConfig) *PageFetcher {
	t.Helper()
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	marks := cache.NewMemoryCache()
	t.Cleanup(func() { marks.Close() })
	return New(cfg, marks)
}

func primaryServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		assert.NotEmpty(t, r.URL.Query().Get("api_key"))
		assert.NotEmpty(t, r.URL.Query().Get("url"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func crawlerServer(t *testing.T, resp crawlerResponse, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body["url"])
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchPrimarySuccess(t *testing.T) {
	primary := primaryServer(t, http.StatusOK, "<html>page</html>", nil)

	f := newTestFetcher(t, config.FetcherConfig{
		OriginBaseURL: "https://origin.invalid/boardgame",
		ProxyAPIURL:   primary.URL,
		ProxyAPIKey:   "test-key",
		CrawlerURL:    "http://unused.invalid",
	})

	res, err := f.FetchPage(context.Background(), 13)
	require.NoError(t, err)
	assert.Equal(t, ProviderPrimary, res.Provider)
	assert.Equal(t, "<html>page</html>", res.HTML)
	assert.Equal(t, len("<html>page</html>"), res.Bytes)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "https://origin.invalid/boardgame/13", res.URL)
}

func TestFetchPrimary403FallsBackToSecondary(t *testing.T) {
	var primaryHits, crawlerHits atomic.Int32
	primary := primaryServer(t, http.StatusForbidden, "denied", &primaryHits)
	crawler := crawlerServer(t, crawlerResponse{
		Success:    true,
		HTML:       "<html>from crawler</html>",
		StatusCode: 200,
		URL:        "https://origin.invalid/boardgame/13",
	}, &crawlerHits)

	f := newTestFetcher(t, config.FetcherConfig{
		OriginBaseURL: "https://origin.invalid/boardgame",
		ProxyAPIURL:   primary.URL,
		ProxyAPIKey:   "test-key",
		CrawlerURL:    crawler.URL,
	})

	res, err := f.FetchPage(context.Background(), 13)
	require.NoError(t, err)
	assert.Equal(t, ProviderSecondary, res.Provider)
	assert.Equal(t, "<html>from crawler</html>", res.HTML)
	assert.True(t, f.PrimaryInCooldown(context.Background()))

	// The next call must skip the primary entirely.
	_, err = f.FetchPage(context.Background(), 14)
	require.NoError(t, err)
	assert.Equal(t, int32(1), primaryHits.Load())
	assert.Equal(t, int32(2), crawlerHits.Load())
}

func TestFetchPrimary403WithoutSecondary(t *testing.T) {
	primary := primaryServer(t, http.StatusForbidden, "denied", nil)

	f := newTestFetcher(t, config.FetcherConfig{
		OriginBaseURL: "https://origin.invalid/boardgame",
		ProxyAPIURL:   primary.URL,
		ProxyAPIKey:   "test-key",
	})

	_, err := f.FetchPage(context.Background(), 13)
	fe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindFatal, fe.Kind)
	assert.Equal(t, 403, fe.StatusCode)
	assert.True(t, f.PrimaryInCooldown(context.Background()))
}

func TestFetchPrimaryErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{http.StatusTooManyRequests, KindRetryable},
		{http.StatusInternalServerError, KindSkip},
		{http.StatusBadRequest, KindSkip},
	}

	for _, tt := range tests {
		primary := primaryServer(t, tt.status, "err", nil)
		f := newTestFetcher(t, config.FetcherConfig{
			OriginBaseURL: "https://origin.invalid/boardgame",
			ProxyAPIURL:   primary.URL,
			ProxyAPIKey:   "test-key",
		})

		_, err := f.FetchPage(context.Background(), 1)
		fe, ok := AsError(err)
		require.True(t, ok, "status %d must be classified", tt.status)
		assert.Equal(t, tt.kind, fe.Kind, "status %d", tt.status)
		assert.Equal(t, tt.status, fe.StatusCode)
		assert.False(t, f.PrimaryInCooldown(context.Background()), "status %d must not cool down", tt.status)
	}
}

func TestFetchPrimaryUnclassifiedStatus(t *testing.T) {
	primary := primaryServer(t, http.StatusBadGateway, "upstream broke", nil)
	f := newTestFetcher(t, config.FetcherConfig{
		OriginBaseURL: "https://origin.invalid/boardgame",
		ProxyAPIURL:   primary.URL,
		ProxyAPIKey:   "test-key",
	})

	_, err := f.FetchPage(context.Background(), 1)
	require.Error(t, err)
	_, ok := AsError(err)
	assert.False(t, ok, "unlisted statuses stay generic errors")
}

func TestFetchPrimaryErrorDoesNotFallBack(t *testing.T) {
	var crawlerHits atomic.Int32
	primary := primaryServer(t, http.StatusInternalServerError, "err", nil)
	crawler := crawlerServer(t, crawlerResponse{Success: true, HTML: "x"}, &crawlerHits)

	f := newTestFetcher(t, config.FetcherConfig{
		OriginBaseURL: "https://origin.invalid/boardgame",
		ProxyAPIURL:   primary.URL,
		ProxyAPIKey:   "test-key",
		CrawlerURL:    crawler.URL,
	})

	_, err := f.FetchPage(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, int32(0), crawlerHits.Load(), "only 403 falls back to the crawler")
}

func TestFetchSecondaryOnly(t *testing.T) {
	crawler := crawlerServer(t, crawlerResponse{
		Success:    true,
		HTML:       "<html>x</html>",
		StatusCode: 200,
	}, nil)

	f := newTestFetcher(t, config.FetcherConfig{
		OriginBaseURL: "https://origin.invalid/boardgame",
		CrawlerURL:    crawler.URL,
	})

	res, err := f.FetchPage(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, ProviderSecondary, res.Provider)
	assert.Equal(t, "https://origin.invalid/boardgame/7", res.URL, "missing crawler url resolves to the target")
}

func TestFetchSecondaryFailure(t *testing.T) {
	crawler := crawlerServer(t, crawlerResponse{
		Success: false,
		Error:   "blocked upstream",
	}, nil)

	f := newTestFetcher(t, config.FetcherConfig{
		OriginBaseURL: "https://origin.invalid/boardgame",
		CrawlerURL:    crawler.URL,
	})

	_, err := f.FetchPage(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked upstream")
}

func TestFetchSecondaryNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>gateway error</html>"))
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(t, config.FetcherConfig{
		OriginBaseURL: "https://origin.invalid/boardgame",
		CrawlerURL:    srv.URL,
	})

	_, err := f.FetchPage(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-JSON")
}

func TestFetchDirectWhenNothingConfigured(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/boardgame/21", r.URL.Path)
		w.Write([]byte("<html>direct</html>"))
	}))
	t.Cleanup(origin.Close)

	f := newTestFetcher(t, config.FetcherConfig{
		OriginBaseURL: origin.URL + "/boardgame",
	})

	res, err := f.FetchPage(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, ProviderDirect, res.Provider)
	assert.Equal(t, "<html>direct</html>", res.HTML)
}

func TestCooldownExpiresAtMidnight(t *testing.T) {
	primary := primaryServer(t, http.StatusForbidden, "denied", nil)

	f := newTestFetcher(t, config.FetcherConfig{
		OriginBaseURL: "https://origin.invalid/boardgame",
		ProxyAPIURL:   primary.URL,
		ProxyAPIKey:   "test-key",
	})

	// Pretend it is just before midnight so the cooldown TTL is tiny.
	now := time.Now()
	f.now = func() time.Time {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		return midnight.Add(-50 * time.Millisecond)
	}

	_, err := f.FetchPage(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, f.PrimaryInCooldown(context.Background()))

	time.Sleep(100 * time.Millisecond)
	assert.False(t, f.PrimaryInCooldown(context.Background()), "cooldown clears lazily once expired")
}

// Package fetcher retrieves game detail pages through the best available
// strategy, hiding provider topology from callers.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"boardmeta-api/internal/cache"
	"boardmeta-api/internal/config"
)

// Provider tags which fetch strategy produced a result.
type Provider string

const (
	ProviderPrimary   Provider = "primary"
	ProviderSecondary Provider = "secondary"
	ProviderDirect    Provider = "direct"
)

// cooldownKey marks the primary provider as disabled. The TTL runs to
// local midnight, so expiry clears the cooldown lazily.
const cooldownKey = "fetcher:primary_cooldown"

// FetchResult is one successfully fetched page.
type FetchResult struct {
	HTML       string
	Bytes      int
	Provider   Provider
	StatusCode int
	URL        string
}

// PageFetcher fetches a game's detail page. Provider selection: primary
// proxy first when configured and not cooling down, transparent fallback
// to the self-hosted crawler on 403, direct origin GET when neither
// provider is configured.
type PageFetcher struct {
	cfg    config.FetcherConfig
	client *http.Client
	marks  cache.Cache
	now    func() time.Time
}

// New creates a PageFetcher. marks stores the provider cooldown flag and
// may be shared with other components.
func New(cfg config.FetcherConfig, marks cache.Cache) *PageFetcher {
	return &PageFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		marks:  marks,
		now:    time.Now,
	}
}

// PageURL returns the origin detail page URL for a game id.
func (f *PageFetcher) PageURL(id int64) string {
	return fmt.Sprintf("%s/%d", f.cfg.OriginBaseURL, id)
}

// FetchPage fetches the detail page for a game id.
func (f *PageFetcher) FetchPage(ctx context.Context, id int64) (*FetchResult, error) {
	target := f.PageURL(id)

	primaryConfigured := f.cfg.ProxyAPIKey != ""
	secondaryConfigured := f.cfg.CrawlerURL != ""

	switch {
	case primaryConfigured && secondaryConfigured:
		if f.primaryInCooldown(ctx) {
			log.Printf("[Fetcher] Primary provider in cooldown, using crawler for game %d", id)
			return f.fetchSecondary(ctx, target)
		}
		res, err := f.fetchPrimary(ctx, target)
		if err == nil {
			return res, nil
		}
		if fe, ok := AsError(err); ok && fe.Fatal() {
			// 403 from the proxy: cool down and fall back transparently.
			f.startCooldown(ctx)
			log.Printf("[Fetcher] Primary provider returned 403, falling back to crawler for game %d", id)
			return f.fetchSecondary(ctx, target)
		}
		return nil, err
	case primaryConfigured:
		res, err := f.fetchPrimary(ctx, target)
		if err != nil {
			if fe, ok := AsError(err); ok && fe.Fatal() {
				f.startCooldown(ctx)
			}
			return nil, err
		}
		return res, nil
	case secondaryConfigured:
		return f.fetchSecondary(ctx, target)
	default:
		return f.fetchDirect(ctx, target)
	}
}

// PrimaryInCooldown reports whether the primary provider is currently
// disabled. Exposed for the operational status surface.
func (f *PageFetcher) PrimaryInCooldown(ctx context.Context) bool {
	return f.primaryInCooldown(ctx)
}

func (f *PageFetcher) primaryInCooldown(ctx context.Context) bool {
	ok, err := f.marks.Exists(ctx, cooldownKey)
	if err != nil {
		log.Printf("[Fetcher] Cooldown check failed: %v", err)
		return false
	}
	return ok
}

func (f *PageFetcher) startCooldown(ctx context.Context) {
	now := f.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	ttl := midnight.Sub(now)
	if ttl <= 0 {
		return
	}
	if err := f.marks.Set(ctx, cooldownKey, []byte("1"), ttl); err != nil {
		log.Printf("[Fetcher] Failed to store cooldown mark: %v", err)
	}
	log.Printf("[Fetcher] Primary provider disabled until %s", midnight.Format(time.RFC3339))
}

// fetchPrimary GETs the target through the proxy/scraping API. Non-2xx
// statuses are classified per the provider error table; anything not in
// the table is a generic error.
func (f *PageFetcher) fetchPrimary(ctx context.Context, target string) (*FetchResult, error) {
	params := url.Values{}
	params.Set("api_key", f.cfg.ProxyAPIKey)
	params.Set("url", target)
	reqURL := f.cfg.ProxyAPIURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read proxy response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if fe := classifyPrimaryStatus(resp.StatusCode); fe != nil {
			return nil, fe
		}
		return nil, fmt.Errorf("proxy returned status %d", resp.StatusCode)
	}

	return &FetchResult{
		HTML:       string(body),
		Bytes:      len(body),
		Provider:   ProviderPrimary,
		StatusCode: resp.StatusCode,
		URL:        target,
	}, nil
}

// crawlerResponse mirrors the self-hosted crawler's JSON reply.
type crawlerResponse struct {
	Success    bool   `json:"success"`
	HTML       string `json:"html"`
	StatusCode int    `json:"statusCode"`
	URL        string `json:"url"`
	Error      string `json:"error,omitempty"`
}

// fetchSecondary POSTs {url} to the self-hosted crawler. A non-JSON
// response or success:false is a fetch failure.
func (f *PageFetcher) fetchSecondary(ctx context.Context, target string) (*FetchResult, error) {
	payload, err := json.Marshal(map[string]string{"url": target})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.CrawlerURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crawler POST: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read crawler response: %w", err)
	}

	var cr crawlerResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("crawler returned non-JSON response (status %d)", resp.StatusCode)
	}
	if !cr.Success {
		msg := cr.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", cr.StatusCode)
		}
		return nil, fmt.Errorf("crawler fetch failed: %s", msg)
	}

	resolved := cr.URL
	if resolved == "" {
		resolved = target
	}
	status := cr.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	return &FetchResult{
		HTML:       cr.HTML,
		Bytes:      len(cr.HTML),
		Provider:   ProviderSecondary,
		StatusCode: status,
		URL:        resolved,
	}, nil
}

// fetchDirect GETs the origin page with no resilience.
func (f *PageFetcher) fetchDirect(ctx context.Context, target string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; boardmeta-api)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("direct GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read origin response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("origin returned status %d", resp.StatusCode)
	}

	return &FetchResult{
		HTML:       string(body),
		Bytes:      len(body),
		Provider:   ProviderDirect,
		StatusCode: resp.StatusCode,
		URL:        target,
	}, nil
}

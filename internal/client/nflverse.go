package client

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/metrics"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/retry"

	"github.com/rs/zerolog/log"
)

// Endpoint names, used for metrics and cache keys
const (
	EndpointSchedules   = "schedules"
	EndpointTeamStats   = "team_stats"
	EndpointPlayerStats = "player_stats"
)

// Cache stores raw upstream payloads between passes
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Table is a parsed CSV payload
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Missing returns the required columns absent from the table.
func (t *Table) Missing(required ...string) []string {
	have := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		have[c] = true
	}
	var missing []string
	for _, c := range required {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// Options configures a Client
type Options struct {
	ScheduleURL    string
	TeamStatsURL   string
	PlayerStatsURL string
	Retry          retry.Policy
	Cache          Cache
	CacheTTL       time.Duration
	HTTPClient     *http.Client
}

// Client reads schedules and weekly stats from the nflverse data releases
type Client struct {
	scheduleURL    string
	teamStatsURL   string
	playerStatsURL string
	httpClient     *http.Client
	retry          retry.Policy
	cache          Cache
	cacheTTL       time.Duration
}

// NewClient creates a new upstream client
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Client{
		scheduleURL:    opts.ScheduleURL,
		teamStatsURL:   opts.TeamStatsURL,
		playerStatsURL: opts.PlayerStatsURL,
		httpClient:     httpClient,
		retry:          opts.Retry,
		cache:          opts.Cache,
		cacheTTL:       opts.CacheTTL,
	}
}

// FetchSchedules returns every schedule row of the season.
func (c *Client) FetchSchedules(ctx context.Context, season int) (*Table, error) {
	table, err := c.fetchTable(ctx, EndpointSchedules, seasonURL(c.scheduleURL, season), season)
	if err != nil {
		return nil, err
	}
	return filterSeason(table, season), nil
}

// FetchTeamStats returns the weekly per-team stat rows of the season.
func (c *Client) FetchTeamStats(ctx context.Context, season int) (*Table, error) {
	table, err := c.fetchTable(ctx, EndpointTeamStats, seasonURL(c.teamStatsURL, season), season)
	if err != nil {
		return nil, err
	}
	return filterSeason(table, season), nil
}

// FetchPlayerStats returns the weekly per-player stat rows of the season.
func (c *Client) FetchPlayerStats(ctx context.Context, season int) (*Table, error) {
	table, err := c.fetchTable(ctx, EndpointPlayerStats, seasonURL(c.playerStatsURL, season), season)
	if err != nil {
		return nil, err
	}
	return filterSeason(table, season), nil
}

// fetchTable returns the parsed payload, from the cache when it holds a
// readable copy. Only payloads that parse are cached.
func (c *Client) fetchTable(ctx context.Context, endpoint, url string, season int) (*Table, error) {
	cacheKey := fmt.Sprintf("%s:%d", endpoint, season)
	if table, ok := c.cached(ctx, cacheKey, endpoint, season); ok {
		return table, nil
	}

	body, err := c.fetch(ctx, endpoint, url)
	if err != nil {
		return nil, err
	}

	table, err := parseCSV(body)
	if err != nil {
		metrics.RecordError("client", endpoint+"_malformed")
		return nil, apperrors.Wrap(apperrors.ErrUpstreamUnavailable,
			fmt.Errorf("malformed %s payload: %w", endpoint, err))
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, body, c.cacheTTL); err != nil {
			log.Warn().Err(err).Str("key", cacheKey).Msg("Cache write failed")
		}
	}
	return table, nil
}

// cached returns the cached table for key. An unreadable entry is evicted.
func (c *Client) cached(ctx context.Context, key, endpoint string, season int) (*Table, bool) {
	if c.cache == nil {
		return nil, false
	}
	body, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed, fetching upstream")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	table, err := parseCSV(body)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cached payload unreadable, evicting")
		if err := c.cache.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Cache delete failed")
		}
		return nil, false
	}
	log.Debug().Str("endpoint", endpoint).Int("season", season).Msg("Upstream payload served from cache")
	return table, true
}

func (c *Client) fetch(ctx context.Context, endpoint, url string) ([]byte, error) {
	start := time.Now()
	var body []byte
	err := c.retry.Do(ctx, "fetch "+endpoint, func(ctx context.Context) error {
		var err error
		body, err = c.get(ctx, url)
		return err
	})
	if err != nil {
		metrics.RecordUpstreamCall(endpoint, "error", time.Since(start).Seconds())
		metrics.RecordError("client", endpoint)
		return nil, apperrors.Wrap(apperrors.ErrUpstreamUnavailable, err)
	}
	metrics.RecordUpstreamCall(endpoint, "success", time.Since(start).Seconds())
	return body, nil
}

// get performs one GET. Retryable failures are returned plain; the rest are
// marked permanent.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "text/csv")
	req.Header.Set("User-Agent", "confident-picks-pipeline/1.0")

	log.Debug().Str("url", url).Msg("Making upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		log.Debug().
			Str("url", url).
			Int("size", len(body)).
			Msg("Upstream request successful")
		return body, nil

	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, fmt.Errorf("upstream returned retryable status %d", resp.StatusCode)

	default:
		return nil, retry.Permanent(fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, truncate(body, 200)))
	}
}

func parseCSV(body []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.ReuseRecord = false

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty payload")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	table := &Table{Columns: header}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			row[col] = record[i]
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func filterSeason(table *Table, season int) *Table {
	want := strconv.Itoa(season)
	filtered := &Table{Columns: table.Columns}
	for _, row := range table.Rows {
		if s, ok := row["season"]; !ok || strings.TrimSpace(s) == want {
			filtered.Rows = append(filtered.Rows, row)
		}
	}
	return filtered
}

func seasonURL(template string, season int) string {
	if strings.Contains(template, "%d") {
		return fmt.Sprintf(template, season)
	}
	return template
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

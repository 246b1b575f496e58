package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/cache"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/retry"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gamesCSV = `game_id,season,game_type,week,gameday,gametime,away_team,home_team,away_score,home_score
2024_18_LAR_SF,2024,REG,18,2025-01-05,16:25,LAR,SF,31,24
2025_01_DAL_PHI,2025,REG,1,2025-09-04,20:20,DAL,PHI,20,24
2025_02_PHI_KC,2025,REG,2,2025-09-14,16:25,PHI,KC,NA,NA
`

func testPolicy() retry.Policy {
	return retry.Policy{BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, MaxAttempts: 3}
}

func newTestClient(srv *httptest.Server, c Cache) *Client {
	return NewClient(Options{
		ScheduleURL:    srv.URL + "/games.csv",
		TeamStatsURL:   srv.URL + "/stats_team_week_%d.csv",
		PlayerStatsURL: srv.URL + "/stats_player_week_%d.csv",
		Retry:          testPolicy(),
		Cache:          c,
		CacheTTL:       time.Minute,
	})
}

func TestFetchSchedules_FiltersSeason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/games.csv", r.URL.Path)
		_, _ = w.Write([]byte(gamesCSV))
	}))
	defer srv.Close()

	table, err := newTestClient(srv, nil).FetchSchedules(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "2025_01_DAL_PHI", table.Rows[0]["game_id"])
	assert.Equal(t, "NA", table.Rows[1]["home_score"])
	assert.Empty(t, table.Missing("game_id", "home_team"))
	assert.Equal(t, []string{"spread_line"}, table.Missing("game_id", "spread_line"))
}

func TestFetchTeamStats_SeasonInURL(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte("season,week,team\n2025,1,KC\n"))
	}))
	defer srv.Close()

	table, err := newTestClient(srv, nil).FetchTeamStats(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, "/stats_team_week_2025.csv", path)
	assert.Len(t, table.Rows, 1)
}

func TestFetch_RetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(gamesCSV))
	}))
	defer srv.Close()

	table, err := newTestClient(srv, nil).FetchSchedules(context.Background(), 2025)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetch_UpstreamUnavailable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).FetchSchedules(context.Background(), 2025)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetch_NotFoundIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).FetchPlayerStats(context.Background(), 2031)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetch_MalformedRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("game_id,season\n2025_01_DAL_PHI,2025,extra\n"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).FetchSchedules(context.Background(), 2025)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "malformed")
}

func TestFetch_UsesRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rc, err := cache.NewRedisCache(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer rc.Close()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(gamesCSV))
	}))
	defer srv.Close()

	c := newTestClient(srv, rc)
	for i := 0; i < 3; i++ {
		table, err := c.FetchSchedules(context.Background(), 2025)
		require.NoError(t, err)
		assert.Len(t, table.Rows, 2)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	cached, err := mr.Get("picks:schedules:2025")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cached, "game_id,season"))
}

func TestFetch_MalformedPayloadIsNotCached(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rc, err := cache.NewRedisCache(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer rc.Close()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte("game_id,season\n\"2025_01_DAL_PHI,2025\n"))
			return
		}
		_, _ = w.Write([]byte(gamesCSV))
	}))
	defer srv.Close()

	c := newTestClient(srv, rc)

	_, err = c.FetchSchedules(context.Background(), 2025)
	require.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
	assert.False(t, mr.Exists("picks:schedules:2025"))

	table, err := c.FetchSchedules(context.Background(), 2025)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.True(t, mr.Exists("picks:schedules:2025"))
}

func TestFetch_EvictsUnreadableCacheEntry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	require.NoError(t, mr.Set("picks:schedules:2025", "game_id,season\n\"broken"))

	rc, err := cache.NewRedisCache(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer rc.Close()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(gamesCSV))
	}))
	defer srv.Close()

	table, err := newTestClient(srv, rc).FetchSchedules(context.Background(), 2025)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	cached, err := mr.Get("picks:schedules:2025")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cached, "game_id,season,game_type"))
}

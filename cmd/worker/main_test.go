package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/pipeline"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/publisher"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticHealth map[string]string

func (h staticHealth) Health(ctx context.Context) map[string]string { return h }

type staticHistory struct {
	report *pipeline.Report
	err    error
}

func (h staticHistory) Last() (*pipeline.Report, error) { return h.report, h.err }

type failingLookup struct{}

func (failingLookup) Lookup(ctx context.Context, gameID string) (*models.PublishedPick, error) {
	return nil, errors.New("store offline")
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealth_ReportsLastPassRecord(t *testing.T) {
	report := &pipeline.Report{
		PassID:      "pass-1",
		Season:      2025,
		CurrentWeek: 3,
		Duration:    2 * time.Second,
		Record:      &publisher.Tally{Season: 2025, Wins: 3, Losses: 1, Pushes: 1},
	}
	pub := publisher.New(store.NewMemory(nil), nil)
	router := newRouter(staticHealth{"store": "ok"}, pub, staticHistory{report: report})

	rec, body := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	last, ok := body["last_pass"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "pass-1", last["pass_id"])
	assert.EqualValues(t, 3, last["current_week"])

	record, ok := last["record"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 3, record["wins"])
	assert.EqualValues(t, 1, record["pushes"])
	assert.InDelta(t, 0.75, record["win_rate"], 1e-9)
}

func TestHealth_UnhealthyBackend(t *testing.T) {
	pub := publisher.New(store.NewMemory(nil), nil)
	router := newRouter(
		staticHealth{"store": "ok", "cache": "unhealthy: dial tcp"},
		pub,
		staticHistory{report: &pipeline.Report{PassID: "pass-2"}, err: errors.New("lock held")},
	)

	rec, body := get(t, router, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	last := body["last_pass"].(map[string]interface{})
	assert.Equal(t, "lock held", last["error"])
	assert.NotContains(t, last, "record")
}

func TestPicks_Lookup(t *testing.T) {
	mem := store.NewMemory(nil)
	require.NoError(t, mem.Put(context.Background(), store.CollectionLive, &models.PublishedPick{
		ID: "2025_02_PHI_KC", Season: 2025, Week: 2,
		AwayTeam: "PHI", HomeTeam: "KC", PredictedWinner: "KC",
		Status: models.StatusPending,
	}))
	router := newRouter(staticHealth{}, publisher.New(mem, nil), staticHistory{})

	rec, body := get(t, router, "/picks/2025_02_PHI_KC")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025_02_PHI_KC", body["id"])
	assert.Equal(t, "KC", body["predicted_winner"])

	rec, body = get(t, router, "/picks/2025_02_NYG_DAL")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "pick not found", body["error"])
}

func TestPicks_LookupFailure(t *testing.T) {
	router := newRouter(staticHealth{}, failingLookup{}, staticHistory{})

	rec, _ := get(t, router, "/picks/2025_02_PHI_KC")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

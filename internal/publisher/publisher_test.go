package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 9, 20, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func game() *models.Game {
	return &models.Game{
		Season: 2025, Week: 3, HomeTeam: "PHI", AwayTeam: "DAL",
		Kickoff:    time.Date(2025, 9, 21, 17, 0, 0, 0, time.UTC),
		SpreadLine: models.FloatPtr(3.5),
	}
}

func predictedRow() *models.PickRow {
	row := models.NewPickRow(game())
	row.ApplyPrediction(&models.Prediction{
		GameID:          row.GameID,
		PredictedWinner: "PHI",
		PredictedMargin: 4.5,
		PredictedTotal:  45,
		Confidence:      0.63,
		ModelVersion:    "logit-v1",
		GeneratedAt:     t0,
	})
	return row
}

func gradedRow(home, away int) *models.PickRow {
	row := predictedRow()
	g := game()
	g.HomeScore = models.IntPtr(home)
	g.AwayScore = models.IntPtr(away)
	row.Grade(g, t0.Add(30*time.Hour))
	return row
}

func TestPublishPending_Idempotent(t *testing.T) {
	clock := &fakeClock{now: t0}
	s := store.NewMemory(nil)
	p := New(s, clock.Now)
	ctx := context.Background()

	wrote, err := p.PublishPending(ctx, predictedRow())
	require.NoError(t, err)
	assert.True(t, wrote)

	stored, err := s.Get(ctx, store.CollectionLive, "2025_03_DAL_PHI")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, t0, stored.UpdatedAt)

	clock.now = t0.Add(time.Hour)
	wrote, err = p.PublishPending(ctx, predictedRow())
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, 1, s.Writes)
}

func TestPublishPending_UpdatedAtIsMonotonic(t *testing.T) {
	clock := &fakeClock{now: t0}
	s := store.NewMemory(nil)
	p := New(s, clock.Now)
	ctx := context.Background()

	_, err := p.PublishPending(ctx, predictedRow())
	require.NoError(t, err)

	// The clock steps backwards; the stamp still moves forward.
	clock.now = t0.Add(-time.Minute)
	row := predictedRow()
	row.SpreadLine = models.FloatPtr(2.5)
	wrote, err := p.PublishPending(ctx, row)
	require.NoError(t, err)
	assert.True(t, wrote)

	stored, err := s.Get(ctx, store.CollectionLive, row.GameID)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Millisecond), stored.UpdatedAt)
	assert.Equal(t, 2.5, *stored.SpreadLine)
}

func TestPublishPending_RejectsGradedRow(t *testing.T) {
	p := New(store.NewMemory(nil), nil)
	_, err := p.PublishPending(context.Background(), gradedRow(27, 20))
	require.Error(t, err)
}

func TestGradeAndMigrate_MovesPick(t *testing.T) {
	clock := &fakeClock{now: t0}
	s := store.NewMemory(nil)
	p := New(s, clock.Now)
	ctx := context.Background()

	_, err := p.PublishPending(ctx, predictedRow())
	require.NoError(t, err)

	clock.now = t0.Add(31 * time.Hour)
	wrote, err := p.GradeAndMigrate(ctx, gradedRow(27, 20))
	require.NoError(t, err)
	assert.True(t, wrote)

	assert.Equal(t, 0, s.Len(store.CollectionLive))
	hist, err := s.Get(ctx, store.CollectionHistorical, "2025_03_DAL_PHI")
	require.NoError(t, err)
	require.NotNil(t, hist)
	assert.Equal(t, models.StatusGraded, hist.Status)
	assert.Equal(t, models.ResultWin, hist.PredictionResult)
	assert.Equal(t, 27, *hist.HomeScore)

	writes := s.Writes
	wrote, err = p.GradeAndMigrate(ctx, gradedRow(27, 20))
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, writes, s.Writes)
}

func TestGradeAndMigrate_RetriesFailedDeleteNextPass(t *testing.T) {
	clock := &fakeClock{now: t0}
	s := store.NewMemory(nil)
	p := New(s, clock.Now)
	ctx := context.Background()

	_, err := p.PublishPending(ctx, predictedRow())
	require.NoError(t, err)

	s.FailDelete = assert.AnError
	_, err = p.GradeAndMigrate(ctx, gradedRow(27, 20))
	require.ErrorIs(t, err, apperrors.ErrStoreIO)

	// Present in both collections: readers see the historical copy.
	assert.Equal(t, 1, s.Len(store.CollectionLive))
	assert.Equal(t, 1, s.Len(store.CollectionHistorical))
	found, err := p.Lookup(ctx, "2025_03_DAL_PHI")
	require.NoError(t, err)
	assert.Equal(t, models.StatusGraded, found.Status)

	s.FailDelete = nil
	report, err := p.Sync(ctx, []*models.PickRow{gradedRow(27, 20)})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, 0, s.Len(store.CollectionLive))
	assert.Equal(t, 1, s.Len(store.CollectionHistorical))
}

func TestSync_SkipsRowsWithoutPrediction(t *testing.T) {
	s := store.NewMemory(nil)
	p := New(s, func() time.Time { return t0 })

	bare := models.NewPickRow(game())
	report, err := p.Sync(context.Background(), []*models.PickRow{bare, predictedRow()})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Published)

	report, err = p.Sync(context.Background(), []*models.PickRow{bare, predictedRow()})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unchanged)
	assert.Zero(t, report.Published)
}

func TestSync_ContinuesPastFailures(t *testing.T) {
	s := store.NewMemory(nil)
	s.FailPut = assert.AnError
	p := New(s, func() time.Time { return t0 })

	report, err := p.Sync(context.Background(), []*models.PickRow{predictedRow(), gradedRow(20, 20)})
	require.ErrorIs(t, err, apperrors.ErrStoreIO)
	assert.Zero(t, report.Published)
	assert.Zero(t, report.Migrated)
}

func TestLookup_Missing(t *testing.T) {
	p := New(store.NewMemory(nil), nil)
	got, err := p.Lookup(context.Background(), "2025_01_NYG_KC")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSeasonRecord(t *testing.T) {
	s := store.NewMemory(nil)
	p := New(s, func() time.Time { return t0 })
	ctx := context.Background()

	rows := []*models.PickRow{gradedRow(27, 20), gradedRow(17, 24), gradedRow(21, 21)}
	for i, row := range rows {
		row.GameID = []string{"2025_03_DAL_PHI", "2025_04_DAL_PHI", "2025_05_DAL_PHI"}[i]
		_, err := p.GradeAndMigrate(ctx, row)
		require.NoError(t, err)
	}

	tally, err := p.SeasonRecord(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Wins)
	assert.Equal(t, 1, tally.Losses)
	assert.Equal(t, 1, tally.Pushes)
	assert.Equal(t, 0.5, tally.WinRate())
	assert.Equal(t, Record{Wins: 1, Losses: 1, Pushes: 1}, tally.ATS)
	// 47 over 45, 41 under, 42 under.
	assert.Equal(t, TotalsRecord{Overs: 1, Unders: 2}, tally.Totals)
}

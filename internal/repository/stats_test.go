package repository

import (
	"testing"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(throughWeek int) []models.TeamStats {
	return []models.TeamStats{
		{
			Team: "PHI", Season: 2025, ThroughWeek: throughWeek, GamesPlayed: 2,
			PointsForPerGame: 27.5, PointsAgainstPerGame: 17,
			YardsPerGame: 360, YardsAllowedPerGame: 300,
			TurnoverDiffPerGame: 0.5, EPAPerGame: 4.2,
			RecentMargins: []int{7, 14}, LastPlayedWeek: throughWeek,
		},
		{
			Team: "DAL", Season: 2025, ThroughWeek: throughWeek, GamesPlayed: 2,
			PointsForPerGame: 20, PointsAgainstPerGame: 24,
			YardsPerGame: 320, YardsAllowedPerGame: 350,
			LastPlayedWeek: throughWeek,
		},
	}
}

func TestStatsRepository_Snapshot(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	require.NoError(t, db.Stats.UpsertSnapshot(ctx, snapshot(2)))
	require.NoError(t, db.Stats.UpsertSnapshot(ctx, snapshot(3)))

	stats, err := db.Stats.GetSnapshot(ctx, 2025, 2)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	// Ordered by team
	assert.Equal(t, "DAL", stats[0].Team)
	assert.Empty(t, stats[0].RecentMargins)
	assert.Equal(t, "PHI", stats[1].Team)
	assert.Equal(t, []int{7, 14}, stats[1].RecentMargins)
	assert.Equal(t, 27.5, stats[1].PointsForPerGame)
	assert.Equal(t, 2, stats[1].LastPlayedWeek)
}

func TestStatsRepository_UpsertOverwrites(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	first := snapshot(2)
	require.NoError(t, db.Stats.UpsertSnapshot(ctx, first))

	revised := snapshot(2)
	revised[1].PointsForPerGame = 21
	require.NoError(t, db.Stats.UpsertSnapshot(ctx, revised))

	stats, err := db.Stats.GetSnapshot(ctx, 2025, 2)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 21.0, stats[0].PointsForPerGame)
}

func TestStatsRepository_EmptySnapshot(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	require.NoError(t, db.Stats.UpsertSnapshot(ctx, nil))
	stats, err := db.Stats.GetSnapshot(ctx, 2025, 9)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

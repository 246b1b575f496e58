package repository

import (
	"testing"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archivedGame() models.Game {
	return models.Game{
		Season:     2025,
		Week:       3,
		GameType:   "REG",
		HomeTeam:   "PHI",
		AwayTeam:   "DAL",
		Kickoff:    time.Date(2025, 9, 21, 17, 0, 0, 0, time.UTC),
		Venue:      "Lincoln Financial Field",
		SpreadLine: models.FloatPtr(3.5),
		HomeRest:   7,
		AwayRest:   7,
	}
}

func TestGameRepository_Upsert(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	game := archivedGame()
	require.NoError(t, db.Games.Upsert(ctx, &game), "Should insert game")

	retrieved, err := db.Games.GetByID(ctx, game.ID())
	require.NoError(t, err, "Should retrieve game")
	require.NotNil(t, retrieved)
	assert.Equal(t, game.ID(), retrieved.ID())
	assert.True(t, game.Kickoff.Equal(retrieved.Kickoff))
	assert.Equal(t, 3.5, *retrieved.SpreadLine)
	assert.Nil(t, retrieved.TotalLine)
	assert.False(t, retrieved.Completed())

	// Final score arrives
	game.HomeScore = models.IntPtr(27)
	game.AwayScore = models.IntPtr(20)
	require.NoError(t, db.Games.Upsert(ctx, &game), "Should update game")

	updated, err := db.Games.GetByID(ctx, game.ID())
	require.NoError(t, err)
	assert.True(t, updated.Completed())
	assert.Equal(t, "PHI", updated.Winner())
}

func TestGameRepository_GetByIDMissing(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	game, err := db.Games.GetByID(ctx, "2025_01_NYG_KC")
	require.NoError(t, err)
	assert.Nil(t, game)
}

func TestGameRepository_UpsertBatch(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	a := archivedGame()
	b := archivedGame()
	b.Week = 1
	b.HomeTeam, b.AwayTeam = "KC", "NYG"
	c := archivedGame()
	c.Season = 2024

	require.NoError(t, db.Games.UpsertBatch(ctx, []models.Game{a, b, c}))
	require.NoError(t, db.Games.UpsertBatch(ctx, []models.Game{a}), "Re-archiving should not fail")

	for _, want := range []models.Game{a, b, c} {
		got, err := db.Games.GetByID(ctx, want.ID())
		require.NoError(t, err)
		require.NotNil(t, got, want.ID())
		assert.Equal(t, want.Season, got.Season)
		assert.Equal(t, want.Week, got.Week)
	}
}

package predict

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func week5Game() *models.Game {
	return &models.Game{
		Season:   2025,
		Week:     5,
		HomeTeam: "KC",
		AwayTeam: "BUF",
		Kickoff:  time.Date(2025, 10, 5, 20, 25, 0, 0, time.UTC),
		HomeRest: 7,
		AwayRest: 7,
	}
}

func avgTeam(team string) *models.TeamStats {
	return &models.TeamStats{
		Team:                 team,
		Season:               2025,
		ThroughWeek:          4,
		GamesPlayed:          4,
		PointsForPerGame:     22,
		PointsAgainstPerGame: 22,
		YardsPerGame:         330,
		YardsAllowedPerGame:  330,
		LastPlayedWeek:       4,
	}
}

var avgLeague = League{PointsPerGame: 22, YardsPerGame: 330}

func TestPredict_EvenTeamsFavorHome(t *testing.T) {
	e := NewEngine("logit-v1", nil, clockAt(fixedNow))

	pred, err := e.Predict(week5Game(), avgTeam("KC"), avgTeam("BUF"), avgLeague)
	require.NoError(t, err)

	assert.Equal(t, "2025_05_BUF_KC", pred.GameID)
	assert.Equal(t, "KC", pred.PredictedWinner)
	assert.Equal(t, 2.0, pred.PredictedMargin)
	assert.Equal(t, 44.0, pred.PredictedTotal)
	assert.InDelta(t, 0.5604, pred.Confidence, 1e-4)
	assert.Greater(t, pred.Confidence, 0.5)
	assert.Equal(t, "logit-v1", pred.ModelVersion)
	assert.Equal(t, fixedNow, pred.GeneratedAt)
}

func TestPredict_StrongAwayTeam(t *testing.T) {
	e := NewEngine("logit-v1", nil, clockAt(fixedNow))
	away := avgTeam("BUF")
	away.PointsForPerGame = 31
	away.PointsAgainstPerGame = 15
	away.RecentMargins = []int{14, 10, 21, 3}

	pred, err := e.Predict(week5Game(), avgTeam("KC"), away, avgLeague)
	require.NoError(t, err)

	assert.Equal(t, "BUF", pred.PredictedWinner)
	assert.Less(t, pred.HomeWinProbability, 0.5)
	assert.Greater(t, pred.Confidence, 0.6)
	assert.LessOrEqual(t, pred.Confidence, models.MaxConfidence)
	assert.Equal(t, 0.0, math.Mod(pred.PredictedMargin*2, 1))
}

func TestPredict_ConfidenceClippedAtUpperBound(t *testing.T) {
	e := NewEngine("logit-v1", nil, clockAt(fixedNow))
	home := avgTeam("KC")
	home.PointsForPerGame = 45
	home.PointsAgainstPerGame = 3
	home.TurnoverDiffPerGame = 3
	home.EPAPerGame = 20
	away := avgTeam("BUF")
	away.PointsForPerGame = 3
	away.PointsAgainstPerGame = 45

	pred, err := e.Predict(week5Game(), home, away, avgLeague)
	require.NoError(t, err)
	assert.Equal(t, models.MaxConfidence, pred.Confidence)
}

func TestPredict_FewGamesCapsConfidence(t *testing.T) {
	e := NewEngine("logit-v1", nil, clockAt(fixedNow))
	home := avgTeam("KC")
	home.PointsForPerGame = 40
	home.PointsAgainstPerGame = 10
	home.GamesPlayed = 1

	pred, err := e.Predict(week5Game(), home, avgTeam("BUF"), avgLeague)
	require.NoError(t, err)
	assert.Equal(t, "KC", pred.PredictedWinner)
	assert.Equal(t, 0.60, pred.Confidence)
}

func TestPredict_ByeZeroesForm(t *testing.T) {
	e := NewEngine("logit-v1", nil, clockAt(fixedNow))

	rested := avgTeam("KC")
	rested.RecentMargins = []int{-20, -20}
	rested.LastPlayedWeek = 3

	withBye, err := e.Predict(week5Game(), rested, avgTeam("BUF"), avgLeague)
	require.NoError(t, err)

	played := avgTeam("KC")
	played.RecentMargins = []int{-20, -20}
	withoutBye, err := e.Predict(week5Game(), played, avgTeam("BUF"), avgLeague)
	require.NoError(t, err)

	noForm, err := e.Predict(week5Game(), avgTeam("KC"), avgTeam("BUF"), avgLeague)
	require.NoError(t, err)

	assert.Equal(t, noForm.HomeWinProbability, withBye.HomeWinProbability)
	assert.Less(t, withoutBye.HomeWinProbability, withBye.HomeWinProbability)
}

func TestPredict_MissingStatsSkips(t *testing.T) {
	e := NewEngine("logit-v1", nil, clockAt(fixedNow))

	pred, err := e.Predict(week5Game(), avgTeam("KC"), nil, avgLeague)
	require.Error(t, err)
	assert.Nil(t, pred)
	assert.ErrorIs(t, err, apperrors.ErrPredictionSkipped)
	assert.Contains(t, err.Error(), "BUF")

	id, ok := apperrors.GameID(err)
	require.True(t, ok)
	assert.Equal(t, "2025_05_BUF_KC", id)
}

func TestPredict_RestDifferential(t *testing.T) {
	e := NewEngine("logit-v1", nil, clockAt(fixedNow))

	rested := week5Game()
	rested.HomeRest = 14
	rested.AwayRest = 6
	tired := week5Game()
	tired.HomeRest = 4
	tired.AwayRest = 10

	a, err := e.Predict(rested, avgTeam("KC"), avgTeam("BUF"), avgLeague)
	require.NoError(t, err)
	b, err := e.Predict(tired, avgTeam("KC"), avgTeam("BUF"), avgLeague)
	require.NoError(t, err)

	assert.Greater(t, a.HomeWinProbability, b.HomeWinProbability)
	assert.Equal(t, "KC", b.PredictedWinner)
}

func TestPickWinner_TieGoesHome(t *testing.T) {
	g := week5Game()
	assert.Equal(t, "KC", pickWinner(g, 0.5))
	assert.Equal(t, "BUF", pickWinner(g, 0.4999))
	assert.Equal(t, 0.5, HomeWinProbability(0))
}

func TestConfidence_Bounds(t *testing.T) {
	tests := []struct {
		name  string
		p     float64
		games int
		want  float64
	}{
		{"coin flip", 0.5, 4, 0.5},
		{"upper clip", 0.99, 4, 0.95},
		{"exact upper", 0.95, 4, 0.95},
		{"away favored", 0.2, 4, 0.8},
		{"lower clip on away side", 0.001, 4, 0.95},
		{"few games cap", 0.9, 1, 0.60},
		{"few games below cap", 0.55, 0, 0.55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Confidence(tt.p, tt.games))
		})
	}
}

func TestPredictGame_LedgerKeepsFirstPrediction(t *testing.T) {
	ledger := NewMemoryLedger()
	table := NewStatsTable(4, []models.TeamStats{*avgTeam("KC"), *avgTeam("BUF")})

	first, reused, err := NewEngine("logit-v1", ledger, clockAt(fixedNow)).
		PredictGame(context.Background(), week5Game(), table)
	require.NoError(t, err)
	assert.False(t, reused)

	later := NewEngine("logit-v1", ledger, clockAt(fixedNow.Add(48*time.Hour)))
	second, reused, err := later.PredictGame(context.Background(), week5Game(), table)
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, ledger.Len())

	bumped := NewEngine("logit-v2", ledger, clockAt(fixedNow.Add(48*time.Hour)))
	third, reused, err := bumped.PredictGame(context.Background(), week5Game(), table)
	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, "logit-v2", third.ModelVersion)
	assert.Equal(t, 2, ledger.Len())
}

func TestPredictGame_MissingTeamSkips(t *testing.T) {
	ledger := NewMemoryLedger()
	table := NewStatsTable(4, []models.TeamStats{*avgTeam("KC")})

	_, _, err := NewEngine("logit-v1", ledger, clockAt(fixedNow)).
		PredictGame(context.Background(), week5Game(), table)
	require.ErrorIs(t, err, apperrors.ErrPredictionSkipped)
	assert.Equal(t, 0, ledger.Len())
}

func TestNewStatsTable_League(t *testing.T) {
	a := *avgTeam("KC")
	a.PointsForPerGame = 30
	a.YardsPerGame = 400
	b := *avgTeam("BUF")
	b.PointsForPerGame = 20
	b.YardsPerGame = 300

	table := NewStatsTable(4, []models.TeamStats{a, b})
	assert.Equal(t, 25.0, table.League.PointsPerGame)
	assert.Equal(t, 350.0, table.League.YardsPerGame)
	assert.Len(t, table.Teams, 2)
}

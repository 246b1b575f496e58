// Package predict produces per-game winner, margin, total and confidence
// from rolling team stats.
package predict

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"

	"github.com/rs/zerolog/log"
)

const (
	// MarginStdDev is the historical standard deviation of NFL final margins.
	MarginStdDev = 13.45

	// HomeFieldAdvantage in points.
	HomeFieldAdvantage = 1.8

	restPointsPerDay = 0.2
	restMaxPoints    = 1.5

	formDecay  = 0.6
	formWeight = 0.15

	turnoverWeight = 1.2
	epaWeight      = 0.25

	// Pace only nudges the total.
	paceWeight = 0.5
	paceMin    = 0.85
	paceMax    = 1.15

	// Below this many completed games on either side confidence is capped.
	minGamesForFullConfidence = 2
	fewGamesConfidenceCap     = 0.60
)

// logisticScale maps margin into the logistic so that its spread matches a
// normal distribution with MarginStdDev.
var logisticScale = MarginStdDev * math.Sqrt(3) / math.Pi

// League holds the league-wide averages ratings are measured against
type League struct {
	PointsPerGame float64
	YardsPerGame  float64
}

// StatsTable indexes team stats for one through-week
type StatsTable struct {
	ThroughWeek int
	Teams       map[string]*models.TeamStats
	League      League
}

// NewStatsTable indexes stats and computes league averages.
func NewStatsTable(throughWeek int, stats []models.TeamStats) *StatsTable {
	table := &StatsTable{ThroughWeek: throughWeek, Teams: make(map[string]*models.TeamStats, len(stats))}

	var points, yards float64
	for i := range stats {
		s := &stats[i]
		table.Teams[s.Team] = s
		points += s.PointsForPerGame
		yards += s.YardsPerGame
	}
	if n := float64(len(stats)); n > 0 {
		table.League = League{PointsPerGame: points / n, YardsPerGame: yards / n}
	}
	return table
}

// Engine turns games plus team stats into predictions
type Engine struct {
	version string
	ledger  Ledger
	now     func() time.Time
}

// NewEngine creates an engine for a model version. A nil ledger disables
// reuse of earlier predictions.
func NewEngine(version string, ledger Ledger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{version: version, ledger: ledger, now: now}
}

// Version returns the model version the engine stamps on predictions.
func (e *Engine) Version() string {
	return e.version
}

// PredictGame returns the prediction for game, reusing the recorded one for
// this model version when present. reused reports which path was taken.
func (e *Engine) PredictGame(ctx context.Context, game *models.Game, table *StatsTable) (pred *models.Prediction, reused bool, err error) {
	gameID := game.ID()
	if e.ledger != nil {
		existing, err := e.ledger.Lookup(ctx, gameID, e.version)
		if err != nil {
			return nil, false, fmt.Errorf("failed to look up prediction %s: %w", gameID, err)
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	pred, err = e.Predict(game, table.Teams[game.HomeTeam], table.Teams[game.AwayTeam], table.League)
	if err != nil {
		return nil, false, err
	}

	if e.ledger != nil {
		stored, err := e.ledger.Record(ctx, pred)
		if err != nil {
			return nil, false, fmt.Errorf("failed to record prediction %s: %w", gameID, err)
		}
		return stored, false, nil
	}
	return pred, false, nil
}

// Predict computes a prediction. Missing stats for either side yield
// ErrPredictionSkipped and no partial prediction.
func (e *Engine) Predict(game *models.Game, home, away *models.TeamStats, league League) (*models.Prediction, error) {
	gameID := game.ID()
	if home == nil || away == nil {
		missing := game.HomeTeam
		if home != nil {
			missing = game.AwayTeam
		}
		return nil, apperrors.ForGame(apperrors.ErrPredictionSkipped, gameID,
			fmt.Errorf("no team stats for %s", missing))
	}

	mu := rating(home, league, game.Week) - rating(away, league, game.Week) +
		HomeFieldAdvantage + restAdjustment(game.HomeRest, game.AwayRest)

	p := HomeWinProbability(mu)
	winner := pickWinner(game, p)

	confidence := Confidence(p, min(home.GamesPlayed, away.GamesPlayed))

	pred := &models.Prediction{
		GameID:             gameID,
		PredictedWinner:    winner,
		PredictedMargin:    roundHalf(math.Abs(mu)),
		PredictedTotal:     roundHalf(predictTotal(home, away, league)),
		Confidence:         confidence,
		ModelVersion:       e.version,
		GeneratedAt:        e.now().UTC().Truncate(time.Second),
		HomeWinProbability: round4(p),
	}

	if err := pred.Validate(); err != nil {
		return nil, fmt.Errorf("prediction %s failed validation: %w", gameID, err)
	}

	log.Debug().
		Str("game_id", gameID).
		Str("winner", winner).
		Float64("mu", mu).
		Float64("confidence", confidence).
		Msg("Prediction computed")

	return pred, nil
}

// HomeWinProbability maps an expected home margin to a win probability.
func HomeWinProbability(mu float64) float64 {
	return 1 / (1 + math.Exp(-mu/logisticScale))
}

// pickWinner favors the home side unless the away side is strictly more
// likely to win.
func pickWinner(game *models.Game, homeWinProbability float64) string {
	if homeWinProbability < 0.5 {
		return game.AwayTeam
	}
	return game.HomeTeam
}

// Confidence is max(p, 1-p) clipped to [0.5, 0.95], capped at 0.60 when
// either side has fewer than two completed games.
func Confidence(p float64, fewestGames int) float64 {
	c := clamp(math.Max(p, 1-p), models.MinConfidence, models.MaxConfidence)
	if fewestGames < minGamesForFullConfidence {
		c = math.Min(c, fewGamesConfidenceCap)
	}
	return round4(c)
}

// rating is a team's expected margin against a league-average opponent on a
// neutral field.
func rating(s *models.TeamStats, league League, week int) float64 {
	offense := s.PointsForPerGame - league.PointsPerGame
	defense := league.PointsPerGame - s.PointsAgainstPerGame

	r := 0.5*(offense+defense) +
		turnoverWeight*s.TurnoverDiffPerGame +
		epaWeight*s.EPAPerGame

	if !s.HadByeBefore(week) {
		r += formWeight * recentForm(s.RecentMargins)
	}
	return r
}

// recentForm is an exponentially weighted mean of recent margins, most
// recent first.
func recentForm(margins []int) float64 {
	var sum, weights float64
	w := 1.0
	for i := 0; i < len(margins) && i < models.RecentFormGames; i++ {
		sum += w * float64(margins[i])
		weights += w
		w *= formDecay
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

func restAdjustment(homeRest, awayRest int) float64 {
	if homeRest <= 0 || awayRest <= 0 {
		return 0
	}
	return clamp(restPointsPerDay*float64(homeRest-awayRest), -restMaxPoints, restMaxPoints)
}

// predictTotal blends each side's scoring against the other's defense,
// scaled by how many yards both teams generate and allow.
func predictTotal(home, away *models.TeamStats, league League) float64 {
	homePoints := (home.PointsForPerGame + away.PointsAgainstPerGame) / 2
	awayPoints := (away.PointsForPerGame + home.PointsAgainstPerGame) / 2

	pace := 1.0
	if league.YardsPerGame > 0 {
		yards := home.YardsPerGame + home.YardsAllowedPerGame + away.YardsPerGame + away.YardsAllowedPerGame
		if yards > 0 {
			pace = clamp(yards/(4*league.YardsPerGame), paceMin, paceMax)
		}
	}

	return math.Max(0, (homePoints+awayPoints)*(1+paceWeight*(pace-1)))
}

func roundHalf(v float64) float64 {
	return math.Round(v*2) / 2
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

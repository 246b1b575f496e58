// Package pipeline runs one pick pass: ingest, predict, project, publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/metrics"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/predict"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/projector"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/publisher"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Loader supplies a pass with games and team stats
type Loader interface {
	LoadSchedule(ctx context.Context, season int) ([]models.Game, error)
	LoadTeamStats(ctx context.Context, season, throughWeek int) ([]models.TeamStats, error)
}

// Archive keeps a relational copy of what a pass saw
type Archive interface {
	ArchiveGames(ctx context.Context, games []models.Game) error
	ArchiveStats(ctx context.Context, stats []models.TeamStats) error
}

// Deps are the components a Runner drives
type Deps struct {
	// NewLoader returns a fresh loader per pass so upstream data is read
	// once per pass and never reused across passes.
	NewLoader func() Loader
	Engine    *predict.Engine
	Projector *projector.Projector
	Publisher *publisher.Publisher
	Locker    store.Locker
	// Archive is optional.
	Archive Archive
	Now     func() time.Time
}

// Report summarizes one pass
type Report struct {
	PassID      string
	Season      int
	CurrentWeek int
	Games       int
	Predicted   int
	Reused      int
	Skipped     int
	Projection  *projector.Result
	Publish     *publisher.Report
	// Record is the season's graded record after publishing, nil when it
	// could not be read.
	Record   *publisher.Tally
	Duration time.Duration
}

// Runner executes passes for one season under the pipeline lock
type Runner struct {
	deps    Deps
	season  int
	lockTTL time.Duration
}

// NewRunner creates a runner.
func NewRunner(season int, lockTTL time.Duration, deps Deps) *Runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{deps: deps, season: season, lockTTL: lockTTL}
}

// RunPass runs one pass. It fails with ErrLockHeld when another pass holds
// the lock, and every call it makes is cancelled when the lease expires.
func (r *Runner) RunPass(ctx context.Context) (*Report, error) {
	start := r.deps.Now()
	report := &Report{PassID: uuid.NewString(), Season: r.season}
	logger := log.With().Str("pass_id", report.PassID).Int("season", r.season).Logger()

	expires, err := r.deps.Locker.Acquire(ctx, store.PipelineLock, report.PassID, r.lockTTL)
	if err != nil {
		status := "error"
		if errors.Is(err, apperrors.ErrLockHeld) {
			status = "lock_held"
		}
		metrics.RecordPass(status, 0)
		logger.Warn().Err(err).Msg("Pass not started")
		return report, err
	}
	defer r.release(report.PassID, logger)

	passCtx, cancel := context.WithDeadline(ctx, expires)
	defer cancel()

	logger.Info().
		Time("lock_expires", expires).
		Str("model_version", r.deps.Engine.Version()).
		Msg("Pass started")

	err = r.run(passCtx, report, logger)
	report.Duration = r.deps.Now().Sub(start)

	status := "success"
	if err != nil {
		status = "error"
		metrics.RecordError("pipeline", errorKind(err))
		event := logger.Error().Err(err).Dur("duration", report.Duration)
		if gameID, ok := apperrors.GameID(err); ok {
			event = event.Str("game_id", gameID)
		}
		event.Msg("Pass failed")
	} else {
		logger.Info().
			Int("current_week", report.CurrentWeek).
			Int("games", report.Games).
			Int("predicted", report.Predicted).
			Int("reused", report.Reused).
			Int("skipped", report.Skipped).
			Dur("duration", report.Duration).
			Msg("Pass complete")
	}
	metrics.RecordPass(status, report.Duration.Seconds())
	return report, err
}

func (r *Runner) release(owner string, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.deps.Locker.Release(ctx, store.PipelineLock, owner); err != nil {
		logger.Warn().Err(err).Msg("Failed to release pipeline lock, it will lapse at expiry")
	}
}

func (r *Runner) run(ctx context.Context, report *Report, logger zerolog.Logger) error {
	loader := r.deps.NewLoader()

	season, err := loader.LoadSchedule(ctx, r.season)
	if err != nil {
		return err
	}
	report.CurrentWeek = CurrentWeek(season)
	games := gamesThrough(season, report.CurrentWeek)
	report.Games = len(games)
	metrics.GamesIngested.Set(float64(len(games)))

	tables, preds, err := r.predict(ctx, loader, games, report, logger)
	if err != nil {
		return err
	}

	if r.deps.Archive != nil {
		r.archive(ctx, games, tables, logger)
	}

	projection, err := r.deps.Projector.Project(ctx, games, preds)
	if err != nil {
		return fmt.Errorf("failed to project picks: %w", err)
	}
	report.Projection = projection

	published, err := r.deps.Publisher.Sync(ctx, projection.Rows)
	report.Publish = published
	if err != nil {
		return fmt.Errorf("failed to publish picks: %w", err)
	}

	r.record(ctx, report, logger)
	return nil
}

// record reads the season's graded record. Failures are logged; the picks
// are already published.
func (r *Runner) record(ctx context.Context, report *Report, logger zerolog.Logger) {
	tally, err := r.deps.Publisher.SeasonRecord(ctx, r.season)
	if err != nil {
		metrics.RecordError("pipeline", "season_record")
		logger.Warn().Err(err).Msg("Failed to read season record")
		return
	}
	report.Record = tally

	metrics.RecordSeasonRecord("winner", map[string]int{"win": tally.Wins, "loss": tally.Losses, "push": tally.Pushes})
	metrics.RecordSeasonRecord("ats", map[string]int{"win": tally.ATS.Wins, "loss": tally.ATS.Losses, "push": tally.ATS.Pushes})
	metrics.RecordSeasonRecord("total", map[string]int{"over": tally.Totals.Overs, "under": tally.Totals.Unders, "push": tally.Totals.Pushes})
	metrics.SeasonWinRate.Set(tally.WinRate())

	logger.Info().
		Int("wins", tally.Wins).
		Int("losses", tally.Losses).
		Int("pushes", tally.Pushes).
		Float64("win_rate", tally.WinRate()).
		Msg("Season record")
}

// predict produces a prediction for every game that has not kicked off,
// using stats through the week before the game.
func (r *Runner) predict(ctx context.Context, loader Loader, games []models.Game, report *Report, logger zerolog.Logger) (map[int]*predict.StatsTable, map[string]*models.Prediction, error) {
	now := r.deps.Now()
	tables := make(map[int]*predict.StatsTable)
	preds := make(map[string]*models.Prediction)

	for i := range games {
		g := &games[i]
		if g.Started(now) {
			continue
		}

		throughWeek := g.Week - 1
		table, ok := tables[throughWeek]
		if !ok {
			var stats []models.TeamStats
			if throughWeek >= 1 {
				var err error
				stats, err = loader.LoadTeamStats(ctx, r.season, throughWeek)
				if err != nil {
					return nil, nil, err
				}
			}
			table = predict.NewStatsTable(throughWeek, stats)
			tables[throughWeek] = table
		}

		pred, reused, err := r.deps.Engine.PredictGame(ctx, g, table)
		switch {
		case errors.Is(err, apperrors.ErrPredictionSkipped):
			report.Skipped++
			metrics.RecordPrediction("skipped")
			logger.Warn().Str("game_id", g.ID()).Err(err).Msg("Prediction skipped")
			continue
		case err != nil:
			return nil, nil, err
		case reused:
			report.Reused++
			metrics.RecordPrediction("reused")
		default:
			report.Predicted++
			metrics.RecordPrediction("created")
		}
		preds[pred.GameID] = pred
	}
	return tables, preds, nil
}

// archive failures are logged and counted; the archive is not on the
// pick path.
func (r *Runner) archive(ctx context.Context, games []models.Game, tables map[int]*predict.StatsTable, logger zerolog.Logger) {
	if err := r.deps.Archive.ArchiveGames(ctx, games); err != nil {
		metrics.RecordError("archive", "games")
		logger.Error().Err(err).Msg("Failed to archive games")
	}
	for week, table := range tables {
		if len(table.Teams) == 0 {
			continue
		}
		stats := make([]models.TeamStats, 0, len(table.Teams))
		for _, s := range table.Teams {
			stats = append(stats, *s)
		}
		if err := r.deps.Archive.ArchiveStats(ctx, stats); err != nil {
			metrics.RecordError("archive", "stats")
			logger.Error().Err(err).Int("through_week", week).Msg("Failed to archive team stats")
		}
	}
}

// CurrentWeek is the earliest week that still has a game without a final
// score, or the last week once every game is final.
func CurrentWeek(games []models.Game) int {
	current, last := 0, 0
	for i := range games {
		g := &games[i]
		if g.Week > last {
			last = g.Week
		}
		if !g.Completed() && (current == 0 || g.Week < current) {
			current = g.Week
		}
	}
	if current == 0 {
		return last
	}
	return current
}

func gamesThrough(games []models.Game, week int) []models.Game {
	out := make([]models.Game, 0, len(games))
	for _, g := range games {
		if g.Week <= week {
			out = append(out, g)
		}
	}
	return out
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, apperrors.ErrUpstreamSchemaDrift):
		return "upstream_schema_drift"
	case errors.Is(err, apperrors.ErrInvalidGameIdentity):
		return "invalid_game_identity"
	case errors.Is(err, apperrors.ErrSurfaceSchemaMismatch):
		return "surface_schema_mismatch"
	case errors.Is(err, apperrors.ErrSurfaceIO):
		return "surface_io"
	case errors.Is(err, apperrors.ErrStoreIO):
		return "store_io"
	case errors.Is(err, context.DeadlineExceeded):
		return "lock_expired"
	default:
		return "unexpected"
	}
}

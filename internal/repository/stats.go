package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// StatsRepository archives the team stat snapshots each prediction was made from
type StatsRepository struct {
	db *Database
}

const upsertSnapshotQuery = `
	INSERT INTO team_stat_snapshots (
		team, season, through_week, games_played,
		points_for_per_game, points_against_per_game,
		yards_per_game, yards_allowed_per_game,
		turnover_diff_per_game, epa_per_game,
		recent_margins, last_played_week
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (team, season, through_week) DO UPDATE SET
		games_played = EXCLUDED.games_played,
		points_for_per_game = EXCLUDED.points_for_per_game,
		points_against_per_game = EXCLUDED.points_against_per_game,
		yards_per_game = EXCLUDED.yards_per_game,
		yards_allowed_per_game = EXCLUDED.yards_allowed_per_game,
		turnover_diff_per_game = EXCLUDED.turnover_diff_per_game,
		epa_per_game = EXCLUDED.epa_per_game,
		recent_margins = EXCLUDED.recent_margins,
		last_played_week = EXCLUDED.last_played_week,
		updated_at = NOW()
`

// UpsertSnapshot stores one through-week's stats for every team in one round trip
func (r *StatsRepository) UpsertSnapshot(ctx context.Context, stats []models.TeamStats) error {
	if len(stats) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range stats {
		s := &stats[i]
		margins := s.RecentMargins
		if margins == nil {
			margins = []int{}
		}
		batch.Queue(upsertSnapshotQuery,
			s.Team, s.Season, s.ThroughWeek, s.GamesPlayed,
			s.PointsForPerGame, s.PointsAgainstPerGame,
			s.YardsPerGame, s.YardsAllowedPerGame,
			s.TurnoverDiffPerGame, s.EPAPerGame,
			margins, s.LastPlayedWeek,
		)
	}

	start := time.Now()
	err := r.db.Pool.SendBatch(ctx, batch).Close()
	observe("upsert_batch", "team_stat_snapshots", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert team stat snapshot: %w", err)
	}

	log.Debug().
		Int("teams", len(stats)).
		Int("season", stats[0].Season).
		Int("through_week", stats[0].ThroughWeek).
		Msg("Team stat snapshot archived")
	return nil
}

// GetSnapshot retrieves every team's stats for a season through a week
func (r *StatsRepository) GetSnapshot(ctx context.Context, season, throughWeek int) ([]models.TeamStats, error) {
	query := `
		SELECT team, season, through_week, games_played,
		       points_for_per_game, points_against_per_game,
		       yards_per_game, yards_allowed_per_game,
		       turnover_diff_per_game, epa_per_game,
		       recent_margins, last_played_week
		FROM team_stat_snapshots
		WHERE season = $1 AND through_week = $2
		ORDER BY team
	`

	start := time.Now()
	rows, err := r.db.Pool.Query(ctx, query, season, throughWeek)
	if err != nil {
		observe("get_snapshot", "team_stat_snapshots", start, err)
		return nil, fmt.Errorf("failed to get team stat snapshot: %w", err)
	}
	defer rows.Close()

	var stats []models.TeamStats
	for rows.Next() {
		var s models.TeamStats
		err := rows.Scan(
			&s.Team, &s.Season, &s.ThroughWeek, &s.GamesPlayed,
			&s.PointsForPerGame, &s.PointsAgainstPerGame,
			&s.YardsPerGame, &s.YardsAllowedPerGame,
			&s.TurnoverDiffPerGame, &s.EPAPerGame,
			&s.RecentMargins, &s.LastPlayedWeek,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team stats: %w", err)
		}
		stats = append(stats, s)
	}
	err = rows.Err()
	observe("get_snapshot", "team_stat_snapshots", start, err)
	if err != nil {
		return nil, fmt.Errorf("error iterating team stats: %w", err)
	}

	return stats, nil
}

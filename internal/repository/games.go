package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// GameRepository archives schedule rows and final scores
type GameRepository struct {
	db *Database
}

const upsertGameQuery = `
	INSERT INTO games (
		game_id, season, week, game_type, home_team, away_team,
		kickoff, venue, spread_line, total_line, home_score, away_score,
		home_rest, away_rest
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (game_id) DO UPDATE SET
		game_type = EXCLUDED.game_type,
		kickoff = EXCLUDED.kickoff,
		venue = EXCLUDED.venue,
		spread_line = EXCLUDED.spread_line,
		total_line = EXCLUDED.total_line,
		home_score = EXCLUDED.home_score,
		away_score = EXCLUDED.away_score,
		home_rest = EXCLUDED.home_rest,
		away_rest = EXCLUDED.away_rest,
		updated_at = NOW()
`

func gameArgs(g *models.Game) []any {
	return []any{
		g.ID(), g.Season, g.Week, g.GameType, g.HomeTeam, g.AwayTeam,
		g.Kickoff, g.Venue, g.SpreadLine, g.TotalLine, g.HomeScore, g.AwayScore,
		g.HomeRest, g.AwayRest,
	}
}

// Upsert inserts or updates a game
func (r *GameRepository) Upsert(ctx context.Context, game *models.Game) error {
	start := time.Now()
	_, err := r.db.Pool.Exec(ctx, upsertGameQuery, gameArgs(game)...)
	observe("upsert", "games", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert game %s: %w", game.ID(), err)
	}
	return nil
}

// UpsertBatch upserts games in one round trip
func (r *GameRepository) UpsertBatch(ctx context.Context, games []models.Game) error {
	if len(games) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range games {
		batch.Queue(upsertGameQuery, gameArgs(&games[i])...)
	}

	start := time.Now()
	err := r.db.Pool.SendBatch(ctx, batch).Close()
	observe("upsert_batch", "games", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert %d games: %w", len(games), err)
	}

	log.Debug().Int("count", len(games)).Msg("Games archived")
	return nil
}

// GetByID retrieves a game by its game id, or nil when absent
func (r *GameRepository) GetByID(ctx context.Context, gameID string) (*models.Game, error) {
	query := `
		SELECT season, week, game_type, home_team, away_team, kickoff, venue,
		       spread_line, total_line, home_score, away_score, home_rest, away_rest
		FROM games
		WHERE game_id = $1
	`

	start := time.Now()
	game, err := scanGame(r.db.Pool.QueryRow(ctx, query, gameID))
	observe("get", "games", start, ignoreNoRows(err))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game %s: %w", gameID, err)
	}
	return game, nil
}

func scanGame(row pgx.Row) (*models.Game, error) {
	var g models.Game
	err := row.Scan(
		&g.Season, &g.Week, &g.GameType, &g.HomeTeam, &g.AwayTeam, &g.Kickoff, &g.Venue,
		&g.SpreadLine, &g.TotalLine, &g.HomeScore, &g.AwayScore, &g.HomeRest, &g.AwayRest,
	)
	if err != nil {
		return nil, err
	}
	g.Kickoff = g.Kickoff.UTC()
	return &g, nil
}

func ignoreNoRows(err error) error {
	if err == pgx.ErrNoRows {
		return nil
	}
	return err
}

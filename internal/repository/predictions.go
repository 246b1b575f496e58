package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// PredictionRepository is the durable prediction ledger. A prediction is
// written once per (game, model version) and never updated.
type PredictionRepository struct {
	db *Database
}

const selectPredictionQuery = `
	SELECT game_id, model_version, predicted_winner, predicted_margin, predicted_total,
	       confidence, home_win_probability, generated_at
	FROM predictions
	WHERE game_id = $1 AND model_version = $2
`

// Lookup returns the recorded prediction, or nil when there is none
func (r *PredictionRepository) Lookup(ctx context.Context, gameID, modelVersion string) (*models.Prediction, error) {
	start := time.Now()
	pred, err := scanPrediction(r.db.Pool.QueryRow(ctx, selectPredictionQuery, gameID, modelVersion))
	observe("lookup", "predictions", start, ignoreNoRows(err))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return pred, nil
}

// Record inserts pred unless its key exists and returns whichever is stored
func (r *PredictionRepository) Record(ctx context.Context, pred *models.Prediction) (*models.Prediction, error) {
	if pred == nil {
		return nil, fmt.Errorf("prediction cannot be nil")
	}
	if err := pred.Validate(); err != nil {
		return nil, fmt.Errorf("prediction validation failed: %w", err)
	}

	query := `
		INSERT INTO predictions (
			game_id, model_version, predicted_winner, predicted_margin, predicted_total,
			confidence, home_win_probability, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (game_id, model_version) DO NOTHING
	`

	start := time.Now()
	tag, err := r.db.Pool.Exec(ctx, query,
		pred.GameID, pred.ModelVersion, pred.PredictedWinner, pred.PredictedMargin, pred.PredictedTotal,
		pred.Confidence, pred.HomeWinProbability, pred.GeneratedAt,
	)
	observe("insert", "predictions", start, err)
	if err != nil {
		log.Error().Err(err).Str("game_id", pred.GameID).Msg("Failed to insert prediction")
		return nil, fmt.Errorf("failed to record prediction: %w", err)
	}

	if tag.RowsAffected() == 1 {
		log.Info().
			Str("game_id", pred.GameID).
			Str("model_version", pred.ModelVersion).
			Msg("Prediction recorded")
	}

	stored, err := r.Lookup(ctx, pred.GameID, pred.ModelVersion)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("prediction %s/%s missing after insert", pred.GameID, pred.ModelVersion)
	}
	return stored, nil
}

func scanPrediction(row pgx.Row) (*models.Prediction, error) {
	var p models.Prediction
	err := row.Scan(
		&p.GameID, &p.ModelVersion, &p.PredictedWinner, &p.PredictedMargin, &p.PredictedTotal,
		&p.Confidence, &p.HomeWinProbability, &p.GeneratedAt,
	)
	if err != nil {
		return nil, err
	}
	p.GeneratedAt = p.GeneratedAt.UTC()
	return &p, nil
}

package models

import (
	"fmt"
	"time"
)

// Prediction is the engine's output for one game under one model version.
// Immutable once recorded for a (GameID, ModelVersion) pair.
type Prediction struct {
	GameID          string    `json:"game_id"`
	PredictedWinner string    `json:"predicted_winner"`
	PredictedMargin float64   `json:"predicted_margin"`
	PredictedTotal  float64   `json:"predicted_total"`
	Confidence      float64   `json:"confidence"`
	ModelVersion    string    `json:"model_version"`
	GeneratedAt     time.Time `json:"generated_at"`

	HomeWinProbability float64 `json:"home_win_probability"`
}

// Confidence bounds for any emitted prediction
const (
	MinConfidence = 0.5
	MaxConfidence = 0.95
)

// Validate ensures prediction data is sane before it is recorded
func (p *Prediction) Validate() error {
	if p.GameID == "" {
		return fmt.Errorf("game_id is required")
	}
	if p.ModelVersion == "" {
		return fmt.Errorf("model_version is required")
	}
	if p.PredictedWinner == "" {
		return fmt.Errorf("predicted_winner is required")
	}
	if p.Confidence < MinConfidence || p.Confidence > MaxConfidence {
		return fmt.Errorf("confidence %.4f outside [%.2f, %.2f]", p.Confidence, MinConfidence, MaxConfidence)
	}
	if p.PredictedMargin < 0 {
		return fmt.Errorf("predicted_margin must be non-negative")
	}
	if p.PredictedTotal < 0 {
		return fmt.Errorf("predicted_total must be non-negative")
	}
	if p.GeneratedAt.IsZero() {
		return fmt.Errorf("generated_at is required")
	}
	return nil
}

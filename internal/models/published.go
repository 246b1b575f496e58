package models

import (
	"fmt"
	"time"
)

// PickStatus is the lifecycle state of a published pick
type PickStatus string

const (
	StatusPending PickStatus = "PENDING"
	StatusGraded  PickStatus = "GRADED"
)

// PublishedPick is the document-store record of a pick
type PublishedPick struct {
	ID       string    `bson:"_id" json:"id"`
	Season   int       `bson:"season" json:"season"`
	Week     int       `bson:"week" json:"week"`
	AwayTeam string    `bson:"away_team" json:"away_team"`
	HomeTeam string    `bson:"home_team" json:"home_team"`
	Kickoff  time.Time `bson:"kickoff" json:"kickoff"`

	SpreadLine *float64 `bson:"spread_line,omitempty" json:"spread_line,omitempty"`
	TotalLine  *float64 `bson:"total_line,omitempty" json:"total_line,omitempty"`

	PredictedWinner string    `bson:"predicted_winner" json:"predicted_winner"`
	PredictedMargin float64   `bson:"predicted_margin" json:"predicted_margin"`
	PredictedTotal  float64   `bson:"predicted_total" json:"predicted_total"`
	Confidence      float64   `bson:"confidence" json:"confidence"`
	ModelVersion    string    `bson:"model_version" json:"model_version"`
	GeneratedAt     time.Time `bson:"generated_at" json:"generated_at"`

	HomeScore        *int       `bson:"home_score,omitempty" json:"home_score,omitempty"`
	AwayScore        *int       `bson:"away_score,omitempty" json:"away_score,omitempty"`
	ActualWinner     string     `bson:"actual_winner" json:"actual_winner"`
	PredictionResult Result     `bson:"prediction_result" json:"prediction_result"`
	ATSResult        Result     `bson:"ats_result" json:"ats_result"`
	TotalResult      Result     `bson:"total_result" json:"total_result"`
	GradedAt         *time.Time `bson:"graded_at,omitempty" json:"graded_at,omitempty"`

	Status    PickStatus `bson:"status" json:"status"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// PublishedFromRow builds the document for a surface row. The row must carry
// a prediction. UpdatedAt is left for the publisher to stamp.
func PublishedFromRow(row *PickRow) (*PublishedPick, error) {
	if !row.HasPrediction() {
		return nil, fmt.Errorf("row %s has no prediction", row.GameID)
	}

	pick := &PublishedPick{
		ID:               row.GameID,
		Season:           row.Season,
		Week:             row.Week,
		AwayTeam:         row.AwayTeam,
		HomeTeam:         row.HomeTeam,
		Kickoff:          row.Kickoff.UTC(),
		SpreadLine:       copyFloat(row.SpreadLine),
		TotalLine:        copyFloat(row.TotalLine),
		PredictedWinner:  row.PredictedWinner,
		PredictedMargin:  *row.PredictedMargin,
		PredictedTotal:   *row.PredictedTotal,
		Confidence:       *row.Confidence,
		ModelVersion:     row.ModelVersion,
		ActualWinner:     row.ActualWinner,
		PredictionResult: row.PredictionResult,
		ATSResult:        row.ATSResult,
		TotalResult:      row.TotalResult,
		Status:           StatusPending,
	}
	if row.GeneratedAt != nil {
		pick.GeneratedAt = row.GeneratedAt.UTC()
	}
	if row.HomeScore != nil {
		pick.HomeScore = IntPtr(*row.HomeScore)
	}
	if row.AwayScore != nil {
		pick.AwayScore = IntPtr(*row.AwayScore)
	}
	if row.GradedAt != nil {
		graded := row.GradedAt.UTC()
		pick.GradedAt = &graded
	}
	if row.Graded() {
		pick.Status = StatusGraded
	}
	return pick, nil
}

// SameContent compares two picks ignoring UpdatedAt.
func (p *PublishedPick) SameContent(o *PublishedPick) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.ID == o.ID &&
		p.Season == o.Season &&
		p.Week == o.Week &&
		p.AwayTeam == o.AwayTeam &&
		p.HomeTeam == o.HomeTeam &&
		p.Kickoff.Equal(o.Kickoff) &&
		equalFloat(p.SpreadLine, o.SpreadLine) &&
		equalFloat(p.TotalLine, o.TotalLine) &&
		p.PredictedWinner == o.PredictedWinner &&
		p.PredictedMargin == o.PredictedMargin &&
		p.PredictedTotal == o.PredictedTotal &&
		p.Confidence == o.Confidence &&
		p.ModelVersion == o.ModelVersion &&
		p.GeneratedAt.Equal(o.GeneratedAt) &&
		equalInt(p.HomeScore, o.HomeScore) &&
		equalInt(p.AwayScore, o.AwayScore) &&
		p.ActualWinner == o.ActualWinner &&
		p.PredictionResult == o.PredictionResult &&
		p.ATSResult == o.ATSResult &&
		p.TotalResult == o.TotalResult &&
		equalTime(p.GradedAt, o.GradedAt) &&
		p.Status == o.Status
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Result is a grading outcome
type Result string

const (
	ResultPending Result = "PENDING"
	ResultWin     Result = "WIN"
	ResultLoss    Result = "LOSS"
	ResultPush    Result = "PUSH"
	ResultOver    Result = "OVER"
	ResultUnder   Result = "UNDER"
)

// WinnerPush is the actual_winner value for a tied final.
const WinnerPush = "PUSH"

// Column names of a pick row on the working surface
const (
	ColGameID           = "game_id"
	ColSeason           = "season"
	ColWeek             = "week"
	ColAwayTeam         = "away_team"
	ColHomeTeam         = "home_team"
	ColKickoff          = "kickoff"
	ColVenue            = "venue"
	ColSpreadLine       = "spread_line"
	ColTotalLine        = "total_line"
	ColPredictedWinner  = "predicted_winner"
	ColPredictedMargin  = "predicted_margin"
	ColPredictedTotal   = "predicted_total"
	ColConfidence       = "confidence"
	ColModelVersion     = "model_version"
	ColGeneratedAt      = "generated_at"
	ColHomeScore        = "home_score"
	ColAwayScore        = "away_score"
	ColActualWinner     = "actual_winner"
	ColPredictionResult = "prediction_result"
	ColATSResult        = "ats_result"
	ColTotalResult      = "total_result"
	ColGradedAt         = "graded_at"
)

// PickRow is one game's row on the working surface
type PickRow struct {
	GameID   string
	Season   int
	Week     int
	AwayTeam string
	HomeTeam string

	Kickoff time.Time
	Venue   string

	SpreadLine *float64
	TotalLine  *float64

	PredictedWinner string
	PredictedMargin *float64
	PredictedTotal  *float64
	Confidence      *float64
	ModelVersion    string
	GeneratedAt     *time.Time

	HomeScore        *int
	AwayScore        *int
	ActualWinner     string
	PredictionResult Result
	ATSResult        Result
	TotalResult      Result
	GradedAt         *time.Time
}

// NewPickRow creates an ungraded row for a game, without a prediction.
func NewPickRow(g *Game) *PickRow {
	row := &PickRow{
		GameID:           g.ID(),
		Season:           g.Season,
		Week:             g.Week,
		AwayTeam:         g.AwayTeam,
		HomeTeam:         g.HomeTeam,
		ActualWinner:     string(ResultPending),
		PredictionResult: ResultPending,
		ATSResult:        ResultPending,
		TotalResult:      ResultPending,
	}
	row.ApplySchedule(g)
	row.ApplyLines(g)
	return row
}

// HasPrediction reports whether the prediction columns are filled.
func (r *PickRow) HasPrediction() bool {
	return r.PredictedWinner != "" && r.PredictedMargin != nil && r.PredictedTotal != nil && r.Confidence != nil
}

// Graded reports whether any grading column has left PENDING.
func (r *PickRow) Graded() bool {
	return r.PredictionResult != ResultPending ||
		r.ATSResult != ResultPending ||
		r.TotalResult != ResultPending ||
		r.ActualWinner != string(ResultPending)
}

// ApplySchedule copies kickoff and venue, which can move during the week.
func (r *PickRow) ApplySchedule(g *Game) {
	r.Kickoff = g.Kickoff.UTC().Truncate(time.Second)
	r.Venue = g.Venue
}

// ApplyLines copies the game's market lines onto the row.
func (r *PickRow) ApplyLines(g *Game) {
	r.SpreadLine = copyFloat(g.SpreadLine)
	r.TotalLine = copyFloat(g.TotalLine)
}

// ApplyPrediction fills the prediction columns.
func (r *PickRow) ApplyPrediction(p *Prediction) {
	generated := p.GeneratedAt.UTC().Truncate(time.Second)
	r.PredictedWinner = p.PredictedWinner
	r.PredictedMargin = FloatPtr(p.PredictedMargin)
	r.PredictedTotal = FloatPtr(p.PredictedTotal)
	r.Confidence = FloatPtr(p.Confidence)
	r.ModelVersion = p.ModelVersion
	r.GeneratedAt = &generated
}

// Grade fills the grading columns from a final score.
// It is a no-op (returns false) unless the game is final, the row carries a
// prediction and the row has not been graded yet.
func (r *PickRow) Grade(g *Game, now time.Time) bool {
	if !g.Completed() || !r.HasPrediction() || r.Graded() {
		return false
	}

	home, away := *g.HomeScore, *g.AwayScore
	graded := now.UTC().Truncate(time.Second)
	r.HomeScore = IntPtr(home)
	r.AwayScore = IntPtr(away)
	r.GradedAt = &graded

	actualTotal := float64(home + away)
	switch {
	case actualTotal > *r.PredictedTotal:
		r.TotalResult = ResultOver
	case actualTotal < *r.PredictedTotal:
		r.TotalResult = ResultUnder
	default:
		r.TotalResult = ResultPush
	}

	if home == away {
		r.ActualWinner = WinnerPush
		r.PredictionResult = ResultPush
		r.ATSResult = ResultPush
		return true
	}

	r.ActualWinner = g.Winner()
	if r.PredictedWinner == r.ActualWinner {
		r.PredictionResult = ResultWin
	} else {
		r.PredictionResult = ResultLoss
	}

	sideMargin := float64(home - away)
	if r.PredictedWinner == r.AwayTeam {
		sideMargin = -sideMargin
	}
	switch diff := sideMargin - *r.PredictedMargin; {
	case diff > 0:
		r.ATSResult = ResultWin
	case diff < 0:
		r.ATSResult = ResultLoss
	default:
		r.ATSResult = ResultPush
	}
	return true
}

// Cells renders the row as column name → cell text.
func (r *PickRow) Cells() map[string]string {
	return map[string]string{
		ColGameID:           r.GameID,
		ColSeason:           strconv.Itoa(r.Season),
		ColWeek:             strconv.Itoa(r.Week),
		ColAwayTeam:         r.AwayTeam,
		ColHomeTeam:         r.HomeTeam,
		ColKickoff:          formatTime(&r.Kickoff),
		ColVenue:            r.Venue,
		ColSpreadLine:       formatFloat(r.SpreadLine),
		ColTotalLine:        formatFloat(r.TotalLine),
		ColPredictedWinner:  r.PredictedWinner,
		ColPredictedMargin:  formatFloat(r.PredictedMargin),
		ColPredictedTotal:   formatFloat(r.PredictedTotal),
		ColConfidence:       formatFloat(r.Confidence),
		ColModelVersion:     r.ModelVersion,
		ColGeneratedAt:      formatTime(r.GeneratedAt),
		ColHomeScore:        formatInt(r.HomeScore),
		ColAwayScore:        formatInt(r.AwayScore),
		ColActualWinner:     r.ActualWinner,
		ColPredictionResult: string(r.PredictionResult),
		ColATSResult:        string(r.ATSResult),
		ColTotalResult:      string(r.TotalResult),
		ColGradedAt:         formatTime(r.GradedAt),
	}
}

// ParsePickRow reads a row back from column name → cell text.
// Missing or blank grading cells read as PENDING.
func ParsePickRow(cells map[string]string) (*PickRow, error) {
	get := func(col string) string { return strings.TrimSpace(cells[col]) }
	fail := func(col string, err error) error {
		return fmt.Errorf("row %s: column %s: %w", get(ColGameID), col, err)
	}

	row := &PickRow{
		GameID:           get(ColGameID),
		AwayTeam:         get(ColAwayTeam),
		HomeTeam:         get(ColHomeTeam),
		Venue:            get(ColVenue),
		PredictedWinner:  get(ColPredictedWinner),
		ModelVersion:     get(ColModelVersion),
		ActualWinner:     pendingIfBlank(get(ColActualWinner)),
		PredictionResult: Result(pendingIfBlank(get(ColPredictionResult))),
		ATSResult:        Result(pendingIfBlank(get(ColATSResult))),
		TotalResult:      Result(pendingIfBlank(get(ColTotalResult))),
	}
	if row.GameID == "" {
		return nil, fmt.Errorf("row has no %s", ColGameID)
	}

	var err error
	if row.Season, err = parseIntOrZero(get(ColSeason)); err != nil {
		return nil, fail(ColSeason, err)
	}
	if row.Week, err = parseIntOrZero(get(ColWeek)); err != nil {
		return nil, fail(ColWeek, err)
	}
	kickoff, err := parseTime(get(ColKickoff))
	if err != nil {
		return nil, fail(ColKickoff, err)
	}
	if kickoff != nil {
		row.Kickoff = *kickoff
	}

	floats := []struct {
		col string
		dst **float64
	}{
		{ColSpreadLine, &row.SpreadLine},
		{ColTotalLine, &row.TotalLine},
		{ColPredictedMargin, &row.PredictedMargin},
		{ColPredictedTotal, &row.PredictedTotal},
		{ColConfidence, &row.Confidence},
	}
	for _, f := range floats {
		if *f.dst, err = parseOptionalFloat(get(f.col)); err != nil {
			return nil, fail(f.col, err)
		}
	}

	if row.HomeScore, err = parseOptionalInt(get(ColHomeScore)); err != nil {
		return nil, fail(ColHomeScore, err)
	}
	if row.AwayScore, err = parseOptionalInt(get(ColAwayScore)); err != nil {
		return nil, fail(ColAwayScore, err)
	}
	if row.GeneratedAt, err = parseTime(get(ColGeneratedAt)); err != nil {
		return nil, fail(ColGeneratedAt, err)
	}
	if row.GradedAt, err = parseTime(get(ColGradedAt)); err != nil {
		return nil, fail(ColGradedAt, err)
	}

	return row, nil
}

func pendingIfBlank(s string) string {
	if s == "" {
		return string(ResultPending)
	}
	return s
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return FloatPtr(*v)
}

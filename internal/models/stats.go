package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
)

// RecentFormGames is how many of a team's latest games feed recent form.
const RecentFormGames = 4

// TeamStats aggregates one team's games through a given week
type TeamStats struct {
	Team        string `json:"team"`
	Season      int    `json:"season"`
	ThroughWeek int    `json:"through_week"`

	// Completed games this season, regardless of the aggregation window
	GamesPlayed int `json:"games_played"`

	// Per-game averages over the rolling window
	PointsForPerGame     float64 `json:"points_for_per_game"`
	PointsAgainstPerGame float64 `json:"points_against_per_game"`
	YardsPerGame         float64 `json:"yards_per_game"`
	YardsAllowedPerGame  float64 `json:"yards_allowed_per_game"`
	TurnoverDiffPerGame  float64 `json:"turnover_diff_per_game"`
	EPAPerGame           float64 `json:"epa_per_game"`

	// Point margins of the latest games, most recent first
	RecentMargins []int `json:"recent_margins"`

	LastPlayedWeek int `json:"last_played_week"`
}

// HadByeBefore reports whether the team did not play in the week before week.
func (s *TeamStats) HadByeBefore(week int) bool {
	return week > 1 && s.LastPlayedWeek < week-1
}

// TeamWeek is one team's box line for one game
type TeamWeek struct {
	Season   int
	Week     int
	Team     string
	Opponent string

	Yards     float64
	EPA       float64
	Giveaways int
}

// TeamWeekInput is one row of the weekly team (or player) stats feed
type TeamWeekInput struct {
	Season   string
	Week     string
	Team     string
	Opponent string

	PassingYards         string
	RushingYards         string
	PassingEPA           string
	RushingEPA           string
	PassingInterceptions string
	SackFumblesLost      string
	RushingFumblesLost   string
	ReceivingFumblesLost string
}

// ToTeamWeek converts a weekly stats row to a TeamWeek.
func (in TeamWeekInput) ToTeamWeek() (*TeamWeek, error) {
	ref := fmt.Sprintf("%s/%s/%s", in.Season, in.Week, in.Team)
	drift := func(field string, err error) error {
		return apperrors.ForGame(apperrors.ErrUpstreamSchemaDrift, ref, fmt.Errorf("field %s: %w", field, err))
	}

	season, err := parseInt(in.Season)
	if err != nil {
		return nil, drift("season", err)
	}
	week, err := parseInt(in.Week)
	if err != nil {
		return nil, drift("week", err)
	}
	team, ok := NormalizeTeam(in.Team)
	if !ok {
		return nil, apperrors.ForGame(apperrors.ErrInvalidGameIdentity, ref, fmt.Errorf("unknown team %q", in.Team))
	}
	opponent, ok := NormalizeTeam(in.Opponent)
	if !ok {
		return nil, apperrors.ForGame(apperrors.ErrInvalidGameIdentity, ref, fmt.Errorf("unknown opponent %q", in.Opponent))
	}

	tw := &TeamWeek{Season: season, Week: week, Team: team, Opponent: opponent}

	floats := []struct {
		name string
		raw  string
	}{
		{"passing_yards", in.PassingYards},
		{"rushing_yards", in.RushingYards},
		{"passing_epa", in.PassingEPA},
		{"rushing_epa", in.RushingEPA},
	}
	values := make([]float64, len(floats))
	for i, f := range floats {
		if values[i], err = parseFloatOrZero(f.raw); err != nil {
			return nil, drift(f.name, err)
		}
	}
	tw.Yards = values[0] + values[1]
	tw.EPA = values[2] + values[3]

	counts := []struct {
		name string
		raw  string
	}{
		{"passing_interceptions", in.PassingInterceptions},
		{"sack_fumbles_lost", in.SackFumblesLost},
		{"rushing_fumbles_lost", in.RushingFumblesLost},
		{"receiving_fumbles_lost", in.ReceivingFumblesLost},
	}
	for _, c := range counts {
		v, err := parseFloatOrZero(c.raw)
		if err != nil {
			return nil, drift(c.name, err)
		}
		tw.Giveaways += int(v)
	}

	return tw, nil
}

// Add accumulates another line for the same team and week.
func (tw *TeamWeek) Add(other *TeamWeek) {
	tw.Yards += other.Yards
	tw.EPA += other.EPA
	tw.Giveaways += other.Giveaways
}

func parseFloatOrZero(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NA") {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

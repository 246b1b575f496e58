package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
)

// Game represents one NFL game, identified by (season, week, home, away)
type Game struct {
	Season   int    `json:"season"`
	Week     int    `json:"week"`
	GameType string `json:"game_type"`
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`

	Kickoff time.Time `json:"kickoff"`
	Venue   string    `json:"venue"`

	// Market lines. SpreadLine is the expected home margin.
	SpreadLine *float64 `json:"spread_line,omitempty"`
	TotalLine  *float64 `json:"total_line,omitempty"`

	// Scores are present iff the game is final
	HomeScore *int `json:"home_score,omitempty"`
	AwayScore *int `json:"away_score,omitempty"`

	HomeRest int `json:"home_rest"`
	AwayRest int `json:"away_rest"`
}

// GameID renders the stable identity key for a game.
func GameID(season, week int, away, home string) string {
	return fmt.Sprintf("%d_%02d_%s_%s", season, week, away, home)
}

// ID returns the game's identity key, e.g. "2025_05_BUF_KC".
func (g *Game) ID() string {
	return GameID(g.Season, g.Week, g.AwayTeam, g.HomeTeam)
}

// Completed reports whether both final scores are known.
func (g *Game) Completed() bool {
	return g.HomeScore != nil && g.AwayScore != nil
}

// Started reports whether kickoff is at or before now.
func (g *Game) Started(now time.Time) bool {
	return g.Completed() || !now.Before(g.Kickoff)
}

// Validate checks the game's identity.
func (g *Game) Validate() error {
	var problem string
	switch {
	case g.Season <= 0:
		problem = "season must be positive"
	case g.Week <= 0:
		problem = "week must be positive"
	case !IsCanonicalTeam(g.HomeTeam):
		problem = fmt.Sprintf("home team %q is not canonical", g.HomeTeam)
	case !IsCanonicalTeam(g.AwayTeam):
		problem = fmt.Sprintf("away team %q is not canonical", g.AwayTeam)
	case g.HomeTeam == g.AwayTeam:
		problem = "home and away team are the same"
	case (g.HomeScore == nil) != (g.AwayScore == nil):
		problem = "only one side has a score"
	}
	if problem == "" {
		return nil
	}
	return apperrors.ForGame(apperrors.ErrInvalidGameIdentity, g.ID(), errors.New(problem))
}

// Winner returns the team with the higher score, "" if tied or not final.
func (g *Game) Winner() string {
	if !g.Completed() {
		return ""
	}
	switch {
	case *g.HomeScore > *g.AwayScore:
		return g.HomeTeam
	case *g.AwayScore > *g.HomeScore:
		return g.AwayTeam
	default:
		return ""
	}
}

// Eastern is the timezone upstream kickoff times are published in.
var Eastern = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// GameInput is one schedule row as published upstream
type GameInput struct {
	GameID     string
	Season     string
	GameType   string
	Week       string
	Gameday    string // YYYY-MM-DD
	Gametime   string // HH:MM, US Eastern
	AwayTeam   string
	HomeTeam   string
	AwayScore  string
	HomeScore  string
	SpreadLine string
	TotalLine  string
	AwayRest   string
	HomeRest   string
	Stadium    string
}

// ToGame converts an upstream schedule row to a Game.
// Unparseable fields are upstream drift; unknown teams are identity errors.
func (in GameInput) ToGame() (*Game, error) {
	drift := func(field string, err error) error {
		return apperrors.ForGame(apperrors.ErrUpstreamSchemaDrift, in.GameID,
			fmt.Errorf("field %s: %w", field, err))
	}

	season, err := parseInt(in.Season)
	if err != nil {
		return nil, drift("season", err)
	}
	week, err := parseInt(in.Week)
	if err != nil {
		return nil, drift("week", err)
	}

	home, ok := NormalizeTeam(in.HomeTeam)
	if !ok {
		return nil, apperrors.ForGame(apperrors.ErrInvalidGameIdentity, in.GameID,
			fmt.Errorf("unknown home team %q", in.HomeTeam))
	}
	away, ok := NormalizeTeam(in.AwayTeam)
	if !ok {
		return nil, apperrors.ForGame(apperrors.ErrInvalidGameIdentity, in.GameID,
			fmt.Errorf("unknown away team %q", in.AwayTeam))
	}

	kickoff, err := parseKickoff(in.Gameday, in.Gametime)
	if err != nil {
		return nil, drift("gameday", err)
	}

	game := &Game{
		Season:   season,
		Week:     week,
		GameType: strings.TrimSpace(in.GameType),
		HomeTeam: home,
		AwayTeam: away,
		Kickoff:  kickoff,
		Venue:    strings.TrimSpace(in.Stadium),
	}

	if game.SpreadLine, err = parseOptionalFloat(in.SpreadLine); err != nil {
		return nil, drift("spread_line", err)
	}
	if game.TotalLine, err = parseOptionalFloat(in.TotalLine); err != nil {
		return nil, drift("total_line", err)
	}
	if game.HomeScore, err = parseOptionalInt(in.HomeScore); err != nil {
		return nil, drift("home_score", err)
	}
	if game.AwayScore, err = parseOptionalInt(in.AwayScore); err != nil {
		return nil, drift("away_score", err)
	}
	if game.HomeRest, err = parseIntOrZero(in.HomeRest); err != nil {
		return nil, drift("home_rest", err)
	}
	if game.AwayRest, err = parseIntOrZero(in.AwayRest); err != nil {
		return nil, drift("away_rest", err)
	}

	if err := game.Validate(); err != nil {
		return nil, err
	}
	return game, nil
}

func parseKickoff(day, clock string) (time.Time, error) {
	day = strings.TrimSpace(day)
	clock = strings.TrimSpace(clock)
	if clock == "" {
		clock = "00:00"
	}
	return time.ParseInLocation("2006-01-02 15:04", day+" "+clock, Eastern)
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseIntOrZero(s string) (int, error) {
	if strings.TrimSpace(s) == "" || strings.EqualFold(strings.TrimSpace(s), "NA") {
		return 0, nil
	}
	return parseInt(s)
}

func parseOptionalInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NA") {
		return nil, nil
	}
	// Scores occasionally arrive as "24.0".
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	v := int(f)
	if float64(v) != f {
		return nil, fmt.Errorf("not an integer: %q", s)
	}
	return &v, nil
}

func parseOptionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NA") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }

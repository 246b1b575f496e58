// Package ingest turns upstream schedule and stat feeds into canonical
// Game and TeamStats records.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/client"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"

	"github.com/rs/zerolog/log"
)

// Source is the upstream the ingestor reads from
type Source interface {
	FetchSchedules(ctx context.Context, season int) (*client.Table, error)
	FetchTeamStats(ctx context.Context, season int) (*client.Table, error)
	FetchPlayerStats(ctx context.Context, season int) (*client.Table, error)
}

var scheduleColumns = []string{
	"game_id", "season", "game_type", "week", "gameday", "gametime",
	"away_team", "home_team", "away_score", "home_score",
	"spread_line", "total_line", "away_rest", "home_rest", "stadium",
}

var statColumns = []string{
	"season", "week", "opponent_team",
	"passing_yards", "rushing_yards", "passing_epa", "rushing_epa",
	"passing_interceptions", "sack_fumbles_lost", "rushing_fumbles_lost", "receiving_fumbles_lost",
}

// Ingestor loads games and team stats for one pass. Upstream payloads are
// fetched at most once per Ingestor.
type Ingestor struct {
	source Source
	window int

	mu    sync.Mutex
	memo  map[string]*client.Table
	games map[int][]models.Game
}

// NewIngestor creates an ingestor aggregating stats over the last window games.
func NewIngestor(source Source, window int) *Ingestor {
	if window < 1 {
		window = 1
	}
	return &Ingestor{
		source: source,
		window: window,
		memo:   make(map[string]*client.Table),
		games:  make(map[int][]models.Game),
	}
}

// LoadSchedule returns every game of the season, ordered by week then kickoff.
func (i *Ingestor) LoadSchedule(ctx context.Context, season int) ([]models.Game, error) {
	i.mu.Lock()
	cached, ok := i.games[season]
	i.mu.Unlock()
	if ok {
		return cached, nil
	}

	table, err := i.table(ctx, client.EndpointSchedules, season, i.source.FetchSchedules)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	if missing := table.Missing(scheduleColumns...); len(missing) > 0 {
		return nil, apperrors.Wrap(apperrors.ErrUpstreamSchemaDrift,
			fmt.Errorf("schedule feed is missing columns %s", strings.Join(missing, ", ")))
	}

	games := make([]models.Game, 0, len(table.Rows))
	seen := make(map[string]bool, len(table.Rows))
	for _, row := range table.Rows {
		game, err := scheduleInput(row).ToGame()
		if err != nil {
			return nil, fmt.Errorf("failed to load schedule: %w", err)
		}
		if seen[game.ID()] {
			return nil, apperrors.ForGame(apperrors.ErrInvalidGameIdentity, game.ID(),
				fmt.Errorf("game appears twice in the schedule"))
		}
		seen[game.ID()] = true
		games = append(games, *game)
	}

	sort.SliceStable(games, func(a, b int) bool {
		if games[a].Week != games[b].Week {
			return games[a].Week < games[b].Week
		}
		if !games[a].Kickoff.Equal(games[b].Kickoff) {
			return games[a].Kickoff.Before(games[b].Kickoff)
		}
		return games[a].ID() < games[b].ID()
	})

	log.Info().
		Int("season", season).
		Int("games", len(games)).
		Msg("Schedule loaded")

	i.mu.Lock()
	i.games[season] = games
	i.mu.Unlock()
	return games, nil
}

// LoadTeamStats returns per-team aggregates over completed games up to and
// including throughWeek. Teams without a completed game are omitted.
func (i *Ingestor) LoadTeamStats(ctx context.Context, season, throughWeek int) ([]models.TeamStats, error) {
	games, err := i.LoadSchedule(ctx, season)
	if err != nil {
		return nil, err
	}

	lines, err := i.teamWeeks(ctx, season, throughWeek, games)
	if err != nil {
		return nil, fmt.Errorf("failed to load team stats: %w", err)
	}

	played := make(map[string][]playedGame)
	for idx := range games {
		g := &games[idx]
		if !g.Completed() || g.Week > throughWeek {
			continue
		}
		home, away := *g.HomeScore, *g.AwayScore
		played[g.HomeTeam] = append(played[g.HomeTeam], playedGame{
			week: g.Week, opponent: g.AwayTeam, pointsFor: home, pointsAgainst: away,
		})
		played[g.AwayTeam] = append(played[g.AwayTeam], playedGame{
			week: g.Week, opponent: g.HomeTeam, pointsFor: away, pointsAgainst: home,
		})
	}

	stats := make([]models.TeamStats, 0, len(played))
	for team, history := range played {
		stats = append(stats, aggregate(team, season, throughWeek, history, lines, i.window))
	}
	sort.Slice(stats, func(a, b int) bool { return stats[a].Team < stats[b].Team })

	log.Info().
		Int("season", season).
		Int("through_week", throughWeek).
		Int("teams", len(stats)).
		Msg("Team stats loaded")

	return stats, nil
}

type playedGame struct {
	week          int
	opponent      string
	pointsFor     int
	pointsAgainst int
}

type weekKey struct {
	team string
	week int
}

// teamWeeks collects box lines for every completed team-week through
// throughWeek, falling back to summed player lines where the team feed has a gap.
func (i *Ingestor) teamWeeks(ctx context.Context, season, throughWeek int, games []models.Game) (map[weekKey]*models.TeamWeek, error) {
	table, err := i.table(ctx, client.EndpointTeamStats, season, i.source.FetchTeamStats)
	if err != nil {
		return nil, err
	}
	lines, err := collectLines(table, "team", throughWeek)
	if err != nil {
		return nil, err
	}

	var gaps []weekKey
	for idx := range games {
		g := &games[idx]
		if !g.Completed() || g.Week > throughWeek {
			continue
		}
		for _, team := range []string{g.HomeTeam, g.AwayTeam} {
			if _, ok := lines[weekKey{team, g.Week}]; !ok {
				gaps = append(gaps, weekKey{team, g.Week})
			}
		}
	}
	if len(gaps) == 0 {
		return lines, nil
	}

	log.Warn().Int("gaps", len(gaps)).Int("season", season).Msg("Team feed incomplete, aggregating player lines")

	players, err := i.table(ctx, client.EndpointPlayerStats, season, i.source.FetchPlayerStats)
	if err != nil {
		return nil, err
	}
	teamColumn := "team"
	if len(players.Missing("team")) > 0 {
		teamColumn = "recent_team"
	}
	fromPlayers, err := collectLines(players, teamColumn, throughWeek)
	if err != nil {
		return nil, err
	}
	for _, key := range gaps {
		if line, ok := fromPlayers[key]; ok {
			lines[key] = line
		}
	}
	return lines, nil
}

func collectLines(table *client.Table, teamColumn string, throughWeek int) (map[weekKey]*models.TeamWeek, error) {
	if missing := table.Missing(append([]string{teamColumn}, statColumns...)...); len(missing) > 0 {
		return nil, apperrors.Wrap(apperrors.ErrUpstreamSchemaDrift,
			fmt.Errorf("stats feed is missing columns %s", strings.Join(missing, ", ")))
	}

	lines := make(map[weekKey]*models.TeamWeek)
	for _, row := range table.Rows {
		tw, err := statInput(row, teamColumn).ToTeamWeek()
		if err != nil {
			return nil, err
		}
		if tw.Week > throughWeek {
			continue
		}
		key := weekKey{tw.Team, tw.Week}
		if existing, ok := lines[key]; ok {
			existing.Add(tw)
			continue
		}
		lines[key] = tw
	}
	return lines, nil
}

func aggregate(team string, season, throughWeek int, history []playedGame, lines map[weekKey]*models.TeamWeek, window int) models.TeamStats {
	sort.Slice(history, func(a, b int) bool { return history[a].week > history[b].week })

	stats := models.TeamStats{
		Team:           team,
		Season:         season,
		ThroughWeek:    throughWeek,
		GamesPlayed:    len(history),
		LastPlayedWeek: history[0].week,
	}

	recent := history
	if len(recent) > window {
		recent = recent[:window]
	}

	var pointsFor, pointsAgainst int
	var yards, yardsAllowed, epa, turnovers float64
	var boxGames int
	for _, g := range recent {
		pointsFor += g.pointsFor
		pointsAgainst += g.pointsAgainst

		own, okOwn := lines[weekKey{team, g.week}]
		opp, okOpp := lines[weekKey{g.opponent, g.week}]
		if !okOwn || !okOpp {
			continue
		}
		boxGames++
		yards += own.Yards
		yardsAllowed += opp.Yards
		epa += own.EPA
		turnovers += float64(opp.Giveaways - own.Giveaways)
	}

	n := float64(len(recent))
	stats.PointsForPerGame = float64(pointsFor) / n
	stats.PointsAgainstPerGame = float64(pointsAgainst) / n
	if boxGames > 0 {
		b := float64(boxGames)
		stats.YardsPerGame = yards / b
		stats.YardsAllowedPerGame = yardsAllowed / b
		stats.EPAPerGame = epa / b
		stats.TurnoverDiffPerGame = turnovers / b
	}

	for idx := 0; idx < len(history) && idx < models.RecentFormGames; idx++ {
		stats.RecentMargins = append(stats.RecentMargins, history[idx].pointsFor-history[idx].pointsAgainst)
	}
	return stats
}

// table fetches an upstream payload once per ingestor.
func (i *Ingestor) table(ctx context.Context, endpoint string, season int, fetch func(context.Context, int) (*client.Table, error)) (*client.Table, error) {
	key := fmt.Sprintf("%s:%d", endpoint, season)

	i.mu.Lock()
	cached, ok := i.memo[key]
	i.mu.Unlock()
	if ok {
		return cached, nil
	}

	table, err := fetch(ctx, season)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	i.memo[key] = table
	i.mu.Unlock()
	return table, nil
}

func scheduleInput(row map[string]string) models.GameInput {
	return models.GameInput{
		GameID:     row["game_id"],
		Season:     row["season"],
		GameType:   row["game_type"],
		Week:       row["week"],
		Gameday:    row["gameday"],
		Gametime:   row["gametime"],
		AwayTeam:   row["away_team"],
		HomeTeam:   row["home_team"],
		AwayScore:  row["away_score"],
		HomeScore:  row["home_score"],
		SpreadLine: row["spread_line"],
		TotalLine:  row["total_line"],
		AwayRest:   row["away_rest"],
		HomeRest:   row["home_rest"],
		Stadium:    row["stadium"],
	}
}

func statInput(row map[string]string, teamColumn string) models.TeamWeekInput {
	return models.TeamWeekInput{
		Season:               row["season"],
		Week:                 row["week"],
		Team:                 row[teamColumn],
		Opponent:             row["opponent_team"],
		PassingYards:         row["passing_yards"],
		RushingYards:         row["rushing_yards"],
		PassingEPA:           row["passing_epa"],
		RushingEPA:           row["rushing_epa"],
		PassingInterceptions: row["passing_interceptions"],
		SackFumblesLost:      row["sack_fumbles_lost"],
		RushingFumblesLost:   row["rushing_fumbles_lost"],
		ReceivingFumblesLost: row["receiving_fumbles_lost"],
	}
}

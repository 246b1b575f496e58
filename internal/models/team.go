package models

import (
	"strings"
)

// Team is one of the 32 franchises, identified by its canonical code.
type Team struct {
	Code     string
	Location string
	Nickname string
}

// FullName returns e.g. "Kansas City Chiefs".
func (t Team) FullName() string {
	return t.Location + " " + t.Nickname
}

var teams = []Team{
	{"ARI", "Arizona", "Cardinals"},
	{"ATL", "Atlanta", "Falcons"},
	{"BAL", "Baltimore", "Ravens"},
	{"BUF", "Buffalo", "Bills"},
	{"CAR", "Carolina", "Panthers"},
	{"CHI", "Chicago", "Bears"},
	{"CIN", "Cincinnati", "Bengals"},
	{"CLE", "Cleveland", "Browns"},
	{"DAL", "Dallas", "Cowboys"},
	{"DEN", "Denver", "Broncos"},
	{"DET", "Detroit", "Lions"},
	{"GB", "Green Bay", "Packers"},
	{"HOU", "Houston", "Texans"},
	{"IND", "Indianapolis", "Colts"},
	{"JAX", "Jacksonville", "Jaguars"},
	{"KC", "Kansas City", "Chiefs"},
	{"LAC", "Los Angeles", "Chargers"},
	{"LAR", "Los Angeles", "Rams"},
	{"LV", "Las Vegas", "Raiders"},
	{"MIA", "Miami", "Dolphins"},
	{"MIN", "Minnesota", "Vikings"},
	{"NE", "New England", "Patriots"},
	{"NO", "New Orleans", "Saints"},
	{"NYG", "New York", "Giants"},
	{"NYJ", "New York", "Jets"},
	{"PHI", "Philadelphia", "Eagles"},
	{"PIT", "Pittsburgh", "Steelers"},
	{"SEA", "Seattle", "Seahawks"},
	{"SF", "San Francisco", "49ers"},
	{"TB", "Tampa Bay", "Buccaneers"},
	{"TEN", "Tennessee", "Titans"},
	{"WAS", "Washington", "Commanders"},
}

// Legacy and alternate spellings seen in upstream feeds and hand-edited sheets.
var teamAliases = map[string]string{
	"ARZ": "ARI", "PHO": "ARI", "PHOENIX CARDINALS": "ARI", "ST LOUIS CARDINALS": "ARI",
	"BLT": "BAL",
	"CLV": "CLE",
	"HST": "HOU",
	"BALTIMORE COLTS": "IND",
	"JAC": "JAX",
	"GNB": "GB",
	"KAN": "KC",
	"SD": "LAC", "SDG": "LAC", "SAN DIEGO CHARGERS": "LAC",
	"LA": "LAR", "STL": "LAR", "SL": "LAR", "ST LOUIS RAMS": "LAR",
	"OAK": "LV", "LVR": "LV", "OAKLAND RAIDERS": "LV", "LOS ANGELES RAIDERS": "LV",
	"NWE": "NE",
	"NOR": "NO",
	"SFO": "SF",
	"TAM": "TB",
	"WSH": "WAS", "WASHINGTON REDSKINS": "WAS", "WASHINGTON FOOTBALL TEAM": "WAS",
	"REDSKINS": "WAS", "WASHINGTON": "WAS",
	"HOUSTON OILERS": "TEN", "TENNESSEE OILERS": "TEN", "HOU OILERS": "TEN", "TEN OILERS": "TEN",
	"BOSTON PATRIOTS": "NE",
}

var teamLookup = buildTeamLookup()

func buildTeamLookup() map[string]string {
	lookup := make(map[string]string, len(teams)*3+len(teamAliases))
	for _, t := range teams {
		lookup[t.Code] = t.Code
		lookup[normalizeKey(t.FullName())] = t.Code
		lookup[normalizeKey(t.Nickname)] = t.Code
	}
	for alias, code := range teamAliases {
		lookup[normalizeKey(alias)] = code
	}
	return lookup
}

func normalizeKey(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer(".", "", "'", "", "-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeTeam maps any known spelling of a team onto its canonical code.
func NormalizeTeam(name string) (string, bool) {
	code, ok := teamLookup[normalizeKey(name)]
	return code, ok
}

// IsCanonicalTeam reports whether code is one of the 32 canonical codes.
func IsCanonicalTeam(code string) bool {
	for _, t := range teams {
		if t.Code == code {
			return true
		}
	}
	return false
}

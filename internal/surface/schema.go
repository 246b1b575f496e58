// Package surface is the tabular working surface picks are projected onto.
package surface

import (
	"fmt"
	"strings"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"
)

// Group names a set of columns the projector treats alike
type Group string

const (
	GroupIdentity   Group = "identity"
	GroupSchedule   Group = "schedule"
	GroupLine       Group = "line"
	GroupPrediction Group = "prediction"
	GroupGrading    Group = "grading"
)

// Column is one declared surface column
type Column struct {
	Name  string
	Group Group
}

// Schema is the ordered, append-only column layout of the surface
type Schema struct {
	columns []Column
	index   map[string]int
}

// NewSchema declares a schema. Column names must be unique.
func NewSchema(columns ...Column) Schema {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c.Name]; dup {
			panic(fmt.Sprintf("surface: duplicate column %q", c.Name))
		}
		index[c.Name] = i
	}
	return Schema{columns: columns, index: index}
}

// DefaultSchema is the pick sheet layout. New columns go at the end.
var DefaultSchema = NewSchema(
	Column{models.ColGameID, GroupIdentity},
	Column{models.ColSeason, GroupIdentity},
	Column{models.ColWeek, GroupIdentity},
	Column{models.ColAwayTeam, GroupIdentity},
	Column{models.ColHomeTeam, GroupIdentity},
	Column{models.ColKickoff, GroupSchedule},
	Column{models.ColVenue, GroupSchedule},
	Column{models.ColSpreadLine, GroupLine},
	Column{models.ColTotalLine, GroupLine},
	Column{models.ColPredictedWinner, GroupPrediction},
	Column{models.ColPredictedMargin, GroupPrediction},
	Column{models.ColPredictedTotal, GroupPrediction},
	Column{models.ColConfidence, GroupPrediction},
	Column{models.ColModelVersion, GroupPrediction},
	Column{models.ColGeneratedAt, GroupPrediction},
	Column{models.ColHomeScore, GroupGrading},
	Column{models.ColAwayScore, GroupGrading},
	Column{models.ColActualWinner, GroupGrading},
	Column{models.ColPredictionResult, GroupGrading},
	Column{models.ColATSResult, GroupGrading},
	Column{models.ColTotalResult, GroupGrading},
	Column{models.ColGradedAt, GroupGrading},
)

// Len returns the number of columns.
func (s Schema) Len() int {
	return len(s.columns)
}

// Names returns the header row.
func (s Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// Missing returns the columns a checked header lacks, in order.
func (s Schema) Missing(header []string) []Column {
	n := len(trimTrailingBlanks(header))
	if n >= len(s.columns) {
		return nil
	}
	return append([]Column(nil), s.columns[n:]...)
}

// Index returns the position of a column, or -1.
func (s Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// HeaderState describes how a surface header relates to the schema
type HeaderState int

const (
	// HeaderMatch means the header equals the schema.
	HeaderMatch HeaderState = iota
	// HeaderEmpty means the surface has no header yet.
	HeaderEmpty
	// HeaderPrefix means the header is an older, shorter version of the schema.
	HeaderPrefix
)

// CheckHeader compares a surface header with the schema. Anything other than
// an exact match, an empty header or a strict prefix is a schema mismatch.
func (s Schema) CheckHeader(header []string) (HeaderState, error) {
	header = trimTrailingBlanks(header)
	if len(header) == 0 {
		return HeaderEmpty, nil
	}
	if len(header) > len(s.columns) {
		return 0, apperrors.Wrap(apperrors.ErrSurfaceSchemaMismatch,
			fmt.Errorf("header has %d columns, schema declares %d", len(header), len(s.columns)))
	}
	for i, name := range header {
		if strings.TrimSpace(name) != s.columns[i].Name {
			return 0, apperrors.Wrap(apperrors.ErrSurfaceSchemaMismatch,
				fmt.Errorf("column %d is %q, expected %q", i+1, name, s.columns[i].Name))
		}
	}
	if len(header) < len(s.columns) {
		return HeaderPrefix, nil
	}
	return HeaderMatch, nil
}

// Encode renders a row in column order.
func (s Schema) Encode(row *models.PickRow) []string {
	cells := row.Cells()
	record := make([]string, len(s.columns))
	for i, c := range s.columns {
		record[i] = cells[c.Name]
	}
	return record
}

// Decode reads a row written in column order. Short records are padded.
func (s Schema) Decode(record []string) (*models.PickRow, error) {
	cells := make(map[string]string, len(s.columns))
	for i, c := range s.columns {
		if i < len(record) {
			cells[c.Name] = record[i]
		}
	}
	return models.ParsePickRow(cells)
}

// Pad extends record with blanks to the schema width.
func (s Schema) Pad(record []string) []string {
	if len(record) >= len(s.columns) {
		return record[:len(s.columns)]
	}
	padded := make([]string, len(s.columns))
	copy(padded, record)
	return padded
}

func trimTrailingBlanks(record []string) []string {
	end := len(record)
	for end > 0 && strings.TrimSpace(record[end-1]) == "" {
		end--
	}
	return record[:end]
}

// IsBlank reports whether every cell is empty.
func IsBlank(record []string) bool {
	return len(trimTrailingBlanks(record)) == 0
}

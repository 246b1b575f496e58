// Package projector keeps the working surface in step with the schedule,
// predictions and final scores.
package projector

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/metrics"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/surface"

	"github.com/rs/zerolog/log"
)

// Result summarizes one projection
type Result struct {
	// Rows holds the row of every projected game, in game order.
	Rows          []*models.PickRow
	Appended      int
	Updated       int
	Graded        int
	HeaderWritten bool
	// AddedColumns lists columns the header gained this run.
	AddedColumns []string
}

// Projector upserts pick rows and grades finished games
type Projector struct {
	surface surface.Surface
	schema  surface.Schema
	now     func() time.Time
}

// New creates a projector over s.
func New(s surface.Surface, schema surface.Schema, now func() time.Time) *Projector {
	if now == nil {
		now = time.Now
	}
	return &Projector{surface: s, schema: schema, now: now}
}

// Project reads the surface once, merges games and predictions into it,
// grades completed games and writes back only the rows that changed. A
// header that is neither empty, current nor an older prefix of the schema
// aborts before any write.
func (p *Projector) Project(ctx context.Context, games []models.Game, preds map[string]*models.Prediction) (*Result, error) {
	header, records, err := p.surface.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	state, err := p.schema.CheckHeader(header)
	if err != nil {
		return nil, err
	}

	sheet, err := p.load(records)
	if err != nil {
		return nil, err
	}
	if state == surface.HeaderEmpty && sheet.existing > 0 {
		return nil, apperrors.Wrap(apperrors.ErrSurfaceSchemaMismatch,
			fmt.Errorf("surface has %d data rows but no header", sheet.existing))
	}

	result := &Result{Rows: make([]*models.PickRow, 0, len(games))}
	now := p.now()
	for i := range games {
		g := &games[i]
		row := sheet.upsert(g, preds[g.ID()])
		if row.Grade(g, now) {
			result.Graded++
			log.Info().
				Str("game_id", row.GameID).
				Str("winner", row.ActualWinner).
				Str("result", string(row.PredictionResult)).
				Msg("Pick graded")
		}
		result.Rows = append(result.Rows, row)
	}

	updates := sheet.changed()
	appends := sheet.newRecords()

	if state != surface.HeaderMatch {
		if err := p.surface.WriteHeader(ctx, p.schema.Names()); err != nil {
			return nil, err
		}
		result.HeaderWritten = true
		for _, col := range p.schema.Missing(header) {
			result.AddedColumns = append(result.AddedColumns, col.Name)
			log.Debug().
				Str("column", col.Name).
				Str("group", string(col.Group)).
				Msg("Surface column added")
		}
		log.Info().
			Int("columns", p.schema.Len()).
			Int("previous_columns", len(header)).
			Msg("Surface header written")
	}
	if len(updates) > 0 {
		if err := p.surface.UpdateRows(ctx, updates); err != nil {
			return nil, err
		}
	}
	if len(appends) > 0 {
		if err := p.surface.AppendRows(ctx, appends); err != nil {
			return nil, err
		}
	}

	result.Updated = len(updates)
	result.Appended = len(appends)
	metrics.RecordSurfaceWrites(result.Appended, result.Updated)
	metrics.RecordGraded(result.Graded)

	log.Info().
		Int("games", len(games)).
		Int("appended", result.Appended).
		Int("updated", result.Updated).
		Int("graded", result.Graded).
		Msg("Surface projected")

	return result, nil
}

// sheet is the in-memory view of the surface during one projection
type sheet struct {
	schema   surface.Schema
	original [][]string
	rows     []*models.PickRow
	added    []*models.PickRow
	byID     map[string]*models.PickRow
	existing int
}

func (p *Projector) load(records [][]string) (*sheet, error) {
	s := &sheet{
		schema:   p.schema,
		original: make([][]string, len(records)),
		rows:     make([]*models.PickRow, len(records)),
		byID:     make(map[string]*models.PickRow, len(records)),
	}
	for i, rec := range records {
		s.original[i] = p.schema.Pad(rec)
		if surface.IsBlank(rec) {
			continue
		}
		row, err := p.schema.Decode(rec)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrSurfaceSchemaMismatch,
				fmt.Errorf("data row %d: %w", i+1, err))
		}
		s.existing++
		if _, dup := s.byID[row.GameID]; dup {
			log.Warn().
				Str("game_id", row.GameID).
				Int("row", i+1).
				Msg("Duplicate game row on surface, leaving it untouched")
			continue
		}
		s.rows[i] = row
		s.byID[row.GameID] = row
	}
	return s, nil
}

// upsert returns the game's row, creating it if needed and merging in the
// latest schedule, lines and prediction.
func (s *sheet) upsert(g *models.Game, pred *models.Prediction) *models.PickRow {
	row, ok := s.byID[g.ID()]
	if !ok {
		row = models.NewPickRow(g)
		if pred != nil {
			row.ApplyPrediction(pred)
		}
		s.added = append(s.added, row)
		s.byID[row.GameID] = row
		return row
	}

	// Graded rows are final.
	if row.Graded() {
		return row
	}
	row.ApplySchedule(g)
	row.ApplyLines(g)
	if pred != nil && !(row.HasPrediction() && row.ModelVersion == pred.ModelVersion) {
		row.ApplyPrediction(pred)
	}
	return row
}

func (s *sheet) changed() []surface.RowUpdate {
	var updates []surface.RowUpdate
	for i, row := range s.rows {
		if row == nil {
			continue
		}
		rec := s.schema.Encode(row)
		if !slices.Equal(rec, s.original[i]) {
			updates = append(updates, surface.RowUpdate{Index: i, Values: rec})
		}
	}
	return updates
}

func (s *sheet) newRecords() [][]string {
	out := make([][]string, 0, len(s.added))
	for _, row := range s.added {
		out = append(out, s.schema.Encode(row))
	}
	return out
}

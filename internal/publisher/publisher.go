// Package publisher mirrors surface rows into the document store: pending
// picks into live_picks, graded picks into historical_picks.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/metrics"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/store"

	"github.com/rs/zerolog/log"
)

// Report counts what one Sync did
type Report struct {
	Published int
	Migrated  int
	Unchanged int
	// Skipped counts rows without a prediction.
	Skipped int
}

// Publisher writes picks to a PickStore
type Publisher struct {
	store store.PickStore
	now   func() time.Time
}

// New creates a publisher.
func New(s store.PickStore, now func() time.Time) *Publisher {
	if now == nil {
		now = time.Now
	}
	return &Publisher{store: s, now: now}
}

// Sync publishes every row that carries a prediction. Rows are handled
// independently; failures are joined and returned after the rest are done.
func (p *Publisher) Sync(ctx context.Context, rows []*models.PickRow) (*Report, error) {
	report := &Report{}
	var errs []error

	for _, row := range rows {
		if !row.HasPrediction() {
			report.Skipped++
			continue
		}

		var (
			wrote bool
			err   error
		)
		if row.Graded() {
			wrote, err = p.GradeAndMigrate(ctx, row)
			if wrote {
				report.Migrated++
			}
		} else {
			wrote, err = p.PublishPending(ctx, row)
			if wrote {
				report.Published++
			}
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !wrote {
			report.Unchanged++
		}
	}

	log.Info().
		Int("published", report.Published).
		Int("migrated", report.Migrated).
		Int("unchanged", report.Unchanged).
		Int("skipped", report.Skipped).
		Int("failed", len(errs)).
		Msg("Picks synced to document store")

	return report, errors.Join(errs...)
}

// PublishPending upserts an ungraded row into live_picks. It reports false
// without writing when the stored pick already has the same content.
func (p *Publisher) PublishPending(ctx context.Context, row *models.PickRow) (bool, error) {
	if row.Graded() {
		return false, fmt.Errorf("pick %s is graded, migrate it instead", row.GameID)
	}
	pick, err := models.PublishedFromRow(row)
	if err != nil {
		return false, err
	}

	existing, err := p.store.Get(ctx, store.CollectionLive, pick.ID)
	if err != nil {
		return false, err
	}
	if existing.SameContent(pick) {
		return false, nil
	}

	pick.UpdatedAt = p.stamp(existing)
	if err := p.store.Put(ctx, store.CollectionLive, pick); err != nil {
		return false, err
	}
	metrics.RecordPublished(store.CollectionLive)

	log.Debug().Str("game_id", pick.ID).Msg("Pick published")
	return true, nil
}

// GradeAndMigrate writes a graded row into historical_picks, then removes it
// from live_picks. When the historical copy is already current only the
// delete is retried, so a delete that failed on an earlier pass completes.
func (p *Publisher) GradeAndMigrate(ctx context.Context, row *models.PickRow) (bool, error) {
	if !row.Graded() {
		return false, fmt.Errorf("pick %s is not graded", row.GameID)
	}
	pick, err := models.PublishedFromRow(row)
	if err != nil {
		return false, err
	}

	historical, err := p.store.Get(ctx, store.CollectionHistorical, pick.ID)
	if err != nil {
		return false, err
	}
	live, err := p.store.Get(ctx, store.CollectionLive, pick.ID)
	if err != nil {
		return false, err
	}

	wrote := false
	if !historical.SameContent(pick) {
		prev := historical
		if prev == nil {
			prev = live
		}
		pick.UpdatedAt = p.stamp(prev)
		if err := p.store.Put(ctx, store.CollectionHistorical, pick); err != nil {
			return false, err
		}
		metrics.RecordPublished(store.CollectionHistorical)
		wrote = true
	}

	if live != nil {
		if err := p.store.Delete(ctx, store.CollectionLive, pick.ID); err != nil {
			log.Warn().
				Str("game_id", pick.ID).
				Err(err).
				Msg("Graded pick left in live_picks, will retry next pass")
			return wrote, err
		}
		wrote = true
	}

	if wrote {
		log.Info().
			Str("game_id", pick.ID).
			Str("result", string(pick.PredictionResult)).
			Msg("Pick migrated to history")
	}
	return wrote, nil
}

// Lookup returns a pick by game id. A pick present in both collections
// resolves to the historical copy.
func (p *Publisher) Lookup(ctx context.Context, gameID string) (*models.PublishedPick, error) {
	historical, err := p.store.Get(ctx, store.CollectionHistorical, gameID)
	if err != nil {
		return nil, err
	}
	if historical != nil {
		return historical, nil
	}
	return p.store.Get(ctx, store.CollectionLive, gameID)
}

// Tally is a season's graded record
type Tally struct {
	Season int
	Wins   int
	Losses int
	Pushes int
	ATS    Record
	Totals TotalsRecord
}

// Record counts ATS outcomes
type Record struct {
	Wins   int
	Losses int
	Pushes int
}

// TotalsRecord counts total outcomes against the predicted total
type TotalsRecord struct {
	Overs  int
	Unders int
	Pushes int
}

// WinRate is wins over decided picks, or 0 with none decided.
func (t *Tally) WinRate() float64 {
	decided := t.Wins + t.Losses
	if decided == 0 {
		return 0
	}
	return float64(t.Wins) / float64(decided)
}

// SeasonRecord tallies graded picks for a season from historical_picks.
func (p *Publisher) SeasonRecord(ctx context.Context, season int) (*Tally, error) {
	picks, err := p.store.Find(ctx, store.CollectionHistorical, store.Filter{Season: season, Status: models.StatusGraded})
	if err != nil {
		return nil, err
	}

	t := &Tally{Season: season}
	for _, pick := range picks {
		switch pick.PredictionResult {
		case models.ResultWin:
			t.Wins++
		case models.ResultLoss:
			t.Losses++
		case models.ResultPush:
			t.Pushes++
		}
		switch pick.ATSResult {
		case models.ResultWin:
			t.ATS.Wins++
		case models.ResultLoss:
			t.ATS.Losses++
		case models.ResultPush:
			t.ATS.Pushes++
		}
		switch pick.TotalResult {
		case models.ResultOver:
			t.Totals.Overs++
		case models.ResultUnder:
			t.Totals.Unders++
		case models.ResultPush:
			t.Totals.Pushes++
		}
	}
	return t, nil
}

// stamp returns an UpdatedAt strictly after prev's.
func (p *Publisher) stamp(prev *models.PublishedPick) time.Time {
	now := p.now().UTC().Truncate(time.Millisecond)
	if prev != nil && !now.After(prev.UpdatedAt) {
		return prev.UpdatedAt.Add(time.Millisecond)
	}
	return now
}

package predict

import (
	"context"
	"sync"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"
)

// Ledger records predictions so a (game, model version) pair is predicted once
type Ledger interface {
	// Lookup returns the recorded prediction or nil.
	Lookup(ctx context.Context, gameID, modelVersion string) (*models.Prediction, error)
	// Record stores pred unless one exists for its key, and returns the stored one.
	Record(ctx context.Context, pred *models.Prediction) (*models.Prediction, error)
}

type ledgerKey struct {
	gameID  string
	version string
}

// MemoryLedger keeps predictions for the lifetime of the process
type MemoryLedger struct {
	mu    sync.Mutex
	preds map[ledgerKey]models.Prediction
}

// NewMemoryLedger creates an empty in-process ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{preds: make(map[ledgerKey]models.Prediction)}
}

func (l *MemoryLedger) Lookup(ctx context.Context, gameID, modelVersion string) (*models.Prediction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pred, ok := l.preds[ledgerKey{gameID, modelVersion}]
	if !ok {
		return nil, nil
	}
	return &pred, nil
}

func (l *MemoryLedger) Record(ctx context.Context, pred *models.Prediction) (*models.Prediction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey{pred.GameID, pred.ModelVersion}
	if existing, ok := l.preds[key]; ok {
		return &existing, nil
	}
	l.preds[key] = *pred
	stored := *pred
	return &stored, nil
}

// Len returns how many predictions are held.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.preds)
}

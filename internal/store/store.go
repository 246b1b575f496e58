// Package store persists published picks and the pipeline's advisory lock.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"
)

// Collection names
const (
	CollectionLive       = "live_picks"
	CollectionHistorical = "historical_picks"
	CollectionLocks      = "pipeline_locks"
)

// PipelineLock is the name of the lock one pass holds.
const PipelineLock = "pick-pipeline"

// Filter narrows Find. Zero fields match anything.
type Filter struct {
	Season int
	Week   int
	Status models.PickStatus
}

func (f Filter) matches(p *models.PublishedPick) bool {
	return (f.Season == 0 || p.Season == f.Season) &&
		(f.Week == 0 || p.Week == f.Week) &&
		(f.Status == "" || p.Status == f.Status)
}

// PickStore holds picks in named collections, keyed by game id
type PickStore interface {
	// Get returns the pick or nil when absent.
	Get(ctx context.Context, collection, id string) (*models.PublishedPick, error)
	// Put inserts or replaces the pick with the same id.
	Put(ctx context.Context, collection string, pick *models.PublishedPick) error
	// Delete removes the pick. Deleting an absent pick is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Find returns matching picks ordered by week, kickoff and id.
	Find(ctx context.Context, collection string, filter Filter) ([]*models.PublishedPick, error)
}

// Locker grants a named lease to one owner at a time
type Locker interface {
	// Acquire takes the lease when it is free, expired or already held by
	// owner, and returns when it expires. A lease held by someone else
	// yields ErrLockHeld.
	Acquire(ctx context.Context, name, owner string, ttl time.Duration) (time.Time, error)
	// Release drops the lease if owner still holds it.
	Release(ctx context.Context, name, owner string) error
}

type lease struct {
	owner   string
	expires time.Time
}

// Memory is an in-process PickStore and Locker
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]models.PublishedPick
	locks       map[string]lease
	now         func() time.Time

	// Writes counts successful Put and Delete calls that changed state.
	Writes int
	// FailDelete, when set, is returned by Delete.
	FailDelete error
	// FailPut, when set, is returned by Put.
	FailPut error
}

// NewMemory creates an empty store. A nil clock uses time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		collections: make(map[string]map[string]models.PublishedPick),
		locks:       make(map[string]lease),
		now:         now,
	}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (*models.PublishedPick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pick, ok := m.collections[collection][id]
	if !ok {
		return nil, nil
	}
	return &pick, nil
}

func (m *Memory) Put(ctx context.Context, collection string, pick *models.PublishedPick) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPut != nil {
		return apperrors.Wrap(apperrors.ErrStoreIO, m.FailPut)
	}
	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]models.PublishedPick)
	}
	m.collections[collection][pick.ID] = *pick
	m.Writes++
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailDelete != nil {
		return apperrors.Wrap(apperrors.ErrStoreIO, m.FailDelete)
	}
	if _, ok := m.collections[collection][id]; ok {
		delete(m.collections[collection], id)
		m.Writes++
	}
	return nil
}

func (m *Memory) Find(ctx context.Context, collection string, filter Filter) ([]*models.PublishedPick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.PublishedPick
	for _, p := range m.collections[collection] {
		if filter.matches(&p) {
			pick := p
			out = append(out, &pick)
		}
	}
	sortPicks(out)
	return out, nil
}

func (m *Memory) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if held, ok := m.locks[name]; ok && held.owner != owner && now.Before(held.expires) {
		return time.Time{}, apperrors.Wrap(apperrors.ErrLockHeld,
			lockHeldError(name, held.owner, held.expires))
	}
	expires := now.Add(ttl)
	m.locks[name] = lease{owner: owner, expires: expires}
	return expires, nil
}

func (m *Memory) Release(ctx context.Context, name, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if held, ok := m.locks[name]; ok && held.owner == owner {
		delete(m.locks, name)
	}
	return nil
}

// Len returns the number of picks in a collection.
func (m *Memory) Len(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collections[collection])
}

func lockHeldError(name, owner string, expires time.Time) error {
	if owner == "" {
		return fmt.Errorf("lock %s is held by another pass", name)
	}
	return fmt.Errorf("lock %s held by %s until %s", name, owner, expires.UTC().Format(time.RFC3339))
}

func sortPicks(picks []*models.PublishedPick) {
	sort.Slice(picks, func(i, j int) bool {
		a, b := picks[i], picks[j]
		if a.Week != b.Week {
			return a.Week < b.Week
		}
		if !a.Kickoff.Equal(b.Kickoff) {
			return a.Kickoff.Before(b.Kickoff)
		}
		return a.ID < b.ID
	})
}

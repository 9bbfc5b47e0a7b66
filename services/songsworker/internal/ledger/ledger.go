// Package ledger answers whether an anime still needs a worker's attention
// and appends the outcome of each attempt.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/aoq-factory/internal/catalog"
)

// Store is the subset of catalog.WorkerStore the ledger needs.
type Store interface {
	catalog.LedgerStore
	GetAnime(ctx context.Context, malID int64) (catalog.Anime, error)
}

type Ledger struct {
	Store  Store
	Worker string
}

func New(store Store, worker string) *Ledger {
	return &Ledger{Store: store, Worker: worker}
}

// Eligible reports whether the anime exists, is NORMAL and has no SUCCESS or
// FAIL_INVALID entry for this worker. FAIL_TEMPORARY entries do not count.
func (l *Ledger) Eligible(ctx context.Context, animeID int64) (bool, error) {
	a, err := l.Store.GetAnime(ctx, animeID)
	if errors.Is(err, catalog.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load anime %d: %w", animeID, err)
	}
	if a.Status != catalog.AnimeStatusNormal {
		return false, nil
	}
	done, err := l.Store.HasTerminalResult(ctx, l.Worker, animeID)
	if err != nil {
		return false, fmt.Errorf("ledger lookup %d: %w", animeID, err)
	}
	return !done, nil
}

// Record appends an entry. animeID may be nil for entries not tied to an
// anime.
func (l *Ledger) Record(ctx context.Context, animeID *int64, status catalog.WorkerResultStatus) (catalog.WorkerResult, error) {
	r, err := l.Store.RecordResult(ctx, catalog.WorkerResult{
		WorkerName: l.Worker,
		AnimeID:    animeID,
		Status:     status,
	})
	if err != nil {
		return catalog.WorkerResult{}, fmt.Errorf("record %s for %s: %w", status, l.Worker, err)
	}
	return r, nil
}

// TemporaryFailures counts this worker's FAIL_TEMPORARY entries for animeID.
func (l *Ledger) TemporaryFailures(ctx context.Context, animeID int64) (int, error) {
	return l.Store.CountResults(ctx, l.Worker, animeID, catalog.ResultFailTemporary)
}

// Result builds the entry that will be written for animeID.
func (l *Ledger) Result(animeID int64, status catalog.WorkerResultStatus) catalog.WorkerResult {
	return catalog.WorkerResult{WorkerName: l.Worker, AnimeID: &animeID, Status: status}
}

package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/aoq-factory/internal/catalog"
	"github.com/example/aoq-factory/services/songsworker/internal/anidb"
	"github.com/example/aoq-factory/services/songsworker/internal/pagecache"
)

type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	// OutcomeTransient failures may succeed on a later attempt.
	OutcomeTransient
	// OutcomePermanent failures will not change by retrying.
	OutcomePermanent
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeTransient:
		return "transient"
	case OutcomePermanent:
		return "permanent"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of fetching and parsing one anime page.
type Outcome struct {
	Kind  OutcomeKind
	Songs []catalog.ScrapedSong
	Err   error
}

var errNoPage = errors.New("anidb returned no page")

// Classify maps a page fetch error onto an outcome kind. Cancellation is not
// an outcome and must be checked by the caller first.
func Classify(err error) OutcomeKind {
	switch {
	case err == nil:
		return OutcomeOK
	case anidb.IsTransient(err), errors.Is(err, pagecache.ErrBackend), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTransient
	default:
		return OutcomePermanent
	}
}

// fetchSongs loads and parses the page of animeID. The error is non-nil only
// when ctx ended, in which case no outcome must be recorded.
func (w *Worker) fetchSongs(ctx context.Context, animeID int64) (Outcome, error) {
	timer := fetchTimer()
	page, err := w.pages.GetOrFetch(ctx, animeID)
	timer()
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return Outcome{}, err
		}
		return Outcome{Kind: Classify(err), Err: err}, nil
	}
	if page == nil {
		return Outcome{Kind: OutcomePermanent, Err: errNoPage}, nil
	}
	songs, err := anidb.ParseSongs(page, animeID)
	if err != nil {
		return Outcome{Kind: OutcomePermanent, Err: err}, nil
	}
	return Outcome{Kind: OutcomeOK, Songs: songs}, nil
}

// failureStatus picks the ledger status for a failed outcome. Transient
// failures become permanent under the legacy policy or once the anime has
// used up its retries.
func (w *Worker) failureStatus(ctx context.Context, animeID int64, kind OutcomeKind) (catalog.WorkerResultStatus, error) {
	if kind != OutcomeTransient || w.cfg.LegacyFailurePolicy {
		return catalog.ResultFailInvalid, nil
	}
	if w.cfg.MaxTemporaryFailures <= 0 {
		return catalog.ResultFailTemporary, nil
	}
	n, err := w.ledger.TemporaryFailures(ctx, animeID)
	if err != nil {
		return "", fmt.Errorf("count temporary failures of %d: %w", animeID, err)
	}
	if n >= w.cfg.MaxTemporaryFailures {
		return catalog.ResultFailInvalid, nil
	}
	return catalog.ResultFailTemporary, nil
}

// Package worker runs the songs ingestion loop: select eligible animes, scrape
// their song lists, insert what is new and record the outcome.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/aoq-factory/internal/catalog"
	"github.com/example/aoq-factory/services/songsworker/internal/events"
	"github.com/example/aoq-factory/services/songsworker/internal/ledger"
	"github.com/example/aoq-factory/services/songsworker/internal/reconcile"
)

type Config struct {
	Name         string
	BatchSize    int
	PollInterval time.Duration
	// Concurrency bounds how many animes are processed at once. The page
	// source stays rate limited as a whole.
	Concurrency int
	// MaxTemporaryFailures caps FAIL_TEMPORARY entries per anime; the next
	// transient failure is recorded as FAIL_INVALID. Zero means unbounded.
	MaxTemporaryFailures int
	// LegacyFailurePolicy records every failure as FAIL_INVALID.
	LegacyFailurePolicy bool
}

// PageSource yields anime pages, nil when none exists.
type PageSource interface {
	GetOrFetch(ctx context.Context, id int64) ([]byte, error)
}

type Worker struct {
	cfg    Config
	store  catalog.WorkerStore
	ledger *ledger.Ledger
	pages  PageSource
	events events.Publisher
	log    *zap.Logger
	now    func() time.Time

	wake chan struct{}

	mu   sync.Mutex
	last *CycleReport
}

type Option func(*Worker)

func WithLogger(log *zap.Logger) Option {
	return func(w *Worker) { w.log = log }
}

func WithEvents(p events.Publisher) Option {
	return func(w *Worker) { w.events = p }
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

func New(cfg Config, store catalog.WorkerStore, pages PageSource, opts ...Option) *Worker {
	if cfg.Name == "" {
		cfg.Name = "songs_worker"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	InitMetrics()
	w := &Worker{
		cfg:    cfg,
		store:  store,
		ledger: ledger.New(store, cfg.Name),
		pages:  pages,
		events: events.Nop{},
		log:    zap.NewNop(),
		now:    time.Now,
		wake:   make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(w)
	}
	w.log = w.log.With(zap.String("worker", cfg.Name))
	return w
}

// Action says what happened to one anime during a cycle.
type Action string

const (
	ActionRecorded Action = "recorded"
	ActionSkipped  Action = "skipped"
	ActionCanceled Action = "canceled"
)

type AnimeReport struct {
	AnimeID  int64                      `json:"anime_id"`
	Action   Action                     `json:"action"`
	Status   catalog.WorkerResultStatus `json:"status,omitempty"`
	Inserted []string                   `json:"inserted,omitempty"`
	Existing []string                   `json:"existing,omitempty"`
	Reason   string                     `json:"reason,omitempty"`
}

type CycleReport struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Selected   int           `json:"selected"`
	Animes     []AnimeReport `json:"animes"`
	Error      string        `json:"error,omitempty"`
}

// Count returns how many animes ended with status.
func (r CycleReport) Count(status catalog.WorkerResultStatus) int {
	n := 0
	for _, a := range r.Animes {
		if a.Action == ActionRecorded && a.Status == status {
			n++
		}
	}
	return n
}

// LastReport returns the most recent finished cycle, if any.
func (w *Worker) LastReport() (CycleReport, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last == nil {
		return CycleReport{}, false
	}
	return *w.last, true
}

// Trigger cuts the current sleep short. It never blocks.
func (w *Worker) Trigger() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run repeats cycles until ctx is done, sleeping PollInterval between them.
// It returns nil on cancellation and an error only when the ledger can no
// longer be written.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("songs worker started",
		zap.Int("batch_size", w.cfg.BatchSize),
		zap.Duration("poll_interval", w.cfg.PollInterval),
		zap.Int("concurrency", w.cfg.Concurrency))
	for {
		if _, err := w.RunOnce(ctx); err != nil {
			return err
		}
		if ctx.Err() != nil {
			w.log.Info("songs worker stopped")
			return nil
		}

		timer := time.NewTimer(w.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info("songs worker stopped")
			return nil
		case <-w.wake:
			timer.Stop()
			w.log.Info("cycle triggered")
		case <-timer.C:
		}
	}
}

// RunOnce performs one select-and-process cycle.
func (w *Worker) RunOnce(ctx context.Context) (CycleReport, error) {
	report := CycleReport{StartedAt: w.now(), Animes: []AnimeReport{}}
	defer func() {
		report.FinishedAt = w.now()
		w.mu.Lock()
		last := report
		w.last = &last
		w.mu.Unlock()
	}()

	animes, err := w.store.ListEligibleAnimes(ctx, w.cfg.Name, w.cfg.BatchSize)
	if err != nil {
		if ctx.Err() != nil {
			return report, nil
		}
		// the database may come back before the next cycle
		w.log.Warn("select eligible animes", zap.Error(err))
		report.Error = err.Error()
		cyclesTotal.WithLabelValues("error").Inc()
		return report, nil
	}
	report.Selected = len(animes)
	titles := make([]string, 0, len(animes))
	for _, a := range animes {
		titles = append(titles, a.TitleRo)
	}
	w.log.Info("found unprocessed animes", zap.Int("count", len(animes)), zap.Strings("titles", titles))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(w.cfg.Concurrency)
	stop := make(chan struct{})
	var stopOnce sync.Once

loop:
	for _, a := range animes {
		select {
		case <-ctx.Done():
			break loop
		case <-stop:
			break loop
		default:
		}
		g.Go(func() error {
			// g.Go may have blocked on the limit while another anime failed
			select {
			case <-stop:
				return nil
			default:
			}
			ar, err := w.processAnime(ctx, a)
			mu.Lock()
			report.Animes = append(report.Animes, ar)
			mu.Unlock()
			if err != nil {
				stopOnce.Do(func() { close(stop) })
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		report.Error = err.Error()
		cyclesTotal.WithLabelValues("error").Inc()
		w.log.Error("cycle aborted", zap.Error(err))
		return report, err
	}
	cyclesTotal.WithLabelValues("ok").Inc()
	return report, nil
}

// processAnime handles one anime end to end. A returned error means the
// ledger could not be written and the worker must stop.
func (w *Worker) processAnime(ctx context.Context, a catalog.Anime) (AnimeReport, error) {
	id := a.MalID
	rep := AnimeReport{AnimeID: id}
	log := w.log.With(zap.Int64("mal_id", id), zap.String("title", a.TitleRo))
	log.Info("processing anime")

	ok, err := w.ledger.Eligible(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return canceled(rep), nil
		}
		log.Warn("eligibility check failed, skipping", zap.Error(err))
		return skipped(rep, err.Error()), nil
	}
	if !ok {
		log.Info("anime no longer needs processing")
		return skipped(rep, "not eligible"), nil
	}

	outcome, err := w.fetchSongs(ctx, id)
	if err != nil {
		log.Info("fetch interrupted", zap.Error(err))
		return canceled(rep), nil
	}

	// Persistence finishes even when a stop signal arrives mid-way.
	persistCtx := context.WithoutCancel(ctx)

	if outcome.Kind != OutcomeOK {
		status, err := w.failureStatus(persistCtx, id, outcome.Kind)
		if err != nil {
			log.Warn("failure policy lookup failed, skipping", zap.Error(err))
			return skipped(rep, err.Error()), nil
		}
		log.Warn("song list extraction failed",
			zap.Stringer("kind", outcome.Kind), zap.String("status", string(status)), zap.Error(outcome.Err))
		return w.record(persistCtx, log, rep, status)
	}

	existing, err := w.store.ListSongsByAnime(persistCtx, id)
	if err != nil {
		log.Warn("load existing songs failed, skipping", zap.Error(err))
		return skipped(rep, err.Error()), nil
	}
	plan := reconcile.Plan(id, outcome.Songs, existing)
	rep.Inserted = reconcile.Keys(plan.Insert)
	rep.Existing = make([]string, 0, len(plan.Skipped))
	for _, k := range plan.Skipped {
		rep.Existing = append(rep.Existing, k.String())
	}
	log.Info("adding songs", zap.Strings("added", rep.Inserted), zap.Strings("already_exist", rep.Existing))

	res, err := w.store.CommitIngestion(persistCtx, plan.Insert, w.ledger.Result(id, catalog.ResultSuccess))
	switch {
	case err == nil:
		rep.Action, rep.Status = ActionRecorded, res.Status
		resultsTotal.WithLabelValues(w.cfg.Name, string(res.Status)).Inc()
		songsInsertedTotal.WithLabelValues(w.cfg.Name).Add(float64(len(plan.Insert)))
		w.publish(persistCtx, log, id, res.Status, rep.Inserted)
		return rep, nil
	case errors.Is(err, catalog.ErrConflict):
		// a concurrent writer added one of the keys; try again next cycle
		log.Warn("song insert conflicted", zap.Error(err))
		rep.Inserted = nil
		return w.record(persistCtx, log, rep, catalog.ResultFailTemporary)
	case errors.Is(err, catalog.ErrParentNotFound):
		log.Warn("anime vanished before commit, skipping", zap.Error(err))
		return skipped(rep, "anime deleted"), nil
	default:
		return rep, fmt.Errorf("commit songs of anime %d: %w", id, err)
	}
}

// record appends a ledger entry that carries no song inserts.
func (w *Worker) record(ctx context.Context, log *zap.Logger, rep AnimeReport, status catalog.WorkerResultStatus) (AnimeReport, error) {
	id := rep.AnimeID
	if _, err := w.ledger.Record(ctx, &id, status); err != nil {
		if errors.Is(err, catalog.ErrParentNotFound) {
			log.Warn("anime vanished before ledger write, skipping", zap.Error(err))
			return skipped(rep, "anime deleted"), nil
		}
		return rep, err
	}
	rep.Action, rep.Status = ActionRecorded, status
	resultsTotal.WithLabelValues(w.cfg.Name, string(status)).Inc()
	w.publish(ctx, log, id, status, nil)
	return rep, nil
}

func (w *Worker) publish(ctx context.Context, log *zap.Logger, animeID int64, status catalog.WorkerResultStatus, inserted []string) {
	if inserted == nil {
		inserted = []string{}
	}
	err := w.events.Publish(ctx, events.Outcome{
		Worker:   w.cfg.Name,
		AnimeID:  &animeID,
		Status:   status,
		Inserted: inserted,
		At:       w.now().UTC(),
	})
	if err != nil {
		log.Warn("publish outcome failed", zap.Error(err))
	}
}

func skipped(rep AnimeReport, reason string) AnimeReport {
	rep.Action, rep.Reason = ActionSkipped, reason
	return rep
}

func canceled(rep AnimeReport) AnimeReport {
	rep.Action = ActionCanceled
	return rep
}

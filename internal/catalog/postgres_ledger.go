package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const resultColumns = `id, worker_name, anime_id, status, created_at`

func scanResult(row pgx.Row) (WorkerResult, error) {
	var r WorkerResult
	err := row.Scan(&r.ID, &r.WorkerName, &r.AnimeID, &r.Status, &r.CreatedAt)
	return r, err
}

func (s *PostgresStore) ListEligibleAnimes(ctx context.Context, worker string, limit int) ([]Anime, error) {
	const q = `
SELECT a.mal_id, a.title_ro, a.poster_url, a.poster_thumb_url, a.release_year, a.status, a.created_at, a.updated_at
FROM animes a
WHERE a.status = 'NORMAL'
  AND NOT EXISTS (
    SELECT 1 FROM worker_results wr
    WHERE wr.worker_name = $1
      AND wr.anime_id = a.mal_id
      AND wr.status <> 'FAIL_TEMPORARY'
  )
ORDER BY a.created_at DESC, a.mal_id DESC
LIMIT $2
`
	rows, err := s.db.Query(ctx, q, worker, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAnime)
}

func (s *PostgresStore) RecordResult(ctx context.Context, r WorkerResult) (WorkerResult, error) {
	return recordResult(ctx, s.db, r)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func recordResult(ctx context.Context, db queryRower, r WorkerResult) (WorkerResult, error) {
	if !r.Status.Valid() {
		return WorkerResult{}, &ValidationError{Field: "status", Value: r.Status, Reason: "unknown worker result status"}
	}
	q := `INSERT INTO worker_results (worker_name, anime_id, status)
	      VALUES ($1, $2, $3)
	      RETURNING ` + resultColumns
	out, err := scanResult(db.QueryRow(ctx, q, r.WorkerName, r.AnimeID, r.Status))
	if err != nil {
		return WorkerResult{}, mapPgError(err)
	}
	return out, nil
}

func (s *PostgresStore) HasTerminalResult(ctx context.Context, worker string, animeID int64) (bool, error) {
	const q = `SELECT EXISTS(
	             SELECT 1 FROM worker_results
	             WHERE worker_name = $1 AND anime_id = $2 AND status <> 'FAIL_TEMPORARY')`
	var exists bool
	if err := s.db.QueryRow(ctx, q, worker, animeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PostgresStore) CountResults(ctx context.Context, worker string, animeID int64, status WorkerResultStatus) (int, error) {
	const q = `SELECT count(*) FROM worker_results WHERE worker_name = $1 AND anime_id = $2 AND status = $3`
	var n int
	if err := s.db.QueryRow(ctx, q, worker, animeID, status).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, worker string, animeID int64) ([]WorkerResult, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+resultColumns+` FROM worker_results WHERE worker_name = $1 AND anime_id = $2 ORDER BY id`,
		worker, animeID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanResult)
}

// CommitIngestion inserts the new songs and the ledger row in one transaction.
// Integrity violations surface as ErrConflict or ErrParentNotFound and leave
// nothing written.
func (s *PostgresStore) CommitIngestion(ctx context.Context, songs []Song, result WorkerResult) (WorkerResult, error) {
	for _, song := range songs {
		if err := song.Validate(); err != nil {
			return WorkerResult{}, err
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return WorkerResult{}, fmt.Errorf("begin ingestion: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertSong = `INSERT INTO songs (anime_id, category, number, song_artist, song_name)
	                    VALUES ($1, $2, $3, $4, $5)`
	for _, song := range songs {
		if _, err := tx.Exec(ctx, insertSong, song.AnimeID, song.Category, song.Number, song.Artist, song.Title); err != nil {
			return WorkerResult{}, mapPgError(err)
		}
	}

	out, err := recordResult(ctx, tx, result)
	if err != nil {
		return WorkerResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return WorkerResult{}, mapPgError(err)
	}
	return out, nil
}

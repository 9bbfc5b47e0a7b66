package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and by pgxmock pools in tests.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore persists the catalog in Postgres.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a store backed by Postgres.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// notFound maps pgx.ErrNoRows onto ErrNotFound for the named entity.
func notFound(err error, entity string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return mapPgError(err)
}

func requireAffected(tag pgconn.CommandTag, entity string, id int64) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return nil
}

// collect scans every row with scan and closes rows.
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ---- animes ----

const animeColumns = `mal_id, title_ro, poster_url, poster_thumb_url, release_year, status, created_at, updated_at`

func scanAnime(row pgx.Row) (Anime, error) {
	var a Anime
	err := row.Scan(&a.MalID, &a.TitleRo, &a.PosterURL, &a.PosterThumbURL,
		&a.ReleaseYear, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (s *PostgresStore) CreateAnime(ctx context.Context, a Anime) (Anime, error) {
	if a.Status == "" {
		a.Status = AnimeStatusNormal
	}
	if err := a.Validate(); err != nil {
		return Anime{}, err
	}
	q := `INSERT INTO animes (mal_id, title_ro, poster_url, poster_thumb_url, release_year, status)
	      VALUES ($1, $2, $3, $4, $5, $6)
	      RETURNING ` + animeColumns
	out, err := scanAnime(s.db.QueryRow(ctx, q, a.MalID, a.TitleRo, a.PosterURL, a.PosterThumbURL, a.ReleaseYear, a.Status))
	if err != nil {
		return Anime{}, mapPgError(err)
	}
	return out, nil
}

func (s *PostgresStore) GetAnime(ctx context.Context, malID int64) (Anime, error) {
	q := `SELECT ` + animeColumns + ` FROM animes WHERE mal_id = $1`
	a, err := scanAnime(s.db.QueryRow(ctx, q, malID))
	if err != nil {
		return Anime{}, notFound(err, "anime", malID)
	}
	return a, nil
}

func (s *PostgresStore) ListAnimes(ctx context.Context) ([]Anime, error) {
	rows, err := s.db.Query(ctx, `SELECT `+animeColumns+` FROM animes ORDER BY mal_id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAnime)
}

func (s *PostgresStore) UpdateAnime(ctx context.Context, malID int64, p AnimePatch) (Anime, error) {
	if err := p.Validate(); err != nil {
		return Anime{}, err
	}
	q := `UPDATE animes SET
	        title_ro = COALESCE($2, title_ro),
	        poster_url = COALESCE($3, poster_url),
	        poster_thumb_url = COALESCE($4, poster_thumb_url),
	        release_year = COALESCE($5, release_year),
	        status = COALESCE($6, status),
	        updated_at = now()
	      WHERE mal_id = $1
	      RETURNING ` + animeColumns
	a, err := scanAnime(s.db.QueryRow(ctx, q, malID, p.TitleRo, p.PosterURL, p.PosterThumbURL, p.ReleaseYear, p.Status))
	if err != nil {
		return Anime{}, notFound(err, "anime", malID)
	}
	return a, nil
}

func (s *PostgresStore) DeleteAnime(ctx context.Context, malID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM animes WHERE mal_id = $1`, malID)
	if err != nil {
		return mapPgError(err)
	}
	return requireAffected(tag, "anime", malID)
}

// ---- songs ----

const songColumns = `id, anime_id, category, number, song_artist, song_name, created_at, updated_at`

func scanSong(row pgx.Row) (Song, error) {
	var s Song
	err := row.Scan(&s.ID, &s.AnimeID, &s.Category, &s.Number, &s.Artist, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (s *PostgresStore) CreateSong(ctx context.Context, song Song) (Song, error) {
	if err := song.Validate(); err != nil {
		return Song{}, err
	}
	q := `INSERT INTO songs (anime_id, category, number, song_artist, song_name)
	      VALUES ($1, $2, $3, $4, $5)
	      RETURNING ` + songColumns
	out, err := scanSong(s.db.QueryRow(ctx, q, song.AnimeID, song.Category, song.Number, song.Artist, song.Title))
	if err != nil {
		return Song{}, mapPgError(err)
	}
	return out, nil
}

func (s *PostgresStore) GetSong(ctx context.Context, id int64) (Song, error) {
	out, err := scanSong(s.db.QueryRow(ctx, `SELECT `+songColumns+` FROM songs WHERE id = $1`, id))
	if err != nil {
		return Song{}, notFound(err, "song", id)
	}
	return out, nil
}

func (s *PostgresStore) ListSongs(ctx context.Context) ([]Song, error) {
	rows, err := s.db.Query(ctx, `SELECT `+songColumns+` FROM songs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSong)
}

func (s *PostgresStore) ListSongsByAnime(ctx context.Context, animeID int64) ([]Song, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+songColumns+` FROM songs WHERE anime_id = $1 ORDER BY category DESC, number`, animeID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSong)
}

func (s *PostgresStore) UpdateSong(ctx context.Context, id int64, p SongPatch) (Song, error) {
	if err := p.Validate(); err != nil {
		return Song{}, err
	}
	q := `UPDATE songs SET
	        category = COALESCE($2, category),
	        number = COALESCE($3, number),
	        song_artist = COALESCE($4, song_artist),
	        song_name = COALESCE($5, song_name),
	        updated_at = now()
	      WHERE id = $1
	      RETURNING ` + songColumns
	out, err := scanSong(s.db.QueryRow(ctx, q, id, p.Category, p.Number, p.Artist, p.Title))
	if err != nil {
		return Song{}, notFound(err, "song", id)
	}
	return out, nil
}

func (s *PostgresStore) DeleteSong(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM songs WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	return requireAffected(tag, "song", id)
}

// ---- sources ----

const sourceColumns = `id, song_id, location, local_path, status, created_by, created_at, updated_at`

func scanSource(row pgx.Row) (Source, error) {
	var s Source
	err := row.Scan(&s.ID, &s.SongID, &s.Location, &s.LocalPath, &s.Status, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (s *PostgresStore) CreateSource(ctx context.Context, src Source) (Source, error) {
	if src.Status == "" {
		src.Status = SourceStatusNormal
	}
	if err := src.Validate(); err != nil {
		return Source{}, err
	}
	q := `INSERT INTO sources (song_id, location, local_path, status, created_by)
	      VALUES ($1, $2, $3, $4, $5)
	      RETURNING ` + sourceColumns
	out, err := scanSource(s.db.QueryRow(ctx, q, src.SongID, src.Location, src.LocalPath, src.Status, src.CreatedBy))
	if err != nil {
		return Source{}, mapPgError(err)
	}
	return out, nil
}

func (s *PostgresStore) GetSource(ctx context.Context, id int64) (Source, error) {
	out, err := scanSource(s.db.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id))
	if err != nil {
		return Source{}, notFound(err, "source", id)
	}
	return out, nil
}

func (s *PostgresStore) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.Query(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSource)
}

func (s *PostgresStore) UpdateSource(ctx context.Context, id int64, p SourcePatch) (Source, error) {
	if err := p.Validate(); err != nil {
		return Source{}, err
	}
	// a nil map would encode as JSON null rather than SQL NULL
	var location any
	if p.Location != nil {
		location = p.Location
	}
	q := `UPDATE sources SET
	        location = COALESCE($2, location),
	        local_path = COALESCE($3, local_path),
	        status = COALESCE($4, status),
	        created_by = COALESCE($5, created_by),
	        updated_at = now()
	      WHERE id = $1
	      RETURNING ` + sourceColumns
	out, err := scanSource(s.db.QueryRow(ctx, q, id, location, p.LocalPath, p.Status, p.CreatedBy))
	if err != nil {
		return Source{}, notFound(err, "source", id)
	}
	return out, nil
}

func (s *PostgresStore) DeleteSource(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	return requireAffected(tag, "source", id)
}

// ---- timings ----

const timingColumns = `id, source_id, guess_start, reveal_start, created_by, created_at, updated_at`

func scanTiming(row pgx.Row) (Timing, error) {
	var t Timing
	err := row.Scan(&t.ID, &t.SourceID, &t.GuessStart, &t.RevealStart, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *PostgresStore) CreateTiming(ctx context.Context, t Timing) (Timing, error) {
	if err := t.Validate(); err != nil {
		return Timing{}, err
	}
	q := `INSERT INTO timings (source_id, guess_start, reveal_start, created_by)
	      VALUES ($1, $2, $3, $4)
	      RETURNING ` + timingColumns
	out, err := scanTiming(s.db.QueryRow(ctx, q, t.SourceID, t.GuessStart, t.RevealStart, t.CreatedBy))
	if err != nil {
		return Timing{}, mapPgError(err)
	}
	return out, nil
}

func (s *PostgresStore) GetTiming(ctx context.Context, id int64) (Timing, error) {
	out, err := scanTiming(s.db.QueryRow(ctx, `SELECT `+timingColumns+` FROM timings WHERE id = $1`, id))
	if err != nil {
		return Timing{}, notFound(err, "timing", id)
	}
	return out, nil
}

func (s *PostgresStore) ListTimings(ctx context.Context) ([]Timing, error) {
	rows, err := s.db.Query(ctx, `SELECT `+timingColumns+` FROM timings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTiming)
}

func (s *PostgresStore) UpdateTiming(ctx context.Context, id int64, p TimingPatch) (Timing, error) {
	if err := p.Validate(); err != nil {
		return Timing{}, err
	}
	q := `UPDATE timings SET
	        guess_start = COALESCE($2, guess_start),
	        reveal_start = COALESCE($3, reveal_start),
	        created_by = COALESCE($4, created_by),
	        updated_at = now()
	      WHERE id = $1
	      RETURNING ` + timingColumns
	out, err := scanTiming(s.db.QueryRow(ctx, q, id, p.GuessStart, p.RevealStart, p.CreatedBy))
	if err != nil {
		return Timing{}, notFound(err, "timing", id)
	}
	return out, nil
}

func (s *PostgresStore) DeleteTiming(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM timings WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	return requireAffected(tag, "timing", id)
}

// ---- levels ----

const levelColumns = `id, song_id, value, created_by, created_at, updated_at`

func scanLevel(row pgx.Row) (Level, error) {
	var l Level
	err := row.Scan(&l.ID, &l.SongID, &l.Value, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (s *PostgresStore) CreateLevel(ctx context.Context, l Level) (Level, error) {
	if err := l.Validate(); err != nil {
		return Level{}, err
	}
	q := `INSERT INTO levels (song_id, value, created_by)
	      VALUES ($1, $2, $3)
	      RETURNING ` + levelColumns
	out, err := scanLevel(s.db.QueryRow(ctx, q, l.SongID, l.Value, l.CreatedBy))
	if err != nil {
		return Level{}, mapPgError(err)
	}
	return out, nil
}

func (s *PostgresStore) GetLevel(ctx context.Context, id int64) (Level, error) {
	out, err := scanLevel(s.db.QueryRow(ctx, `SELECT `+levelColumns+` FROM levels WHERE id = $1`, id))
	if err != nil {
		return Level{}, notFound(err, "level", id)
	}
	return out, nil
}

func (s *PostgresStore) ListLevels(ctx context.Context) ([]Level, error) {
	rows, err := s.db.Query(ctx, `SELECT `+levelColumns+` FROM levels ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanLevel)
}

func (s *PostgresStore) UpdateLevel(ctx context.Context, id int64, p LevelPatch) (Level, error) {
	if err := p.Validate(); err != nil {
		return Level{}, err
	}
	q := `UPDATE levels SET
	        value = COALESCE($2, value),
	        created_by = COALESCE($3, created_by),
	        updated_at = now()
	      WHERE id = $1
	      RETURNING ` + levelColumns
	out, err := scanLevel(s.db.QueryRow(ctx, q, id, p.Value, p.CreatedBy))
	if err != nil {
		return Level{}, notFound(err, "level", id)
	}
	return out, nil
}

func (s *PostgresStore) DeleteLevel(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM levels WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	return requireAffected(tag, "level", id)
}

package catalog

import "context"

type AnimeStore interface {
	CreateAnime(ctx context.Context, a Anime) (Anime, error)
	GetAnime(ctx context.Context, malID int64) (Anime, error)
	ListAnimes(ctx context.Context) ([]Anime, error)
	UpdateAnime(ctx context.Context, malID int64, p AnimePatch) (Anime, error)
	DeleteAnime(ctx context.Context, malID int64) error
}

type SongStore interface {
	CreateSong(ctx context.Context, s Song) (Song, error)
	GetSong(ctx context.Context, id int64) (Song, error)
	ListSongs(ctx context.Context) ([]Song, error)
	ListSongsByAnime(ctx context.Context, animeID int64) ([]Song, error)
	UpdateSong(ctx context.Context, id int64, p SongPatch) (Song, error)
	DeleteSong(ctx context.Context, id int64) error
}

type SourceStore interface {
	CreateSource(ctx context.Context, s Source) (Source, error)
	GetSource(ctx context.Context, id int64) (Source, error)
	ListSources(ctx context.Context) ([]Source, error)
	UpdateSource(ctx context.Context, id int64, p SourcePatch) (Source, error)
	DeleteSource(ctx context.Context, id int64) error
}

type TimingStore interface {
	CreateTiming(ctx context.Context, t Timing) (Timing, error)
	GetTiming(ctx context.Context, id int64) (Timing, error)
	ListTimings(ctx context.Context) ([]Timing, error)
	UpdateTiming(ctx context.Context, id int64, p TimingPatch) (Timing, error)
	DeleteTiming(ctx context.Context, id int64) error
}

type LevelStore interface {
	CreateLevel(ctx context.Context, l Level) (Level, error)
	GetLevel(ctx context.Context, id int64) (Level, error)
	ListLevels(ctx context.Context) ([]Level, error)
	UpdateLevel(ctx context.Context, id int64, p LevelPatch) (Level, error)
	DeleteLevel(ctx context.Context, id int64) error
}

// LedgerStore persists worker outcomes. Rows are append-only.
type LedgerStore interface {
	RecordResult(ctx context.Context, r WorkerResult) (WorkerResult, error)
	// HasTerminalResult reports a SUCCESS or FAIL_INVALID row for (worker, anime).
	HasTerminalResult(ctx context.Context, worker string, animeID int64) (bool, error)
	CountResults(ctx context.Context, worker string, animeID int64, status WorkerResultStatus) (int, error)
	ListResults(ctx context.Context, worker string, animeID int64) ([]WorkerResult, error)
}

// WorkerStore is what the ingestion worker needs from persistence.
type WorkerStore interface {
	LedgerStore
	// ListEligibleAnimes returns up to limit NORMAL animes without a terminal
	// result for worker, newest first.
	ListEligibleAnimes(ctx context.Context, worker string, limit int) ([]Anime, error)
	GetAnime(ctx context.Context, malID int64) (Anime, error)
	ListSongsByAnime(ctx context.Context, animeID int64) ([]Song, error)
	// CommitIngestion inserts songs and the result row atomically.
	CommitIngestion(ctx context.Context, songs []Song, result WorkerResult) (WorkerResult, error)
}

// Store is the full catalog persistence surface.
type Store interface {
	AnimeStore
	SongStore
	SourceStore
	TimingStore
	LevelStore
	WorkerStore
}

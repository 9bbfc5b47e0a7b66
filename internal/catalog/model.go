// Package catalog holds the quiz catalog model (animes, songs, clip sources,
// timings, difficulty levels) and the worker ledger, together with their
// Postgres and in-memory stores.
package catalog

import (
	"strings"
	"time"
)

// Anime is keyed by its MyAnimeList id.
type Anime struct {
	MalID          int64       `json:"mal_id"`
	TitleRo        string      `json:"title_ro"`
	PosterURL      string      `json:"poster_url"`
	PosterThumbURL string      `json:"poster_thumb_url"`
	ReleaseYear    int         `json:"release_year"`
	Status         AnimeStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (a Anime) Validate() error {
	if a.MalID <= 0 {
		return &ValidationError{Field: "mal_id", Value: a.MalID, Reason: "must be positive"}
	}
	if strings.TrimSpace(a.TitleRo) == "" {
		return &ValidationError{Field: "title_ro", Value: a.TitleRo, Reason: "must not be empty"}
	}
	if !a.Status.Valid() {
		return &ValidationError{Field: "status", Value: a.Status, Reason: "unknown status"}
	}
	return nil
}

type AnimePatch struct {
	TitleRo        *string
	PosterURL      *string
	PosterThumbURL *string
	ReleaseYear    *int
	Status         *AnimeStatus
}

func (p AnimePatch) Validate() error {
	if p.TitleRo != nil && strings.TrimSpace(*p.TitleRo) == "" {
		return &ValidationError{Field: "title_ro", Value: *p.TitleRo, Reason: "must not be empty"}
	}
	if p.Status != nil && !p.Status.Valid() {
		return &ValidationError{Field: "status", Value: *p.Status, Reason: "unknown status"}
	}
	return nil
}

// Song is an opening or ending of an anime. Artist and title stay nil when
// the scrape could not determine them.
type Song struct {
	ID        int64     `json:"id"`
	AnimeID   int64     `json:"anime_id"`
	Category  Category  `json:"category"`
	Number    int       `json:"number"`
	Artist    *string   `json:"song_artist"`
	Title     *string   `json:"song_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s Song) Key() SongKey {
	return SongKey{Category: s.Category, Number: s.Number}
}

func (s Song) Validate() error {
	if !s.Category.Valid() {
		return &ValidationError{Field: "category", Value: s.Category, Reason: "must be one of OP, ED"}
	}
	if s.Number <= 0 {
		return &ValidationError{Field: "number", Value: s.Number, Reason: "must be positive"}
	}
	return nil
}

type SongPatch struct {
	Category *Category
	Number   *int
	Artist   *string
	Title    *string
}

func (p SongPatch) Validate() error {
	if p.Category != nil && !p.Category.Valid() {
		return &ValidationError{Field: "category", Value: *p.Category, Reason: "must be one of OP, ED"}
	}
	if p.Number != nil && *p.Number <= 0 {
		return &ValidationError{Field: "number", Value: *p.Number, Reason: "must be positive"}
	}
	return nil
}

// Source is where a quiz clip for a song can be obtained.
type Source struct {
	ID        int64          `json:"id"`
	SongID    int64          `json:"song_id"`
	Location  map[string]any `json:"location"`
	LocalPath *string        `json:"local_path"`
	Status    SourceStatus   `json:"status"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (s Source) Validate() error {
	if s.Location == nil {
		return &ValidationError{Field: "location", Value: nil, Reason: "must be a JSON object"}
	}
	if !s.Status.Valid() {
		return &ValidationError{Field: "status", Value: s.Status, Reason: "unknown status"}
	}
	return nil
}

type SourcePatch struct {
	Location  map[string]any
	LocalPath *string
	Status    *SourceStatus
	CreatedBy *string
}

func (p SourcePatch) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return &ValidationError{Field: "status", Value: *p.Status, Reason: "unknown status"}
	}
	return nil
}

// Timing marks, in seconds from the clip start, when guessing begins and
// when the answer is revealed.
type Timing struct {
	ID          int64     `json:"id"`
	SourceID    int64     `json:"source_id"`
	GuessStart  float64   `json:"guess_start"`
	RevealStart float64   `json:"reveal_start"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (t Timing) Validate() error {
	return validateOffsets(&t.GuessStart, &t.RevealStart)
}

type TimingPatch struct {
	GuessStart  *float64
	RevealStart *float64
	CreatedBy   *string
}

func (p TimingPatch) Validate() error {
	return validateOffsets(p.GuessStart, p.RevealStart)
}

func validateOffsets(guess, reveal *float64) error {
	if guess != nil && *guess < 0 {
		return &ValidationError{Field: "guess_start", Value: *guess, Reason: "must not be negative"}
	}
	if reveal != nil && *reveal < 0 {
		return &ValidationError{Field: "reveal_start", Value: *reveal, Reason: "must not be negative"}
	}
	return nil
}

const (
	MinLevel = 0
	MaxLevel = 100
)

// Level is a difficulty vote for a song.
type Level struct {
	ID        int64     `json:"id"`
	SongID    int64     `json:"song_id"`
	Value     int       `json:"value"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l Level) Validate() error {
	return validateLevel(l.Value)
}

type LevelPatch struct {
	Value     *int
	CreatedBy *string
}

func (p LevelPatch) Validate() error {
	if p.Value == nil {
		return nil
	}
	return validateLevel(*p.Value)
}

func validateLevel(v int) error {
	if v < MinLevel || v > MaxLevel {
		return &ValidationError{Field: "value", Value: v, Reason: "must be between 0 and 100"}
	}
	return nil
}

// WorkerResult is one ledger row: the outcome of a single worker attempt.
// AnimeID is nil for worker-scoped entries and after the anime is deleted.
type WorkerResult struct {
	ID         int64              `json:"id"`
	WorkerName string             `json:"worker_name"`
	AnimeID    *int64             `json:"anime_id"`
	Status     WorkerResultStatus `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
}

// ScrapedSong is a song row read from an external page. ExternalID only
// serves de-duplication while parsing.
type ScrapedSong struct {
	Category   Category
	Number     int
	Title      *string
	Artist     *string
	ExternalID int64
}

func (s ScrapedSong) Key() SongKey {
	return SongKey{Category: s.Category, Number: s.Number}
}

package catalog

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is a development and test implementation that enforces the
// same keys, references and cascades as the Postgres schema.
type InMemoryStore struct {
	mu sync.RWMutex

	animes     map[int64]Anime
	animeSeq   map[int64]int64 // insertion order, breaks created_at ties
	songs      map[int64]Song
	sources    map[int64]Source
	timings    map[int64]Timing
	levels     map[int64]Level
	results    []WorkerResult
	nextID     int64
	now        func() time.Time
	failCommit error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		animes:   make(map[int64]Anime),
		animeSeq: make(map[int64]int64),
		songs:    make(map[int64]Song),
		sources:  make(map[int64]Source),
		timings:  make(map[int64]Timing),
		levels:   make(map[int64]Level),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ Store = (*InMemoryStore)(nil)

// FailNextCommit makes the next CommitIngestion or RecordResult return err.
// Tests use it to simulate ledger write failures.
func (s *InMemoryStore) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommit = err
}

func (s *InMemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func sortedValues[K comparable, V any](m map[K]V, less func(a, b V) bool) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func missing(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// ---- animes ----

func (s *InMemoryStore) CreateAnime(_ context.Context, a Anime) (Anime, error) {
	if a.Status == "" {
		a.Status = AnimeStatusNormal
	}
	if err := a.Validate(); err != nil {
		return Anime{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.animes[a.MalID]; ok {
		return Anime{}, fmt.Errorf("%w (pk_animes): mal_id %d", ErrConflict, a.MalID)
	}
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	s.animes[a.MalID] = a
	s.animeSeq[a.MalID] = s.id()
	return a, nil
}

func (s *InMemoryStore) GetAnime(_ context.Context, malID int64) (Anime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.animes[malID]
	if !ok {
		return Anime{}, missing("anime", malID)
	}
	return a, nil
}

func (s *InMemoryStore) ListAnimes(_ context.Context) ([]Anime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.animes, func(a, b Anime) bool { return a.MalID < b.MalID }), nil
}

func (s *InMemoryStore) UpdateAnime(_ context.Context, malID int64, p AnimePatch) (Anime, error) {
	if err := p.Validate(); err != nil {
		return Anime{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.animes[malID]
	if !ok {
		return Anime{}, missing("anime", malID)
	}
	if p.TitleRo != nil {
		a.TitleRo = *p.TitleRo
	}
	if p.PosterURL != nil {
		a.PosterURL = *p.PosterURL
	}
	if p.PosterThumbURL != nil {
		a.PosterThumbURL = *p.PosterThumbURL
	}
	if p.ReleaseYear != nil {
		a.ReleaseYear = *p.ReleaseYear
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	a.UpdatedAt = s.now()
	s.animes[malID] = a
	return a, nil
}

func (s *InMemoryStore) DeleteAnime(_ context.Context, malID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.animes[malID]; !ok {
		return missing("anime", malID)
	}
	delete(s.animes, malID)
	delete(s.animeSeq, malID)
	for id, song := range s.songs {
		if song.AnimeID == malID {
			s.deleteSongLocked(id)
		}
	}
	for i, r := range s.results {
		if r.AnimeID != nil && *r.AnimeID == malID {
			s.results[i].AnimeID = nil
		}
	}
	return nil
}

// ---- songs ----

func (s *InMemoryStore) songKeyTakenLocked(animeID int64, key SongKey, exceptID int64) bool {
	for id, song := range s.songs {
		if id != exceptID && song.AnimeID == animeID && song.Key() == key {
			return true
		}
	}
	return false
}

func (s *InMemoryStore) insertSongLocked(song Song) (Song, error) {
	if err := song.Validate(); err != nil {
		return Song{}, err
	}
	if _, ok := s.animes[song.AnimeID]; !ok {
		return Song{}, fmt.Errorf("%w (fk_songs_anime_id_animes): anime %d", ErrParentNotFound, song.AnimeID)
	}
	if s.songKeyTakenLocked(song.AnimeID, song.Key(), 0) {
		return Song{}, fmt.Errorf("%w (uq_songs_anime_id): anime %d %s", ErrConflict, song.AnimeID, song.Key())
	}
	now := s.now()
	song.ID = s.id()
	song.CreatedAt, song.UpdatedAt = now, now
	s.songs[song.ID] = song
	return song, nil
}

func (s *InMemoryStore) CreateSong(_ context.Context, song Song) (Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertSongLocked(song)
}

func (s *InMemoryStore) GetSong(_ context.Context, id int64) (Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	song, ok := s.songs[id]
	if !ok {
		return Song{}, missing("song", id)
	}
	return song, nil
}

func (s *InMemoryStore) ListSongs(_ context.Context) ([]Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.songs, func(a, b Song) bool { return a.ID < b.ID }), nil
}

func (s *InMemoryStore) ListSongsByAnime(_ context.Context, animeID int64) ([]Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Song{}
	for _, song := range s.songs {
		if song.AnimeID == animeID {
			out = append(out, song)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category > out[j].Category
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (s *InMemoryStore) UpdateSong(_ context.Context, id int64, p SongPatch) (Song, error) {
	if err := p.Validate(); err != nil {
		return Song{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	song, ok := s.songs[id]
	if !ok {
		return Song{}, missing("song", id)
	}
	if p.Category != nil {
		song.Category = *p.Category
	}
	if p.Number != nil {
		song.Number = *p.Number
	}
	if p.Artist != nil {
		song.Artist = p.Artist
	}
	if p.Title != nil {
		song.Title = p.Title
	}
	if s.songKeyTakenLocked(song.AnimeID, song.Key(), id) {
		return Song{}, fmt.Errorf("%w (uq_songs_anime_id): anime %d %s", ErrConflict, song.AnimeID, song.Key())
	}
	song.UpdatedAt = s.now()
	s.songs[id] = song
	return song, nil
}

func (s *InMemoryStore) DeleteSong(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.songs[id]; !ok {
		return missing("song", id)
	}
	s.deleteSongLocked(id)
	return nil
}

func (s *InMemoryStore) deleteSongLocked(id int64) {
	delete(s.songs, id)
	for srcID, src := range s.sources {
		if src.SongID == id {
			s.deleteSourceLocked(srcID)
		}
	}
	for lvlID, lvl := range s.levels {
		if lvl.SongID == id {
			delete(s.levels, lvlID)
		}
	}
}

// ---- sources ----

func (s *InMemoryStore) CreateSource(_ context.Context, src Source) (Source, error) {
	if src.Status == "" {
		src.Status = SourceStatusNormal
	}
	if err := src.Validate(); err != nil {
		return Source{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.songs[src.SongID]; !ok {
		return Source{}, fmt.Errorf("%w (fk_sources_song_id_songs): song %d", ErrParentNotFound, src.SongID)
	}
	now := s.now()
	src.ID = s.id()
	src.Location = maps.Clone(src.Location)
	src.CreatedAt, src.UpdatedAt = now, now
	s.sources[src.ID] = src
	return src, nil
}

func (s *InMemoryStore) GetSource(_ context.Context, id int64) (Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[id]
	if !ok {
		return Source{}, missing("source", id)
	}
	return src, nil
}

func (s *InMemoryStore) ListSources(_ context.Context) ([]Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.sources, func(a, b Source) bool { return a.ID < b.ID }), nil
}

func (s *InMemoryStore) UpdateSource(_ context.Context, id int64, p SourcePatch) (Source, error) {
	if err := p.Validate(); err != nil {
		return Source{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[id]
	if !ok {
		return Source{}, missing("source", id)
	}
	if p.Location != nil {
		src.Location = maps.Clone(p.Location)
	}
	if p.LocalPath != nil {
		src.LocalPath = p.LocalPath
	}
	if p.Status != nil {
		src.Status = *p.Status
	}
	if p.CreatedBy != nil {
		src.CreatedBy = *p.CreatedBy
	}
	src.UpdatedAt = s.now()
	s.sources[id] = src
	return src, nil
}

func (s *InMemoryStore) DeleteSource(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; !ok {
		return missing("source", id)
	}
	s.deleteSourceLocked(id)
	return nil
}

func (s *InMemoryStore) deleteSourceLocked(id int64) {
	delete(s.sources, id)
	for tID, t := range s.timings {
		if t.SourceID == id {
			delete(s.timings, tID)
		}
	}
}

// ---- timings ----

func (s *InMemoryStore) CreateTiming(_ context.Context, t Timing) (Timing, error) {
	if err := t.Validate(); err != nil {
		return Timing{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[t.SourceID]; !ok {
		return Timing{}, fmt.Errorf("%w (fk_timings_source_id_sources): source %d", ErrParentNotFound, t.SourceID)
	}
	now := s.now()
	t.ID = s.id()
	t.CreatedAt, t.UpdatedAt = now, now
	s.timings[t.ID] = t
	return t, nil
}

func (s *InMemoryStore) GetTiming(_ context.Context, id int64) (Timing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.timings[id]
	if !ok {
		return Timing{}, missing("timing", id)
	}
	return t, nil
}

func (s *InMemoryStore) ListTimings(_ context.Context) ([]Timing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.timings, func(a, b Timing) bool { return a.ID < b.ID }), nil
}

func (s *InMemoryStore) UpdateTiming(_ context.Context, id int64, p TimingPatch) (Timing, error) {
	if err := p.Validate(); err != nil {
		return Timing{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timings[id]
	if !ok {
		return Timing{}, missing("timing", id)
	}
	if p.GuessStart != nil {
		t.GuessStart = *p.GuessStart
	}
	if p.RevealStart != nil {
		t.RevealStart = *p.RevealStart
	}
	if p.CreatedBy != nil {
		t.CreatedBy = *p.CreatedBy
	}
	t.UpdatedAt = s.now()
	s.timings[id] = t
	return t, nil
}

func (s *InMemoryStore) DeleteTiming(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timings[id]; !ok {
		return missing("timing", id)
	}
	delete(s.timings, id)
	return nil
}

// ---- levels ----

func (s *InMemoryStore) CreateLevel(_ context.Context, l Level) (Level, error) {
	if err := l.Validate(); err != nil {
		return Level{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.songs[l.SongID]; !ok {
		return Level{}, fmt.Errorf("%w (fk_levels_song_id_songs): song %d", ErrParentNotFound, l.SongID)
	}
	now := s.now()
	l.ID = s.id()
	l.CreatedAt, l.UpdatedAt = now, now
	s.levels[l.ID] = l
	return l, nil
}

func (s *InMemoryStore) GetLevel(_ context.Context, id int64) (Level, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.levels[id]
	if !ok {
		return Level{}, missing("level", id)
	}
	return l, nil
}

func (s *InMemoryStore) ListLevels(_ context.Context) ([]Level, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.levels, func(a, b Level) bool { return a.ID < b.ID }), nil
}

func (s *InMemoryStore) UpdateLevel(_ context.Context, id int64, p LevelPatch) (Level, error) {
	if err := p.Validate(); err != nil {
		return Level{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.levels[id]
	if !ok {
		return Level{}, missing("level", id)
	}
	if p.Value != nil {
		l.Value = *p.Value
	}
	if p.CreatedBy != nil {
		l.CreatedBy = *p.CreatedBy
	}
	l.UpdatedAt = s.now()
	s.levels[id] = l
	return l, nil
}

func (s *InMemoryStore) DeleteLevel(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.levels[id]; !ok {
		return missing("level", id)
	}
	delete(s.levels, id)
	return nil
}

// ---- worker ledger ----

func (s *InMemoryStore) ListEligibleAnimes(_ context.Context, worker string, limit int) ([]Anime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Anime{}
	for _, a := range s.animes {
		if a.Status != AnimeStatusNormal || s.hasTerminalLocked(worker, a.MalID) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.animeSeq[out[i].MalID] > s.animeSeq[out[j].MalID]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) hasTerminalLocked(worker string, animeID int64) bool {
	for _, r := range s.results {
		if r.WorkerName == worker && r.AnimeID != nil && *r.AnimeID == animeID && r.Status.Terminal() {
			return true
		}
	}
	return false
}

func (s *InMemoryStore) HasTerminalResult(_ context.Context, worker string, animeID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasTerminalLocked(worker, animeID), nil
}

func (s *InMemoryStore) CountResults(_ context.Context, worker string, animeID int64, status WorkerResultStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.results {
		if r.WorkerName == worker && r.AnimeID != nil && *r.AnimeID == animeID && r.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) ListResults(_ context.Context, worker string, animeID int64) ([]WorkerResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []WorkerResult{}
	for _, r := range s.results {
		if r.WorkerName == worker && r.AnimeID != nil && *r.AnimeID == animeID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryStore) recordLocked(r WorkerResult) (WorkerResult, error) {
	if err := s.failCommit; err != nil {
		s.failCommit = nil
		return WorkerResult{}, err
	}
	if !r.Status.Valid() {
		return WorkerResult{}, &ValidationError{Field: "status", Value: r.Status, Reason: "unknown worker result status"}
	}
	if r.AnimeID != nil {
		if _, ok := s.animes[*r.AnimeID]; !ok {
			return WorkerResult{}, fmt.Errorf("%w (fk_worker_results_anime_id_animes): anime %d", ErrParentNotFound, *r.AnimeID)
		}
		id := *r.AnimeID
		r.AnimeID = &id
	}
	r.ID = s.id()
	r.CreatedAt = s.now()
	s.results = append(s.results, r)
	return r, nil
}

func (s *InMemoryStore) RecordResult(_ context.Context, r WorkerResult) (WorkerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordLocked(r)
}

func (s *InMemoryStore) CommitIngestion(_ context.Context, songs []Song, result WorkerResult) (WorkerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// all-or-nothing: validate every insert before touching state
	seen := make(map[SongKey]bool, len(songs))
	for _, song := range songs {
		if err := song.Validate(); err != nil {
			return WorkerResult{}, err
		}
		if _, ok := s.animes[song.AnimeID]; !ok {
			return WorkerResult{}, fmt.Errorf("%w (fk_songs_anime_id_animes): anime %d", ErrParentNotFound, song.AnimeID)
		}
		if seen[song.Key()] || s.songKeyTakenLocked(song.AnimeID, song.Key(), 0) {
			return WorkerResult{}, fmt.Errorf("%w (uq_songs_anime_id): anime %d %s", ErrConflict, song.AnimeID, song.Key())
		}
		seen[song.Key()] = true
	}
	if result.AnimeID != nil {
		if _, ok := s.animes[*result.AnimeID]; !ok {
			return WorkerResult{}, fmt.Errorf("%w (fk_worker_results_anime_id_animes): anime %d", ErrParentNotFound, *result.AnimeID)
		}
	}

	out, err := s.recordLocked(result)
	if err != nil {
		return WorkerResult{}, err
	}
	for _, song := range songs {
		if _, err := s.insertSongLocked(song); err != nil {
			return WorkerResult{}, err
		}
	}
	return out, nil
}

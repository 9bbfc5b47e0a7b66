// Package reconcile decides which scraped songs are new for an anime.
package reconcile

import "github.com/example/aoq-factory/internal/catalog"

// Result is the outcome of comparing a scrape with stored songs.
type Result struct {
	// Insert holds the scraped songs whose key is not stored yet, in scrape
	// order, ready to persist.
	Insert []catalog.Song
	// Skipped lists scraped keys that already exist.
	Skipped []catalog.SongKey
}

// Plan keeps every scraped song whose (category, number) is absent from
// existing. Stored songs are never updated or removed.
func Plan(animeID int64, scraped []catalog.ScrapedSong, existing []catalog.Song) Result {
	have := make(map[catalog.SongKey]struct{}, len(existing))
	for _, s := range existing {
		have[s.Key()] = struct{}{}
	}

	res := Result{Insert: []catalog.Song{}, Skipped: []catalog.SongKey{}}
	for _, s := range scraped {
		key := s.Key()
		if _, ok := have[key]; ok {
			res.Skipped = append(res.Skipped, key)
			continue
		}
		// a scrape never repeats a key, but guard against it anyway
		have[key] = struct{}{}
		res.Insert = append(res.Insert, catalog.Song{
			AnimeID:  animeID,
			Category: s.Category,
			Number:   s.Number,
			Artist:   s.Artist,
			Title:    s.Title,
		})
	}
	return res
}

// Keys returns the keys of songs, for logging.
func Keys(songs []catalog.Song) []string {
	out := make([]string, 0, len(songs))
	for _, s := range songs {
		out = append(out, s.Key().String())
	}
	return out
}

package anidb

import "context"

// Fetcher is the port for downloading an AniDB anime page. A nil page with a
// nil error means the server answered with a non-success status.
type Fetcher interface {
	Fetch(ctx context.Context, animeID int64) ([]byte, error)
}

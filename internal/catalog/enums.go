package catalog

import (
	"fmt"
	"strings"
)

// Category is the song kind within an anime.
type Category string

const (
	CategoryOpening Category = "OP"
	CategoryEnding  Category = "ED"
)

// ParseCategory accepts the stored form ("OP", "ED") and the long form
// ("opening", "ending"), case-insensitively.
func ParseCategory(s string) (Category, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OP", "OPENING":
		return CategoryOpening, nil
	case "ED", "ENDING":
		return CategoryEnding, nil
	}
	return "", &ValidationError{Field: "category", Value: s, Reason: "must be one of OP, ED"}
}

func (c Category) Valid() bool {
	return c == CategoryOpening || c == CategoryEnding
}

type AnimeStatus string

const (
	AnimeStatusNormal      AnimeStatus = "NORMAL"
	AnimeStatusFinalized   AnimeStatus = "FINALIZED"
	AnimeStatusBlacklisted AnimeStatus = "BLACKLISTED"
)

func ParseAnimeStatus(s string) (AnimeStatus, error) {
	st := AnimeStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Value: s, Reason: "must be one of NORMAL, FINALIZED, BLACKLISTED"}
	}
	return st, nil
}

func (s AnimeStatus) Valid() bool {
	switch s {
	case AnimeStatusNormal, AnimeStatusFinalized, AnimeStatusBlacklisted:
		return true
	}
	return false
}

type SourceStatus string

const (
	SourceStatusNormal      SourceStatus = "NORMAL"
	SourceStatusInvalid     SourceStatus = "INVALID"
	SourceStatusDownloading SourceStatus = "DOWNLOADING"
	SourceStatusDownloaded  SourceStatus = "DOWNLOADED"
)

func ParseSourceStatus(s string) (SourceStatus, error) {
	st := SourceStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Value: s, Reason: "must be one of NORMAL, INVALID, DOWNLOADING, DOWNLOADED"}
	}
	return st, nil
}

func (s SourceStatus) Valid() bool {
	switch s {
	case SourceStatusNormal, SourceStatusInvalid, SourceStatusDownloading, SourceStatusDownloaded:
		return true
	}
	return false
}

// WorkerResultStatus is the outcome of one worker attempt on one anime.
type WorkerResultStatus string

const (
	ResultSuccess       WorkerResultStatus = "SUCCESS"
	ResultFailInvalid   WorkerResultStatus = "FAIL_INVALID"
	ResultFailTemporary WorkerResultStatus = "FAIL_TEMPORARY"
)

func (s WorkerResultStatus) Valid() bool {
	switch s {
	case ResultSuccess, ResultFailInvalid, ResultFailTemporary:
		return true
	}
	return false
}

// Terminal reports whether the outcome excludes the anime from further attempts.
func (s WorkerResultStatus) Terminal() bool {
	return s == ResultSuccess || s == ResultFailInvalid
}

func (s WorkerResultStatus) String() string {
	return string(s)
}

func (c Category) String() string {
	return string(c)
}

// SongKey identifies a song within its anime.
type SongKey struct {
	Category Category
	Number   int
}

func (k SongKey) String() string {
	return fmt.Sprintf("%s %d", k.Category, k.Number)
}

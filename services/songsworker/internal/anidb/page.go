package anidb

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/example/aoq-factory/internal/catalog"
)

const songCellSelector = "table#songlist > tbody td.name.song"

// ParseError reports a song row that could not be read.
type ParseError struct {
	AnimeID int64
	Row     int
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("anidb page %d: song row %d: %s", e.AnimeID, e.Row, e.Reason)
}

// ParseSongs extracts the opening and ending songs listed on an anime page,
// in page order and numbered per category from 1. Parsing stops at the first
// row whose section is neither opening nor ending.
func ParseSongs(html []byte, animeID int64) ([]catalog.ScrapedSong, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("anidb page %d: parse html: %w", animeID, err)
	}

	var (
		songs    = []catalog.ScrapedSong{}
		seen     = map[int64]struct{}{}
		counters = map[catalog.Category]int{}
		rowErr   error
	)
	doc.Find(songCellSelector).EachWithBreak(func(i int, cell *goquery.Selection) bool {
		externalID, err := songID(cell)
		if err != nil {
			rowErr = &ParseError{AnimeID: animeID, Row: i, Reason: err.Error()}
			return false
		}
		if _, dup := seen[externalID]; dup {
			return true
		}

		category, ok := categoryOf(cell)
		if !ok {
			return false
		}
		counters[category]++

		seen[externalID] = struct{}{}
		songs = append(songs, catalog.ScrapedSong{
			Category:   category,
			Number:     counters[category],
			Title:      nonEmpty(cell.Text()),
			Artist:     nonEmpty(cell.NextAllFiltered("td.name.creator").First().Text()),
			ExternalID: externalID,
		})
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return songs, nil
}

// songID reads the integer id ending the first link's path.
func songID(cell *goquery.Selection) (int64, error) {
	href, ok := cell.Find("a").First().Attr("href")
	if !ok {
		return 0, fmt.Errorf("missing song link")
	}
	href = strings.TrimRight(strings.TrimSpace(href), "/")
	last := href[strings.LastIndex(href, "/")+1:]
	id, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("song link %q has no numeric id", href)
	}
	return id, nil
}

// categoryOf finds the section marker closest before cell: first among the
// cell's own preceding siblings, then in earlier rows of the table.
func categoryOf(cell *goquery.Selection) (catalog.Category, bool) {
	for s := cell.Prev(); s.Length() > 0; s = s.Prev() {
		if s.HasClass("reltype") {
			return classify(s.Text())
		}
	}
	for row := cell.Parent().Prev(); row.Length() > 0; row = row.Prev() {
		if marker := row.Children().Filter(".reltype").Last(); marker.Length() > 0 {
			return classify(marker.Text())
		}
	}
	return "", false
}

func classify(marker string) (catalog.Category, bool) {
	switch strings.ToLower(strings.TrimSpace(marker)) {
	case "opening":
		return catalog.CategoryOpening, true
	case "ending":
		return catalog.CategoryEnding, true
	default:
		return "", false
	}
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

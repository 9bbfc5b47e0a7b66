package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/aoq-factory/internal/catalog"
)

func str(s string) *string { return &s }

func scraped(cat catalog.Category, n int, title string) catalog.ScrapedSong {
	return catalog.ScrapedSong{Category: cat, Number: n, Title: str(title)}
}

func TestPlan_InsertsOnlyMissingKeys(t *testing.T) {
	existing := []catalog.Song{
		{ID: 1, AnimeID: 7, Category: catalog.CategoryOpening, Number: 1, Title: str("stored")},
	}
	in := []catalog.ScrapedSong{
		scraped(catalog.CategoryOpening, 1, "A"),
		scraped(catalog.CategoryOpening, 2, "B"),
		scraped(catalog.CategoryEnding, 1, "C"),
	}

	res := Plan(7, in, existing)

	assert.Equal(t, []string{"OP 2", "ED 1"}, Keys(res.Insert))
	assert.Equal(t, []catalog.SongKey{{Category: catalog.CategoryOpening, Number: 1}}, res.Skipped)
	for _, s := range res.Insert {
		assert.Equal(t, int64(7), s.AnimeID)
		assert.Zero(t, s.ID)
	}
	assert.Equal(t, "B", *res.Insert[0].Title)
}

func TestPlan_NeverTouchesExisting(t *testing.T) {
	existing := []catalog.Song{
		{ID: 1, AnimeID: 7, Category: catalog.CategoryOpening, Number: 1, Title: str("old")},
	}
	res := Plan(7, []catalog.ScrapedSong{scraped(catalog.CategoryOpening, 1, "new")}, existing)

	assert.Empty(t, res.Insert)
	assert.Equal(t, "old", *existing[0].Title)
}

func TestPlan_IsIdempotent(t *testing.T) {
	in := []catalog.ScrapedSong{
		scraped(catalog.CategoryOpening, 1, "A"),
		scraped(catalog.CategoryEnding, 1, "B"),
	}

	first := Plan(7, in, nil)
	assert.Len(t, first.Insert, 2)

	// persist the first plan, then plan again with the same scrape
	stored := append([]catalog.Song(nil), first.Insert...)
	second := Plan(7, in, stored)
	assert.Empty(t, second.Insert)
	assert.Len(t, second.Skipped, 2)
}

func TestPlan_EmptyScrape(t *testing.T) {
	res := Plan(7, nil, nil)
	assert.NotNil(t, res.Insert)
	assert.Empty(t, res.Insert)
	assert.Empty(t, res.Skipped)
}

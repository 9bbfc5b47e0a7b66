package anidb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/aoq-factory/internal/catalog"
)

const songlistPage = `<html><body>
<table id="songlist"><tbody>
<tr><td class="reltype">Opening</td><td class="name song"><a href="/song/101">A</a></td><td class="name creator">Artist One</td></tr>
<tr><td class="name song"><a href="/song/102">B</a></td><td class="name creator"> </td></tr>
<tr><td class="reltype">Ending</td><td class="name song"><a href="/song/201">C</a></td><td class="name creator">Artist Two</td></tr>
<tr><td class="name song"><a href="/song/101">A again</a></td></tr>
<tr><td class="name song"><a href="/song/202"></a></td><td class="name creator">Artist Three</td></tr>
<tr><td class="reltype">Insert Song</td><td class="name song"><a href="/song/301">D</a></td></tr>
<tr><td class="reltype">Opening</td><td class="name song"><a href="/song/103">E</a></td></tr>
</tbody></table>
</body></html>`

func TestParseSongs(t *testing.T) {
	songs, err := ParseSongs([]byte(songlistPage), 7)
	require.NoError(t, err)
	require.Len(t, songs, 4)

	assert.Equal(t, catalog.SongKey{Category: catalog.CategoryOpening, Number: 1}, songs[0].Key())
	assert.Equal(t, "A", *songs[0].Title)
	assert.Equal(t, "Artist One", *songs[0].Artist)
	assert.Equal(t, int64(101), songs[0].ExternalID)

	assert.Equal(t, catalog.SongKey{Category: catalog.CategoryOpening, Number: 2}, songs[1].Key())
	assert.Equal(t, "B", *songs[1].Title)
	assert.Nil(t, songs[1].Artist)

	assert.Equal(t, catalog.SongKey{Category: catalog.CategoryEnding, Number: 1}, songs[2].Key())
	assert.Equal(t, catalog.SongKey{Category: catalog.CategoryEnding, Number: 2}, songs[3].Key())
	assert.Nil(t, songs[3].Title)
	assert.Equal(t, "Artist Three", *songs[3].Artist)
}

func TestParseSongs_NumbersAreDenseAndUnique(t *testing.T) {
	songs, err := ParseSongs([]byte(songlistPage), 7)
	require.NoError(t, err)

	keys := map[catalog.SongKey]bool{}
	perCategory := map[catalog.Category][]int{}
	for _, s := range songs {
		require.False(t, keys[s.Key()], "duplicate key %s", s.Key())
		keys[s.Key()] = true
		perCategory[s.Category] = append(perCategory[s.Category], s.Number)
	}
	for cat, nums := range perCategory {
		for i, n := range nums {
			assert.Equal(t, i+1, n, "category %s", cat)
		}
	}
}

func TestParseSongs_CaseInsensitiveMarker(t *testing.T) {
	page := `<table id="songlist"><tr><td class="reltype"> ENDING </td><td class="name song"><a href="/song/5">X</a></td></tr></table>`
	songs, err := ParseSongs([]byte(page), 1)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, catalog.CategoryEnding, songs[0].Category)
}

func TestParseSongs_Empty(t *testing.T) {
	for name, page := range map[string]string{
		"no table":        `<html><body><p>nothing here</p></body></html>`,
		"empty table":     `<table id="songlist"><tbody></tbody></table>`,
		"no marker":       `<table id="songlist"><tr><td class="name song"><a href="/song/5">X</a></td></tr></table>`,
		"unknown section": `<table id="songlist"><tr><td class="reltype">Insert Song</td><td class="name song"><a href="/song/5">X</a></td></tr></table>`,
	} {
		t.Run(name, func(t *testing.T) {
			songs, err := ParseSongs([]byte(page), 1)
			require.NoError(t, err)
			assert.Empty(t, songs)
		})
	}
}

func TestParseSongs_BadSongLink(t *testing.T) {
	for name, page := range map[string]string{
		"missing link": `<table id="songlist"><tr><td class="reltype">Opening</td><td class="name song">X</td></tr></table>`,
		"non numeric":  `<table id="songlist"><tr><td class="reltype">Opening</td><td class="name song"><a href="/song/abc">X</a></td></tr></table>`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSongs([]byte(page), 1)
			var pe *ParseError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

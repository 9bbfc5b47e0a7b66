package catalog

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	animeCols  = []string{"mal_id", "title_ro", "poster_url", "poster_thumb_url", "release_year", "status", "created_at", "updated_at"}
	resultCols = []string{"id", "worker_name", "anime_id", "status", "created_at"}
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

func TestPostgres_CreateAnime(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("INSERT INTO animes").
		WithArgs(int64(7), "Bebop", "p.jpg", "t.jpg", 1998, AnimeStatusNormal).
		WillReturnRows(pgxmock.NewRows(animeCols).
			AddRow(int64(7), "Bebop", "p.jpg", "t.jpg", 1998, AnimeStatusNormal, now, now))

	a, err := store.CreateAnime(context.Background(), Anime{
		MalID: 7, TitleRo: "Bebop", PosterURL: "p.jpg", PosterThumbURL: "t.jpg", ReleaseYear: 1998,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.MalID)
	assert.Equal(t, now, a.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateAnimeDuplicate(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO animes").
		WithArgs(int64(7), "Bebop", "", "", 0, AnimeStatusNormal).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "animes_pkey"})

	_, err := store.CreateAnime(context.Background(), Anime{MalID: 7, TitleRo: "Bebop"})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetAnimeNotFound(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .* FROM animes WHERE mal_id").
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetAnime(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateSongMissingAnime(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO songs").
		WithArgs(int64(9), CategoryOpening, 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "fk_songs_anime_id_animes"})

	_, err := store.CreateSong(context.Background(), Song{AnimeID: 9, Category: CategoryOpening, Number: 1})
	assert.ErrorIs(t, err, ErrParentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateSongRejectsInvalidBeforeQuery(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	_, err := store.CreateSong(context.Background(), Song{AnimeID: 9, Category: "INSERT", Number: 1})
	assert.True(t, IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteSongNotFound(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM songs").
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := store.DeleteSong(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LevelCheckViolation(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE levels").
		WithArgs(int64(3), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "ck_levels_value_range"})

	_, err := store.UpdateLevel(context.Background(), 3, LevelPatch{CreatedBy: ptr("admin")})
	assert.True(t, IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListEligibleAnimes(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery(regexp.QuoteMeta("wr.status <> 'FAIL_TEMPORARY'")).
		WithArgs("songs_worker", 10).
		WillReturnRows(pgxmock.NewRows(animeCols).
			AddRow(int64(2), "B", "", "", 2020, AnimeStatusNormal, now, now).
			AddRow(int64(1), "A", "", "", 2019, AnimeStatusNormal, now.Add(-time.Hour), now))

	got, err := store.ListEligibleAnimes(context.Background(), "songs_worker", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].MalID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_HasTerminalResult(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("songs_worker", int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := store.HasTerminalResult(context.Background(), "songs_worker", 7)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CommitIngestion(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	animeID := int64(7)
	title := "A"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO songs").
		WithArgs(animeID, CategoryOpening, 1, (*string)(nil), &title).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("INSERT INTO worker_results").
		WithArgs("songs_worker", &animeID, ResultSuccess).
		WillReturnRows(pgxmock.NewRows(resultCols).AddRow(int64(1), "songs_worker", &animeID, ResultSuccess, now))
	mock.ExpectCommit()

	out, err := store.CommitIngestion(context.Background(),
		[]Song{{AnimeID: animeID, Category: CategoryOpening, Number: 1, Title: &title}},
		WorkerResult{WorkerName: "songs_worker", AnimeID: &animeID, Status: ResultSuccess})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CommitIngestionConflictRollsBack(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)
	animeID := int64(7)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO songs").
		WithArgs(animeID, CategoryOpening, 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_songs_anime_id"})
	mock.ExpectRollback()

	_, err := store.CommitIngestion(context.Background(),
		[]Song{{AnimeID: animeID, Category: CategoryOpening, Number: 1}},
		WorkerResult{WorkerName: "songs_worker", AnimeID: &animeID, Status: ResultSuccess})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	t.Parallel()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS animes").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, Migrate(context.Background(), mock))
	require.NoError(t, mock.ExpectationsWereMet())
}

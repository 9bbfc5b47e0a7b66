package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/example/aoq-factory/internal/catalog"
	"github.com/example/aoq-factory/internal/platform/api"
)

// setupReq builds a request with chi URL params in context.
func setupReq(method, url string, body string, params map[string]string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return resp.Error.Code
}

func seedAnime(t *testing.T, s *catalog.InMemoryStore, malID int64) {
	t.Helper()
	if _, err := s.CreateAnime(context.Background(), catalog.Anime{MalID: malID, TitleRo: "Cowboy Bebop"}); err != nil {
		t.Fatalf("seed anime: %v", err)
	}
}

func seedSong(t *testing.T, s *catalog.InMemoryStore, animeID int64, number int) catalog.Song {
	t.Helper()
	song, err := s.CreateSong(context.Background(), catalog.Song{AnimeID: animeID, Category: catalog.CategoryOpening, Number: number})
	if err != nil {
		t.Fatalf("seed song: %v", err)
	}
	return song
}

func TestCreateAnime(t *testing.T) {
	a := API{Store: catalog.NewInMemoryStore()}

	rr := serve(a.CreateAnime, setupReq(http.MethodPost, "/v1/animes",
		`{"mal_id":1,"title_ro":"Cowboy Bebop","release_year":1998}`, nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var got catalog.Anime
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.MalID != 1 || got.Status != catalog.AnimeStatusNormal || got.ReleaseYear != 1998 {
		t.Fatalf("unexpected anime %+v", got)
	}

	rr = serve(a.CreateAnime, setupReq(http.MethodPost, "/v1/animes", `{"mal_id":1,"title_ro":"Again"}`, nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate mal_id, got %d", rr.Code)
	}
}

func TestCreateAnimeValidation(t *testing.T) {
	a := API{Store: catalog.NewInMemoryStore()}

	cases := []struct {
		name string
		body string
		code string
	}{
		{"missing title", `{"mal_id":1}`, "VALIDATION_TITLE_RO"},
		{"missing id", `{"title_ro":"x"}`, "VALIDATION_MAL_ID"},
		{"blank title", `{"mal_id":1,"title_ro":"  "}`, "VALIDATION_TITLE_RO"},
		{"bad status", `{"mal_id":1,"title_ro":"x","status":"GONE"}`, "VALIDATION_STATUS"},
		{"unknown field", `{"mal_id":1,"title_ro":"x","rating":5}`, "INVALID_JSON"},
		{"malformed", `{"mal_id":`, "INVALID_JSON"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(a.CreateAnime, setupReq(http.MethodPost, "/v1/animes", tc.body, nil))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			if code := errorCode(t, rr); code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, code)
			}
		})
	}
}

func TestGetAnime(t *testing.T) {
	s := catalog.NewInMemoryStore()
	seedAnime(t, s, 5)
	a := API{Store: s}

	rr := serve(a.GetAnime, setupReq(http.MethodGet, "/v1/animes/5", "", map[string]string{"id": "5"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = serve(a.GetAnime, setupReq(http.MethodGet, "/v1/animes/6", "", map[string]string{"id": "6"}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = serve(a.GetAnime, setupReq(http.MethodGet, "/v1/animes/abc", "", map[string]string{"id": "abc"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "VALIDATION_ID" {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestUpdateAnimePartial(t *testing.T) {
	s := catalog.NewInMemoryStore()
	seedAnime(t, s, 5)
	a := API{Store: s}
	params := map[string]string{"id": "5"}

	rr := serve(a.UpdateAnime, setupReq(http.MethodPut, "/v1/animes/5", `{"status":"blacklisted"}`, params))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got catalog.Anime
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != catalog.AnimeStatusBlacklisted || got.TitleRo != "Cowboy Bebop" {
		t.Fatalf("unexpected anime after patch %+v", got)
	}

	rr = serve(a.UpdateAnime, setupReq(http.MethodPut, "/v1/animes/5", `{"mal_id":9}`, params))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mal_id change, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "IMMUTABLE_FIELD" {
		t.Fatalf("unexpected code %s", code)
	}

	rr = serve(a.UpdateAnime, setupReq(http.MethodPut, "/v1/animes/8", `{"title_ro":"x"}`, map[string]string{"id": "8"}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCreateSong(t *testing.T) {
	s := catalog.NewInMemoryStore()
	seedAnime(t, s, 1)
	a := API{Store: s}

	rr := serve(a.CreateSong, setupReq(http.MethodPost, "/v1/songs",
		`{"anime_id":1,"category":"opening","number":1,"song_name":"Tank!","song_artist":"The Seatbelts"}`, nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var got catalog.Song
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Category != catalog.CategoryOpening || got.Title == nil || *got.Title != "Tank!" {
		t.Fatalf("unexpected song %+v", got)
	}

	rr = serve(a.CreateSong, setupReq(http.MethodPost, "/v1/songs", `{"anime_id":1,"category":"OP","number":1}`, nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate (category, number), got %d", rr.Code)
	}

	rr = serve(a.CreateSong, setupReq(http.MethodPost, "/v1/songs", `{"anime_id":2,"category":"ED","number":1}`, nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown anime, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "PARENT_NOT_FOUND" {
		t.Fatalf("unexpected code %s", code)
	}

	rr = serve(a.CreateSong, setupReq(http.MethodPost, "/v1/songs", `{"anime_id":1,"category":"INSERT","number":1}`, nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad category, got %d", rr.Code)
	}

	rr = serve(a.CreateSong, setupReq(http.MethodPost, "/v1/songs", `{"anime_id":1,"category":"ED","number":0}`, nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero number, got %d", rr.Code)
	}
}

func TestUpdateAndDeleteSong(t *testing.T) {
	s := catalog.NewInMemoryStore()
	seedAnime(t, s, 1)
	song := seedSong(t, s, 1, 1)
	a := API{Store: s}
	id := strconv.FormatInt(song.ID, 10)
	params := map[string]string{"id": id}

	rr := serve(a.UpdateSong, setupReq(http.MethodPut, "/v1/songs/"+id, `{"song_artist":"Yoko Kanno"}`, params))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got catalog.Song
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Artist == nil || *got.Artist != "Yoko Kanno" || got.Number != 1 {
		t.Fatalf("unexpected song after patch %+v", got)
	}

	rr = serve(a.UpdateSong, setupReq(http.MethodPut, "/v1/songs/"+id, `{"anime_id":2}`, params))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for anime_id change, got %d", rr.Code)
	}

	rr = serve(a.DeleteSong, setupReq(http.MethodDelete, "/v1/songs/"+id, "", params))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = serve(a.DeleteSong, setupReq(http.MethodDelete, "/v1/songs/"+id, "", params))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rr.Code)
	}
}

func TestListAnimeSongs(t *testing.T) {
	s := catalog.NewInMemoryStore()
	seedAnime(t, s, 1)
	seedAnime(t, s, 2)
	seedSong(t, s, 1, 2)
	seedSong(t, s, 1, 1)
	seedSong(t, s, 2, 1)
	a := API{Store: s}

	rr := serve(a.ListAnimeSongs, setupReq(http.MethodGet, "/v1/animes/1/songs", "", map[string]string{"id": "1"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var songs []catalog.Song
	if err := json.NewDecoder(rr.Body).Decode(&songs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(songs) != 2 || songs[0].Number != 1 || songs[1].Number != 2 {
		t.Fatalf("unexpected songs %+v", songs)
	}

	rr = serve(a.ListAnimeSongs, setupReq(http.MethodGet, "/v1/animes/3/songs", "", map[string]string{"id": "3"}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown anime, got %d", rr.Code)
	}
}

func TestSourceTimingLevel(t *testing.T) {
	s := catalog.NewInMemoryStore()
	seedAnime(t, s, 1)
	song := seedSong(t, s, 1, 1)
	a := API{Store: s}
	songID := strconv.FormatInt(song.ID, 10)

	rr := serve(a.CreateSource, setupReq(http.MethodPost, "/v1/sources",
		`{"song_id":`+songID+`,"location":{"youtube":"abc"},"created_by":"ops"}`, nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var src catalog.Source
	if err := json.NewDecoder(rr.Body).Decode(&src); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if src.Status != catalog.SourceStatusNormal || src.Location["youtube"] != "abc" {
		t.Fatalf("unexpected source %+v", src)
	}

	rr = serve(a.CreateSource, setupReq(http.MethodPost, "/v1/sources", `{"song_id":`+songID+`}`, nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without location, got %d", rr.Code)
	}

	srcID := strconv.FormatInt(src.ID, 10)
	rr = serve(a.UpdateSource, setupReq(http.MethodPut, "/v1/sources/"+srcID, `{"status":"downloaded"}`,
		map[string]string{"id": srcID}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = serve(a.CreateTiming, setupReq(http.MethodPost, "/v1/timings",
		`{"source_id":`+srcID+`,"guess_start":-1,"reveal_start":30}`, nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative offset, got %d", rr.Code)
	}
	rr = serve(a.CreateTiming, setupReq(http.MethodPost, "/v1/timings",
		`{"source_id":`+srcID+`,"guess_start":10.5,"reveal_start":30}`, nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = serve(a.CreateLevel, setupReq(http.MethodPost, "/v1/levels", `{"song_id":`+songID+`,"value":101}`, nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range level, got %d", rr.Code)
	}
	rr = serve(a.CreateLevel, setupReq(http.MethodPost, "/v1/levels", `{"song_id":`+songID+`,"value":100}`, nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = serve(a.CreateLevel, setupReq(http.MethodPost, "/v1/levels", `{"song_id":999,"value":10}`, nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown song, got %d", rr.Code)
	}
}

type brokenStore struct {
	catalog.Store
}

func (brokenStore) ListAnimes(context.Context) ([]catalog.Anime, error) {
	return nil, errors.New("connection reset")
}

func TestStoreFailureIsInternal(t *testing.T) {
	a := API{Store: brokenStore{}}

	rr := serve(a.ListAnimes, setupReq(http.MethodGet, "/v1/animes", "", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "INTERNAL" {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestRoutes(t *testing.T) {
	s := catalog.NewInMemoryStore()
	seedAnime(t, s, 1)
	r := chi.NewRouter()
	API{Store: s}.Register(r)

	for _, path := range []string{"/v1/animes", "/v1/animes/1", "/v1/animes/1/songs", "/v1/songs", "/v1/sources", "/v1/timings", "/v1/levels"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", path, rr.Code)
		}
	}
}

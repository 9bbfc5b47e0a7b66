package handlers

import (
	"net/http"

	"github.com/example/aoq-factory/internal/catalog"
	"github.com/example/aoq-factory/internal/platform/api"
)

type animeRequest struct {
	MalID          *int64  `json:"mal_id"`
	TitleRo        *string `json:"title_ro"`
	PosterURL      *string `json:"poster_url"`
	PosterThumbURL *string `json:"poster_thumb_url"`
	ReleaseYear    *int    `json:"release_year"`
	Status         *string `json:"status"`
}

func parseAnimeStatus(raw *string) (*catalog.AnimeStatus, error) {
	if raw == nil {
		return nil, nil
	}
	st, err := catalog.ParseAnimeStatus(*raw)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (a API) ListAnimes(w http.ResponseWriter, r *http.Request) {
	out, err := a.Store.ListAnimes(r.Context())
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) GetAnime(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := a.Store.GetAnime(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) CreateAnime(w http.ResponseWriter, r *http.Request) {
	var req animeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.MalID == nil {
		missing(w, r, "mal_id")
		return
	}
	if req.TitleRo == nil {
		missing(w, r, "title_ro")
		return
	}
	status, err := parseAnimeStatus(req.Status)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	in := catalog.Anime{MalID: *req.MalID, TitleRo: *req.TitleRo}
	if req.PosterURL != nil {
		in.PosterURL = *req.PosterURL
	}
	if req.PosterThumbURL != nil {
		in.PosterThumbURL = *req.PosterThumbURL
	}
	if req.ReleaseYear != nil {
		in.ReleaseYear = *req.ReleaseYear
	}
	if status != nil {
		in.Status = *status
	}

	out, err := a.Store.CreateAnime(r.Context(), in)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, out)
}

func (a API) UpdateAnime(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req animeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.MalID != nil && *req.MalID != id {
		immutable(w, r, "mal_id")
		return
	}
	status, err := parseAnimeStatus(req.Status)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	out, err := a.Store.UpdateAnime(r.Context(), id, catalog.AnimePatch{
		TitleRo:        req.TitleRo,
		PosterURL:      req.PosterURL,
		PosterThumbURL: req.PosterThumbURL,
		ReleaseYear:    req.ReleaseYear,
		Status:         status,
	})
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) DeleteAnime(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.Store.DeleteAnime(r.Context(), id); err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, deletedResponse{Deleted: true, ID: id})
}

// ListAnimeSongs handles GET /v1/animes/{id}/songs.
func (a API) ListAnimeSongs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := a.Store.GetAnime(r.Context(), id); err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	out, err := a.Store.ListSongsByAnime(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

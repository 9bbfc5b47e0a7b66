package handlers

import (
	"net/http"

	"github.com/example/aoq-factory/internal/catalog"
	"github.com/example/aoq-factory/internal/platform/api"
)

type songRequest struct {
	AnimeID  *int64  `json:"anime_id"`
	Category *string `json:"category"`
	Number   *int    `json:"number"`
	Artist   *string `json:"song_artist"`
	Title    *string `json:"song_name"`
}

func (a API) ListSongs(w http.ResponseWriter, r *http.Request) {
	out, err := a.Store.ListSongs(r.Context())
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) GetSong(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := a.Store.GetSong(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) CreateSong(w http.ResponseWriter, r *http.Request) {
	var req songRequest
	if !a.decode(w, r, &req) {
		return
	}
	switch {
	case req.AnimeID == nil:
		missing(w, r, "anime_id")
		return
	case req.Category == nil:
		missing(w, r, "category")
		return
	case req.Number == nil:
		missing(w, r, "number")
		return
	}
	cat, err := catalog.ParseCategory(*req.Category)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	out, err := a.Store.CreateSong(r.Context(), catalog.Song{
		AnimeID:  *req.AnimeID,
		Category: cat,
		Number:   *req.Number,
		Artist:   req.Artist,
		Title:    req.Title,
	})
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, out)
}

func (a API) UpdateSong(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req songRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.AnimeID != nil {
		immutable(w, r, "anime_id")
		return
	}
	p := catalog.SongPatch{Number: req.Number, Artist: req.Artist, Title: req.Title}
	if req.Category != nil {
		cat, err := catalog.ParseCategory(*req.Category)
		if err != nil {
			a.writeStoreError(w, r, err)
			return
		}
		p.Category = &cat
	}
	out, err := a.Store.UpdateSong(r.Context(), id, p)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) DeleteSong(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.Store.DeleteSong(r.Context(), id); err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, deletedResponse{Deleted: true, ID: id})
}

package handlers

import (
	"net/http"

	"github.com/example/aoq-factory/internal/catalog"
	"github.com/example/aoq-factory/internal/platform/api"
)

// levelRequest carries a difficulty vote in [0, 100].
type levelRequest struct {
	SongID    *int64  `json:"song_id"`
	Value     *int    `json:"value"`
	CreatedBy *string `json:"created_by"`
}

func (a API) ListLevels(w http.ResponseWriter, r *http.Request) {
	out, err := a.Store.ListLevels(r.Context())
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) GetLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := a.Store.GetLevel(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) CreateLevel(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.SongID == nil {
		missing(w, r, "song_id")
		return
	}
	if req.Value == nil {
		missing(w, r, "value")
		return
	}
	in := catalog.Level{SongID: *req.SongID, Value: *req.Value}
	if req.CreatedBy != nil {
		in.CreatedBy = *req.CreatedBy
	}
	out, err := a.Store.CreateLevel(r.Context(), in)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, out)
}

func (a API) UpdateLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req levelRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.SongID != nil {
		immutable(w, r, "song_id")
		return
	}
	out, err := a.Store.UpdateLevel(r.Context(), id, catalog.LevelPatch{Value: req.Value, CreatedBy: req.CreatedBy})
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) DeleteLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.Store.DeleteLevel(r.Context(), id); err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, deletedResponse{Deleted: true, ID: id})
}

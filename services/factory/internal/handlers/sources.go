package handlers

import (
	"net/http"

	"github.com/example/aoq-factory/internal/catalog"
	"github.com/example/aoq-factory/internal/platform/api"
)

type sourceRequest struct {
	SongID    *int64         `json:"song_id"`
	Location  map[string]any `json:"location"`
	LocalPath *string        `json:"local_path"`
	Status    *string        `json:"status"`
	CreatedBy *string        `json:"created_by"`
}

func parseSourceStatus(raw *string) (*catalog.SourceStatus, error) {
	if raw == nil {
		return nil, nil
	}
	st, err := catalog.ParseSourceStatus(*raw)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (a API) ListSources(w http.ResponseWriter, r *http.Request) {
	out, err := a.Store.ListSources(r.Context())
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) GetSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := a.Store.GetSource(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.SongID == nil {
		missing(w, r, "song_id")
		return
	}
	if req.Location == nil {
		missing(w, r, "location")
		return
	}
	status, err := parseSourceStatus(req.Status)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	in := catalog.Source{SongID: *req.SongID, Location: req.Location, LocalPath: req.LocalPath}
	if status != nil {
		in.Status = *status
	}
	if req.CreatedBy != nil {
		in.CreatedBy = *req.CreatedBy
	}

	out, err := a.Store.CreateSource(r.Context(), in)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, out)
}

func (a API) UpdateSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req sourceRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.SongID != nil {
		immutable(w, r, "song_id")
		return
	}
	status, err := parseSourceStatus(req.Status)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	out, err := a.Store.UpdateSource(r.Context(), id, catalog.SourcePatch{
		Location:  req.Location,
		LocalPath: req.LocalPath,
		Status:    status,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) DeleteSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.Store.DeleteSource(r.Context(), id); err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, deletedResponse{Deleted: true, ID: id})
}

package handlers

import (
	"net/http"

	"github.com/example/aoq-factory/internal/catalog"
	"github.com/example/aoq-factory/internal/platform/api"
)

type timingRequest struct {
	SourceID    *int64   `json:"source_id"`
	GuessStart  *float64 `json:"guess_start"`
	RevealStart *float64 `json:"reveal_start"`
	CreatedBy   *string  `json:"created_by"`
}

func (a API) ListTimings(w http.ResponseWriter, r *http.Request) {
	out, err := a.Store.ListTimings(r.Context())
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) GetTiming(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := a.Store.GetTiming(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) CreateTiming(w http.ResponseWriter, r *http.Request) {
	var req timingRequest
	if !a.decode(w, r, &req) {
		return
	}
	switch {
	case req.SourceID == nil:
		missing(w, r, "source_id")
		return
	case req.GuessStart == nil:
		missing(w, r, "guess_start")
		return
	case req.RevealStart == nil:
		missing(w, r, "reveal_start")
		return
	}
	in := catalog.Timing{SourceID: *req.SourceID, GuessStart: *req.GuessStart, RevealStart: *req.RevealStart}
	if req.CreatedBy != nil {
		in.CreatedBy = *req.CreatedBy
	}
	out, err := a.Store.CreateTiming(r.Context(), in)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, out)
}

func (a API) UpdateTiming(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req timingRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.SourceID != nil {
		immutable(w, r, "source_id")
		return
	}
	out, err := a.Store.UpdateTiming(r.Context(), id, catalog.TimingPatch{
		GuessStart:  req.GuessStart,
		RevealStart: req.RevealStart,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a API) DeleteTiming(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.Store.DeleteTiming(r.Context(), id); err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, deletedResponse{Deleted: true, ID: id})
}

// Package handlers serves the catalog CRUD endpoints.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/aoq-factory/internal/catalog"
	"github.com/example/aoq-factory/internal/platform/api"
	"github.com/example/aoq-factory/internal/platform/httpserver"
)

type API struct {
	Store catalog.Store
	Log   *zap.Logger
}

// Register mounts every catalog route under /v1.
func (a API) Register(r chi.Router) {
	r.Route("/v1/animes", func(r chi.Router) {
		r.Get("/", a.ListAnimes)
		r.Post("/", a.CreateAnime)
		r.Get("/{id}", a.GetAnime)
		r.Put("/{id}", a.UpdateAnime)
		r.Delete("/{id}", a.DeleteAnime)
		r.Get("/{id}/songs", a.ListAnimeSongs)
	})
	r.Route("/v1/songs", func(r chi.Router) {
		r.Get("/", a.ListSongs)
		r.Post("/", a.CreateSong)
		r.Get("/{id}", a.GetSong)
		r.Put("/{id}", a.UpdateSong)
		r.Delete("/{id}", a.DeleteSong)
	})
	r.Route("/v1/sources", func(r chi.Router) {
		r.Get("/", a.ListSources)
		r.Post("/", a.CreateSource)
		r.Get("/{id}", a.GetSource)
		r.Put("/{id}", a.UpdateSource)
		r.Delete("/{id}", a.DeleteSource)
	})
	r.Route("/v1/timings", func(r chi.Router) {
		r.Get("/", a.ListTimings)
		r.Post("/", a.CreateTiming)
		r.Get("/{id}", a.GetTiming)
		r.Put("/{id}", a.UpdateTiming)
		r.Delete("/{id}", a.DeleteTiming)
	})
	r.Route("/v1/levels", func(r chi.Router) {
		r.Get("/", a.ListLevels)
		r.Post("/", a.CreateLevel)
		r.Get("/{id}", a.GetLevel)
		r.Put("/{id}", a.UpdateLevel)
		r.Delete("/{id}", a.DeleteLevel)
	})
}

type deletedResponse struct {
	Deleted bool  `json:"deleted"`
	ID      int64 `json:"id"`
}

func requestID(r *http.Request) string {
	return httpserver.RequestIDFromContext(r.Context())
}

// pathID parses the {id} URL parameter, answering 400 when it is not a
// positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		api.BadRequest(w, "VALIDATION_ID", "Invalid id", requestID(r), map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}

func (a API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := api.DecodeJSON(w, r, dst); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON: "+err.Error(), requestID(r), nil)
		return false
	}
	return true
}

func missing(w http.ResponseWriter, r *http.Request, field string) {
	api.BadRequest(w, "VALIDATION_"+strings.ToUpper(field), field+" is required", requestID(r), map[string]any{"field": field})
}

func immutable(w http.ResponseWriter, r *http.Request, field string) {
	api.BadRequest(w, "IMMUTABLE_FIELD", field+" cannot be changed", requestID(r), map[string]any{"field": field})
}

// writeStoreError maps catalog errors onto the error envelope.
func (a API) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	rid := requestID(r)
	var ve *catalog.ValidationError
	switch {
	case errors.As(err, &ve):
		api.BadRequest(w, "VALIDATION_"+strings.ToUpper(ve.Field), ve.Error(), rid,
			map[string]any{"field": ve.Field, "reason": ve.Reason})
	case errors.Is(err, catalog.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", err.Error(), rid)
	case errors.Is(err, catalog.ErrParentNotFound):
		api.NotFound(w, "PARENT_NOT_FOUND", err.Error(), rid)
	case errors.Is(err, catalog.ErrConflict):
		api.Conflict(w, "CONFLICT", err.Error(), rid, nil)
	default:
		log := a.Log
		if log == nil {
			log = zap.NewNop()
		}
		log.Error("catalog store failure", zap.String("path", r.URL.Path), zap.String("request_id", rid), zap.Error(err))
		api.Internal(w, rid)
	}
}

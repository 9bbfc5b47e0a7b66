package worker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/aoq-factory/internal/platform/api"
	"github.com/example/aoq-factory/internal/platform/httpserver"
)

// StatusAPI exposes the worker's side-port endpoints.
type StatusAPI struct {
	Worker *Worker
	// EnableTriggers mounts POST /v1/trigger. Meant for local debugging.
	EnableTriggers bool
}

type statusResponse struct {
	Worker    string       `json:"worker"`
	HasReport bool         `json:"has_report"`
	Last      *CycleReport `json:"last_cycle,omitempty"`
}

func (s StatusAPI) Register(r chi.Router) {
	r.Get("/v1/status", func(w http.ResponseWriter, _ *http.Request) {
		resp := statusResponse{Worker: s.Worker.cfg.Name}
		if last, ok := s.Worker.LastReport(); ok {
			resp.HasReport = true
			resp.Last = &last
		}
		api.WriteJSON(w, http.StatusOK, resp)
	})

	r.Post("/v1/trigger", func(w http.ResponseWriter, r *http.Request) {
		if !s.EnableTriggers {
			api.NotFound(w, "TRIGGERS_DISABLED", "HTTP triggers are disabled", httpserver.RequestIDFromContext(r.Context()))
			return
		}
		s.Worker.Trigger()
		api.WriteJSON(w, http.StatusAccepted, map[string]any{"triggered": true})
	})
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fairwaylabs/caddie/internal/handler/voice"
	"github.com/fairwaylabs/caddie/internal/middleware"
	"github.com/fairwaylabs/caddie/pkg/utils"
)

// NewRouter assembles the HTTP surface: a health probe and the versioned
// voice endpoints.
func NewRouter(voiceHandler *voice.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(api chi.Router) {
		voiceHandler.RegisterRoutes(api)
	})

	return r
}

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/icusim/icu-sim/internal/middleware"
	"github.com/icusim/icu-sim/internal/scheduler"
	"github.com/icusim/icu-sim/internal/services"
	"github.com/icusim/icu-sim/internal/storage"
)

// Deps carries the collaborators the HTTP surface is built from.
type Deps struct {
	Storage   storage.Storage
	NLG       services.NLGService
	Scheduler *scheduler.Scheduler
	Delays    scheduler.Delays
	Logger    *slog.Logger
}

// NewRouter builds the full route table.
func NewRouter(d Deps) http.Handler {
	sessionH := NewSessionHandler(d.Storage, d.Scheduler, d.Delays, d.Logger)
	scenarioH := NewScenarioHandler(d.Storage, d.Logger)
	chatH := NewChatHandler(d.Storage, d.NLG, d.Logger)
	handoffH := NewHandoffHandler(d.Storage, d.NLG, d.Logger)
	healthH := NewHealthHandler(d.Storage, d.Logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger(d.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", healthH.ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/scenarios", scenarioH.List)
		r.Get("/scenarios/{id}", scenarioH.Get)

		r.Post("/sessions", sessionH.Create)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", sessionH.Get)
			r.Delete("/", sessionH.Delete)
			r.Post("/start", sessionH.Start)
			r.Post("/investigations", sessionH.OrderInvestigations)
			r.Get("/results", sessionH.Results)
			r.Post("/exams", sessionH.Examine)
			r.Post("/medications", sessionH.OrderMedication)
			r.Post("/diagnosis", sessionH.SubmitDiagnosis)
			r.Get("/debrief", sessionH.Debrief)
		})

		r.Post("/chat", chatH.ServeHTTP)
		r.Post("/handoff", handoffH.ServeHTTP)
	})

	return r
}

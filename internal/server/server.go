package server

import (
	"log/slog"
	"net/http"

	"github.com/claude/repsync/internal/local"
	"github.com/claude/repsync/internal/syncer"
	"github.com/go-chi/chi/v5"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db     *local.DB
	sync   *syncer.Syncer
	log    *slog.Logger
	apiKey string
	router chi.Router
}

// New creates a new Server with all routes configured. sync may be nil
// when the instance runs local-only.
func New(db *local.DB, sync *syncer.Syncer, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		db:     db,
		sync:   sync,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Read endpoints (no auth — tsnet handles access)
		r.Get("/exercises", s.handleListExercises)
		r.Get("/exercises/{id}", s.handleGetExercise)
		r.Get("/workouts", s.handleListWorkouts)
		r.Get("/workouts/{id}", s.handleGetWorkout)
		r.Get("/sets", s.handleListSets)
		r.Get("/sets/{id}", s.handleGetSet)
		r.Get("/stats/volume", s.handleVolumeByDay)
		r.Get("/stats/exercises", s.handleVolumeByExercise)
		r.Get("/stats/summary", s.handleSummary)
		r.Get("/export/csv", s.handleExportCSV)
		r.Get("/sync/status", s.handleSyncStatus)

		// Mutating endpoints (API key required)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/exercises", s.handleCreateExercise)
			r.Put("/exercises/{id}", s.handleUpdateExercise)
			r.Delete("/exercises/{id}", s.handleDeleteExercise)
			r.Post("/workouts", s.handleCreateWorkout)
			r.Put("/workouts/{id}", s.handleUpdateWorkout)
			r.Delete("/workouts/{id}", s.handleDeleteWorkout)
			r.Post("/sets", s.handleCreateSet)
			r.Put("/sets/{id}", s.handleUpdateSet)
			r.Delete("/sets/{id}", s.handleDeleteSet)
			r.Post("/import/csv", s.handleImportCSV)
			r.Post("/sync", s.handleTriggerSync)
			r.Delete("/data", s.handleClearData)
		})
	})
}

// SetMCP mounts the MCP handler.
func (s *Server) SetMCP(h http.Handler) {
	s.router.Mount("/mcp", h)
}

// nudgeSync asks the background syncer to run after a local edit.
func (s *Server) nudgeSync() {
	if s.sync != nil {
		s.sync.Trigger()
	}
}

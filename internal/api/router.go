package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/cadence-api/internal/api/middleware"
	"github.com/phrazzld/cadence-api/internal/api/shared"
)

// NewRouter wires the task API. Everything under /api/tasks requires a
// bearer token; /health is public.
func NewRouter(tasks *TaskHandler, auth *middleware.AuthMiddleware, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/tasks", tasks.CreateTask)
			r.Get("/tasks", tasks.ListTasks)
			r.Get("/tasks/{id}", tasks.GetTask)
			r.Patch("/tasks/{id}", tasks.UpdateTask)
			r.Delete("/tasks/{id}", tasks.DeleteTask)
			r.Post("/tasks/{id}/stop-recurrence", tasks.StopRecurrence)
			r.Get("/tasks/{id}/instances", tasks.ListInstances)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
	})

	if log != nil {
		log.Debug("task API routes registered")
	}
	return r
}

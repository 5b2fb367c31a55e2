package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ray/events"
)

// NewRouter wires the API routes.
func NewRouter(s *Server, broker *events.EventBroker) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", SSEHandler(broker))

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.GetRuns)
			r.Get("/{id}", s.GetRun)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.GetProjects)
			r.Get("/{name}/runs", s.GetProjectRuns)
			r.Get("/{name}/stats", s.GetProjectStats)
			r.Post("/{name}/run", s.PostProjectRun)
		})
	})

	return r
}

// cors answers preflight requests and allows any origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

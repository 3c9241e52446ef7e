package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Routes wires the job API, the static artifact server, and the service
// endpoints. apiToken enables bearer auth on /jobs when non-empty.
func Routes(h *Handler, artifactsRoot, apiToken string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// custom logger, after RequestID so req_id is available
	r.Use(RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Use(BearerAuth(apiToken))

		r.Post("/", h.CreateJob)
		r.Get("/", h.ListJobs)
		r.Get("/{id}", h.GetJob)
		r.Patch("/{id}", h.PatchJob)
		r.Post("/{id}/audio", h.RequestAudio)
		r.Post("/{id}/video", h.RequestVideo)
		r.Post("/{id}/rerender", h.Rerender)
		r.Get("/{id}/artifact/{type}", h.RetrieveArtifact)
	})

	fileServer := http.FileServer(http.Dir(artifactsRoot))
	r.Handle("/artifacts/*", http.StripPrefix("/artifacts/", fileServer))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}

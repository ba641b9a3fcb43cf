package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itchan-dev/crosspost/internal/metrics"
	"github.com/itchan-dev/crosspost/internal/setup"
	mw "github.com/itchan-dev/crosspost/shared/middleware"
	rl "github.com/itchan-dev/crosspost/shared/middleware/ratelimiter"
)

// New creates the chi router with every route of the API.
func New(deps *setup.Dependencies) http.Handler {
	r := chi.NewRouter()
	h := deps.Handler

	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(mw.APIHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.Public.HTTP.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/websites", h.GetWebsites)

		r.Route("/websites/{website}/profiles/{profile}", func(r chi.Router) {
			r.Get("/status", h.GetStatus)
			r.Get("/folders", h.GetFolders)
			r.Post("/cookies/reset", h.ResetCookies)
			r.Delete("/session", h.Unauthorize)

			// Live checks log in to the remote site: 6 a minute per profile.
			r.Group(func(r chi.Router) {
				r.Use(mw.RateLimit(rl.PerMinute(6, deps.Clock), mw.GetProfileKey))
				r.Post("/status", h.CheckStatus)
				r.Post("/refresh", h.RefreshTokens)
			})
		})

		r.Post("/submissions/validate", h.ValidateSubmission)
		// Posting fans out to every remote site: 10 a minute per client,
		// 30 a minute overall.
		r.With(
			mw.GlobalRateLimit(rl.PerMinute(30, deps.Clock)),
			mw.RateLimit(rl.PerMinute(10, deps.Clock), mw.GetIP),
		).Post("/submissions/post", h.PostSubmission)
	})

	return r
}

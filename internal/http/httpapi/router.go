package httpapi

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"carecast/internal/http/handlers"
	"carecast/internal/infra"
	"carecast/internal/infra/geoip"
	"carecast/internal/middleware"
)

// NewRouter mounts all routes. The webhook endpoint deliberately sits outside
// the bearer-token group: the provider authenticates with its body signature,
// not with a user token.
func NewRouter(cfg *infra.Config, app *handlers.App, logger infra.Logger, geo geoip.CountryResolver) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, geo))
	r.Use(chimw.Recoverer)

	r.Get("/v1/healthz", app.Health)

	r.Post("/v1/webhooks/avatar", app.AvatarWebhook)

	r.Route("/v1/videos", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.AuthTokenSecret))
		r.With(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)).Post("/", app.VideosGenerate)
		r.Get("/{job_id}", app.VideoStatus)
	})

	return r
}

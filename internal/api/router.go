package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/voxserve/voxserve/internal/api/handlers"
	"github.com/voxserve/voxserve/internal/api/middleware"
	"github.com/voxserve/voxserve/internal/config"
	"github.com/voxserve/voxserve/internal/engine"
	"github.com/voxserve/voxserve/internal/queue"
)

type Router struct {
	mux    *chi.Mux
	cfg    *config.Config
	redis  *redis.Client
	engine engine.Engine
	apikey *middleware.APIKey
}

// NewRouter wires the HTTP front end. The engine here only answers readiness
// questions; inference happens exclusively in worker processes.
func NewRouter(cfg *config.Config, rdb *redis.Client, eng engine.Engine) *Router {
	return &Router{
		mux:    chi.NewRouter(),
		cfg:    cfg,
		redis:  rdb,
		engine: eng,
		apikey: middleware.NewAPIKey(cfg.Auth.APIKeyHeader, cfg.Auth.APIKeys),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))

	rl := middleware.NewRateLimiter(rt.cfg.Server.RateLimitRPS, rt.cfg.Server.RateLimitBurst)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.engine, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	queueClient := queue.NewClient(rt.cfg.Redis, rt.cfg.Worker)
	gateway := queue.NewGateway(rt.cfg.Redis)

	ttsH := handlers.NewTTSHandler(queueClient, gateway, rt.engine, rt.cfg.Output.Dir)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.apikey.Authenticate)

		r.Get("/languages", ttsH.Languages)
		r.Route("/tts", func(r chi.Router) {
			r.Post("/", ttsH.Submit)
			r.Get("/status/{id}", ttsH.Status)
			r.Get("/result/{id}", ttsH.Result)
		})
	})

	return r
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/kbengine/internal/api/handlers"
	"github.com/nikhilbhutani/kbengine/internal/api/middleware"
	"github.com/nikhilbhutani/kbengine/internal/config"
	"github.com/nikhilbhutani/kbengine/internal/document"
	"github.com/nikhilbhutani/kbengine/internal/engine"
	"github.com/nikhilbhutani/kbengine/internal/queue"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	eng   *engine.Engine
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config, eng *engine.Engine) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		eng:   eng,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (unscoped)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	docSvc := document.NewService(rt.db)
	queueClient := queue.NewClient(rt.cfg.Redis)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireScope)

		docH := handlers.NewDocumentHandler(docSvc, rt.eng, queueClient)
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docH.Create)
			r.Get("/", docH.List)
			r.Get("/{id}", docH.Get)
			r.Delete("/{id}", docH.Delete)
			r.Get("/{id}/status", docH.Status)
		})

		searchH := handlers.NewSearchHandler(rt.eng)
		r.Post("/search", searchH.Search)
		r.Post("/answer", searchH.Answer)
	})

	return r
}

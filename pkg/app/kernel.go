package app

import (
	"net/http"
	"time"

	"github.com/shashiranjanraj/ferremas/app/routes"
	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/metrics"
	"github.com/shashiranjanraj/ferremas/pkg/middleware"
	"github.com/shashiranjanraj/ferremas/pkg/reqid"
	"github.com/shashiranjanraj/ferremas/pkg/router"
)

// Router registers every route without the global middleware. route:list
// uses it directly.
func (a *App) Router() *router.Router {
	r := router.New()
	a.register(r)
	return r
}

func (a *App) register(r *router.Router) {
	r.HandleFunc("/metrics", metrics.Handler())
	routes.RegisterAPI(r, routes.Deps{Services: a.Services, Hub: a.Hub, Health: a.Health})
}

// Handler is the HTTP entry point.
func (a *App) Handler() http.Handler {
	r := router.New()

	// Outermost first:
	//  1. metrics, for total latency
	//  2. Recovery, before anything can panic
	//  3. request id, before anything logs
	//  4. Logger
	//  5. CORS
	//  6. rate limit
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))
	r.Use(middleware.RateLimit(config.Int("RATE_LIMIT_PER_MINUTE", 200), time.Minute))

	a.register(r)
	return r.Handler()
}

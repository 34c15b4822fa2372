package api

import (
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/qivr/analytics-etl/internal/api/handlers"
	mw "github.com/qivr/analytics-etl/internal/api/middleware"
	"github.com/qivr/analytics-etl/internal/metrics"
	"go.uber.org/zap"
)

const limiterIdle = 10 * time.Minute

type Config struct {
	TriggerToken   string
	RateLimitRPS   float64
	RateLimitBurst int
}

// App holds the router and the rate limiter janitor for lifecycle management.
type App struct {
	Router  *chi.Mux
	limiter *mw.RateLimiter
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewApp(events handlers.EventHandler, m *metrics.Metrics, cfg Config, logger *zap.Logger) *App {
	r := chi.NewRouter()
	app := &App{
		Router:  r,
		limiter: mw.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		stop:    make(chan struct{}),
	}
	runHandler := handlers.NewRunHandler(events, logger)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Metrics(m))
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", handlers.Health)
	r.Method("GET", "/metrics", m.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(app.limiter.Middleware)
		r.Use(mw.TokenAuth(cfg.TriggerToken))
		r.Post("/runs", runHandler.Create)
	})

	return app
}

// Start runs the limiter janitor until Stop.
func (a *App) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(limiterIdle)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.limiter.Cleanup(limiterIdle)
			case <-a.stop:
				return
			}
		}
	}()
}

func (a *App) Stop() {
	close(a.stop)
	a.wg.Wait()
}

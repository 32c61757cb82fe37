package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"trainerbook/pkg/config"
	"trainerbook/pkg/contracts"
	"trainerbook/pkg/middleware"
	"trainerbook/pkg/otelx"
)

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore middleware.IdempotencyStore
	rateLimiter      middleware.RateLimiter
	healthHandler    http.Handler
	appHTTPHandler   http.Handler
	workers          []contracts.Worker
	shutdownTracing  otelx.ShutdownFunc
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

// SetApp builds the HTTP stack. Health routes get only recovery and logging;
// API routes get the full middleware chain and tracing.
func (a *Application) SetApp(health contracts.Handler, handlers ...contracts.Handler) {
	a.setTracing()
	a.setHealthHandler(health)
	a.setAppHandler(handlers)
	a.setAppServer()
}

// AddWorker registers a background loop started by Run and stopped on shutdown.
func (a *Application) AddWorker(w contracts.Worker) {
	a.workers = append(a.workers, w)
}

func (a *Application) setTracing() {
	shutdown, err := otelx.Setup(context.Background(), otelx.Config{
		Enabled:      a.cfg.OtelEnabled,
		ServiceName:  a.cfg.ServiceName,
		OTLPEndpoint: a.cfg.OtelEndpoint,
	})
	if err != nil {
		a.cfg.Log.Error("Tracing setup failed, continuing without export", "error", err)
		shutdown = func(context.Context) error { return nil }
	}
	a.shutdownTracing = shutdown
	a.cfg.Log.Info("Tracing configured", "enabled", a.cfg.OtelEnabled && err == nil)
}

func (a *Application) setHealthHandler(health contracts.Handler) {
	healthRouter := httprouter.New()
	health.RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(handlers []contracts.Handler) {
	appRouter := httprouter.New()
	for _, h := range handlers {
		h.RegisterRoutes(appRouter)
	}

	a.setProtectionStores()

	var appHTTPHandler http.Handler = appRouter
	appHTTPHandler = middleware.Idempotency(a.idempotencyStore, middleware.DefaultIdempotencyHeader)(appHTTPHandler)
	appHTTPHandler = middleware.RequestTimeout(a.cfg.RequestTimeout)(appHTTPHandler)
	appHTTPHandler = middleware.RateLimit(a.rateLimiter, middleware.UserOrAddrKey, a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.ContentTypeValidation(a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(appHTTPHandler)
	appHTTPHandler = middleware.RequestLogging(a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.Recovery(a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = otelhttp.NewHandler(appHTTPHandler, a.cfg.ServiceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	a.appHTTPHandler = appHTTPHandler
	a.cfg.Log.Info("Application endpoints configured with full middleware stack")
}

// setProtectionStores shares rate limits and idempotency keys across replicas
// when Redis is configured and keeps them per process otherwise.
func (a *Application) setProtectionStores() {
	if rdb := a.cfg.Client.Redis; rdb != nil {
		a.idempotencyStore = middleware.NewRedisIdempotencyStore(rdb, a.cfg.IdempotencyTTL, a.cfg.Log)
		a.rateLimiter = middleware.NewRedisRateLimiter(rdb, a.cfg.RateLimitRequests, a.cfg.RateLimitWindow, "rl:"+a.cfg.ServiceName)
		a.cfg.Log.Info("Rate limiting and idempotency backed by Redis")
		return
	}

	a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	a.rateLimiter = middleware.NewUserRateLimiter(a.cfg.RateLimitRequests, a.cfg.RateLimitWindow)
	a.cfg.Log.Info("Rate limiting and idempotency kept in process memory")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.appHTTPHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var wg sync.WaitGroup
	a.startWorkers(workerCtx, &wg)

	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			a.cfg.Log.Fatal("HTTP server failed", "error", err)
		}

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown(stopWorkers, &wg)
	}
}

func (a *Application) startWorkers(ctx context.Context, wg *sync.WaitGroup) {
	for _, w := range a.workers {
		wg.Add(1)
		go func(w contracts.Worker) {
			defer wg.Done()
			a.cfg.Log.Info("Worker started", "worker", w.Name())
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.cfg.Log.Error("Worker stopped with error", "worker", w.Name(), "error", err)
				return
			}
			a.cfg.Log.Info("Worker stopped", "worker", w.Name())
		}(w)
	}
}

func (a *Application) gracefulShutdown(stopWorkers context.CancelFunc, wg *sync.WaitGroup) {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Error("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Stopping background workers...", "count", len(a.workers))
	stopWorkers()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.cfg.Log.Info("Background workers stopped")
	case <-ctx.Done():
		a.cfg.Log.Warn("Background workers did not stop before the shutdown deadline")
	}

	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()

	if err := a.shutdownTracing(ctx); err != nil {
		a.cfg.Log.Error("Tracing shutdown failed", "error", err)
	}

	a.cfg.Log.Info("Server stopped gracefully")
}

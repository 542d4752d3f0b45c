package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"codepad/internal/config"
	"codepad/internal/monitor"
	"codepad/internal/session"
	"codepad/internal/store"
)

// Server is the HTTP server fronting the execution engine: token
// issuance, job status, the execute WebSocket, health, and metrics.
type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	startTime  time.Time
}

func NewServer(cfg *config.Config, st store.Store, orch *session.Orchestrator, rdb *redis.Client, metrics *monitor.Metrics) *Server {
	handlers := NewHandlers(st, orch, cfg, metrics)

	s := &Server{
		cfg:       cfg,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", handlers.HandleCreateJob)
	mux.HandleFunc("GET /api/jobs/{id}", handlers.HandleGetJob)
	mux.HandleFunc("GET /ws/execute", handlers.HandleExecuteWS)
	mux.HandleFunc("GET /health", s.handleHealth(rdb))
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}

	// Middleware chain (innermost first; each wrap becomes the new
	// outermost layer, so Recovery sees every request first).
	var handler http.Handler = mux
	handler = MetricsMiddleware(metrics)(handler)
	handler = RateLimitMiddleware(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst)(handler)
	handler = MaxBodyMiddleware(cfg.Server.MaxRequestBody)(handler)
	handler = LoggingMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:        cfg.Address(),
		Handler:     handler,
		ReadTimeout: cfg.Server.ReadTimeout,
		// No WriteTimeout: the execute socket streams for the lifetime
		// of a job.
		IdleTimeout: 120 * time.Second,
	}

	return s
}

// Start begins listening for requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redisOK := true
		if rdb != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			redisOK = rdb.Ping(ctx).Err() == nil
		}

		resp := HealthResponse{
			Status: "ok",
			Redis:  redisOK,
			Uptime: time.Since(s.startTime).Round(time.Second).String(),
		}

		status := http.StatusOK
		if !redisOK {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}

		writeJSON(w, status, resp)
	}
}

package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/copyleftdev/uiprobe/internal/auth"
	"github.com/copyleftdev/uiprobe/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	logger     *zap.Logger
}

// NewRouter wires the middleware stack and the run API.
func NewRouter(cfg *config.Config, handler *APIHandler, totpVerifier *auth.TOTPVerifier, logger *zap.Logger) http.Handler {
	router := chi.NewRouter()

	// --- Middleware Setup ---
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", totpHeader},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check stays reachable without credentials.
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	})

	router.Route("/api/v1", func(r chi.Router) {
		if cfg.Security.ApiKey != "" {
			r.Use(APIKeyAuth(cfg.Security.ApiKey))
		}
		if totpVerifier != nil {
			r.Use(TOTPAuth(totpVerifier, logger))
		}
		r.Post("/runs", handler.HandleSubmitRun)
		r.Get("/runs/{runID}", handler.HandleGetRun)
		r.Get("/runs/{runID}/evidence/{tag}", handler.HandleGetEvidence)
	})

	return router
}

func NewServer(cfg *config.Config, handler *APIHandler, totpVerifier *auth.TOTPVerifier, logger *zap.Logger) *Server {
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      NewRouter(cfg, handler, totpVerifier, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     zap.NewStdLog(logger.Named("http")),
	}

	return &Server{
		httpServer: httpServer,
		cfg:        cfg,
		logger:     logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("Starting uiprobe server", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("Server gracefully stopped")
	return nil
}

// --- Custom Middleware ---

// RequestLogger logs one structured line per request.
func RequestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("HTTP request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote", r.RemoteAddr),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

// APIKeyAuth accepts the key in X-API-Key or as a Bearer token.
func APIKeyAuth(validKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			// Allow pre-flight OPTIONS requests without auth
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				authHeader := r.Header.Get("Authorization")
				if strings.HasPrefix(authHeader, "Bearer ") {
					apiKey = strings.TrimPrefix(authHeader, "Bearer ")
				}
			}

			if apiKey == "" {
				http.Error(w, http.StatusText(http.StatusUnauthorized)+": API key required", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) != 1 {
				http.Error(w, http.StatusText(http.StatusForbidden)+": Invalid API key", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

const totpHeader = "X-TOTP-Code"

// TOTPAuth requires a current one-time code in the X-TOTP-Code header.
func TOTPAuth(verifier *auth.TOTPVerifier, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			code := strings.TrimSpace(r.Header.Get(totpHeader))
			if code == "" {
				http.Error(w, http.StatusText(http.StatusUnauthorized)+": one-time code required", http.StatusUnauthorized)
				return
			}
			ok, err := verifier.Verify(code)
			if err != nil {
				logger.Debug("Rejected one-time code", zap.Error(err))
			}
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized)+": invalid one-time code", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

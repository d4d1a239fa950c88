package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sunbk201/xlink/internal/config"
	applog "github.com/sunbk201/xlink/internal/log"
	"github.com/sunbk201/xlink/internal/statistics"
	"github.com/sunbk201/xlink/internal/store"
)

type APIServer struct {
	version        string
	cfg            *config.Config
	addr           string
	live           *store.Live
	recorder       *statistics.Recorder
	httpServer     *http.Server
	logBroadcaster *applog.Broadcaster
}

func New(version string, cfg *config.Config, live *store.Live, rc *statistics.Recorder, lb *applog.Broadcaster) *APIServer {
	if lb == nil {
		lb = applog.NewBroadcaster()
	}
	return &APIServer{
		version:        version,
		cfg:            cfg,
		addr:           cfg.API.Listen,
		live:           live,
		recorder:       rc,
		logBroadcaster: lb,
	}
}

// Handler returns the router with every route mounted.
func (s *APIServer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if s.cfg.API.Secret != "" {
		r.Use(s.authMiddleware)
	}

	r.Get("/version", s.handleVersion)
	r.Get("/config", s.handleConfig)
	r.Put("/config", s.handleUpdateConfig)
	r.Get("/modes", s.handleModes)

	r.Post("/rewrite", s.handleRewrite)

	r.Route("/rules", func(r chi.Router) {
		r.Get("/", s.handleRules)
		r.Post("/", s.handleAddRule)
		r.Patch("/{id}/toggle", s.handleToggleRule)
		r.Delete("/{id}", s.handleDeleteRule)
	})

	r.Get("/stats", s.handleStats)
	r.Get("/logs", s.handleLogs)

	r.Route("/debug/pprof", func(r chi.Router) {
		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		r.Handle("/goroutine", pprof.Handler("goroutine"))
		r.Handle("/heap", pprof.Handler("heap"))
	})

	return r
}

func (s *APIServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api-server listen failed: %w", err)
	}

	slog.Info("api-server started", slog.String("addr", ln.Addr().String()))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("api-server error", slog.Any("error", err))
		}
	}()

	return nil
}

func (s *APIServer) Close() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slog.Info("api-server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func slogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("api-server request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *APIServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		token = strings.TrimPrefix(token, "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("secret")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.API.Secret)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hpungsan/lifegrid/internal/config"
	"github.com/hpungsan/lifegrid/internal/engine"
	"github.com/hpungsan/lifegrid/internal/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates the HTTP server for the planner UI.
func NewServer(eng *engine.Engine, cfg *config.Config, log *logger.Logger, version, bind string, port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           NewHandler(eng, cfg, log, version),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the routed handler. Split out from NewServer so tests can
// drive it with httptest.
func NewHandler(eng *engine.Engine, cfg *config.Config, log *logger.Logger, version string) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(fmt.Sprintf("template sub-FS: %v", err))
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("static sub-FS: %v", err))
	}

	h := &Handlers{
		eng:      eng,
		cfg:      cfg,
		log:      log,
		renderer: NewRenderer(templateSub, version, log),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/", h.HandleRoot)
	r.Get("/setup", h.HandleSetupForm)
	r.Post("/setup", h.HandleSetup)

	r.Route("/years/{year}", func(r chi.Router) {
		r.Get("/", h.HandleYear)
		r.Get("/months/{month}", h.HandleMonth)
		r.Get("/months/{month}/weeks/{week}", h.HandleWeek)
	})

	r.Post("/memos/month", h.HandleMonthMemo)
	r.Post("/memos/week", h.HandleWeekMemo)
	r.Post("/memos/day", h.HandleDayMemo)
	r.Post("/theme", h.HandleTheme)
	r.Post("/import", h.HandleImport)
	r.Get("/export", h.HandleExport)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.HandleStats)
		r.Get("/resolve", h.HandleResolve)
	})

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return r
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and shuts it down gracefully on SIGINT/SIGTERM.
func Run(srv *http.Server, log *logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("lifegrid UI running", "url", "http://"+srv.Addr)
	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-sigCh:
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

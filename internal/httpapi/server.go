// Package httpapi is the operator-facing control surface: start, stop and
// observe campaigns over plain HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"zapblast/internal/campaign"
	"zapblast/internal/eventbus"
	"zapblast/internal/reports"
	"zapblast/internal/scheduler"
	logx "zapblast/pkg/logx"
)

const defaultUploadMaxBytes = 32 << 20 // 32 MiB

type Config struct {
	Addr           string // e.g. ":8080"
	UploadMaxBytes int64
}

type Server struct {
	cfg    Config
	engine *campaign.Service
	sched  *scheduler.Service
	rec    *reports.Recorder
	bus    eventbus.Bus
	log    logx.Logger

	srv *http.Server
}

func New(cfg Config, engine *campaign.Service, sched *scheduler.Service, rec *reports.Recorder, bus eventbus.Bus, log logx.Logger) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = ":8080"
	}
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = defaultUploadMaxBytes
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	s := &Server{cfg: cfg, engine: engine, sched: sched, rec: rec, bus: bus, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Get("/status", s.handleStatus)
		r.Get("/reports", s.handleReports)
		r.Get("/events", s.handleEvents)
		r.Delete("/schedule", s.handleUnschedule)
	})

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving. It returns once the listener is bound; serve errors
// after that are logged.
func (s *Server) Start(ctx context.Context) error {
	_ = ctx
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server failed", logx.Err(err))
		}
	}()
	s.log.Info("http api listening", logx.String("addr", ln.Addr().String()))
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

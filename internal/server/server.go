package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mannyrayner/C-LARA-2/internal/pipeline"
)

// Server serves one run directory.
type Server struct {
	router chi.Router
	runDir string
	log    zerolog.Logger
}

// New creates the HTTP server for runDir.
func New(runDir string, log zerolog.Logger) *Server {
	s := &Server{
		runDir: runDir,
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/progress", s.handleProgress)
	r.Get("/api/stages", s.handleStages)
	r.Get("/api/stages/{stage}", s.handleStage)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/html/page_1.html", http.StatusFound)
	})
	htmlDir := http.Dir(filepath.Join(s.runDir, "html"))
	r.Handle("/html/*", http.StripPrefix("/html/", http.FileServer(htmlDir)))

	s.router = r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Str("run", s.runDir).Msg("serving run directory")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	entries, err := pipeline.ReadProgress(s.runDir)
	if err != nil {
		jsonError(w, "failed to read progress: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []pipeline.ProgressEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"entries": entries})
}

func (s *Server) handleStages(w http.ResponseWriter, r *http.Request) {
	stages := pipeline.PersistedStages(s.runDir)
	if stages == nil {
		stages = []pipeline.Stage{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"stages": stages})
}

// handleStage returns the persisted JSON document of one stage.
func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	stage, err := pipeline.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := os.ReadFile(pipeline.StagePath(s.runDir, stage))
	if errors.Is(err, os.ErrNotExist) {
		jsonError(w, "stage not persisted: "+string(stage), http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to read stage: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

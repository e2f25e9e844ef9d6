// Package server exposes the classification pipeline over HTTP: run
// history lookups, component health and an asynchronous classify
// endpoint bounded to one in-flight run.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veilletech/triage-cli/internal/classify"
	"github.com/veilletech/triage-cli/internal/model"
	"github.com/veilletech/triage-cli/internal/store"
)

// Runner executes one classification run over a dataset reference and
// returns the merged results plus the benchmark report.
type Runner func(ctx context.Context, dataset string) ([]model.ClassificationResult, *model.BenchmarkReport, error)

// Options configures the API server.
type Options struct {
	Store  store.Store
	Runner Runner
	// LLM reports expensive-strategy availability for /health. Nil means
	// the strategy is not configured and health reports it disabled.
	LLM  classify.AvailabilityChecker
	Port int
}

// Server is the HTTP API over the run store and the pipeline.
type Server struct {
	store   store.Store
	runner  Runner
	llm     classify.AvailabilityChecker
	port    int
	log     *zap.Logger
	running atomic.Bool
	baseCtx context.Context
}

// New wires an API server from its collaborators.
func New(opts Options) *Server {
	return &Server{
		store:  opts.Store,
		runner: opts.Runner,
		llm:    opts.LLM,
		port:   opts.Port,
		log:    zap.L().With(zap.String("pkg", "server")),
	}
}

// Handler builds the route tree. Split from Serve so tests can drive it
// with httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Post("/classify", s.handleClassify)
	})
	return r
}

// Serve runs the server until ctx is cancelled, then shuts down
// gracefully. Runs launched over HTTP inherit ctx, so cancellation also
// stops the in-flight pipeline.
func (s *Server) Serve(ctx context.Context) error {
	s.baseCtx = ctx

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	s.log.Info("server: listening", zap.Int("port", s.port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	LLM    string `json:"llm"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Store: "ok", LLM: "disabled"}
	code := http.StatusOK

	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Warn("server: store ping failed", zap.Error(err))
		resp.Status = "degraded"
		resp.Store = "unavailable"
		code = http.StatusServiceUnavailable
	}

	// An unavailable LLM is not a service failure: sampled records fall
	// back to the pattern engine.
	if s.llm != nil {
		if s.llm.IsAvailable(r.Context()) {
			resp.LLM = "available"
		} else {
			resp.LLM = "unavailable"
		}
	}

	writeJSON(w, code, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.log.Error("server: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.log.Error("server: get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type classifyRequest struct {
	Dataset string `json:"dataset"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Dataset == "" {
		writeError(w, http.StatusBadRequest, "dataset is required")
		return
	}

	if !s.running.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}

	run, err := s.store.CreateRun(r.Context(), req.Dataset)
	if err != nil {
		s.running.Store(false)
		s.log.Error("server: create run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "create run failed")
		return
	}

	go s.execute(s.runContext(), run)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"run_id": run.ID,
	})
}

// execute drives one asynchronous run and records its outcome.
func (s *Server) execute(ctx context.Context, run *model.Run) {
	defer s.running.Store(false)

	log := s.log.With(zap.String("run_id", run.ID), zap.String("dataset", run.Dataset))
	if err := s.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		log.Error("server: mark run running", zap.Error(err))
	}

	_, report, err := s.runner(ctx, run.Dataset)
	if err != nil {
		log.Error("server: run failed", zap.Error(err))
		if ferr := s.store.FailRun(ctx, run.ID, err.Error()); ferr != nil {
			log.Error("server: record run failure", zap.Error(ferr))
		}
		return
	}

	if err := s.store.CompleteRun(ctx, run.ID, report); err != nil {
		log.Error("server: record run completion", zap.Error(err))
		return
	}
	log.Info("server: run complete",
		zap.Int("records", report.TotalRecords),
		zap.Int64("elapsed_ms", report.ElapsedMs),
	)
}

// runContext is the context async runs inherit: the Serve context when
// the server is live, Background under tests driving Handler directly.
func (s *Server) runContext() context.Context {
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return context.Background()
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

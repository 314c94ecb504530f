package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/liamcoop/startrescue/exam"
	"github.com/liamcoop/startrescue/export"
	"github.com/liamcoop/startrescue/internal/config"
	"github.com/liamcoop/startrescue/internal/logger"
	"github.com/liamcoop/startrescue/random"
	"github.com/liamcoop/startrescue/rules"
)

const (
	reportTitle   = "START triage exam results"
	slowThreshold = 2 * time.Second
)

type Server struct {
	engine   *rules.Engine
	registry *exam.Registry
	router   *chi.Mux
}

func NewServer(cfg config.Config) (*Server, error) {
	engine, err := rules.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to build triage engine: %w", err)
	}
	logger.Info("triage protocol compiled", "rules", len(engine.Protocol()))

	s := &Server{
		engine:   engine,
		registry: exam.NewRegistry(sessionFactory(engine, cfg), cfg.SessionIdleTTL),
	}
	s.setupRoutes()

	return s, nil
}

// sessionFactory builds sessions that tick at cfg.QuestionTick. A non-zero
// RandomSeed gives every session the same replayable source.
func sessionFactory(engine *rules.Engine, cfg config.Config) exam.SessionFactory {
	return func() (*exam.Session, error) {
		opts := []exam.Option{exam.WithTickInterval(cfg.QuestionTick)}
		if cfg.RandomSeed != 0 {
			opts = append(opts, exam.WithRandom(random.NewSeeded(cfg.RandomSeed)))
		}
		return exam.NewSession(engine, opts...)
	}
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/protocol", s.handleProtocol)

	r.Route("/api/v1/exams", func(r chi.Router) {
		r.Post("/", s.handleCreateExam)

		r.Route("/{examId}", func(r chi.Router) {
			r.Get("/", s.handleGetExam)
			r.Delete("/", s.handleDeleteExam)

			// Actions
			r.Post("/tourniquet", s.handleAction(func(e *exam.Session) bool { return e.ApplyTourniquet() }))
			r.Post("/airway", s.handleAction(func(e *exam.Session) bool { return e.ApplyAirway() }))
			r.Post("/next", s.handleAction(func(e *exam.Session) bool { return e.NextQuestion() }))
			r.Post("/restart", s.handleAction(func(e *exam.Session) bool { e.Restart(); return true }))
			r.Post("/answer", s.handleAnswer)

			// Results
			r.Get("/results", s.handleResults)
			r.Get("/results.csv", s.handleResultsCSV)
			r.Get("/results.pdf", s.handleResultsPDF)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs one line per request through the package logger and
// feeds the HTTP counters.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		status := ww.Status()
		switch {
		case status >= 500:
			logger.ErrorHttp5xx()
		case status >= 400:
			logger.WarnHttp4xx(status)
		}
		if elapsed > slowThreshold {
			logger.WarnSlowRequest()
		}

		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed.String(),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		SessionsLoaded: s.registry.Len(),
		Errors:         logger.TotalErrors.Load(),
		Warnings:       logger.TotalWarnings.Load(),
		HTTP4xx:        logger.Total4xxErrors.Load(),
		HTTP5xx:        logger.Total5xxErrors.Load(),
		SlowRequests:   logger.SlowRequests.Load(),
	})
}

func (s *Server) handleProtocol(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ProtocolResponse{Rules: s.engine.Protocol()})
}

// Create exam handler
func (s *Server) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req CreateExamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	id, session, err := s.registry.Create(exam.Examinee{
		Name:         req.Name,
		Sector:       req.Sector,
		Registration: req.Registration,
		Email:        req.Email,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create exam", err)
		return
	}

	logger.Info("exam created", "examId", id, "sessions", s.registry.Len())
	respondJSON(w, http.StatusCreated, ExamResponse{ID: id, Exam: session.Snapshot()})
}

// session resolves the {examId} URL parameter, answering 404 when unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*exam.Session, bool) {
	id := chi.URLParam(r, "examId")
	session, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, exam.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "exam not found", err)
		} else {
			respondError(w, http.StatusInternalServerError, "failed to load exam", err)
		}
		return nil, false
	}
	return session, true
}

func (s *Server) handleGetExam(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, session.Snapshot())
}

func (s *Server) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "examId")
	if err := s.registry.Delete(id); err != nil {
		respondError(w, http.StatusNotFound, "exam not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAction runs a session transition and reports whether it applied.
func (s *Server) handleAction(action func(*exam.Session) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := s.session(w, r)
		if !ok {
			return
		}
		applied := action(session)
		respondJSON(w, http.StatusOK, ActionResponse{Applied: applied, Exam: session.Snapshot()})
	}
}

// Answer handler
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	color, err := rules.ParseColor(req.Color)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid color", err)
		return
	}

	applied := session.PickColor(color)
	respondJSON(w, http.StatusOK, ActionResponse{Applied: applied, Exam: session.Snapshot()})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, ResultsResponse{
		Examinee: session.Examinee(),
		Records:  session.History(),
		Summary:  session.Summary(),
		Quotas:   session.Quotas(),
	})
}

func (s *Server) handleResultsCSV(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, session.Examinee(), session.History()); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to export csv", err)
		return
	}
	respondFile(w, "text/csv; charset=utf-8", "triage_"+chi.URLParam(r, "examId")+".csv", buf.Bytes())
}

func (s *Server) handleResultsPDF(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WritePDF(&buf, reportTitle, session.Examinee(), session.History()); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to export pdf", err)
		return
	}
	respondFile(w, "application/pdf", "triage_"+chi.URLParam(r, "examId")+".pdf", buf.Bytes())
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

func respondFile(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.Warn("failed to write file response", "file", filename, "error", err)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal("invalid log level", "level", cfg.LogLevel, "error", err)
	}

	ctx := context.Background()
	shutdownLogger, err := logger.Setup(ctx, logger.Options{
		Level:       level,
		OTELEnabled: cfg.OTELEnabled,
		ServiceName: cfg.OTELServiceName,
	})
	if err != nil {
		logger.Warn("OTEL logging unavailable, using stdout", "error", err)
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}

	if err := server.registry.StartJanitor(cfg.ReapSchedule); err != nil {
		logger.Fatal("failed to start session janitor", "error", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	server.registry.StopJanitor()

	logger.Info("server stopped", "errors", logger.TotalErrors.Load(), "warnings", logger.TotalWarnings.Load())
	if err := shutdownLogger(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
	}
}

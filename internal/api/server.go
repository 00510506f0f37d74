package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tailspot/internal/config"
	"tailspot/internal/logging"
	"tailspot/internal/monitor"
	"tailspot/internal/review"
	"tailspot/internal/store"
)

// Controller is the slice of the orchestrator the API drives.
type Controller interface {
	Pause()
	Resume()
	Paused() bool
	Concurrency() int
	SetConcurrency(limit int) int
	Rescan(ctx context.Context, registration string) (int64, error)
}

// Server exposes the daemon over HTTP.
type Server struct {
	bind         string
	databasePath string
	logger       *slog.Logger

	store   *store.Store
	monitor *monitor.Monitor
	control Controller
	reviews *review.Service
	hub     *Hub

	listener net.Listener
	server   *http.Server
}

// NewServer wires the route table. Returns nil when the config leaves the
// API unbound; the daemon then runs headless.
func NewServer(cfg *config.Config, st *store.Store, mon *monitor.Monitor, control Controller, reviews *review.Service, hub *Hub, logger *slog.Logger) *Server {
	if cfg == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &Server{
		bind:         bind,
		databasePath: cfg.DatabasePath(),
		logger:       logging.NewComponentLogger(logger, "api"),
		store:        st,
		monitor:      mon,
		control:      control,
		reviews:      reviews,
		hub:          hub,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/queue", srv.handleQueue)
	mux.HandleFunc("/api/queue/runs", srv.handleQueueRuns)
	mux.HandleFunc("/api/queue/pause", srv.handleQueuePause)
	mux.HandleFunc("/api/queue/resume", srv.handleQueueResume)
	mux.HandleFunc("/api/queue/concurrency", srv.handleQueueConcurrency)
	mux.HandleFunc("/api/queue/retry", srv.handleQueueRetry)
	mux.HandleFunc("/api/queue/rescan", srv.handleQueueRescan)
	mux.HandleFunc("/api/review", srv.handleReview)
	mux.HandleFunc("/api/review/", srv.handleReviewAction)
	mux.HandleFunc("/api/photos/", srv.handlePhoto)
	mux.HandleFunc("/api/library", srv.handleLibrary)
	mux.HandleFunc("/api/flights", srv.handleFlights)
	mux.HandleFunc("/api/events", srv.handleEvents)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Start binds the listener and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down. Safe to call after Start's context is done.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr reports the bound address, or empty before Start.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snapshot, err := s.monitor.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	flights, err := s.store.FlightCount(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, FromSnapshot(snapshot, flights, s.databasePath, os.Getpid()))
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	filter := store.JobFilter{
		Source:       strings.TrimSpace(query.Get("source")),
		Registration: strings.TrimSpace(query.Get("registration")),
	}
	for _, value := range query["status"] {
		status, err := store.ParseJobStatus(value)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if value := query.Get("limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	jobs, err := s.store.ListJobs(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, QueueResponse{Jobs: FromJobs(jobs)})
}

func (s *Server) handleQueueRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.RecentRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, RunsResponse{Runs: FromRuns(runs)})
}

func (s *Server) handleQueuePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.control.Pause()
	s.writeJSON(w, http.StatusOK, PausedResponse{Paused: s.control.Paused()})
}

func (s *Server) handleQueueResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.control.Resume()
	s.writeJSON(w, http.StatusOK, PausedResponse{Paused: s.control.Paused()})
}

func (s *Server) handleQueueConcurrency(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, ConcurrencyResponse{Concurrency: s.control.Concurrency()})
	case http.MethodPost:
		var req ConcurrencyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		applied := s.control.SetConcurrency(req.Concurrency)
		s.writeJSON(w, http.StatusOK, ConcurrencyResponse{Concurrency: applied})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleQueueRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	req, ok := s.decodeRegistration(w, r)
	if !ok {
		return
	}
	count, err := s.requeueFailed(r.Context(), req.Registration)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

// requeueFailed returns failed jobs to the queue, optionally scoped to one
// registration.
func (s *Server) requeueFailed(ctx context.Context, registration string) (int64, error) {
	if strings.TrimSpace(registration) == "" {
		return s.store.RequeueJobs(ctx, nil)
	}
	jobs, err := s.store.ListJobs(ctx, store.JobFilter{
		Statuses:     []store.JobStatus{store.JobFailed},
		Registration: registration,
	})
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	ids := make([]int64, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}
	return s.store.RequeueJobs(ctx, ids)
}

func (s *Server) handleQueueRescan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	req, ok := s.decodeRegistration(w, r)
	if !ok {
		return
	}
	count, err := s.control.Rescan(r.Context(), req.Registration)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	opts := review.Options{LowConfidence: isTrue(query.Get("low_confidence"))}

	items, err := s.reviews.Queue(r.Context(), opts)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	index, _ := strconv.Atoi(query.Get("index"))
	if value := query.Get("id"); value != "" {
		// A deep link to a decided or deleted candidate falls back to the
		// positional index.
		if id, err := strconv.ParseInt(value, 10, 64); err == nil {
			for _, item := range items {
				if item.Photo.ID == id {
					index = item.Index
					break
				}
			}
		}
	}
	if index < 0 {
		index = 0
	}
	if index >= len(items) && len(items) > 0 {
		index = len(items) - 1
	}
	if len(items) == 0 {
		index = 0
	}

	s.writeJSON(w, http.StatusOK, ReviewResponse{
		Total: len(items),
		Index: index,
		Items: FromReviewItems(items),
	})
}

func (s *Server) handleReviewAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/review/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid candidate id")
		return
	}

	var photo *store.CandidatePhoto
	switch parts[1] {
	case "approve":
		photo, err = s.reviews.Approve(r.Context(), id)
	case "reject":
		photo, err = s.reviews.Reject(r.Context(), id)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.writeError(w, decisionStatus(err), err.Error())
		return
	}

	if s.hub != nil {
		s.hub.Broadcast(EventReview, ReviewEvent{
			PhotoID:      photo.ID,
			Registration: photo.Registration,
			State:        string(photo.ReviewState),
		})
	}
	s.writeJSON(w, http.StatusOK, FromCandidate(photo))
}

func (s *Server) handlePhoto(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/photos/")
	if idStr == "" || strings.Contains(idStr, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid photo id")
		return
	}
	deleted, err := s.reviews.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		s.writeError(w, http.StatusNotFound, "photo not found")
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	filter := store.LibraryFilter{
		Registration: strings.TrimSpace(query.Get("registration")),
		Route:        strings.TrimSpace(query.Get("route")),
	}
	if value := query.Get("year"); value != "" {
		year, err := strconv.Atoi(value)
		if err != nil || year < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		filter.Year = year
	}
	groups, err := s.reviews.Library(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, LibraryResponse{Groups: FromLibraryGroups(groups)})
}

func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	filter := store.FlightFilter{Registration: strings.TrimSpace(query.Get("registration"))}
	if value := query.Get("year"); value != "" {
		year, err := strconv.Atoi(value)
		if err != nil || year < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		filter.Year = year
	}
	flights, err := s.store.ListFlights(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, FlightsResponse{Flights: FromFlights(flights)})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.hub == nil {
		s.writeError(w, http.StatusServiceUnavailable, "event stream disabled")
		return
	}
	s.hub.HandleWS(w, r)
}

func (s *Server) decodeRegistration(w http.ResponseWriter, r *http.Request) (RegistrationRequest, bool) {
	var req RegistrationRequest
	if r.Body == nil || r.ContentLength == 0 {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}

func decisionStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyDecided):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func isTrue(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

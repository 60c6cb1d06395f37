package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"turfslot/internal/events"
	"turfslot/internal/metrics"
	"turfslot/internal/models"
)

// BookingStore is the persistence the API needs.
type BookingStore interface {
	CreateSlotBooking(ctx context.Context, b *models.SlotBooking) error
	ListActiveBookings(ctx context.Context, turfID, sportID int64, date string) ([]models.SlotBooking, error)
	ListBookingsOnDate(ctx context.Context, turfID int64, date string) ([]models.SlotBooking, error)
	ListUserBookings(ctx context.Context, userID int64) ([]models.SlotBooking, error)
	CancelSlotBooking(ctx context.Context, id, userID int64) (*models.SlotBooking, error)
	Ready(ctx context.Context) error
}

// Catalog resolves turfs and sports.
type Catalog interface {
	ListTurfs(ctx context.Context) ([]models.Turf, error)
	GetTurf(ctx context.Context, turfID int64) (*models.Turf, error)
	Sport(ctx context.Context, turfID, sportID int64) (*models.Turf, *models.Sport, error)
}

// Options configures the HTTP server.
type Options struct {
	Address         string
	APIKeys         []string
	ReadTimeout     time.Duration
	MaxAdvance      time.Duration
	SubmitPerSecond float64
	SubmitBurst     int
}

// HTTPServer serves the booking API.
type HTTPServer struct {
	server     *http.Server
	store      BookingStore
	catalog    Catalog
	bus        *events.EventBus
	logger     *zerolog.Logger
	apiKeys    map[string]bool
	limiter    *submitLimiter
	maxAdvance time.Duration
	now        func() time.Time
}

// envelope is the JSON shape of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func NewHTTPServer(
	opts Options,
	store BookingStore,
	catalog Catalog,
	bus *events.EventBus,
	logger *zerolog.Logger,
) *HTTPServer {
	if opts.Address == "" {
		opts.Address = ":8080"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.MaxAdvance <= 0 {
		opts.MaxAdvance = 30 * 24 * time.Hour
	}
	if bus == nil {
		bus = events.NewEventBus(logger)
	}

	keys := make(map[string]bool)
	for _, k := range opts.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys[k] = true
		}
	}

	s := &HTTPServer{
		store:      store,
		catalog:    catalog,
		bus:        bus,
		logger:     logger,
		apiKeys:    keys,
		limiter:    newSubmitLimiter(opts.SubmitPerSecond, opts.SubmitBurst),
		maxAdvance: opts.MaxAdvance,
		now:        time.Now,
	}

	s.server = &http.Server{
		Addr:              opts.Address,
		Handler:           s.routes(),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/turfs", s.handleListTurfs)
	api.HandleFunc("GET /api/v1/turfs/{turfID}", s.handleGetTurf)
	api.HandleFunc("GET /api/v1/turfs/{turfID}/bookings/export", s.handleExportDay)
	api.HandleFunc("POST /api/v1/slot-bookings/turf/{turfID}", s.handleBookedSlots)
	api.HandleFunc("POST /api/v1/slot-bookings", s.handleCreateBooking)
	api.HandleFunc("PUT /api/v1/slot-bookings/{id}/cancel", s.handleCancelBooking)
	api.HandleFunc("GET /api/v1/users/{userID}/slot-bookings", s.handleUserBookings)
	mux.Handle("/api/", s.auth(api))

	return s.withRequestLogger(mux)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	go s.pruneLimiters(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *HTTPServer) pruneLimiters(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.prune(); n > 0 {
				s.logger.Debug().Int("removed", n).Msg("pruned idle submit limiters")
			}
		}
	}
}

func (s *HTTPServer) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.apiKeys) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("x-api-key")
		if key == "" || !s.apiKeys[key] {
			metrics.IncHTTP("unauthorized")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		l := s.logger.With().Str("request_id", requestID).Logger()
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r.WithContext(l.WithContext(r.Context())))

		l.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(started)).
			Msg("HTTP request")
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ready(ctx); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

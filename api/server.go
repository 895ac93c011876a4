package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"weather-dashboard/dashboard"
	"weather-dashboard/datasource"
	"weather-dashboard/forecast"
	"weather-dashboard/logger"
	"weather-dashboard/metrics"
	"weather-dashboard/models"
	"weather-dashboard/providers/prediction"
)

// StatusProber reports the prediction backend status shown in the header
type StatusProber interface {
	Status(ctx context.Context) prediction.StatusInfo
}

// Options configures the HTTP server
type Options struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	CORSAllowedOrigins []string
	StaticFilesDir     string
	// HorizonDays caps the days parameter of /api/forecast and is its default
	HorizonDays int
	// FetchTimeout bounds on-demand fetches of /api/forecast
	FetchTimeout    time.Duration
	DefaultLocation string
}

// Server represents the API server
type Server struct {
	router   chi.Router
	server   *http.Server
	service  *dashboard.Service
	source   datasource.ForecastSource
	searcher datasource.LocationSearcher
	store    *ForecastStore
	hub      *Hub
	status   StatusProber
	opts     Options
	logger   *logger.Logger
}

// NewServer creates the API server. source is the full availability chain.
func NewServer(service *dashboard.Service, source datasource.ForecastSource, store *ForecastStore, hub *Hub, opts Options, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.HorizonDays < 1 {
		opts.HorizonDays = 14
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}

	s := &Server{
		service: service,
		source:  source,
		store:   store,
		hub:     hub,
		opts:    opts,
		logger:  log.Named("api"),
	}
	if searcher, ok := datasource.AsSearcher(source); ok {
		s.searcher = searcher
	}
	hub.SetMessageHandler(s)

	s.router = s.routes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

// SetStatusProber registers the prediction backend probe used by /api/status
func (s *Server) SetStatusProber(p StatusProber) {
	s.status = p
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	origins := s.opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealthCheck)
		r.Get("/status", s.handleStatus)
		r.Get("/locations/search", s.handleSearchLocations)
		r.Get("/forecast", s.handleGetForecast)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteSession)
			r.Get("/view", s.handleGetView)
			r.Post("/location", s.handleChangeLocation)
			r.Post("/select", s.handleSelectDay)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	if s.opts.StaticFilesDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.StaticFilesDir)))
	}
	return r
}

// Start begins the API server
func (s *Server) Start() error {
	s.logger.Info("Starting API server", logger.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Duration("took", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP statuses
func statusFor(err error) int {
	var statusErr *datasource.StatusError
	switch {
	case errors.Is(err, dashboard.ErrSessionNotFound),
		errors.Is(err, datasource.ErrLocationNotFound):
		return http.StatusNotFound
	case errors.Is(err, forecast.ErrNotLoaded),
		errors.Is(err, dashboard.ErrStaleResponse):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrFetchTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &statusErr),
		errors.Is(err, forecast.ErrEmptyWindow),
		errors.Is(err, forecast.ErrDuplicateDate):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleHealthCheck provides a simple health check endpoint
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleStatus reports the prediction backend and the configured sources
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"sessions":  s.service.Len(),
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if lister, ok := s.source.(interface{ Sources() []string }); ok {
		response["sources"] = lister.Sources()
	}
	if s.status != nil {
		response["prediction"] = s.status.Status(r.Context())
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSearchLocations(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		writeError(w, http.StatusNotImplemented, "location search is not available")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	limit := datasource.MaxSuggestions
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = n
	}

	locations, err := s.searcher.SearchLocations(r.Context(), query, limit)
	if err != nil {
		s.logger.Warn("Location search failed", logger.String("query", query), logger.Error(err))
		writeError(w, http.StatusBadGateway, "failed to search locations")
		return
	}
	if locations == nil {
		locations = []models.Location{}
	}
	writeJSON(w, http.StatusOK, locations)
}

// handleGetForecast returns a raw forecast window, from the store when a
// fresh enough entry exists and fetched on demand otherwise
func (s *Server) handleGetForecast(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		query = s.opts.DefaultLocation
	}
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	days := s.opts.HorizonDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 1 {
			writeError(w, http.StatusBadRequest, "invalid days parameter")
			return
		}
		if d < days {
			days = d
		}
	}

	if data, ok := s.store.Latest(query, days); ok {
		data.TruncateDays(days)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"query":     query,
			"provider":  data.Provider,
			"data":      data,
			"timestamp": time.Now(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.FetchTimeout)
	defer cancel()

	data, err := s.source.FetchForecast(ctx, query, days)
	if err != nil {
		s.logger.Warn("On-demand forecast failed", logger.String("query", query), logger.Error(err))
		writeError(w, statusFor(err), fmt.Sprintf("Failed to fetch forecast: %v", err))
		return
	}
	data.Query = query
	data.SortDays()
	data.TruncateDays(days)

	// only live windows are worth serving again
	if data.Availability == models.Live {
		s.store.UpdateForecast(data)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":     query,
		"provider":  data.Provider,
		"data":      data,
		"timestamp": time.Now(),
		"note":      "On-demand forecast fetch",
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Create()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     sess.ID,
		"config": s.service.Layout(),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.View(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type locationRequest struct {
	Query string   `json:"query"`
	Date  string   `json:"date"`
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
}

// handleChangeLocation loads a location into the session. Coordinates from
// browser geolocation take precedence over the query text.
func (s *Server) handleChangeLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	query := req.Query
	if req.Lat != nil && req.Lon != nil {
		query = datasource.CoordsQuery(*req.Lat, *req.Lon)
	}

	view, err := s.service.ChangeLocation(r.Context(), chi.URLParam(r, "id"), query, req.Date)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type selectRequest struct {
	Date string `json:"date"`
}

// handleSelectDay serves both the date picker and the look-ahead cards
func (s *Server) handleSelectDay(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := s.service.SelectDay(chi.URLParam(r, "id"), req.Date)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var initial *Message
	view, err := s.service.View(id)
	switch {
	case err == nil:
		initial = &Message{Type: MessageTypeViewUpdate, SessionID: id, Data: view}
	case errors.Is(err, forecast.ErrNotLoaded):
	default:
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.hub.HandleConnection(w, r, id, initial)
}

// HandleMessage applies day selections sent over the session socket
func (s *Server) HandleMessage(sessionID, messageType string, data json.RawMessage) error {
	switch messageType {
	case MessageTypeSelectDay:
		var req selectRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("invalid %s payload: %w", messageType, err)
		}
		// the resulting view reaches the client through the publisher
		_, err := s.service.SelectDay(sessionID, req.Date)
		return err
	default:
		return fmt.Errorf("unknown message type %q", messageType)
	}
}

var _ MessageHandler = (*Server)(nil)

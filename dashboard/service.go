package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"weather-dashboard/datasource"
	"weather-dashboard/forecast"
	"weather-dashboard/logger"
	"weather-dashboard/metrics"
	"weather-dashboard/models"
)

var (
	// ErrSessionNotFound is returned for unknown or pruned session ids
	ErrSessionNotFound = errors.New("session not found")
	// ErrFetchTimeout is returned when a location fetch exceeds the configured timeout
	ErrFetchTimeout = errors.New("forecast fetch timed out")
	// ErrStaleResponse is returned when a newer location request superseded this one
	ErrStaleResponse = errors.New("superseded by a newer location request")
)

// Config controls dashboard behaviour
type Config struct {
	LookAheadDays    int
	HorizonDays      int
	Locale           string
	FetchTimeout     time.Duration
	ReverseLookAhead bool
	// DefaultLocation is fetched when a location request has no query
	DefaultLocation string
}

// Layout tells dependent views how to arrange the payloads
type Layout struct {
	LookAheadDays    int  `json:"lookAheadDays"`
	ReverseLookAhead bool `json:"reverseLookAhead"`
}

// SessionView is a synchronizer view addressed to one session
type SessionView struct {
	SessionID string `json:"sessionId"`
	Query     string `json:"query"`
	Note      string `json:"note,omitempty"`
	Layout    Layout `json:"layout"`
	*forecast.View
}

// Publisher receives every view produced for a session
type Publisher interface {
	Publish(sessionID string, view *SessionView)
}

// Session is one dashboard's selection state
type Session struct {
	ID string

	mu         sync.Mutex
	sync       *forecast.Synchronizer
	generation uint64
	query      string
	note       string
	lastActive time.Time
}

// Service owns all dashboard sessions
type Service struct {
	source    datasource.ForecastSource
	cfg       Config
	logger    *logger.Logger
	publisher Publisher
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a session service fetching through source
func NewService(source datasource.ForecastSource, cfg Config, log *logger.Logger) (*Service, error) {
	if cfg.HorizonDays < 1 {
		return nil, fmt.Errorf("horizon must be at least one day, got %d", cfg.HorizonDays)
	}
	if cfg.FetchTimeout <= 0 {
		return nil, fmt.Errorf("fetch timeout must be positive, got %s", cfg.FetchTimeout)
	}
	// validate look-ahead and locale once up front
	if _, err := forecast.NewSynchronizer(cfg.synchronizerOptions()); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		source:   source,
		cfg:      cfg,
		logger:   log.Named("dashboard"),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}, nil
}

func (c Config) synchronizerOptions() forecast.Options {
	return forecast.Options{LookAheadDays: c.LookAheadDays, Locale: c.Locale}
}

// SetPublisher registers the sink for view updates
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// Layout returns the configured layout
func (s *Service) Layout() Layout {
	return Layout{LookAheadDays: s.cfg.LookAheadDays, ReverseLookAhead: s.cfg.ReverseLookAhead}
}

// Create starts a new unloaded session
func (s *Service) Create() (*Session, error) {
	synchronizer, err := forecast.NewSynchronizer(s.cfg.synchronizerOptions())
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:         uuid.NewString(),
		sync:       synchronizer,
		lastActive: s.now(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	s.logger.Debug("Session created", logger.String("session", sess.ID))
	return sess, nil
}

// Delete drops a session
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	metrics.ActiveSessions.Set(float64(count))
	return nil
}

// Len returns the number of live sessions
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Prune removes sessions idle for longer than maxIdle and returns how many
func (s *Service) Prune(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	pruned := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastActive.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			pruned++
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	return pruned
}

func (s *Service) session(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// ChangeLocation fetches a forecast for query and loads it into the session,
// then selects date. Only the latest request of a session is applied; an
// older one finishing later gets ErrStaleResponse. A failed fetch leaves the
// session untouched.
func (s *Service) ChangeLocation(ctx context.Context, id, query, date string) (*SessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		query = s.cfg.DefaultLocation
	}

	sess.mu.Lock()
	sess.generation++
	gen := sess.generation
	sess.lastActive = s.now()
	sess.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	start := s.now()
	data, err := s.source.FetchForecast(fetchCtx, query, s.cfg.HorizonDays)
	if err != nil {
		if ctx.Err() == nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %v", ErrFetchTimeout, s.cfg.FetchTimeout, err)
		}
		if s.isStale(sess, gen) {
			metrics.StaleResponses.Inc()
			return nil, ErrStaleResponse
		}
		s.logger.Warn("Location fetch failed",
			logger.String("session", id),
			logger.String("query", query),
			logger.Error(err))
		return nil, err
	}
	data.SortDays()
	data.TruncateDays(s.cfg.HorizonDays)

	sess.mu.Lock()
	if sess.generation != gen {
		sess.mu.Unlock()
		metrics.StaleResponses.Inc()
		s.logger.Debug("Discarding stale forecast", logger.String("session", id), logger.String("query", query))
		return nil, ErrStaleResponse
	}
	view, err := sess.sync.Load(data)
	if err == nil && date != "" {
		view, err = sess.sync.SelectDay(date)
	}
	if err != nil {
		sess.mu.Unlock()
		return nil, fmt.Errorf("failed to load forecast for %q: %w", query, err)
	}
	sess.query = query
	sess.note = data.Note
	out := s.sessionView(sess, view)
	sess.mu.Unlock()

	s.logger.Info("Location loaded",
		logger.String("session", id),
		logger.String("query", query),
		logger.String("availability", string(data.Availability)),
		logger.Int("days", len(data.Days)),
		logger.Duration("took", s.now().Sub(start)))
	s.observe(id, view)
	s.publish(out)
	return out, nil
}

func (s *Service) isStale(sess *Session, gen uint64) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.generation != gen
}

// SelectDay changes the selected day of a loaded session. Used by both the
// date picker and the look-ahead cards.
func (s *Service) SelectDay(id, date string) (*SessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	sess.lastActive = s.now()
	view, err := sess.sync.SelectDay(date)
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	out := s.sessionView(sess, view)
	sess.mu.Unlock()

	s.observe(id, view)
	s.publish(out)
	return out, nil
}

// View re-renders the current selection of a session
func (s *Service) View(id string) (*SessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastActive = s.now()
	view, err := sess.sync.View()
	if err != nil {
		return nil, err
	}
	return s.sessionView(sess, view), nil
}

// Selected returns the selected date of a session, zero before the first load
func (s *Service) Selected(id string) (models.Date, error) {
	sess, err := s.session(id)
	if err != nil {
		return models.Date{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.sync.Selected(), nil
}

// sessionView must be called with sess.mu held
func (s *Service) sessionView(sess *Session, view *forecast.View) *SessionView {
	return &SessionView{
		SessionID: sess.ID,
		Query:     sess.query,
		Note:      sess.note,
		Layout:    s.Layout(),
		View:      view,
	}
}

func (s *Service) observe(id string, view *forecast.View) {
	if view.Warning == nil {
		return
	}
	metrics.DateCorrections.Inc()
	s.logger.Info("Date outside forecast window",
		logger.String("session", id),
		logger.String("requested", view.Warning.Requested),
		logger.String("corrected", view.Warning.Corrected.String()))
}

func (s *Service) publish(view *SessionView) {
	if s.publisher != nil {
		s.publisher.Publish(view.SessionID, view)
	}
}

package handlers

import (
	"errors"
	"sync"
	"time"

	"tablefilter/filter"
	"tablefilter/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownPeriod   = errors.New("unknown period")
	ErrRangeDerived    = errors.New("range is derived from the selected period")
)

// SessionDefaults apply to every session the registry creates.
type SessionDefaults struct {
	DebounceWindow     time.Duration
	EventBuffer        int
	DefaultPeriodIndex int
}

// Registry keeps the live filter sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	defaults SessionDefaults
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewRegistry(defaults SessionDefaults, log logrus.FieldLogger) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		defaults: defaults,
		log:      log,
		now:      time.Now,
	}
}

// Session is one filter controller and the consumers of its events.
type Session struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	Store      *filter.MemoryStore
	Controller *filter.Controller

	hub  *hub
	done chan struct{}

	mu   sync.RWMutex
	last *models.ResolvedFilter
}

// Create starts a session and selects its default period.
func (r *Registry) Create(req models.CreateSessionRequest) *Session {
	opts := filter.DefaultOptions()
	opts.PeriodCatalog = req.PeriodCatalog
	opts.Loading = req.Loading
	opts.ShowOperator = req.ShowOperator
	opts.ShowPeriodFilter = req.ShowPeriodFilter
	if req.ShowFilterButton != nil {
		opts.ShowFilterButton = *req.ShowFilterButton
	}
	opts.DefaultPeriodIndex = r.defaults.DefaultPeriodIndex
	if req.DefaultPeriodIndex != nil {
		opts.DefaultPeriodIndex = *req.DefaultPeriodIndex
	}
	if r.defaults.DebounceWindow > 0 {
		opts.DebounceWindow = r.defaults.DebounceWindow
	}
	if r.defaults.EventBuffer > 0 {
		opts.EventBuffer = r.defaults.EventBuffer
	}
	opts.Now = r.now

	id := uuid.New()
	opts.Logger = r.log.WithField("session", id)

	store := filter.NewMemoryStore()
	s := &Session{
		ID:         id,
		CreatedAt:  r.now(),
		Store:      store,
		Controller: filter.New(store, opts),
		hub:        newHub(),
		done:       make(chan struct{}),
	}
	go s.pump()

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	s.Controller.Initialize(opts.DefaultPeriodIndex)

	r.log.WithFields(logrus.Fields{
		"session":              id,
		"catalog_size":         len(s.Controller.Catalog()),
		"default_period_index": opts.DefaultPeriodIndex,
	}).Info("filter session created")
	return s
}

func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete closes the session and waits for its event pump to finish.
func (r *Registry) Delete(id uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.close()
	r.log.WithField("session", id).Info("filter session closed")
	return nil
}

// Close shuts every session down.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[uuid.UUID]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// LastFilter returns the most recent emitted filter, or nil before the first.
func (s *Session) LastFilter() *models.ResolvedFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	rf := *s.last
	return &rf
}

func (s *Session) Response() models.SessionResponse {
	opts := s.Controller.Options()
	return models.SessionResponse{
		ID:               s.ID,
		Status:           s.Controller.Status().String(),
		ShowFilterButton: opts.ShowFilterButton,
		ShowOperator:     opts.ShowOperator,
		ShowPeriodFilter: opts.ShowPeriodFilter,
		Operators:        models.Operators(),
		PeriodCatalog:    opts.PeriodCatalog,
		Fields:           s.Store.Snapshot(),
		Bounds:           s.Controller.Bounds(),
		LastFilter:       s.LastFilter(),
		CreatedAt:        s.CreatedAt,
	}
}

func (s *Session) pump() {
	defer close(s.done)
	defer s.hub.close()

	for rf := range s.Controller.Events() {
		s.mu.Lock()
		last := rf
		s.last = &last
		s.mu.Unlock()

		s.hub.broadcast(rf)
	}
}

func (s *Session) close() {
	s.Controller.Close()
	<-s.done
}

// hub fans emitted filters out to stream clients. Slow clients miss events
// rather than block the pump.
type hub struct {
	mu      sync.Mutex
	clients map[chan models.ResolvedFilter]struct{}
	closed  bool
}

func newHub() *hub {
	return &hub{clients: make(map[chan models.ResolvedFilter]struct{})}
}

func (h *hub) subscribe() chan models.ResolvedFilter {
	ch := make(chan models.ResolvedFilter, 16)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.clients[ch] = struct{}{}
	return ch
}

func (h *hub) unsubscribe(ch chan models.ResolvedFilter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *hub) broadcast(rf models.ResolvedFilter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- rf:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

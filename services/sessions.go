package services

import (
	"context"
	"sync"
	"time"

	"github.com/CrowderSoup/kanban/board"
	"github.com/CrowderSoup/kanban/database"
	"github.com/CrowderSoup/kanban/drag"
	"github.com/rs/zerolog"
)

// Broadcaster delivers a message to every connection of one user.
type Broadcaster interface {
	Broadcast(message WebSocketMessage, email string)
}

// Session is the live board state of one user: the store and the drag gesture
// running against it.
type Session struct {
	Email string
	Store *board.Store
	Drag  *drag.Controller

	lastUsed time.Time
	holds    int
}

// Sessions lazily opens one Session per user. A session nobody holds is closed once
// it has been idle for longer than the idle timeout.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idle     time.Duration
	now      func() time.Time

	backend    database.Backend
	storageKey string
	dragConfig drag.Config
	scheduler  drag.Scheduler
	hub        Broadcaster
	logger     zerolog.Logger
}

type SessionsOption func(*Sessions)

func WithDragConfig(cfg drag.Config) SessionsOption {
	return func(s *Sessions) {
		s.dragConfig = cfg
	}
}

func WithScheduler(scheduler drag.Scheduler) SessionsOption {
	return func(s *Sessions) {
		s.scheduler = scheduler
	}
}

// WithIdleTimeout sets how long an unheld session survives without use. Zero keeps
// sessions forever.
func WithIdleTimeout(idle time.Duration) SessionsOption {
	return func(s *Sessions) {
		s.idle = idle
	}
}

func WithSessionClock(now func() time.Time) SessionsOption {
	return func(s *Sessions) {
		s.now = now
	}
}

func WithSessionLogger(logger zerolog.Logger) SessionsOption {
	return func(s *Sessions) {
		s.logger = logger
	}
}

func NewSessions(backend database.Backend, storageKey string, hub Broadcaster, opts ...SessionsOption) *Sessions {
	if backend == nil || hub == nil {
		panic("services: NewSessions requires a backend and a broadcaster")
	}

	s := &Sessions{
		sessions:   map[string]*Session{},
		backend:    backend,
		storageKey: storageKey,
		dragConfig: drag.DefaultConfig(),
		scheduler:  drag.WallClock(),
		hub:        hub,
		logger:     zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Get returns the session of email, loading its boards on first use.
func (s *Sessions) Get(email string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.open(email)
}

// Hold returns the session of email and keeps it open until release is called.
// Long-lived connections hold their session so it is never replaced under them.
func (s *Sessions) Hold(email string) (*Session, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.open(email)
	session.holds++

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			session.holds--
			session.lastUsed = s.now()
		})
	}

	return session, release
}

// open must be called with mu held.
func (s *Sessions) open(email string) *Session {
	if session, ok := s.sessions[email]; ok {
		session.lastUsed = s.now()
		return session
	}

	logger := s.logger.With().Str("email", email).Logger()
	gateway := database.NewGateway(s.backend, database.UserKey(s.storageKey, email), logger)
	store := board.NewStore(gateway, board.WithLogger(logger))

	session := &Session{
		Email: email,
		Store: store,
		Drag: drag.NewController(store,
			drag.WithConfig(s.dragConfig),
			drag.WithScheduler(s.scheduler),
			drag.WithLogger(logger),
		),
		lastUsed: s.now(),
	}

	store.Subscribe(func(c board.Change) {
		logger.Debug().Str("op", c.Op).Bool("persisted", c.Persisted).Msg("board changed")
		s.hub.Broadcast(WebSocketMessage{Type: MessageState, Data: store.Document()}, email)
	})

	s.sessions[email] = session
	logger.Info().Int("boards", len(store.Boards())).Msg("board session opened")

	return session
}

// Evict closes every unheld session idle for longer than the idle timeout and
// returns how many were closed.
func (s *Sessions) Evict() int {
	if s.idle <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for email, session := range s.sessions {
		if session.holds > 0 || now.Sub(session.lastUsed) <= s.idle {
			continue
		}

		// Stop any pending move before the store is dropped
		session.Drag.DragCancel()
		delete(s.sessions, email)
		evicted++

		s.logger.Info().Str("email", email).Msg("idle board session closed")
	}

	return evicted
}

// Run evicts idle sessions every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evict()
		}
	}
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

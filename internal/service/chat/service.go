package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/yesno-chat/backend/internal/model/chat"
	"github.com/zhouzirui/yesno-chat/backend/internal/service/answer"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
)

// Config carries the settings shared by every conversation.
type Config struct {
	TimeLayout string
	Location   *time.Location
	Controller ControllerConfig
	// MaxSessions caps live sessions; zero means unlimited.
	MaxSessions int
}

type entry struct {
	session    chat.Session
	controller *Controller
}

// Service keeps conversations in memory, one controller per session.
type Service struct {
	provider answer.Provider
	cfg      Config

	mu      sync.RWMutex
	entries map[string]*entry

	// retired holds deleted controllers until their fetches finish.
	retired map[*Controller]struct{}
}

// NewService bootstraps the in-memory registry.
func NewService(provider answer.Provider, cfg Config) *Service {
	return &Service{
		provider: provider,
		cfg:      cfg,
		entries:  make(map[string]*entry),
		retired:  make(map[*Controller]struct{}),
	}
}

// CreateSession registers a conversation. Its history is not started until the
// controller is initialised.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	state := NewSession(WithTimeFormat(s.cfg.TimeLayout, s.cfg.Location))
	controller := NewController(state, s.provider, s.cfg.Controller)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxSessions > 0 && len(s.entries) >= s.cfg.MaxSessions {
		return chat.Session{}, ErrTooManySessions
	}
	s.entries[session.ID] = &entry{session: session, controller: controller}

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return e.session, nil
}

// Controller returns the controller bound to sessionID.
func (s *Service) Controller(_ context.Context, sessionID string) (*Controller, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.controller, nil
}

// LoadTranscript returns the session history; nil means it was never started.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.controller.Session().Messages(), nil
}

// DeleteSession forgets a session. Answers still in flight land in the
// detached history and are lost, but Wait still blocks on them.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	delete(s.entries, sessionID)

	s.retired[e.controller] = struct{}{}
	go func() {
		e.controller.Wait()
		s.mu.Lock()
		delete(s.retired, e.controller)
		s.mu.Unlock()
	}()
	return nil
}

// Wait blocks until every registered or deleted controller has no fetch in
// flight.
func (s *Service) Wait() {
	s.mu.RLock()
	controllers := make([]*Controller, 0, len(s.entries)+len(s.retired))
	for _, e := range s.entries {
		controllers = append(controllers, e.controller)
	}
	for c := range s.retired {
		controllers = append(controllers, c)
	}
	s.mu.RUnlock()

	for _, c := range controllers {
		c.Wait()
	}
}

func (s *Service) lookup(sessionID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

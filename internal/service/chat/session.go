package chat

import (
	"log"
	"sync"
	"time"

	"github.com/zhouzirui/yesno-chat/backend/internal/model/chat"
)

const (
	// DefaultTimeLayout renders createdAt as a 24h time of day.
	DefaultTimeLayout = "15:04:05"

	subscriberBuffer = 32
)

// Clock supplies the time stamped on appended messages.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithClock overrides the wall clock used for createdAt.
func WithClock(clock Clock) SessionOption {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTimeFormat sets the layout and location used to format createdAt.
func WithTimeFormat(layout string, loc *time.Location) SessionOption {
	return func(s *Session) {
		if layout != "" {
			s.layout = layout
		}
		if loc != nil {
			s.loc = loc
		}
	}
}

// Session owns the ordered message history of one conversation.
//
// A new Session is not started: Messages returns nil and AddMessage drops its
// input until Start is called. The history is append-only between starts.
type Session struct {
	mu         sync.RWMutex
	messages   []chat.Message
	generation uint64

	clock  Clock
	layout string
	loc    *time.Location

	subMu       sync.Mutex
	subscribers map[int]chan chat.Event
	nextSubID   int
}

// NewSession returns an uninitialised session.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		clock:       systemClock{},
		layout:      DefaultTimeLayout,
		loc:         time.Local,
		subscribers: make(map[int]chan chat.Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start replaces the history with an empty sequence. It may be called any
// number of times.
func (s *Session) Start() {
	s.mu.Lock()
	s.messages = make([]chat.Message, 0, 16)
	s.generation++
	s.publish(chat.Event{Type: chat.EventReset, Generation: s.generation})
	s.mu.Unlock()
}

// AddMessage appends a message stamped with the current time of day. An empty
// illustration means the message has none. The append is silently dropped when
// the session has not been started; the returned bool reports whether it
// happened.
func (s *Session) AddMessage(text string, kind chat.Kind, illustration string) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(text, kind, illustration)
}

// AddMessageAt appends like AddMessage, but only while the session is still at
// generation. The generation check and the append happen under one lock, so a
// concurrent Start either precedes the check or follows the append.
func (s *Session) AddMessageAt(generation uint64, text string, kind chat.Kind, illustration string) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return chat.Message{}, false
	}
	return s.appendLocked(text, kind, illustration)
}

func (s *Session) appendLocked(text string, kind chat.Kind, illustration string) (chat.Message, bool) {
	if s.messages == nil {
		return chat.Message{}, false
	}

	message := chat.Message{
		Text:         text,
		Kind:         kind,
		CreatedAt:    s.clock.Now().In(s.loc).Format(s.layout),
		Illustration: illustration,
	}
	s.messages = append(s.messages, message)
	s.publish(chat.Event{
		Type:       chat.EventMessage,
		Generation: s.generation,
		Index:      len(s.messages) - 1,
		Message:    &message,
	})
	return message, true
}

// Messages returns a copy of the history, or nil if the session was never
// started.
func (s *Session) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.messages == nil {
		return nil
	}
	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}

// Started reports whether Start has been called at least once.
func (s *Session) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages != nil
}

// Generation counts calls to Start.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Subscribe registers for change events. The returned function unsubscribes
// and closes the channel. Events for a subscriber whose buffer is full are
// dropped; such a subscriber should re-read Messages.
func (s *Session) Subscribe() (<-chan chat.Event, func()) {
	ch := make(chan chat.Event, subscriberBuffer)

	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// publish must be called with s.mu held so events leave in mutation order.
func (s *Session) publish(event chat.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for id, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			log.Printf("[session] subscriber %d is behind, dropping %s event", id, event.Type)
		}
	}
}

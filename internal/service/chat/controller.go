package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/yesno-chat/backend/internal/model/chat"
	"github.com/zhouzirui/yesno-chat/backend/internal/service/answer"
)

// questionMark is the only suffix that triggers an answer.
const questionMark = "?"

// ErrStaleAnswer reports an answer dropped because the session restarted while
// it was being fetched.
var ErrStaleAnswer = errors.New("answer arrived after session restart")

// ControllerConfig tunes answer handling.
type ControllerConfig struct {
	// FetchTimeout bounds a single provider call. Zero means no timeout.
	FetchTimeout time.Duration
	// DiscardStale drops answers whose fetch began before the latest Start.
	DiscardStale bool
}

// Controller turns user input into session mutations and provider calls.
type Controller struct {
	session  *Session
	provider answer.Provider
	cfg      ControllerConfig

	mu           sync.Mutex
	draft        string
	lastQuestion string

	inflight sync.WaitGroup
}

// NewController binds a session to an answer provider.
func NewController(session *Session, provider answer.Provider, cfg ControllerConfig) *Controller {
	return &Controller{
		session:  session,
		provider: provider,
		cfg:      cfg,
	}
}

// Session exposes the controlled session for read access.
func (c *Controller) Session() *Session {
	return c.session
}

// Initialize starts the session. Call it when the conversation view opens.
func (c *Controller) Initialize() {
	c.session.Start()
}

// SetDraft records the pending input.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

// Draft returns the pending input.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Submit asks the pending input.
func (c *Controller) Submit(ctx context.Context) bool {
	return c.AskQuestion(ctx, c.Draft())
}

// AskQuestion appends raw as a question and, when it ends with "?", fetches an
// answer in the background. The input is not trimmed or validated. The draft
// is cleared whether or not an answer was requested. It reports whether a
// fetch was started.
func (c *Controller) AskQuestion(ctx context.Context, raw string) bool {
	c.session.AddMessage(raw, chat.KindQuestion, "")

	c.mu.Lock()
	c.lastQuestion = raw
	c.mu.Unlock()

	triggered := strings.HasSuffix(raw, questionMark)
	if triggered {
		fetchCtx := context.WithoutCancel(ctx)
		generation := c.session.Generation()
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			if err := c.respond(fetchCtx, raw, generation); err != nil && !errors.Is(err, ErrStaleAnswer) {
				log.Printf("[chat] answer fetch failed: %v", err)
			}
		}()
	}

	c.SetDraft("")
	return triggered
}

// CreateResponse fetches one answer and appends it. A missing answer or a
// provider failure still appends an empty answer turn; the failure is
// returned.
func (c *Controller) CreateResponse(ctx context.Context) error {
	c.mu.Lock()
	question := c.lastQuestion
	c.mu.Unlock()

	return c.respond(ctx, question, c.session.Generation())
}

// respond appends the provider's answer unless the session moved past
// generation and stale answers are discarded.
func (c *Controller) respond(ctx context.Context, question string, generation uint64) error {
	if c.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.FetchTimeout)
		defer cancel()
	}

	result, err := c.provider.Fetch(ctx, question)
	if err != nil {
		result = nil
	}

	var text, illustration string
	if result != nil {
		text = result.Answer
		illustration = result.Image
	}

	if !c.cfg.DiscardStale {
		c.session.AddMessage(text, chat.KindAnswer, illustration)
		return err
	}

	// generation only grows, so a failed append with a moved generation is stale.
	if _, ok := c.session.AddMessageAt(generation, text, chat.KindAnswer, illustration); !ok && c.session.Generation() != generation {
		log.Printf("[chat] discarding answer from generation %d", generation)
		if err != nil {
			return errors.Join(ErrStaleAnswer, err)
		}
		return ErrStaleAnswer
	}

	return err
}

// Wait blocks until every background fetch has finished.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

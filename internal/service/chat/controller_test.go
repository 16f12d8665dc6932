package chat_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	model "github.com/zhouzirui/yesno-chat/backend/internal/model/chat"
	"github.com/zhouzirui/yesno-chat/backend/internal/service/answer"
	chat "github.com/zhouzirui/yesno-chat/backend/internal/service/chat"
)

type countingProvider struct {
	calls  atomic.Int32
	result *answer.Answer
	err    error
}

func (p *countingProvider) Fetch(context.Context, string) (*answer.Answer, error) {
	p.calls.Add(1)
	return p.result, p.err
}

func newController(p answer.Provider, cfg chat.ControllerConfig) *chat.Controller {
	c := chat.NewController(chat.NewSession(), p, cfg)
	c.Initialize()
	return c
}

func TestAskQuestionWithQuestionMarkFetchesOnce(t *testing.T) {
	provider := &countingProvider{result: &answer.Answer{Answer: "Yes", Image: "x.gif"}}
	c := newController(provider, chat.ControllerConfig{})

	if !c.AskQuestion(context.Background(), "Is it sunny?") {
		t.Fatal("expected fetch to be triggered")
	}
	c.Wait()

	if got := provider.calls.Load(); got != 1 {
		t.Fatalf("expected 1 fetch, got %d", got)
	}

	history := c.Session().Messages()
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Kind != model.KindQuestion || history[0].Text != "Is it sunny?" {
		t.Fatalf("unexpected question %#v", history[0])
	}
	if history[1].Kind != model.KindAnswer || history[1].Text != "Yes" || history[1].Illustration != "x.gif" {
		t.Fatalf("unexpected answer %#v", history[1])
	}
}

func TestAskQuestionWithoutQuestionMarkDoesNotFetch(t *testing.T) {
	provider := &countingProvider{result: &answer.Answer{Answer: "yes"}}
	c := newController(provider, chat.ControllerConfig{})

	if c.AskQuestion(context.Background(), "Hello") {
		t.Fatal("expected no fetch")
	}
	c.Wait()

	if got := provider.calls.Load(); got != 0 {
		t.Fatalf("expected no fetch, got %d", got)
	}
	history := c.Session().Messages()
	if len(history) != 1 || history[0].Kind != model.KindQuestion || history[0].Text != "Hello" {
		t.Fatalf("unexpected history %#v", history)
	}
}

func TestAskQuestionOnlyChecksLastCharacter(t *testing.T) {
	cases := []struct {
		input string
		fetch bool
	}{
		{"?", true},
		{"   ?", true},
		{"Is it sunny? ", false},
		{"Is it sunny", false},
		{"", false},
		{"why？", false},
	}

	for _, tc := range cases {
		provider := &countingProvider{}
		c := newController(provider, chat.ControllerConfig{})

		if got := c.AskQuestion(context.Background(), tc.input); got != tc.fetch {
			t.Fatalf("input %q: triggered=%v want %v", tc.input, got, tc.fetch)
		}
		c.Wait()

		want := int32(0)
		if tc.fetch {
			want = 1
		}
		if got := provider.calls.Load(); got != want {
			t.Fatalf("input %q: %d fetches, want %d", tc.input, got, want)
		}
		if history := c.Session().Messages(); history[0].Text != tc.input {
			t.Fatalf("input %q was altered to %q", tc.input, history[0].Text)
		}
	}
}

func TestAskQuestionClearsDraftBeforeFetchResolves(t *testing.T) {
	release := make(chan struct{})
	provider := answer.ProviderFunc(func(ctx context.Context, _ string) (*answer.Answer, error) {
		<-release
		return &answer.Answer{Answer: "no"}, nil
	})
	c := newController(provider, chat.ControllerConfig{})

	c.SetDraft("Will it rain?")
	if !c.Submit(context.Background()) {
		t.Fatal("expected fetch to be triggered")
	}

	if c.Draft() != "" {
		t.Fatalf("draft not cleared: %q", c.Draft())
	}
	if n := len(c.Session().Messages()); n != 1 {
		t.Fatalf("expected only the question before release, got %d", n)
	}

	close(release)
	c.Wait()

	if n := len(c.Session().Messages()); n != 2 {
		t.Fatalf("expected answer after release, got %d messages", n)
	}
}

func TestAskQuestionClearsDraftWithoutFetch(t *testing.T) {
	c := newController(&countingProvider{}, chat.ControllerConfig{})
	c.SetDraft("Hello")

	c.Submit(context.Background())

	if c.Draft() != "" {
		t.Fatalf("draft not cleared: %q", c.Draft())
	}
}

func TestAskQuestionSurvivesCallerCancellation(t *testing.T) {
	provider := answer.ProviderFunc(func(ctx context.Context, _ string) (*answer.Answer, error) {
		time.Sleep(10 * time.Millisecond)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &answer.Answer{Answer: "yes"}, nil
	})
	c := newController(provider, chat.ControllerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	c.AskQuestion(ctx, "Still there?")
	cancel()
	c.Wait()

	history := c.Session().Messages()
	if len(history) != 2 || history[1].Text != "yes" {
		t.Fatalf("unexpected history %#v", history)
	}
}

func TestCreateResponseNoResultAppendsEmptyAnswer(t *testing.T) {
	c := newController(&countingProvider{}, chat.ControllerConfig{})

	if err := c.CreateResponse(context.Background()); err != nil {
		t.Fatalf("CreateResponse err: %v", err)
	}

	history := c.Session().Messages()
	if len(history) != 1 {
		t.Fatalf("expected 1 message, got %d", len(history))
	}
	if history[0].Kind != model.KindAnswer || history[0].Text != "" || history[0].Illustration != "" {
		t.Fatalf("unexpected answer %#v", history[0])
	}
}

func TestCreateResponseProviderErrorAppendsEmptyAnswer(t *testing.T) {
	boom := errors.New("network down")
	c := newController(&countingProvider{err: boom}, chat.ControllerConfig{})

	err := c.CreateResponse(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}

	history := c.Session().Messages()
	if len(history) != 1 || history[0].Kind != model.KindAnswer || history[0].Text != "" {
		t.Fatalf("unexpected history %#v", history)
	}
}

func TestCreateResponsePassesLastQuestion(t *testing.T) {
	var seen atomic.Value
	provider := answer.ProviderFunc(func(_ context.Context, question string) (*answer.Answer, error) {
		seen.Store(question)
		return nil, nil
	})
	c := newController(provider, chat.ControllerConfig{})

	c.AskQuestion(context.Background(), "Hello")
	if err := c.CreateResponse(context.Background()); err != nil {
		t.Fatalf("CreateResponse err: %v", err)
	}

	if got, _ := seen.Load().(string); got != "Hello" {
		t.Fatalf("provider saw %q", got)
	}
}

func TestCreateResponseTimeout(t *testing.T) {
	provider := answer.ProviderFunc(func(ctx context.Context, _ string) (*answer.Answer, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c := newController(provider, chat.ControllerConfig{FetchTimeout: 10 * time.Millisecond})

	err := c.CreateResponse(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if n := len(c.Session().Messages()); n != 1 {
		t.Fatalf("expected empty answer turn, got %d messages", n)
	}
}

func TestStaleAnswerKeptByDefault(t *testing.T) {
	release := make(chan struct{})
	provider := answer.ProviderFunc(func(context.Context, string) (*answer.Answer, error) {
		<-release
		return &answer.Answer{Answer: "late"}, nil
	})
	c := newController(provider, chat.ControllerConfig{})

	c.AskQuestion(context.Background(), "Old?")
	c.Initialize()
	close(release)
	c.Wait()

	history := c.Session().Messages()
	if len(history) != 1 || history[0].Text != "late" {
		t.Fatalf("expected stale answer in new session, got %#v", history)
	}
}

func TestStaleAnswerDiscardedWhenConfigured(t *testing.T) {
	release := make(chan struct{})
	provider := answer.ProviderFunc(func(context.Context, string) (*answer.Answer, error) {
		<-release
		return &answer.Answer{Answer: "late"}, nil
	})
	c := newController(provider, chat.ControllerConfig{DiscardStale: true})

	c.AskQuestion(context.Background(), "Old?")
	c.Initialize()
	close(release)
	c.Wait()

	if history := c.Session().Messages(); len(history) != 0 {
		t.Fatalf("expected stale answer to be dropped, got %#v", history)
	}
}

func TestAnswersMayArriveOutOfOrder(t *testing.T) {
	slow := make(chan struct{})
	provider := answer.ProviderFunc(func(_ context.Context, question string) (*answer.Answer, error) {
		if question == "first?" {
			<-slow
		}
		return &answer.Answer{Answer: "re " + question}, nil
	})
	c := newController(provider, chat.ControllerConfig{})
	events, cancel := c.Session().Subscribe()
	defer cancel()

	c.AskQuestion(context.Background(), "first?")
	c.AskQuestion(context.Background(), "second?")

	deadline := time.After(time.Second)
	for answered := false; !answered; {
		select {
		case ev := <-events:
			if ev.Message != nil && ev.Message.Text == "re second?" {
				answered = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for second answer")
		}
	}
	close(slow)
	c.Wait()

	history := c.Session().Messages()
	if len(history) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(history))
	}
	if history[2].Text != "re second?" || history[3].Text != "re first?" {
		t.Fatalf("unexpected answer order %q, %q", history[2].Text, history[3].Text)
	}
}

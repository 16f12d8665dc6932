package view

import (
	"strings"
	"testing"

	"github.com/zhouzirui/yesno-chat/backend/internal/model/chat"
)

func TestRenderAlignsByKind(t *testing.T) {
	lines := Render([]chat.Message{
		{Text: "Is it sunny?", Kind: chat.KindQuestion, CreatedAt: "10:00:00"},
		{Text: "yes", Kind: chat.KindAnswer, CreatedAt: "10:00:01", Illustration: "yes.gif"},
	}, 40, 0)

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), lines)
	}
	if len(lines[0]) != 40 || !strings.HasSuffix(lines[0], "Is it sunny?  10:00:00") {
		t.Fatalf("question not right-aligned: %q", lines[0])
	}
	if lines[1] != "yes [yes.gif]  10:00:01" {
		t.Fatalf("unexpected answer line %q", lines[1])
	}
}

func TestRenderEmptyAnswerPlaceholder(t *testing.T) {
	lines := Render([]chat.Message{{Kind: chat.KindAnswer, CreatedAt: "10:00:00"}}, 40, 0)
	if lines[0] != "…  10:00:00" {
		t.Fatalf("unexpected line %q", lines[0])
	}
}

func TestRenderKeepsTail(t *testing.T) {
	msgs := make([]chat.Message, 10)
	for i := range msgs {
		msgs[i] = chat.Message{Text: string(rune('a' + i)), Kind: chat.KindAnswer, CreatedAt: "t"}
	}

	lines := Render(msgs, 40, 3)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[2], "j") {
		t.Fatalf("newest message not last: %q", lines)
	}
}

func TestRenderWrapsLongText(t *testing.T) {
	long := strings.Repeat("word ", 20)
	lines := Render([]chat.Message{{Text: long, Kind: chat.KindAnswer, CreatedAt: "t"}}, 40, 0)
	if len(lines) < 2 {
		t.Fatalf("expected wrapped output, got %q", lines)
	}
	for _, line := range lines {
		if len(line) > 30 {
			t.Fatalf("line exceeds wrap width: %q", line)
		}
	}
}

// Package view renders a transcript for fixed-width terminals.
package view

import (
	"strings"
	"unicode/utf8"

	"github.com/zhouzirui/yesno-chat/backend/internal/model/chat"
)

const minWidth = 20

// Render lays out messages as lines: questions are right-aligned, answers
// left-aligned, each followed by its timestamp. Only the last tail lines are
// kept, so the newest message is always visible. tail <= 0 keeps everything.
func Render(messages []chat.Message, width, tail int) []string {
	if width < minWidth {
		width = minWidth
	}

	lines := make([]string, 0, len(messages)*2)
	for _, msg := range messages {
		body := msg.Text
		if body == "" && msg.Kind == chat.KindAnswer {
			body = "…"
		}
		if msg.Illustration != "" {
			body += " [" + msg.Illustration + "]"
		}

		wrapped := wrap(body, width*3/4)
		wrapped[len(wrapped)-1] += "  " + msg.CreatedAt
		for _, line := range wrapped {
			if msg.Kind == chat.KindQuestion {
				line = padLeft(line, width)
			}
			lines = append(lines, line)
		}
	}

	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	return lines
}

func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var (
		lines   []string
		current strings.Builder
	)
	for _, word := range words {
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+1+utf8.RuneCountInString(word) > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	return append(lines, current.String())
}

func padLeft(line string, width int) string {
	n := utf8.RuneCountInString(line)
	if n >= width {
		return line
	}
	return strings.Repeat(" ", width-n) + line
}

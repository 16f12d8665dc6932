package answer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/yesno-chat/backend/internal/analysis/verdict"
)

const oracleSystemPrompt = `你是一个只会回答 yes、no 或 maybe 的神谕。
无论用户问什么，只输出一个英文单词：yes、no 或 maybe，不要解释，不要加标点。`

const oracleUserPrompt = `问题：{question}`

// OracleProvider asks a chat model for a one-word verdict on the question.
type OracleProvider struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewOracleProvider compiles the verdict chain around chatModel.
func NewOracleProvider(ctx context.Context, chatModel model.ChatModel) (*OracleProvider, error) {
	if chatModel == nil {
		return nil, errors.New("oracle: chat model must not be nil")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(oracleSystemPrompt),
		schema.UserMessage(oracleUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile oracle chain: %w", err)
	}

	return &OracleProvider{chain: runnable}, nil
}

// Fetch returns the model's verdict. Output that cannot be classified yields no
// answer rather than an error.
func (p *OracleProvider) Fetch(ctx context.Context, question string) (*Answer, error) {
	msg, err := p.chain.Invoke(ctx, map[string]any{
		"question": strings.TrimSpace(question),
	})
	if err != nil {
		return nil, fmt.Errorf("oracle: invoke chain: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, nil
	}

	decision := verdict.Analyze(msg.Content)
	if decision.Verdict == verdict.Unknown {
		log.Printf("[oracle] unclassifiable model output: %q", msg.Content)
		return nil, nil
	}

	return &Answer{Answer: string(decision.Verdict)}, nil
}

package generation

import (
	"context"
	"fmt"
	"strings"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ModelGenerator answers in-process with a chat model and a fixed system
// prompt describing the reply layout the parser expects.
type ModelGenerator struct {
	chat         einoModel.BaseChatModel
	systemPrompt string
}

func NewModelGenerator(chat einoModel.BaseChatModel, systemPrompt string) *ModelGenerator {
	return &ModelGenerator{chat: chat, systemPrompt: systemPrompt}
}

func (g *ModelGenerator) Generate(ctx context.Context, body string) (string, error) {
	messages := make([]*schema.Message, 0, 2)
	if g.systemPrompt != "" {
		messages = append(messages, schema.SystemMessage(g.systemPrompt))
	}
	messages = append(messages, schema.UserMessage(body))

	resp, err := g.chat.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("model generate: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", ErrEmptyOutput
	}
	return resp.Content, nil
}

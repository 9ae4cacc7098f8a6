package llm

import (
	"context"
	"fmt"
	"net/http"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"weboptimizer-backend/internal/config"
)

type geminiChatModel struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	topP        float32
}

func newGeminiChatModel(ctx context.Context, cfg config.ModelConfig, httpClient *http.Client) (*geminiChatModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &geminiChatModel{
		client:      client,
		model:       cfg.Model,
		maxTokens:   int32(cfg.MaxTokens),
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}, nil
}

// request splits system messages into the system instruction; the rest
// become user/model contents in order.
func (m *geminiChatModel) request(messages []*schema.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	temperature := m.temperature
	topP := m.topP
	genConfig := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		TopP:            &topP,
		MaxOutputTokens: m.maxTokens,
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case schema.System:
			genConfig.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case schema.Assistant:
			if msg.Content != "" {
				contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
			}
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return contents, genConfig
}

func (m *geminiChatModel) Generate(ctx context.Context, messages []*schema.Message, _ ...einoModel.Option) (*schema.Message, error) {
	contents, genConfig := m.request(messages)

	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, genConfig)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in gemini response")
	}

	return &schema.Message{
		Role:    schema.Assistant,
		Content: resp.Text(),
	}, nil
}

func (m *geminiChatModel) Stream(ctx context.Context, messages []*schema.Message, _ ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	contents, genConfig := m.request(messages)
	reader, writer := schema.Pipe[*schema.Message](100)

	go func() {
		defer writer.Close()

		for resp, err := range m.client.Models.GenerateContentStream(ctx, m.model, contents, genConfig) {
			if err != nil {
				writer.Send(nil, err)
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if closed := writer.Send(&schema.Message{Role: schema.Assistant, Content: text}, nil); closed {
				return
			}
		}
	}()

	return reader, nil
}

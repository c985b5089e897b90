package services

import (
	"context"
	"fmt"
	"log/slog"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const OpenAIModelName = oai.ChatModelGPT4oMini

// OpenAIProvider is the fallback text generator, used when Gemini is
// rate-limited or failing.
type OpenAIProvider struct {
	client oai.Client
	model  string
}

func NewOpenAIProvider(apiKey string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key must not be empty")
	}

	client := oai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{
		client: client,
		model:  OpenAIModelName,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

// GenerateText implements TextGenerator.
func (p *OpenAIProvider) GenerateText(ctx context.Context, systemInstruction, prompt string) (string, error) {
	var messages []oai.ChatCompletionMessageParamUnion
	if systemInstruction != "" {
		messages = append(messages, oai.SystemMessage(systemInstruction))
	}
	messages = append(messages, oai.UserMessage(prompt))

	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}

	text := resp.Choices[0].Message.Content
	slog.Debug("OpenAI response generated", "model", p.model, "response_length", len(text))
	return text, nil
}

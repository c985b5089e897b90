package services

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

const GeminiModelName = "gemini-2.5-flash"

// GeminiProvider is the primary text generator, backed by the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  GeminiModelName,
	}, nil
}

func (g *GeminiProvider) Name() string { return "gemini" }

// GenerateText implements TextGenerator.
func (g *GeminiProvider) GenerateText(ctx context.Context, systemInstruction, prompt string) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("genai client not initialized")
	}

	var config *genai.GenerateContentConfig
	if systemInstruction != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		}
	}

	result, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(prompt),
		config,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := result.Text()
	slog.Debug("Gemini response generated", "model", g.model, "response_length", len(text))
	return text, nil
}

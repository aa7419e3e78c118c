package reasoning

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Gemini calls the Gemini API through the Google GenAI SDK.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, s Settings) (*Gemini, error) {
	if s.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	model := s.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: model, temperature: s.Temperature}, nil
}

// Invoke generates content for user with system as the system instruction.
func (g *Gemini) Invoke(ctx context.Context, system, user string) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if g.temperature > 0 {
		cfg.Temperature = genai.Ptr(g.temperature)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini returned no text")
	}
	return text, nil
}

func (g *Gemini) Model() string {
	return g.model
}

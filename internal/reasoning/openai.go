package reasoning

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// chatCompleter is the subset of *openai.Client used here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI calls an OpenAI-compatible chat completion endpoint. With a
// BaseURL it serves local runtimes such as Ollama.
type OpenAI struct {
	client      chatCompleter
	model       string
	temperature float32
}

// NewOpenAI creates an OpenAI-compatible client.
func NewOpenAI(s Settings) (*OpenAI, error) {
	if s.Model == "" {
		return nil, errors.New("openai client requires a model")
	}
	if s.APIKey == "" && s.BaseURL == "" {
		return nil, errors.New("openai client requires an API key or a base URL")
	}
	cfg := openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		cfg.BaseURL = s.BaseURL
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(cfg),
		model:       s.Model,
		temperature: s.Temperature,
	}, nil
}

// Invoke sends one system+user exchange and returns the first choice.
func (o *OpenAI) Invoke(ctx context.Context, system, user string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: o.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) Model() string {
	return o.model
}

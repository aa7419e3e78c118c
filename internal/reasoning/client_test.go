package reasoning

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_RepeatsLastResponseAndRecordsCalls(t *testing.T) {
	s := &Static{Responses: []string{"one", "two"}}

	for _, want := range []string{"one", "two", "two"} {
		got, err := s.Invoke(context.Background(), "sys", "user")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	calls := s.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, Call{System: "sys", User: "user"}, calls[0])
	assert.Equal(t, "static", s.Model())
}

func TestStatic_ConcurrentUse(t *testing.T) {
	s := &Static{Responses: []string{"x"}}
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Invoke(context.Background(), "", "")
		}()
	}
	wg.Wait()
	assert.Len(t, s.Calls(), 20)
}

func TestStatic_Error(t *testing.T) {
	s := &Static{Err: errors.New("offline")}
	_, err := s.Invoke(context.Background(), "", "")
	assert.EqualError(t, err, "offline")
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(Settings{Type: "carrier-pigeon"}, nil)
	assert.Error(t, err)
}

func TestNew_OpenAIRequiresModelAndEndpoint(t *testing.T) {
	_, err := New(Settings{Type: "openai", BaseURL: "http://localhost:11434/v1"}, nil)
	assert.Error(t, err)

	_, err = New(Settings{Type: "openai", Model: "qwen3:14b"}, nil)
	assert.Error(t, err)

	c, err := New(Settings{Type: "openai", Model: "qwen3:14b", BaseURL: "http://localhost:11434/v1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "qwen3:14b", c.Model())
}

func TestNew_GeminiRequiresKey(t *testing.T) {
	_, err := New(Settings{Type: "gemini"}, nil)
	assert.Error(t, err)
}

type fakeCompleter struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestOpenAI_Invoke(t *testing.T) {
	fake := &fakeCompleter{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "answer"}}},
	}}
	o := &OpenAI{client: fake, model: "gpt-4o-mini", temperature: 0.3}

	text, err := o.Invoke(context.Background(), "system text", "user text")

	require.NoError(t, err)
	assert.Equal(t, "answer", text)
	assert.Equal(t, "gpt-4o-mini", fake.req.Model)
	require.Len(t, fake.req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, fake.req.Messages[0].Role)
	assert.Equal(t, "user text", fake.req.Messages[1].Content)
	assert.InDelta(t, 0.3, fake.req.Temperature, 1e-6)
}

func TestOpenAI_InvokeErrors(t *testing.T) {
	o := &OpenAI{client: &fakeCompleter{}, model: "m"}
	_, err := o.Invoke(context.Background(), "", "u")
	assert.Error(t, err, "no choices")

	o = &OpenAI{client: &fakeCompleter{err: errors.New("401")}, model: "m"}
	_, err = o.Invoke(context.Background(), "", "u")
	assert.ErrorContains(t, err, "401")
}

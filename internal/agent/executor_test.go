package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/soyeahso/agentforge/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAgent() *domain.Agent {
	return &domain.Agent{
		ID:        "agent-1",
		Name:      "Tutor",
		Role:      "Patient math tutor",
		Backstory: "Has taught algebra to thousands of students.",
		Goal:      "Explain each step clearly",
	}
}

func testRegistry(clients ...llm.Client) *llm.Registry {
	reg := llm.NewRegistry(silentLog())
	for _, c := range clients {
		reg.Register(c.Name(), c)
	}
	return reg
}

// --- LLMExecutor ---

func TestLLMExecutorBuildsRequest(t *testing.T) {
	temp := 0.1
	mock := &llm.MockClient{
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			assert.Contains(t, req.System, "You are Patient math tutor.")
			assert.Contains(t, req.System, "Has taught algebra to thousands of students.")
			assert.Contains(t, req.System, "Explain each step clearly")
			require.Len(t, req.Messages, 1)
			assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
			assert.Contains(t, req.Messages[0].Content, "What is 2+2?")
			assert.Contains(t, req.Messages[0].Content, ExpectedOutput)
			assert.Equal(t, 512, req.MaxTokens)
			require.NotNil(t, req.Temperature)
			assert.Equal(t, 0.1, *req.Temperature)
			return &llm.CompletionResponse{Content: "  4  ", Model: "mock"}, nil
		},
	}

	exec := NewLLMExecutor(mock, ExecutorConfig{MaxTokens: 512, Temperature: &temp}, silentLog())
	out, err := exec.Execute(context.Background(), testAgent(), "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", out)
}

func TestLLMExecutorErrors(t *testing.T) {
	boom := errors.New("connection refused")
	exec := NewLLMExecutor(&llm.MockClient{
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, boom
		},
	}, ExecutorConfig{}, silentLog())
	_, err := exec.Execute(context.Background(), testAgent(), "hi")
	assert.ErrorIs(t, err, boom)

	exec = NewLLMExecutor(&llm.MockClient{
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "\n"}, nil
		},
	}, ExecutorConfig{}, silentLog())
	_, err = exec.Execute(context.Background(), testAgent(), "hi")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestBuildSystemPrompt(t *testing.T) {
	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	prompt := BuildSystemPrompt(testAgent(), now)
	assert.Contains(t, prompt, "Your name is Tutor.")
	assert.Contains(t, prompt, "Current date: 2026-03-04")
	assert.Contains(t, prompt, "Backstory:\nHas taught algebra")
	assert.Contains(t, prompt, "Your personal goal is:\nExplain each step clearly")
}

func TestBuildTaskPrompt(t *testing.T) {
	got := BuildTaskPrompt("Summarize this")
	assert.Equal(t,
		"Current Task: Summarize this\n\nThis is the expected criteria for your final answer: "+ExpectedOutput+"\n",
		got)
}

// --- FailoverClient ---

func TestFailoverUsesPrimary(t *testing.T) {
	primary := &llm.MockClient{ProviderName: "primary"}
	fc := NewFailoverClient(testRegistry(primary), "primary", []string{"backup"}, silentLog())

	resp, err := fc.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "mock response to: hi", resp.Content)
	assert.Equal(t, "failover", fc.Name())
}

func TestFailoverOnRetryableError(t *testing.T) {
	var models []string
	primary := &llm.MockClient{
		ProviderName: "primary",
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			models = append(models, req.Model)
			return nil, &llm.ProviderError{Provider: "primary", Message: "slow down", Code: 429}
		},
	}
	backup := &llm.MockClient{
		ProviderName: "backup",
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			models = append(models, req.Model)
			return &llm.CompletionResponse{Content: "from backup"}, nil
		},
	}

	fc := NewFailoverClient(testRegistry(primary, backup), "primary", []string{"backup"}, silentLog())
	resp, err := fc.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from backup", resp.Content)
	assert.Equal(t, []string{"primary", "backup"}, models)
}

func TestFailoverStopsOnPermanentError(t *testing.T) {
	calls := 0
	primary := &llm.MockClient{
		ProviderName: "primary",
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			return nil, &llm.ProviderError{Provider: "primary", Message: "bad request", Code: 400}
		},
	}
	backup := &llm.MockClient{
		ProviderName: "backup",
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			return &llm.CompletionResponse{Content: "unused"}, nil
		},
	}

	fc := NewFailoverClient(testRegistry(primary, backup), "primary", []string{"backup"}, silentLog())
	_, err := fc.Complete(context.Background(), llm.CompletionRequest{})
	var provErr *llm.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 400, provErr.Code)
	assert.Equal(t, 1, calls)
}

func TestFailoverNoProvider(t *testing.T) {
	fc := NewFailoverClient(testRegistry(), "nothing", nil, silentLog())
	_, err := fc.Complete(context.Background(), llm.CompletionRequest{})
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&llm.ProviderError{Code: 503}, true},
		{&llm.ProviderError{Code: 401}, true},
		{&llm.ProviderError{Code: 404}, false},
		{errors.New("server overloaded"), true},
		{errors.New("request timeout"), true},
		{errors.New("invalid json"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryable(tt.err), "%v", tt.err)
	}
}

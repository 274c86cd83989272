package llmclient

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/bantz/pkg/brain"
)

// VLLMClient talks to a vLLM OpenAI-compatible server via go-openai,
// pointed at a custom base URL instead of api.openai.com, as a single
// non-streaming CreateChatCompletion call per request.
type VLLMClient struct {
	client *openai.Client
	model  string
}

// NewVLLMClient builds a VLLMClient against baseURL (e.g. an in-cluster vLLM
// OpenAI-compatible endpoint). apiKey may be a placeholder when the server
// does not enforce auth.
func NewVLLMClient(baseURL, apiKey, model string) *VLLMClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &VLLMClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *VLLMClient) Backend() brain.LLMBackend { return brain.BackendVLLM }
func (c *VLLMClient) Model() string             { return c.model }

// ChatDetailed performs one non-streaming chat completion.
func (c *VLLMClient) ChatDetailed(ctx context.Context, messages []Message, temperature float64, maxTokens int) (Response, error) {
	if c.client == nil {
		return Response{}, errors.New("llmclient: vllm client not configured")
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("llmclient: vllm returned no choices")
	}

	return Response{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// IsAvailable issues a minimal completion with a tight deadline and reports
// whether the backend answered in time.
func (c *VLLMClient) IsAvailable(ctx context.Context, timeout time.Duration) bool {
	if c.client == nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := c.client.CreateChatCompletion(probeCtx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	return err == nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

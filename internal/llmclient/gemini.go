package llmclient

import (
	"context"
	"errors"
	"time"

	"google.golang.org/genai"

	"github.com/haasonsaas/bantz/pkg/brain"
)

// GeminiClient talks to Google's Gemini API via google.golang.org/genai,
// as a single non-streaming GenerateContent call per request (the finalizer
// tier never streams).
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient builds a GeminiClient using the Gemini Developer API.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Backend() brain.LLMBackend { return brain.BackendGemini }
func (c *GeminiClient) Model() string             { return c.model }

// ChatDetailed performs one non-streaming GenerateContent call.
func (c *GeminiClient) ChatDetailed(ctx context.Context, messages []Message, temperature float64, maxTokens int) (Response, error) {
	if c.client == nil {
		return Response{}, errors.New("llmclient: gemini client not configured")
	}

	temp := float32(temperature)
	config := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	var contents []*genai.Content
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case "system":
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
		case "assistant":
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return Response{}, err
	}

	text := resp.Text()
	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return Response{Content: text, Usage: usage}, nil
}

// IsAvailable issues a minimal GenerateContent call with a tight deadline.
func (c *GeminiClient) IsAvailable(ctx context.Context, timeout time.Duration) bool {
	if c.client == nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := c.client.Models.GenerateContent(probeCtx, c.model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: "ping"}}}},
		&genai.GenerateContentConfig{MaxOutputTokens: 1},
	)
	return err == nil
}

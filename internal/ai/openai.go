package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIClient serves any OpenAI-compatible chat completions endpoint
// (OpenAI itself, Groq) through the official SDK with SDK retries disabled.
type OpenAIClient struct {
	provider string
	apiKey   string
	client   *openai.Client
}

// NewOpenAIClient builds a client for provider. cfg.BaseURL selects the
// endpoint; empty means api.openai.com.
func NewOpenAIClient(provider string, cfg RuntimeConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		// Request paths resolve relative to the base, so it must end in "/".
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.HTTPTimeout))
	}
	return &OpenAIClient{provider: provider, apiKey: cfg.APIKey, client: openai.NewClient(opts...)}
}

func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%s is missing", APIKeyEnv(c.provider))
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	params := openai.ChatCompletionNewParams{
		Messages: openai.F(msgs),
		Model:    openai.F(openai.ChatModel(req.Model)),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, c.translateError(ctx, err)
	}
	out := &GenerateResponse{
		ID: completion.ID,
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
		RequestID: completion.ID,
	}
	for _, ch := range completion.Choices {
		out.Choices = append(out.Choices, Choice{Message: Message{Role: "assistant", Content: ch.Message.Content}})
	}
	return out, nil
}

// translateError maps SDK errors onto this package's typed errors.
func (c *OpenAIClient) translateError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var sdkErr *openai.Error
	if !errors.As(err, &sdkErr) {
		return &UnreachableError{Host: c.provider, Err: err}
	}
	apiErr := &APIError{StatusCode: sdkErr.StatusCode, Code: sdkErr.Code, Message: sdkErr.Message}
	if sdkErr.Response != nil {
		apiErr.RequestID = extractRequestID(sdkErr.Response)
	}
	if apiErr.Message == "" {
		apiErr.Message = sdkErr.Error()
	}
	return classifyAPIError(apiErr, sdkErr.Response)
}

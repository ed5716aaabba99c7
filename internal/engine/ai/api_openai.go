package ai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"
)

// OpenAITransport talks to any OpenAI-compatible server (LM Studio, vLLM,
// the hosted API) using the official SDK.
type OpenAITransport struct {
	client openai.Client
}

// NewOpenAITransport creates a transport for the given base URL and key.
// Model IDs come from config via the request - do NOT hardcode them here.
func NewOpenAITransport(baseURL, apiKey string) *OpenAITransport {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAITransport{client: openai.NewClient(opts...)}
}

// ID returns the transport identifier
func (t *OpenAITransport) ID() string {
	return "openai"
}

// Stream sends a request and returns streaming events
func (t *OpenAITransport) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	params := t.buildParams(req)

	stream := t.client.Chat.Completions.NewStreaming(ctx, params)

	events := make(chan StreamEvent, 100)
	go t.handleStream(stream, events)

	return events, nil
}

// Complete sends a request without streaming and returns the full text.
func (t *OpenAITransport) Complete(ctx context.Context, req *ChatRequest) (string, error) {
	params := t.buildParams(req)

	resp, err := t.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", &TransportError{Kind: KindProtocol, Message: "completion response has no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

func (t *OpenAITransport) buildParams(req *ChatRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// handleStream processes the streaming response
func (t *OpenAITransport) handleStream(stream *ssestream.Stream[openai.ChatCompletionChunk], events chan<- StreamEvent) {
	defer close(events)

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			events <- StreamEvent{
				Type: EventTypeText,
				Text: chunk.Choices[0].Delta.Content,
			}
		}
	}

	if err := stream.Err(); err != nil {
		events <- StreamEvent{Type: EventTypeError, Err: err}
		return
	}

	events <- StreamEvent{Type: EventTypeDone}
}

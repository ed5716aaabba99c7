package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaTransport streams from a local Ollama daemon using the official SDK.
type OllamaTransport struct {
	client *api.Client
}

// NewOllamaTransport creates a transport for the given daemon URL.
func NewOllamaTransport(baseURL string) *OllamaTransport {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		parsedURL, _ = url.Parse("http://localhost:11434")
	}

	httpClient := &http.Client{
		Timeout: 5 * time.Minute, // Longer timeout for local inference
	}

	return &OllamaTransport{client: api.NewClient(parsedURL, httpClient)}
}

// ID returns the transport identifier
func (t *OllamaTransport) ID() string {
	return "ollama"
}

// Stream sends a request to Ollama and streams the response
func (t *OllamaTransport) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	events := make(chan StreamEvent, 100)

	chatReq := t.buildRequest(req, true)

	go func() {
		defer close(events)

		done := false
		err := t.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				events <- StreamEvent{
					Type: EventTypeText,
					Text: resp.Message.Content,
				}
			}
			if resp.Done {
				done = true
				events <- StreamEvent{Type: EventTypeDone}
			}
			return nil
		})

		if err != nil {
			events <- StreamEvent{Type: EventTypeError, Err: err}
			return
		}
		if !done {
			// The daemon closed the stream without a final response.
			events <- StreamEvent{Type: EventTypeError, Err: &TransportError{
				Kind:    KindProtocol,
				Message: "ollama stream ended without a final response",
			}}
		}
	}()

	return events, nil
}

// Complete sends a non-streaming request and returns the full text.
func (t *OllamaTransport) Complete(ctx context.Context, req *ChatRequest) (string, error) {
	chatReq := t.buildRequest(req, false)

	var sb strings.Builder
	err := t.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return sb.String(), nil
}

func (t *OllamaTransport) buildRequest(req *ChatRequest, stream bool) *api.ChatRequest {
	messages := make([]api.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		messages = append(messages, api.Message{Role: msg.Role, Content: msg.Content})
	}

	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
	}

	if req.Temperature > 0 || req.MaxTokens > 0 {
		chatReq.Options = make(map[string]any)
		if req.Temperature > 0 {
			chatReq.Options["temperature"] = req.Temperature
		}
		if req.MaxTokens > 0 {
			chatReq.Options["num_predict"] = req.MaxTokens
		}
	}

	return chatReq
}

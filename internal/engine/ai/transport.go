// Package ai provides the inference transports for the generation engine:
// an OpenAI-compatible client, an Ollama client, and the endpoint resolver
// that picks between a local and a remote candidate.
package ai

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind categorizes a transport failure for the caller.
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindProtocol    ErrorKind = "protocol"
	KindRateLimited ErrorKind = "rate_limited"
	KindUnknown     ErrorKind = "unknown"
)

// StreamEventType defines the type of streaming event.
type StreamEventType string

const (
	EventTypeText  StreamEventType = "text"
	EventTypeDone  StreamEventType = "done"
	EventTypeError StreamEventType = "error"
)

// StreamEvent is one streamed response fragment. A stream carries zero or
// more text events followed by exactly one done or error event.
type StreamEvent struct {
	Type StreamEventType
	Text string
	Err  error
}

// ChatMessage is one conversation turn.
type ChatMessage struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// ChatRequest is a single completion request. Immutable once submitted.
type ChatRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

// Transport is a client handle bound to one inference endpoint.
type Transport interface {
	// ID returns the transport identifier (e.g. "openai", "ollama").
	ID() string

	// Stream submits the request and returns a channel of streaming events.
	// The channel is closed after the terminal done or error event.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error)

	// Complete submits the request without streaming and returns the full
	// response text. Used for short auxiliary generations.
	Complete(ctx context.Context, req *ChatRequest) (string, error)
}

// TransportError carries a pre-classified failure from a transport.
type TransportError struct {
	Kind    ErrorKind
	Message string
}

func (e *TransportError) Error() string {
	return e.Message
}

// Classify maps a transport error to an ErrorKind. Context cancellation is
// deliberately not classified here; callers treat it as cancellation, not
// failure.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}

	msg := strings.ToLower(err.Error())

	rateLimitPatterns := []string{
		"rate limit", "rate_limit", "too many requests", "429", "throttl", "slow down",
	}
	for _, p := range rateLimitPatterns {
		if strings.Contains(msg, p) {
			return KindRateLimited
		}
	}

	networkPatterns := []string{
		"timeout", "timed out", "deadline exceeded", "connection refused",
		"connection reset", "no such host", "unexpected eof", "broken pipe",
		"network is unreachable", "tls", "dial tcp", "502", "503", "504",
	}
	for _, p := range networkPatterns {
		if strings.Contains(msg, p) {
			return KindNetwork
		}
	}

	protocolPatterns := []string{
		"unmarshal", "decode", "unexpected response", "malformed", "invalid character",
		"unexpected end of json", "content-type",
	}
	for _, p := range protocolPatterns {
		if strings.Contains(msg, p) {
			return KindProtocol
		}
	}

	return KindUnknown
}

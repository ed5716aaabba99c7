package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/helixlabs/helix/internal/config"
	"github.com/helixlabs/helix/internal/engine/ai"
)

const (
	maxTitleRunes = 42
	defaultTitle  = "New Chat"

	titlePrompt = "Write a title for this conversation in five words or fewer. Reply with the title only, no quotes."
)

// TransportSource yields the transport for auxiliary generations.
type TransportSource interface {
	Resolve(ctx context.Context) (ai.Transport, error)
}

// Titler derives a short conversation title from the first user message.
// Model output is preferred; any failure falls back to a heuristic cut of
// the message itself. Titling never surfaces an error.
type Titler struct {
	source  TransportSource
	profile config.ModelProfile
	timeout time.Duration
}

// NewTitler creates a titler that generates with the given model profile.
// A nil source disables generation and leaves only the heuristic.
func NewTitler(source TransportSource, profile config.ModelProfile) *Titler {
	return &Titler{
		source:  source,
		profile: profile,
		timeout: 10 * time.Second,
	}
}

// TitleFor returns a display title for a conversation whose first user
// message is firstMessage. Never empty, never longer than the title cap.
func (t *Titler) TitleFor(ctx context.Context, firstMessage string) string {
	if title := t.generate(ctx, firstMessage); title != "" {
		return title
	}
	return HeuristicTitle(firstMessage)
}

func (t *Titler) generate(ctx context.Context, firstMessage string) string {
	if t.source == nil || strings.TrimSpace(firstMessage) == "" {
		return ""
	}

	transport, err := t.source.Resolve(ctx)
	if err != nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := transport.Complete(ctx, &ai.ChatRequest{
		Model:       t.profile.ID,
		System:      titlePrompt,
		Messages:    []ai.ChatMessage{{Role: "user", Content: firstMessage}},
		Temperature: 0.2,
		MaxTokens:   16,
	})
	if err != nil {
		slog.Debug("title generation failed, using heuristic", "error", err)
		return ""
	}

	out = strings.Trim(strings.TrimSpace(out), `"'`)
	if out == "" {
		return ""
	}
	return clampTitle(out)
}

// HeuristicTitle derives a title from the message text alone: collapse
// whitespace, cut at the rune cap, mark the cut with an ellipsis. A blank
// message gets the stock title.
func HeuristicTitle(message string) string {
	collapsed := strings.Join(strings.Fields(message), " ")
	if collapsed == "" {
		return defaultTitle
	}
	return clampTitle(collapsed)
}

func clampTitle(s string) string {
	runes := []rune(s)
	if len(runes) <= maxTitleRunes {
		return s
	}
	return string(runes[:maxTitleRunes]) + "…"
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/helixlabs/helix/internal/config"
	"github.com/helixlabs/helix/internal/db"
	"github.com/helixlabs/helix/internal/engine/ai"
)

// ErrUnknownModel means the request named a model key outside the
// configured table. This is a caller bug, not a runtime condition.
var ErrUnknownModel = errors.New("unknown model key")

// Request describes one generation to run.
type Request struct {
	Surface      string // surface identity, e.g. "chat:<id>" or "quickfix"
	AccountID    string
	ChatID       string // when set, the transcript is persisted here
	ModelKey     string // key into the model table; empty means the default
	BasePrompt   string // surface instruction; composed, never truncated
	UserMessage  string
	History      []ai.ChatMessage // prior turns, oldest first
	AttachmentID string           // notebook to attach, optional
	UseMemories  bool
}

// Engine wires the resolver, composer, ledger, router, and store into the
// generation entry point.
type Engine struct {
	cfg      config.Config
	store    *db.Store
	resolver *ai.Resolver
	ledger   *Ledger
	router   *Router
	titler   *Titler
	logger   *slog.Logger
}

// New assembles an engine over an open store.
func New(cfg config.Config, store *db.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	resolver := ai.NewResolver(cfg.Endpoints)
	ledger := NewLedger(store)

	titleModel := cfg.Models[cfg.DefaultModel]
	return &Engine{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		ledger:   ledger,
		router:   NewRouter(ledger, logger),
		titler:   NewTitler(resolver, titleModel),
		logger:   logger,
	}
}

// Close shuts down the router and cancels in-flight sessions.
func (e *Engine) Close() {
	e.router.Close()
}

// Ledger exposes balance reads for callers.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// Router exposes surface-level cancel and busy checks.
func (e *Engine) Router() *Router {
	return e.router
}

// RestartResolver forces a fresh endpoint probe on the next generation.
func (e *Engine) RestartResolver() {
	e.resolver.Restart()
}

// Profile resolves a model key to its profile, falling back to the
// configured default for an empty key.
func (e *Engine) Profile(modelKey string) (config.ModelProfile, error) {
	key := modelKey
	if key == "" {
		key = e.cfg.DefaultModel
	}
	profile, ok := e.cfg.Models[key]
	if !ok {
		return config.ModelProfile{}, fmt.Errorf("%w: %q", ErrUnknownModel, modelKey)
	}
	return profile, nil
}

// Generate composes the prompt, persists the user turn, and starts a
// streaming session bound to the request's surface. Validation and
// endpoint resolution fail synchronously; everything after submission
// arrives through the callbacks.
func (e *Engine) Generate(ctx context.Context, req Request, cb SurfaceCallbacks) (*Session, error) {
	profile, err := e.Profile(req.ModelKey)
	if err != nil {
		return nil, err
	}

	transport, err := e.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	pc := PromptContext{Base: req.BasePrompt}
	if req.UseMemories {
		memories, err := e.store.GetMemories(ctx, req.AccountID)
		if err != nil {
			return nil, fmt.Errorf("load memories: %w", err)
		}
		for _, m := range memories {
			pc.Memories = append(pc.Memories, m.Content)
		}
	}
	if req.AttachmentID != "" {
		nb, err := e.store.GetNotebook(ctx, req.AttachmentID)
		if err != nil {
			return nil, fmt.Errorf("load attachment: %w", err)
		}
		pc.Attachment = nb.Content
	}
	system := Compose(pc, e.cfg.Compose.Budget, e.cfg.Compose.AttachmentCap)

	messages := make([]ai.ChatMessage, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, ai.ChatMessage{Role: "user", Content: req.UserMessage})

	session := NewSession(req.Surface, profile)

	finalize := FinalizeFunc(nil)
	if req.ChatID != "" {
		chatID := req.ChatID
		finalize = func(ctx context.Context, fullText string) error {
			return e.store.AppendMessage(ctx, chatID, "assistant", fullText)
		}
	}

	// Bind before touching the transcript: a busy rejection must leave no
	// trace of the attempted turn.
	if err := e.router.Bind(req.Surface, req.AccountID, session, cb, finalize); err != nil {
		return nil, err
	}

	if req.ChatID != "" {
		if err := e.store.AppendMessage(ctx, req.ChatID, "user", req.UserMessage); err != nil {
			session.abandon()
			return nil, fmt.Errorf("persist user message: %w", err)
		}
	}

	if err := session.Start(ctx, transport, &ai.ChatRequest{
		Model:       profile.ID,
		System:      system,
		Messages:    messages,
		Temperature: e.cfg.Temperature,
	}); err != nil {
		return nil, err
	}

	e.logger.Debug("generation started",
		"session", session.ID, "surface", req.Surface, "model", profile.ID)
	return session, nil
}

// TitleFor derives a display title for a conversation from its first
// user message without persisting anything.
func (e *Engine) TitleFor(ctx context.Context, firstMessage string) string {
	return e.titler.TitleFor(ctx, firstMessage)
}

// AutoTitle names a conversation after its first user message on its own
// goroutine, so callers never wait on the titling generation. Failures
// are absorbed; the chat keeps its stock title at worst.
func (e *Engine) AutoTitle(ctx context.Context, chatID, firstMessage string) {
	go func() {
		title := e.titler.TitleFor(ctx, firstMessage)
		if err := e.store.SetChatTitle(ctx, chatID, title); err != nil {
			e.logger.Debug("auto-title persist failed", "chat", chatID, "error", err)
		}
	}()
}

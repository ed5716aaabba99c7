package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/helixlabs/helix/internal/config"
	"github.com/helixlabs/helix/internal/engine/ai"
)

// fakeTransport replays a scripted event stream.
type fakeTransport struct {
	script       []ai.StreamEvent
	startErr     error
	holdUntilCtx bool // after the script, wait for ctx cancel before closing

	completeText string
	completeErr  error
}

func (f *fakeTransport) ID() string { return "fake" }

func (f *fakeTransport) Stream(ctx context.Context, _ *ai.ChatRequest) (<-chan ai.StreamEvent, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	ch := make(chan ai.StreamEvent, 16)
	go func() {
		defer close(ch)
		for _, ev := range f.script {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
		if f.holdUntilCtx {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func (f *fakeTransport) Complete(_ context.Context, _ *ai.ChatRequest) (string, error) {
	return f.completeText, f.completeErr
}

func testProfile() config.ModelProfile {
	return config.ModelProfile{ID: "test-model", CostMultiplier: 1}
}

func text(s string) ai.StreamEvent {
	return ai.StreamEvent{Type: ai.EventTypeText, Text: s}
}

func collectEvents(t *testing.T, s *Session) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %d so far", len(events))
		}
	}
}

func TestSessionStreamsAndCompletes(t *testing.T) {
	transport := &fakeTransport{script: []ai.StreamEvent{
		text("Hel"), text("lo"), text(" world"),
		{Type: ai.EventTypeDone},
	}}

	s := NewSession("chat:1", testProfile())
	if err := s.Start(context.Background(), transport, &ai.ChatRequest{Model: "test-model"}); err != nil {
		t.Fatalf("start: %v", err)
	}

	events := collectEvents(t, s)

	var concat string
	var terminals int
	var full string
	for _, ev := range events {
		switch ev.Type {
		case EventDelta:
			concat += ev.Delta
		case EventCompleted:
			terminals++
			full = ev.FullText
		case EventCancelled, EventFailed:
			terminals++
		}
	}

	if terminals != 1 {
		t.Fatalf("terminal events = %d, want 1", terminals)
	}
	if concat != "Hello world" || full != concat {
		t.Errorf("concat = %q, full = %q, want %q", concat, full, "Hello world")
	}
	if s.State() != StateCompleted {
		t.Errorf("state = %s, want completed", s.State())
	}
}

func TestSessionFailureCarriesPartialText(t *testing.T) {
	transport := &fakeTransport{script: []ai.StreamEvent{
		text("par"),
		{Type: ai.EventTypeError, Err: errors.New("connection refused")},
	}}

	s := NewSession("chat:1", testProfile())
	if err := s.Start(context.Background(), transport, &ai.ChatRequest{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	events := collectEvents(t, s)
	last := events[len(events)-1]
	if last.Type != EventFailed {
		t.Fatalf("last event = %v, want failed", last.Type)
	}
	if last.Kind != ai.KindNetwork {
		t.Errorf("kind = %v, want network", last.Kind)
	}
	if last.Partial != "par" {
		t.Errorf("partial = %q, want %q", last.Partial, "par")
	}
	if s.State() != StateFailed {
		t.Errorf("state = %s, want failed", s.State())
	}
}

func TestSessionCancelMidStream(t *testing.T) {
	transport := &fakeTransport{
		script:       []ai.StreamEvent{text("once upon")},
		holdUntilCtx: true,
	}

	s := NewSession("chat:1", testProfile())
	if err := s.Start(context.Background(), transport, &ai.ChatRequest{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Let the delta arrive, then cancel.
	select {
	case ev := <-s.Events():
		if ev.Type != EventDelta {
			t.Fatalf("first event = %v, want delta", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delta")
	}
	s.Cancel()

	var terminal *Event
	timeout := time.After(2 * time.Second)
	for terminal == nil {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				t.Fatal("channel closed without terminal event")
			}
			if ev.Type != EventDelta {
				terminal = &ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for terminal event")
		}
	}

	if terminal.Type != EventCancelled {
		t.Errorf("terminal = %v, want cancelled", terminal.Type)
	}
	if s.State() != StateCancelled {
		t.Errorf("state = %s, want cancelled", s.State())
	}

	// Channel closes right after the terminal event.
	if _, ok := <-s.Events(); ok {
		t.Error("event after terminal")
	}

	// Repeated cancel is a no-op.
	s.Cancel()
}

func TestSessionCancelBeforeStart(t *testing.T) {
	s := NewSession("chat:1", testProfile())
	s.Cancel()
	if err := s.Start(context.Background(), &fakeTransport{}, &ai.ChatRequest{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	events := collectEvents(t, s)
	if len(events) != 1 || events[0].Type != EventCancelled {
		t.Fatalf("events = %+v, want single cancelled", events)
	}
}

func TestSessionSubmitFailure(t *testing.T) {
	transport := &fakeTransport{startErr: errors.New("dial tcp: connection refused")}

	s := NewSession("chat:1", testProfile())
	if err := s.Start(context.Background(), transport, &ai.ChatRequest{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	events := collectEvents(t, s)
	if len(events) != 1 || events[0].Type != EventFailed {
		t.Fatalf("events = %+v, want single failed", events)
	}
	if events[0].Kind != ai.KindNetwork {
		t.Errorf("kind = %v, want network", events[0].Kind)
	}
}

// hookTransport runs a hook just before submission, to land a cancel in
// the window between the session's intent check and the transport call.
type hookTransport struct {
	fakeTransport
	onStream func()
}

func (h *hookTransport) Stream(ctx context.Context, req *ai.ChatRequest) (<-chan ai.StreamEvent, error) {
	if h.onStream != nil {
		h.onStream()
	}
	return h.fakeTransport.Stream(ctx, req)
}

func TestSessionCancelDuringSubmit(t *testing.T) {
	s := NewSession("chat:1", testProfile())
	transport := &hookTransport{
		fakeTransport: fakeTransport{startErr: errors.New("connection refused")},
		onStream:      s.Cancel,
	}

	if err := s.Start(context.Background(), transport, &ai.ChatRequest{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	events := collectEvents(t, s)
	if len(events) != 1 || events[0].Type != EventCancelled {
		t.Fatalf("events = %+v, want single cancelled", events)
	}
	if s.State() != StateCancelled {
		t.Errorf("state = %s, want cancelled", s.State())
	}
}

func TestSessionSubmitContextCanceled(t *testing.T) {
	transport := &fakeTransport{startErr: context.Canceled}

	s := NewSession("chat:1", testProfile())
	if err := s.Start(context.Background(), transport, &ai.ChatRequest{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	events := collectEvents(t, s)
	if len(events) != 1 || events[0].Type != EventCancelled {
		t.Fatalf("events = %+v, want single cancelled", events)
	}
}

func TestSessionStreamEndsWithoutTerminal(t *testing.T) {
	transport := &fakeTransport{script: []ai.StreamEvent{text("half a rep")}}

	s := NewSession("chat:1", testProfile())
	if err := s.Start(context.Background(), transport, &ai.ChatRequest{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	events := collectEvents(t, s)
	last := events[len(events)-1]
	if last.Type != EventFailed || last.Kind != ai.KindProtocol {
		t.Fatalf("last = %+v, want protocol failure", last)
	}
	if last.Partial != "half a rep" {
		t.Errorf("partial = %q", last.Partial)
	}
}

func TestSessionStartTwice(t *testing.T) {
	transport := &fakeTransport{script: []ai.StreamEvent{{Type: ai.EventTypeDone}}}

	s := NewSession("chat:1", testProfile())
	if err := s.Start(context.Background(), transport, &ai.ChatRequest{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(context.Background(), transport, &ai.ChatRequest{}); err == nil {
		t.Error("second start did not fail")
	}
	collectEvents(t, s)
}

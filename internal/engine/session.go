package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/helixlabs/helix/internal/config"
	"github.com/helixlabs/helix/internal/engine/ai"
)

// State is the session lifecycle position.
type State int32

const (
	StateCreated State = iota
	StateStreaming
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// EventType is the kind of session event.
type EventType int

const (
	EventDelta EventType = iota
	EventCompleted
	EventCancelled
	EventFailed
)

// Event is one observable step of a generation. Exactly one terminal
// event (Completed, Cancelled, or Failed) ends the stream; the channel
// closes right after it.
type Event struct {
	Type     EventType
	Delta    string       // EventDelta: the new text fragment
	FullText string       // EventCompleted: concatenation of every delta
	Partial  string       // EventFailed: text accumulated before the failure
	Kind     ai.ErrorKind // EventFailed
	Detail   string       // EventFailed
}

// Session is a single in-flight generation. One producer goroutine owns
// the event channel; Cancel only flips intent and cuts the context, so
// the terminal event always comes from the producer.
type Session struct {
	ID      string
	Surface string
	Profile config.ModelProfile

	events    chan Event
	state     atomic.Int32
	cancelled atomic.Bool
	cancel    atomic.Value // context.CancelFunc
}

// NewSession creates a session in the Created state, bound to a surface.
func NewSession(surface string, profile config.ModelProfile) *Session {
	return &Session{
		ID:      uuid.New().String(),
		Surface: surface,
		Profile: profile,
		events:  make(chan Event, 64),
	}
}

// Events returns the session's event stream. Closed after the terminal
// event.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Cancel requests cancellation. Safe to call at any time, from any
// goroutine, repeatedly. After a terminal state it is a no-op.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
	if fn, ok := s.cancel.Load().(context.CancelFunc); ok && fn != nil {
		fn()
	}
}

// Start submits the request on the transport and begins streaming.
// It may only be called once, on a Created session. Transport failures do
// not surface here; they arrive as a Failed event.
func (s *Session) Start(ctx context.Context, transport ai.Transport, req *ai.ChatRequest) error {
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateStreaming)) {
		return fmt.Errorf("session %s: start from state %s", s.ID, s.State())
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel.Store(cancel)

	if s.cancelled.Load() {
		cancel()
		s.finish(Event{Type: EventCancelled}, StateCancelled)
		return nil
	}

	stream, err := transport.Stream(ctx, req)
	if err != nil {
		cancel()
		// A cancel landing during submission is still a cancel, not a
		// failure.
		if s.cancelled.Load() || errors.Is(err, context.Canceled) {
			s.finish(Event{Type: EventCancelled}, StateCancelled)
			return nil
		}
		s.finish(Event{
			Type:   EventFailed,
			Kind:   ai.Classify(err),
			Detail: err.Error(),
		}, StateFailed)
		return nil
	}

	go s.consume(cancel, stream)
	return nil
}

// abandon finishes a never-started session as cancelled so that any
// surface binding pumping its events unwinds cleanly.
func (s *Session) abandon() {
	if s.state.CompareAndSwap(int32(StateCreated), int32(StateCancelled)) {
		s.cancelled.Store(true)
		s.events <- Event{Type: EventCancelled}
		close(s.events)
	}
}

// consume is the sole writer and closer of s.events.
func (s *Session) consume(cancel context.CancelFunc, stream <-chan ai.StreamEvent) {
	defer cancel()

	var full strings.Builder

	for ev := range stream {
		if s.cancelled.Load() {
			go drain(stream)
			s.finish(Event{Type: EventCancelled}, StateCancelled)
			return
		}

		switch ev.Type {
		case ai.EventTypeText:
			if ev.Text == "" {
				continue
			}
			full.WriteString(ev.Text)
			s.events <- Event{Type: EventDelta, Delta: ev.Text}

		case ai.EventTypeDone:
			s.finish(Event{Type: EventCompleted, FullText: full.String()}, StateCompleted)
			return

		case ai.EventTypeError:
			if s.cancelled.Load() || errors.Is(ev.Err, context.Canceled) {
				s.finish(Event{Type: EventCancelled}, StateCancelled)
				return
			}
			s.finish(Event{
				Type:    EventFailed,
				Kind:    ai.Classify(ev.Err),
				Detail:  ev.Err.Error(),
				Partial: full.String(),
			}, StateFailed)
			return
		}
	}

	// Stream closed without a terminal event.
	if s.cancelled.Load() {
		s.finish(Event{Type: EventCancelled}, StateCancelled)
		return
	}
	s.finish(Event{
		Type:    EventFailed,
		Kind:    ai.KindProtocol,
		Detail:  "stream ended without completion",
		Partial: full.String(),
	}, StateFailed)
}

func (s *Session) finish(ev Event, state State) {
	s.state.Store(int32(state))
	s.events <- ev
	close(s.events)
}

// drain keeps a cancelled transport stream from blocking on its buffer.
func drain(stream <-chan ai.StreamEvent) {
	for range stream {
	}
}

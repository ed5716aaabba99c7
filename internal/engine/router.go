package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/helixlabs/helix/internal/engine/ai"
)

// ErrSurfaceBusy means the surface already has a generation in flight.
// Callers cancel the current session first if they want to replace it.
var ErrSurfaceBusy = errors.New("surface busy: generation already in flight")

// SurfaceCallbacks receive session events on the dispatcher goroutine.
// Implementations must not block; they run on the single thread that
// serves every surface.
type SurfaceCallbacks struct {
	OnDelta    func(delta string)
	OnFinalize func(fullText string)
	OnError    func(kind ai.ErrorKind, detail string)
	OnBalance  func(balance int)
}

// FinalizeFunc persists a completed reply. Invoked at most once per
// session, before the token deduction.
type FinalizeFunc func(ctx context.Context, fullText string) error

type binding struct {
	surface   string
	accountID string
	session   *Session
	callbacks SurfaceCallbacks
	finalize  FinalizeFunc
	done      bool // dispatcher goroutine only
}

// Router fans session events into surface callbacks. All callbacks for
// all surfaces run on one dispatcher goroutine, so no two surfaces ever
// paint concurrently and per-session event order is preserved.
//
// Completion is where money moves: exactly one finalize and one token
// deduction per Completed session. Cancelled and Failed sessions deduct
// nothing.
type Router struct {
	ledger *Ledger
	logger *slog.Logger

	dispatch chan func()
	quit     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	active map[string]*binding
}

// NewRouter creates a router and starts its dispatcher goroutine.
func NewRouter(ledger *Ledger, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		ledger:   ledger,
		logger:   logger,
		dispatch: make(chan func(), 256),
		quit:     make(chan struct{}),
		active:   make(map[string]*binding),
	}
	go r.run()
	return r
}

// run is the dispatcher loop. Everything surface-visible happens here.
func (r *Router) run() {
	for {
		select {
		case fn := <-r.dispatch:
			fn()
		case <-r.quit:
			return
		}
	}
}

// Close stops the dispatcher. In-flight sessions are cancelled.
func (r *Router) Close() {
	r.mu.Lock()
	for _, b := range r.active {
		b.session.Cancel()
	}
	r.mu.Unlock()
	r.stopOnce.Do(func() { close(r.quit) })
}

// Bind attaches a session to a surface and starts pumping its events.
// A surface holds at most one session; a second Bind is rejected.
func (r *Router) Bind(surface, accountID string, session *Session, cb SurfaceCallbacks, finalize FinalizeFunc) error {
	b := &binding{
		surface:   surface,
		accountID: accountID,
		session:   session,
		callbacks: cb,
		finalize:  finalize,
	}

	r.mu.Lock()
	if _, busy := r.active[surface]; busy {
		r.mu.Unlock()
		return ErrSurfaceBusy
	}
	r.active[surface] = b
	r.mu.Unlock()

	go r.pump(b)
	return nil
}

// Busy reports whether a surface has a bound session.
func (r *Router) Busy(surface string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.active[surface]
	return busy
}

// CancelSurface cancels the session bound to a surface, if any.
func (r *Router) CancelSurface(surface string) bool {
	r.mu.Lock()
	b, ok := r.active[surface]
	r.mu.Unlock()
	if !ok {
		return false
	}
	b.session.Cancel()
	return true
}

// pump forwards one session's events onto the dispatcher in order.
func (r *Router) pump(b *binding) {
	for {
		select {
		case ev, ok := <-b.session.Events():
			if !ok {
				return
			}
			select {
			case r.dispatch <- func() { r.deliver(b, ev) }:
			case <-r.quit:
				r.unbind(b)
				return
			}
		case <-r.quit:
			r.unbind(b)
			return
		}
	}
}

// deliver runs on the dispatcher goroutine.
func (r *Router) deliver(b *binding, ev Event) {
	if b.done {
		return
	}

	switch ev.Type {
	case EventDelta:
		if b.callbacks.OnDelta != nil {
			b.callbacks.OnDelta(ev.Delta)
		}

	case EventCompleted:
		b.done = true
		r.unbind(b)
		r.complete(b, ev.FullText)

	case EventCancelled:
		b.done = true
		r.unbind(b)
		r.logger.Debug("session cancelled", "session", b.session.ID, "surface", b.surface)

	case EventFailed:
		b.done = true
		r.unbind(b)
		r.logger.Warn("session failed",
			"session", b.session.ID, "surface", b.surface,
			"kind", ev.Kind, "detail", ev.Detail)
		if b.callbacks.OnError != nil {
			b.callbacks.OnError(ev.Kind, ev.Detail)
		}
	}
}

// complete persists the reply, notifies the surface, and charges for it.
func (r *Router) complete(b *binding, fullText string) {
	ctx := context.Background()

	if b.finalize != nil {
		if err := b.finalize(ctx, fullText); err != nil {
			r.logger.Error("finalize failed", "session", b.session.ID, "error", err)
		}
	}

	if b.callbacks.OnFinalize != nil {
		b.callbacks.OnFinalize(fullText)
	}

	cost := Cost(fullText, b.session.Profile)
	balance, err := r.ledger.Deduct(ctx, b.accountID, cost)
	if err != nil {
		r.logger.Error("token deduction failed",
			"session", b.session.ID, "account", b.accountID, "cost", cost, "error", err)
		// The surface still needs a terminal accounting signal; callers
		// block until OnBalance or OnError arrives.
		if b.callbacks.OnError != nil {
			b.callbacks.OnError(ai.KindUnknown, "token deduction failed: "+err.Error())
		}
		return
	}
	if b.callbacks.OnBalance != nil {
		b.callbacks.OnBalance(balance)
	}
}

func (r *Router) unbind(b *binding) {
	r.mu.Lock()
	if r.active[b.surface] == b {
		delete(r.active, b.surface)
	}
	r.mu.Unlock()
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/helixlabs/helix/internal/config"
)

// ErrNoEndpoints means the configuration names no inference endpoint at all.
var ErrNoEndpoints = errors.New("no inference endpoints configured")

// Resolver probes the primary endpoint once and binds the process to it, or
// to the secondary when the primary is unreachable. The decision sticks until
// Restart; mid-flight endpoint swaps would make streams non-reproducible.
type Resolver struct {
	endpoints config.Endpoints

	mu        sync.Mutex
	transport Transport
	chosen    config.Endpoint
	resolved  bool
}

// NewResolver creates a resolver over the configured endpoint pair.
func NewResolver(endpoints config.Endpoints) *Resolver {
	return &Resolver{endpoints: endpoints}
}

// Resolve returns the process-wide transport, probing on first call.
// Probe failure is not an error: the secondary is used as fallback.
func (r *Resolver) Resolve(ctx context.Context) (Transport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved {
		return r.transport, nil
	}

	primary := r.endpoints.Primary
	secondary := r.endpoints.Secondary
	if primary.BaseURL == "" && secondary.BaseURL == "" {
		return nil, ErrNoEndpoints
	}

	chosen := primary
	switch {
	case primary.BaseURL == "":
		chosen = secondary
	case probe(ctx, primary, time.Duration(r.endpoints.ProbeTimeout)):
		chosen = primary
	case secondary.BaseURL != "":
		slog.Info("primary endpoint unreachable, falling back",
			"primary", primary.BaseURL, "secondary", secondary.BaseURL)
		chosen = secondary
	default:
		// Nothing to fall back to; stay on the primary and let the first
		// generation surface the failure.
		slog.Warn("primary endpoint unreachable and no secondary configured",
			"primary", primary.BaseURL)
	}

	r.transport = newTransport(chosen)
	r.chosen = chosen
	r.resolved = true
	slog.Debug("endpoint resolved", "kind", chosen.Kind, "base_url", chosen.BaseURL)
	return r.transport, nil
}

// Restart discards the resolved endpoint so the next Resolve probes again.
func (r *Resolver) Restart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = false
	r.transport = nil
	r.chosen = config.Endpoint{}
}

// Current reports the endpoint in use, if resolution has happened.
func (r *Resolver) Current() (config.Endpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chosen, r.resolved
}

func newTransport(ep config.Endpoint) Transport {
	if ep.Kind == config.KindOllama {
		return NewOllamaTransport(ep.BaseURL)
	}
	return NewOpenAITransport(ep.BaseURL, ep.APIKey)
}

// probe checks whether an endpoint answers its listing route within the
// timeout. Any 2xx means alive.
func probe(ctx context.Context, ep config.Endpoint, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL(ep), nil)
	if err != nil {
		return false
	}
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func probeURL(ep config.Endpoint) string {
	base := strings.TrimRight(ep.BaseURL, "/")
	if ep.Kind == config.KindOllama {
		return fmt.Sprintf("%s/api/tags", base)
	}
	return fmt.Sprintf("%s/models", base)
}

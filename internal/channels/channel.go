// Package channels defines the normalized contract every messaging
// platform adapter implements, plus a registry that fans inbound
// envelopes in and routes outbound envelopes out.
package channels

import (
	"context"
	"sync"
	"time"

	"github.com/atlasforge/agentmesh/pkg/models"
)

// Adapter is the minimal contract every channel connector satisfies.
type Adapter interface {
	Type() models.ChannelType
}

// LifecycleAdapter starts and stops a connector's background work.
type LifecycleAdapter interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// OutboundAdapter delivers a reply to a channel thread.
type OutboundAdapter interface {
	Send(ctx context.Context, msg *models.OutgoingEnvelope) error
}

// InboundAdapter exposes a stream of normalized inbound messages.
type InboundAdapter interface {
	Messages() <-chan *models.IncomingEnvelope
}

// HealthAdapter reports connection status for platform monitoring.
type HealthAdapter interface {
	Status() Status
	HealthCheck(ctx context.Context) HealthStatus
}

// Status is the current connection state of an adapter.
type Status struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
	LastPing  int64  `json:"last_ping,omitempty"`
}

// HealthStatus is the result of an on-demand connectivity probe.
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	Message   string        `json:"message,omitempty"`
	LastCheck time.Time     `json:"last_check"`
}

// Registry holds every configured adapter for one tenant, keyed by
// channel type (a tenant runs at most one instance per channel type).
type Registry struct {
	mu        sync.RWMutex
	adapters  map[models.ChannelType]Adapter
	inbound   map[models.ChannelType]InboundAdapter
	outbound  map[models.ChannelType]OutboundAdapter
	lifecycle map[models.ChannelType]LifecycleAdapter
	health    map[models.ChannelType]HealthAdapter
}

// NewRegistry creates an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters:  make(map[models.ChannelType]Adapter),
		inbound:   make(map[models.ChannelType]InboundAdapter),
		outbound:  make(map[models.ChannelType]OutboundAdapter),
		lifecycle: make(map[models.ChannelType]LifecycleAdapter),
		health:    make(map[models.ChannelType]HealthAdapter),
	}
}

// Register adds an adapter, wiring it into whichever optional
// capability interfaces it implements.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := adapter.Type()
	r.adapters[t] = adapter

	if in, ok := adapter.(InboundAdapter); ok {
		r.inbound[t] = in
	}
	if out, ok := adapter.(OutboundAdapter); ok {
		r.outbound[t] = out
	}
	if lc, ok := adapter.(LifecycleAdapter); ok {
		r.lifecycle[t] = lc
	}
	if h, ok := adapter.(HealthAdapter); ok {
		r.health[t] = h
	}
}

// Get returns an adapter by channel type.
func (r *Registry) Get(t models.ChannelType) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[t]
	return a, ok
}

// GetOutbound returns the adapter that can deliver to t, if any.
func (r *Registry) GetOutbound(t models.ChannelType) (OutboundAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.outbound[t]
	return a, ok
}

// HealthAdapters returns every registered adapter exposing health.
func (r *Registry) HealthAdapters() map[models.ChannelType]HealthAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[models.ChannelType]HealthAdapter, len(r.health))
	for t, a := range r.health {
		out[t] = a
	}
	return out
}

// StartAll starts every adapter with lifecycle management, returning the
// first error encountered (already-started adapters keep running).
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.lifecycle {
		if err := a.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops every adapter with lifecycle management, collecting the
// last error but attempting every adapter regardless.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var lastErr error
	for _, a := range r.lifecycle {
		if err := a.Stop(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Aggregate fans every registered adapter's inbound stream into one
// channel, closed once ctx is cancelled and all producers have exited.
func (r *Registry) Aggregate(ctx context.Context) <-chan *models.IncomingEnvelope {
	r.mu.RLock()
	inbound := make([]InboundAdapter, 0, len(r.inbound))
	for _, a := range r.inbound {
		inbound = append(inbound, a)
	}
	r.mu.RUnlock()

	out := make(chan *models.IncomingEnvelope)
	var wg sync.WaitGroup
	for _, a := range inbound {
		wg.Add(1)
		go func(a InboundAdapter) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case env, ok := <-a.Messages():
					if !ok {
						return
					}
					select {
					case out <- env:
					case <-ctx.Done():
						return
					}
				}
			}
		}(a)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

package registry

import (
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Endpoint is one remote compute worker. The address is immutable once
// registered; liveness and its probe timestamp are guarded by the mutex
// because the health monitor and concurrent selectors race on them.
type Endpoint struct {
	url         *url.URL
	mutex       sync.Mutex
	alive       bool
	lastChecked time.Time
}

// NewEndpoint creates an endpoint for the given base URL.
// Endpoints start alive; the first probe cycle corrects that within
// one health-check interval.
func NewEndpoint(u *url.URL) *Endpoint {
	return &Endpoint{
		url:   u,
		alive: true,
	}
}

// URL returns the endpoint's base URL.
func (e *Endpoint) URL() *url.URL {
	return e.url
}

// Address returns the endpoint's base URL as a string.
func (e *Endpoint) Address() string {
	return e.url.String()
}

// Alive reports the endpoint's liveness as of the last probe.
func (e *Endpoint) Alive() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.alive
}

// SetAlive updates liveness along with the probe timestamp.
// Returns true if the liveness flag changed.
func (e *Endpoint) SetAlive(alive bool, at time.Time) (changed bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.lastChecked = at
	if e.alive == alive {
		return false
	}

	e.alive = alive
	return true
}

// LastChecked returns the timestamp of the last probe, or the zero time
// if the endpoint has never been probed.
func (e *Endpoint) LastChecked() time.Time {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.lastChecked
}

// Registry holds the fixed set of known endpoints. The set itself never
// changes after construction, so reads need no lock; per-endpoint state
// is synchronized inside Endpoint.
type Registry struct {
	endpoints []*Endpoint
	byAddress map[string]*Endpoint
}

// New builds a registry from the given base URLs. Duplicate addresses
// are rejected. An empty registry is valid but yields no selectable
// endpoint.
func New(urls []*url.URL) (*Registry, error) {
	r := &Registry{
		endpoints: make([]*Endpoint, 0, len(urls)),
		byAddress: make(map[string]*Endpoint, len(urls)),
	}

	for _, u := range urls {
		addr := u.String()
		if _, exists := r.byAddress[addr]; exists {
			return nil, fmt.Errorf("duplicate backend address %q", addr)
		}

		ep := NewEndpoint(u)
		r.endpoints = append(r.endpoints, ep)
		r.byAddress[addr] = ep
	}

	return r, nil
}

// Endpoints returns a snapshot of all registered endpoints. The slice is
// a copy; the endpoints themselves are shared.
func (r *Registry) Endpoints() []*Endpoint {
	snapshot := make([]*Endpoint, len(r.endpoints))
	copy(snapshot, r.endpoints)
	return snapshot
}

// SetAlive updates liveness for the endpoint with the given address.
// Returns true if the flag changed; unknown addresses are ignored.
func (r *Registry) SetAlive(address string, alive bool, at time.Time) (changed bool) {
	ep, exists := r.byAddress[address]
	if !exists {
		return false
	}

	return ep.SetAlive(alive, at)
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	return len(r.endpoints)
}

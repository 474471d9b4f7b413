package selector

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yunabot/dispatch-gateway/internal/registry"
)

// ErrNoBackendAvailable means no endpoint answered, even after an
// on-demand probe of the whole pool. Fatal to the request, not to the
// process.
var ErrNoBackendAvailable = errors.New("no backend available")

// Picker chooses one endpoint from a non-empty alive set.
type Picker interface {
	Pick(endpoints []*registry.Endpoint) *registry.Endpoint
}

// Prober triggers an immediate synchronous probe of every endpoint,
// bypassing the periodic schedule.
type Prober interface {
	ProbeAll(ctx context.Context)
}

// Selector chooses one live endpoint per job.
type Selector struct {
	registry *registry.Registry
	prober   Prober
	picker   Picker
	logger   *slog.Logger
}

func New(reg *registry.Registry, prober Prober, picker Picker, logger *slog.Logger) *Selector {
	return &Selector{
		registry: reg,
		prober:   prober,
		picker:   picker,
		logger:   logger,
	}
}

// Select returns a live endpoint. When the snapshot shows every endpoint
// dead it re-probes the whole pool once and retries, so a job arriving in
// the dead interval between two scheduled checks does not fail for lack
// of fresh liveness data.
func (s *Selector) Select(ctx context.Context) (*registry.Endpoint, error) {
	alive := s.aliveEndpoints()

	if len(alive) == 0 {
		s.logger.Warn("no live backend in snapshot, probing pool")
		s.prober.ProbeAll(ctx)
		alive = s.aliveEndpoints()
	}

	if len(alive) == 0 {
		return nil, ErrNoBackendAvailable
	}

	chosen := s.picker.Pick(alive)
	if chosen == nil {
		return nil, ErrNoBackendAvailable
	}

	return chosen, nil
}

func (s *Selector) aliveEndpoints() []*registry.Endpoint {
	endpoints := s.registry.Endpoints()

	alive := make([]*registry.Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if ep.Alive() {
			alive = append(alive, ep)
		}
	}

	return alive
}

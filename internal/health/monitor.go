package health

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/yunabot/dispatch-gateway/internal/metrics"
	"github.com/yunabot/dispatch-gateway/internal/registry"
)

// Prober performs the lightweight reachability check against one backend.
// A nil error means the backend answered.
type Prober interface {
	Ping(ctx context.Context, base *url.URL) error
}

// Monitor keeps endpoint liveness approximately fresh by probing every
// endpoint in the registry on a fixed interval. Selectors may also call
// ProbeAll directly when the whole pool looks dead.
type Monitor struct {
	registry  *registry.Registry
	prober    Prober
	interval  time.Duration
	logger    *slog.Logger
	collector *metrics.Collector

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

// NewMonitor creates a monitor. collector may be nil.
func NewMonitor(reg *registry.Registry, prober Prober, interval time.Duration, logger *slog.Logger, collector *metrics.Collector) *Monitor {
	return &Monitor{
		registry:  reg,
		prober:    prober,
		interval:  interval,
		logger:    logger,
		collector: collector,
	}
}

// Start launches the periodic probe loop. Starting an already running
// monitor keeps the existing loop; exactly one loop runs at a time.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stop != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.stop = cancel
	m.done = make(chan struct{})

	go m.run(ctx, m.done)
}

// Stop cancels the probe loop and waits for it to exit. Stopping an
// unstarted or already stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop == nil {
		return
	}

	stop()
	<-done
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("health monitor started", slog.Duration("interval", m.interval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health monitor stopped")
			return

		case <-ticker.C:
			m.ProbeAll(ctx)
		}
	}
}

// ProbeAll probes every registered endpoint concurrently and writes the
// results back to the registry. Probe failure is liveness data, not an
// error; cancellation aborts in-flight probes via the context.
func (m *Monitor) ProbeAll(ctx context.Context) {
	var wg sync.WaitGroup

	for _, ep := range m.registry.Endpoints() {
		wg.Add(1)
		go func(ep *registry.Endpoint) {
			defer wg.Done()
			m.probe(ctx, ep)
		}(ep)
	}

	wg.Wait()
}

func (m *Monitor) probe(ctx context.Context, ep *registry.Endpoint) {
	err := m.prober.Ping(ctx, ep.URL())
	alive := err == nil

	changed := ep.SetAlive(alive, time.Now())
	if !changed {
		return
	}

	if alive {
		m.logger.Info("backend is back up", slog.String("backend", ep.Address()))
	} else {
		m.logger.Warn("backend is down",
			slog.String("backend", ep.Address()),
			slog.Any("err", err))
	}

	m.collector.Emit(metrics.Event{
		Type:      metrics.EventHealthChanged,
		Timestamp: time.Now(),
		Backend:   ep.Address(),
		Alive:     alive,
	})
}

package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type EventType string

const (
	EventJobSelected   EventType = "job_selected"
	EventJobCompleted  EventType = "job_completed"
	EventJobFailed     EventType = "job_failed"
	EventJobRejected   EventType = "job_rejected"
	EventHealthChanged EventType = "health_changed"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Backend   string
	Duration  time.Duration
	Failure   string
	Alive     bool
}

// Collector consumes dispatch events from a buffered channel in a
// dedicated goroutine so the job path never blocks on metrics.
type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// EventChannel returns the send side of the event pipeline. Senders must
// use a non-blocking send; a full buffer drops the event.
func (c *Collector) EventChannel() chan<- Event {
	return c.eventCh
}

// Emit performs the non-blocking send on behalf of the caller. Safe on a
// nil collector so components can treat metrics as optional.
func (c *Collector) Emit(event Event) {
	if c == nil {
		return
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

// Start launches the processing goroutine. Starting twice keeps a single
// goroutine running.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.stop = cancel
	c.done = make(chan struct{})

	go c.run(ctx, c.done)
}

// Stop cancels the processing goroutine and waits for it to drain.
// Stopping an unstarted collector is a no-op.
func (c *Collector) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return
	}

	stop()
	<-done
}

func (c *Collector) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	c.logger.Info("metrics collector started")
	defer c.logger.Info("metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventJobSelected:
		c.metrics.RecordSelection(event.Backend)

	case EventJobCompleted:
		c.metrics.RecordCompletion(event.Backend, event.Duration)

	case EventJobFailed:
		c.metrics.RecordFailure(event.Failure)

	case EventJobRejected:
		c.metrics.RecordRejection()

	case EventHealthChanged:
		c.metrics.UpdateLiveness(event.Backend, event.Alive)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot(strategy string) Snapshot {
	return c.metrics.Snapshot(strategy)
}

package dispatch

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/yunabot/dispatch-gateway/internal/admission"
	"github.com/yunabot/dispatch-gateway/internal/metrics"
	"github.com/yunabot/dispatch-gateway/internal/registry"
	"github.com/yunabot/dispatch-gateway/internal/sdapi"
	"github.com/yunabot/dispatch-gateway/internal/selector"
)

// Generator runs one generation job against a chosen backend.
type Generator interface {
	TextToImage(ctx context.Context, base *url.URL, params sdapi.Params) ([][]byte, error)
}

// JobRequest is one unit of work from a single requester.
type JobRequest struct {
	ID          uuid.UUID
	RequesterID string
	Params      sdapi.Params
	Cost        int64
}

// JobResult carries the generated images and where they came from.
type JobResult struct {
	ID      uuid.UUID
	Backend string
	Images  [][]byte
	Balance int64
	Elapsed time.Duration
}

// Gateway orchestrates one job end to end: admission, reservation,
// backend selection, the remote call, and compensation on failure.
type Gateway struct {
	admission *admission.Controller
	selector  *selector.Selector
	generator Generator
	limiter   *rate.Limiter
	collector *metrics.Collector
	logger    *slog.Logger
}

// New creates a gateway. limiter and collector may be nil; a nil limiter
// disables pool-wide rate limiting.
func New(
	adm *admission.Controller,
	sel *selector.Selector,
	generator Generator,
	limiter *rate.Limiter,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		admission: adm,
		selector:  sel,
		generator: generator,
		limiter:   limiter,
		collector: collector,
		logger:    logger,
	}
}

// Submit runs one job synchronously. Typed failures:
// admission.ErrAlreadyInFlight, admission.ErrInsufficientFunds,
// selector.ErrNoBackendAvailable, or *BackendError. Every failure after a
// successful debit compensates the reservation before the ticket is
// released, and neither step can be skipped by cancellation.
func (g *Gateway) Submit(ctx context.Context, req JobRequest) (result *JobResult, err error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	log := g.logger.With(
		slog.String("job", req.ID.String()),
		slog.String("requester", req.RequesterID))

	ticket, err := g.admission.TryAdmit(req.RequesterID)
	if err != nil {
		log.Info("job rejected, requester already in flight")
		g.collector.Emit(metrics.Event{Type: metrics.EventJobRejected, Timestamp: time.Now()})
		return nil, err
	}
	// Registered first so it runs last, after any compensation.
	defer g.admission.Release(ticket)

	reservation, err := g.admission.Reserve(ctx, req.RequesterID, req.Cost)
	if err != nil {
		log.Info("job rejected by ledger", slog.Any("err", err))
		g.emitFailure("insufficient_funds")
		return nil, err
	}
	defer func() {
		if err != nil {
			// Compensation must survive caller cancellation.
			g.admission.Compensate(context.WithoutCancel(ctx), reservation)
		}
	}()

	endpoint, err := g.selectEndpoint(ctx, log)
	if err != nil {
		return nil, err
	}

	if g.limiter != nil {
		if waitErr := g.limiter.Wait(ctx); waitErr != nil {
			err = &BackendError{Backend: endpoint.Address(), Err: waitErr}
			g.emitFailure("rate_limit_wait")
			return nil, err
		}
	}

	log.Info("dispatching job",
		slog.String("backend", endpoint.Address()),
		slog.Int64("cost", req.Cost))

	start := time.Now()
	images, genErr := g.generator.TextToImage(ctx, endpoint.URL(), req.Params)
	elapsed := time.Since(start)

	if genErr != nil {
		log.Warn("generation failed",
			slog.String("backend", endpoint.Address()),
			slog.Duration("elapsed", elapsed),
			slog.Any("err", genErr))
		err = &BackendError{Backend: endpoint.Address(), Err: genErr}
		g.emitFailure("backend_error")
		return nil, err
	}

	g.admission.Consume(reservation)

	log.Info("job completed",
		slog.String("backend", endpoint.Address()),
		slog.Int("images", len(images)),
		slog.Duration("elapsed", elapsed))

	g.collector.Emit(metrics.Event{
		Type:      metrics.EventJobCompleted,
		Timestamp: time.Now(),
		Backend:   endpoint.Address(),
		Duration:  elapsed,
	})

	return &JobResult{
		ID:      req.ID,
		Backend: endpoint.Address(),
		Images:  images,
		Balance: reservation.Balance(),
		Elapsed: elapsed,
	}, nil
}

func (g *Gateway) selectEndpoint(ctx context.Context, log *slog.Logger) (*registry.Endpoint, error) {
	endpoint, err := g.selector.Select(ctx)
	if err != nil {
		log.Warn("no backend available for job")
		g.emitFailure("no_backend")
		return nil, err
	}

	g.collector.Emit(metrics.Event{
		Type:      metrics.EventJobSelected,
		Timestamp: time.Now(),
		Backend:   endpoint.Address(),
	})

	return endpoint, nil
}

func (g *Gateway) emitFailure(kind string) {
	g.collector.Emit(metrics.Event{
		Type:      metrics.EventJobFailed,
		Timestamp: time.Now(),
		Failure:   kind,
	})
}

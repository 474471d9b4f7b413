package admission

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrAlreadyInFlight rejects a requester who already has an active job.
var ErrAlreadyInFlight = errors.New("requester already has a job in flight")

// ErrInsufficientFunds rejects a reservation the ledger cannot cover.
// Ledger implementations return it from Debit so callers can match a
// single sentinel regardless of the backing store.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger is the external balance store. Implementations must be safe to
// call concurrently for different requesters; idempotence is not required,
// the controller invokes each call at most once per reservation lifecycle.
type Ledger interface {
	Debit(ctx context.Context, requesterID string, amount int64) (int64, error)
	Credit(ctx context.Context, requesterID string, amount int64) (int64, error)
}

// Ticket proves that a requester currently holds the single in-flight
// slot. It must be released on every exit path; release is exactly-once.
type Ticket struct {
	requesterID string
	release     sync.Once
}

// RequesterID returns the requester the ticket was issued to.
func (t *Ticket) RequesterID() string {
	return t.requesterID
}

// Reservation is a ledger debit awaiting the job outcome. It settles
// exactly once: consumed by a completed job or compensated on failure,
// whichever happens first.
type Reservation struct {
	requesterID string
	amount      int64
	balance     int64
	settle      sync.Once
}

// Amount returns the reserved amount.
func (r *Reservation) Amount() int64 {
	return r.amount
}

// Balance returns the requester's balance immediately after the debit.
func (r *Reservation) Balance() int64 {
	return r.balance
}

// Controller enforces the one-job-per-requester policy and performs
// reserve/compensate accounting against the ledger.
type Controller struct {
	mutex    sync.Mutex
	inflight map[string]struct{}
	ledger   Ledger
	logger   *slog.Logger
}

// NewController creates a controller backed by the given ledger.
func NewController(ledger Ledger, logger *slog.Logger) *Controller {
	return &Controller{
		inflight: make(map[string]struct{}),
		ledger:   ledger,
		logger:   logger,
	}
}

// TryAdmit atomically checks and claims the requester's in-flight slot.
// Rejection leaves no state behind.
func (c *Controller) TryAdmit(requesterID string) (*Ticket, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, active := c.inflight[requesterID]; active {
		return nil, ErrAlreadyInFlight
	}

	c.inflight[requesterID] = struct{}{}
	return &Ticket{requesterID: requesterID}, nil
}

// Release frees the requester's in-flight slot. Safe to call more than
// once; only the first call has effect.
func (c *Controller) Release(ticket *Ticket) {
	if ticket == nil {
		return
	}

	ticket.release.Do(func() {
		c.mutex.Lock()
		delete(c.inflight, ticket.requesterID)
		c.mutex.Unlock()
	})
}

// InFlight reports whether the requester currently holds a ticket.
func (c *Controller) InFlight(requesterID string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, active := c.inflight[requesterID]
	return active
}

// Reserve debits the job cost from the requester's balance. No
// reservation is created if the debit fails.
func (c *Controller) Reserve(ctx context.Context, requesterID string, cost int64) (*Reservation, error) {
	balance, err := c.ledger.Debit(ctx, requesterID, cost)
	if err != nil {
		return nil, err
	}

	return &Reservation{
		requesterID: requesterID,
		amount:      cost,
		balance:     balance,
	}, nil
}

// Consume settles the reservation as spent by a completed job. A later
// Compensate becomes a no-op.
func (c *Controller) Consume(reservation *Reservation) {
	if reservation == nil {
		return
	}
	reservation.settle.Do(func() {})
}

// Compensate credits the reserved amount back. It runs at most once per
// reservation and is a no-op after Consume. A failed credit breaks the
// round-trip invariant and is logged at error level, never swallowed.
func (c *Controller) Compensate(ctx context.Context, reservation *Reservation) {
	if reservation == nil {
		return
	}

	reservation.settle.Do(func() {
		if _, err := c.ledger.Credit(ctx, reservation.requesterID, reservation.amount); err != nil {
			c.logger.Error("ledger credit failed, balance is inconsistent",
				slog.String("requester", reservation.requesterID),
				slog.Int64("amount", reservation.amount),
				slog.Any("err", err))
		}
	})
}

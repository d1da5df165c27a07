package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestRefund moves o onto the refund track at pending. The refund track
// is one-way: an order already on it is left untouched.
func RequestRefund(o *Order) (from LifecycleStatus, err error) {
	from = o.Status
	if from.IsRefund() {
		return from, fmt.Errorf("%w: order %s", ErrAlreadyRefunded, o.ID)
	}
	o.Status = RefundPending
	return from, nil
}

// AdvanceOrder moves o one stage forward on its current track.
func AdvanceOrder(o *Order) (from LifecycleStatus, err error) {
	from = o.Status
	next, err := from.Advance()
	if err != nil {
		return from, err
	}
	o.Status = next
	return from, nil
}

// Store is the persistence the lifecycle needs. UpdateStatus must only
// succeed while the stored status column still equals from.
type Store interface {
	GetOrder(ctx context.Context, id string) (Order, error)
	UpdateStatus(ctx context.Context, id, from string, to LifecycleStatus) error
}

// Lifecycle validates and persists status changes and announces them.
type Lifecycle struct {
	Store     Store
	Publisher Publisher
	Service   string
	Logger    *zap.Logger
	Now       func() time.Time
}

// Advance moves the order one stage forward. An order whose stored status is
// not on its track is moved to the track's first stage.
func (l *Lifecycle) Advance(ctx context.Context, orderID, traceID string) (Order, error) {
	return l.apply(ctx, orderID, traceID, false)
}

// Refund moves the order onto the refund track.
func (l *Lifecycle) Refund(ctx context.Context, orderID, traceID string) (Order, error) {
	return l.apply(ctx, orderID, traceID, true)
}

func (l *Lifecycle) apply(ctx context.Context, orderID, traceID string, refund bool) (Order, error) {
	o, err := l.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}

	fromName := o.StatusName()
	anomaly := o.HasStatusAnomaly()
	var from LifecycleStatus
	switch {
	case refund:
		from, err = RequestRefund(&o)
	case anomaly:
		from = o.Status
		o.Status = CycleStatus(l.logger(), o.IsRefund(), fromName)
	default:
		from, err = AdvanceOrder(&o)
	}
	if err != nil {
		return o, err
	}
	if !anomaly && !CanTransition(from, o.Status) {
		return o, &TransitionError{From: from, To: o.Status}
	}

	if err := l.Store.UpdateStatus(ctx, o.ID, fromName, o.Status); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			l.logger().Warn("concurrent status change", zap.String("order_id", o.ID), zap.String("from", fromName))
		}
		return o, err
	}
	o.StoredStatus = o.Status.Name()
	o.UpdatedAt = l.now()

	l.logger().Info("order status changed",
		zap.String("order_id", o.ID), zap.String("from", fromName), zap.Stringer("to", o.Status))

	if l.Publisher != nil {
		env := NewEnvelope(EventOrderStatusChanged, l.Service, traceID, o.ID, StatusChangedPayload{
			OrderID:  o.ID,
			From:     fromName,
			To:       o.Status.Name(),
			IsRefund: o.Status.IsRefund(),
		})
		env.OccurredAt = o.UpdatedAt
		Emit(l.Publisher, TopicOrderStatusChanged, env)
	}
	return o, nil
}

func (l *Lifecycle) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

func (l *Lifecycle) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}

// NewEnvelope wraps payload in a v1 envelope with a fresh event id.
func NewEnvelope(eventType, producer, traceID, correlationID string, payload any) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       mustMarshal(payload),
	}
}

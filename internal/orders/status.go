package orders

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// Track selects which stage sequence an order moves through.
type Track uint8

const (
	TrackNormal Track = iota
	TrackRefund
)

func (t Track) String() string {
	if t == TrackRefund {
		return "refund"
	}
	return "normal"
}

const (
	StageWaiting   = "waiting"
	StagePrinting  = "printing"
	StagePacking   = "packing"
	StageShipped   = "shipped"
	StageDelivered = "delivered"

	StageRefundPending    = "pending"
	StageRefundProcessing = "processing"
	StageRefundProcessed  = "processed"
)

var stages = [...][]string{
	TrackNormal: {StageWaiting, StagePrinting, StagePacking, StageShipped, StageDelivered},
	TrackRefund: {StageRefundPending, StageRefundProcessing, StageRefundProcessed},
}

// Stages returns a copy of the ordered stage names of t.
func Stages(t Track) []string {
	return slices.Clone(stages[t])
}

// LifecycleStatus is a stage on exactly one track. The zero value is waiting.
type LifecycleStatus struct {
	track Track
	index int
}

var (
	Waiting   = LifecycleStatus{TrackNormal, 0}
	Printing  = LifecycleStatus{TrackNormal, 1}
	Packing   = LifecycleStatus{TrackNormal, 2}
	Shipped   = LifecycleStatus{TrackNormal, 3}
	Delivered = LifecycleStatus{TrackNormal, 4}

	RefundPending    = LifecycleStatus{TrackRefund, 0}
	RefundProcessing = LifecycleStatus{TrackRefund, 1}
	RefundProcessed  = LifecycleStatus{TrackRefund, 2}
)

var (
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrTerminalStatus    = errors.New("order status is terminal")
	ErrAlreadyRefunded   = errors.New("order is already on the refund track")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransitionError describes a rejected move between two statuses.
type TransitionError struct {
	From LifecycleStatus
	To   LifecycleStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ParseStatus looks name up on the track selected by isRefund.
func ParseStatus(isRefund bool, name string) (LifecycleStatus, error) {
	t := trackOf(isRefund)
	i := slices.Index(stages[t], name)
	if i < 0 {
		return LifecycleStatus{}, fmt.Errorf("%w: %q on %s track", ErrUnknownStatus, name, t)
	}
	return LifecycleStatus{t, i}, nil
}

func trackOf(isRefund bool) Track {
	if isRefund {
		return TrackRefund
	}
	return TrackNormal
}

func (s LifecycleStatus) Track() Track { return s.track }
func (s LifecycleStatus) Index() int { return s.index }
func (s LifecycleStatus) IsRefund() bool { return s.track == TrackRefund }
func (s LifecycleStatus) Name() string { return stages[s.track][s.index] }
func (s LifecycleStatus) String() string { return s.track.String() + "/" + s.Name() }
func (s LifecycleStatus) IsTerminal() bool { return s.index == len(stages[s.track])-1 }

// Cycle moves to (index+1) mod stage count, so the terminal stage wraps back
// to the first. Only mock and demo data use this; real orders go through Advance.
func (s LifecycleStatus) Cycle() LifecycleStatus {
	return LifecycleStatus{s.track, (s.index + 1) % len(stages[s.track])}
}

// Advance moves to the next stage. Terminal stages are absorbing.
func (s LifecycleStatus) Advance() (LifecycleStatus, error) {
	if s.IsTerminal() {
		return s, fmt.Errorf("%w: %s", ErrTerminalStatus, s)
	}
	return LifecycleStatus{s.track, s.index + 1}, nil
}

// CycleStatus is Cycle over a stored status name. A name missing from the
// track resolves to index -1 and therefore wraps to the first stage; the
// anomaly is logged rather than returned.
func CycleStatus(logger *zap.Logger, isRefund bool, name string) LifecycleStatus {
	t := trackOf(isRefund)
	i := slices.Index(stages[t], name)
	if i < 0 && logger != nil {
		logger.Warn("order status not on its track",
			zap.String("status", name), zap.Stringer("track", t))
	}
	return LifecycleStatus{t, (i + 1) % len(stages[t])}
}

// CanTransition reports whether a stored order may move from -> to: one step
// forward on the same track, or from any normal stage into refund pending.
func CanTransition(from, to LifecycleStatus) bool {
	if from.track == TrackNormal && to == RefundPending {
		return true
	}
	return from.track == to.track && to.index == from.index+1
}

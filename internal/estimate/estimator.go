package estimate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-printshop/internal/catalog"
	"github.com/ariefcatur/go-printshop/internal/logging"
)

// Line is one requested variant and how many units of it.
type Line struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// Estimate is reported in whole milliseconds.
type Estimate struct {
	QueueTimeMs int64 `json:"queueTimeMs"`
	PrintTimeMs int64 `json:"printTimeMs"`
}

// Store is the catalog/queue read access the estimator needs.
type Store interface {
	GetVariant(ctx context.Context, id string) (catalog.ProductVariant, error)
	PendingByQueue(ctx context.Context, queueID string) ([]catalog.PendingItem, error)
}

var ErrNoLines = errors.New("no items to estimate")

// ValidationError reports a malformed request line.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("item %d: %s", e.Index, e.Reason)
}

type Estimator struct {
	store        Store
	logger       *zap.Logger
	ownPrintTime bool
}

type Option func(*Estimator)

func WithLogger(l *zap.Logger) Option {
	return func(e *Estimator) { e.logger = logging.OrNop(l) }
}

// WithOwnPrintTime makes PrintTimeMs the requested items' own batch time
// instead of a copy of QueueTimeMs.
func WithOwnPrintTime(on bool) Option {
	return func(e *Estimator) { e.ownPrintTime = on }
}

func New(store Store, opts ...Option) *Estimator {
	e := &Estimator{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate computes how long the slowest queue touched by lines needs to clear
// its pending work. Unknown variants, variants without a print queue and
// variants without a print time contribute nothing. Store failures abort.
func (e *Estimator) Estimate(ctx context.Context, lines []Line) (Estimate, error) {
	if len(lines) == 0 {
		return Estimate{}, ErrNoLines
	}
	for i, l := range lines {
		if l.VariantID == "" {
			return Estimate{}, &ValidationError{Index: i, Reason: "missing variant_id"}
		}
		if l.Quantity < 1 {
			return Estimate{}, &ValidationError{Index: i, Reason: "quantity must be at least 1"}
		}
	}

	var maxWait float64
	own := map[string]float64{}

	// Each line re-reads its queue, even when an earlier line shares it.
	for _, l := range lines {
		v, err := e.store.GetVariant(ctx, l.VariantID)
		if errors.Is(err, catalog.ErrVariantNotFound) {
			e.logger.Warn("estimate: variant not found", zap.String("variant_id", l.VariantID))
			continue
		}
		if err != nil {
			return Estimate{}, fmt.Errorf("estimate: %w", err)
		}
		if v.PrintQueueID == nil || *v.PrintQueueID == "" || v.EstimatedPrintSeconds == nil {
			e.logger.Debug("estimate: variant has no print parameters", zap.String("variant_id", v.ID))
			continue
		}

		pending, err := e.store.PendingByQueue(ctx, *v.PrintQueueID)
		if err != nil {
			return Estimate{}, fmt.Errorf("estimate: %w", err)
		}
		maxWait = math.Max(maxWait, QueueWaitSeconds(pending))

		if e.ownPrintTime {
			own[*v.PrintQueueID] += BatchSeconds(v.EstimatedPrintSeconds, l.Quantity, v.GroupSize)
		}
	}

	out := Estimate{QueueTimeMs: Millis(maxWait), PrintTimeMs: Millis(maxWait)}
	if e.ownPrintTime {
		var slowest float64
		for _, s := range own {
			slowest = math.Max(slowest, s)
		}
		out.PrintTimeMs = Millis(slowest)
	}
	return out, nil
}

// BatchSeconds is estimated_print_seconds * quantity / group_size, with
// fractional batches. A missing print time counts as zero, a missing or
// non-positive group size as one.
func BatchSeconds(printSeconds *float64, quantity int, groupSize *int) float64 {
	if printSeconds == nil || quantity <= 0 {
		return 0
	}
	return *printSeconds * float64(quantity) / float64(catalog.BatchSize(groupSize))
}

// QueueWaitSeconds sums the batch time of every pending item.
func QueueWaitSeconds(pending []catalog.PendingItem) float64 {
	var total float64
	for _, p := range pending {
		total += BatchSeconds(p.EstimatedPrintSeconds, p.Quantity, p.GroupSize)
	}
	return total
}

func Millis(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}

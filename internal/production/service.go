// Package production turns placed orders into print-queue work and records
// operator progress on that work.
package production

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-printshop/internal/catalog"
	kafkax "github.com/ariefcatur/go-printshop/internal/kafka"
	"github.com/ariefcatur/go-printshop/internal/orders"
	"github.com/ariefcatur/go-printshop/internal/redisx"
)

// Queue is the queue-item write side.
type Queue interface {
	EnqueueOrder(ctx context.Context, orderID string, lines []catalog.EnqueueLine) (int, error)
	MarkProcessed(ctx context.Context, id string) (catalog.QueueItem, error)
}

type Service struct {
	Queue       Queue
	Cache       redisx.Cache
	Publisher   orders.Publisher
	ServiceName string
	Logger      *zap.Logger
}

// HandleOrderPlaced: dipasang sebagai handler consumer. It creates one queue
// item per order line; redelivered events are skipped via redis dedup and the
// unique order_item_id constraint.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message; committing it is better than blocking the partition
		s.logger().Error("undecodable envelope", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "production", env.EventID)
	if s.Cache != nil {
		if seen, _, err := s.Cache.Get(ctx, dkey); err == nil && seen != "" {
			s.logger().Debug("duplicate event", zap.String("event_id", env.EventID))
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		s.logger().Error("bad OrderPlaced payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	lines := make([]catalog.EnqueueLine, 0, len(p.Items))
	for _, it := range p.Items {
		lines = append(lines, catalog.EnqueueLine{
			OrderItemID:      it.OrderItemID,
			ProductVariantID: it.ProductVariantID,
			Quantity:         it.Qty,
		})
	}
	n, err := s.Queue.EnqueueOrder(ctx, p.OrderID, lines)
	if err != nil {
		return fmt.Errorf("enqueue order %s: %w", p.OrderID, err)
	}

	// mark only after the write so a failed insert is retried
	if s.Cache != nil {
		if _, err := s.Cache.SetNX(ctx, dkey, "1", redisx.TTLDedup); err != nil {
			s.logger().Warn("dedup mark failed", zap.String("event_id", env.EventID), zap.Error(err))
		}
	}
	s.logger().Info("order enqueued for production",
		zap.String("order_id", p.OrderID), zap.Int("lines", len(lines)), zap.Int("inserted", n))
	return nil
}

// MarkProcessed flips the queue item and announces it.
func (s *Service) MarkProcessed(ctx context.Context, queueItemID, traceID string) (catalog.QueueItem, error) {
	q, err := s.Queue.MarkProcessed(ctx, queueItemID)
	if err != nil {
		return catalog.QueueItem{}, err
	}
	if s.Publisher != nil {
		env := orders.NewEnvelope(orders.EventQueueItemProcessed, s.ServiceName, traceID, q.OrderID,
			orders.QueueItemProcessedPayload{
				QueueItemID:      q.ID,
				OrderID:          q.OrderID,
				ProductVariantID: q.ProductVariantID,
				PrintQueueID:     q.PrintQueueID,
				Qty:              q.Quantity,
			})
		orders.Emit(s.Publisher, orders.TopicQueueItemProcessed, env)
	}
	s.logger().Info("queue item processed", zap.String("queue_item_id", q.ID), zap.String("order_id", q.OrderID))
	return q, nil
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

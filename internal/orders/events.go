package orders

import (
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

const (
	EventOrderPlaced           = "OrderPlaced"
	EventOrderStatusChanged    = "OrderStatusChanged"
	EventQueueItemProcessed    = "QueueItemProcessed"
	EventNotificationRequested = "NotificationRequested"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "printshop-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`
}

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// Emit publishes env keyed by its correlation id with the standard headers.
func Emit(p Publisher, topic string, env Envelope) {
	p.Publish(topic, PartitionKey(env.CorrelationID), mustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// ---- payloads ----

type PlacedLine struct {
	OrderItemID      string `json:"order_item_id"`
	ProductVariantID string `json:"product_variant_id"`
	Qty              int    `json:"qty"`
	PriceCents       int    `json:"price_cents"`
}

type OrderPlacedPayload struct {
	OrderID    string       `json:"order_id"`
	ExternalID string       `json:"external_id"`
	UserID     string       `json:"user_id"`
	Items      []PlacedLine `json:"items"`
	TotalCents int          `json:"total_cents"`
}

type StatusChangedPayload struct {
	OrderID  string `json:"order_id"`
	From     string `json:"from"`
	To       string `json:"to"`
	IsRefund bool   `json:"is_refund"`
}

type QueueItemProcessedPayload struct {
	QueueItemID      string `json:"queue_item_id"`
	OrderID          string `json:"order_id"`
	ProductVariantID string `json:"product_variant_id"`
	PrintQueueID     string `json:"print_queue_id,omitempty"`
	Qty              int    `json:"qty"`
}

type NotificationPayload struct {
	OrderID  string `json:"order_id"`
	UserID   string `json:"user_id"`
	Template string `json:"template"` // e.g., order_confirmation
	Data     any    `json:"data,omitempty"`
}

// PlacedLines converts order items to event lines.
func PlacedLines(items []OrderItem) []PlacedLine {
	out := make([]PlacedLine, 0, len(items))
	for _, it := range items {
		out = append(out, PlacedLine{
			OrderItemID:      it.ID,
			ProductVariantID: it.ProductVariantID,
			Qty:              it.Qty,
			PriceCents:       it.PriceCents,
		})
	}
	return out
}

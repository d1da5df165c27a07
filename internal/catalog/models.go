package catalog

import "time"

// Attributes is the customer-facing configuration stored as JSON on a variant.
type Attributes struct {
	Size   string            `json:"size"`
	Colors []string          `json:"colors"`
	Custom map[string]string `json:"custom,omitempty"`
}

// ProductVariant is a sellable size x color configuration of a product.
// EstimatedPrintSeconds is the time to print one batch of GroupSize units.
type ProductVariant struct {
	ID                    string
	ProductName           string
	Attributes            Attributes
	PriceCents            int
	EstimatedPrintSeconds *float64
	GroupSize             *int
	PrintQueueID          *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// BatchSize returns GroupSize, treating null or non-positive values as 1.
func (v ProductVariant) BatchSize() int {
	return BatchSize(v.GroupSize)
}

func BatchSize(groupSize *int) int {
	if groupSize == nil || *groupSize < 1 {
		return 1
	}
	return *groupSize
}

// QueueItem is one unit of production work, created per order line.
type QueueItem struct {
	ID               string     `json:"id"`
	ProductVariantID string     `json:"product_variant_id"`
	OrderID          string     `json:"order_id"`
	OrderItemID      string     `json:"order_item_id"`
	PrintQueueID     string     `json:"print_queue_id"`
	Quantity         int        `json:"quantity"`
	IsProcessed      bool       `json:"is_processed"`
	CreatedAt        time.Time  `json:"created_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}

// PendingItem is an unprocessed queue item joined with the print parameters
// of its own variant.
type PendingItem struct {
	QueueItemID           string    `json:"queue_item_id"`
	ProductVariantID      string    `json:"product_variant_id"`
	Quantity              int       `json:"quantity"`
	CreatedAt             time.Time `json:"created_at"`
	EstimatedPrintSeconds *float64  `json:"estimated_print_seconds"`
	GroupSize             *int      `json:"group_size"`
}

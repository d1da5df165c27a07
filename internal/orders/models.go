package orders

import "time"

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Order struct {
	ID         string
	ExternalID string
	UserID     string
	Status     LifecycleStatus // lihat status.go
	// StoredStatus is the status column as read. It only differs from
	// Status.Name() when the stored value is not on the order's track.
	StoredStatus string
	PaymentRef string

	SubtotalCents int
	ShippingCents int
	TotalCents    int

	Shipping       Address
	TrackingNumber *string

	// Snapshot of the estimate taken at checkout; seeds the stage countdowns.
	QueueTimeMs       int64
	PrintTimeMs       int64
	EstimateAvailable bool
	EstimatedDelivery *time.Time

	Items     []OrderItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRefund mirrors the is_refund column.
func (o Order) IsRefund() bool { return o.Status.IsRefund() }

// StatusName is the status as persisted.
func (o Order) StatusName() string {
	if o.StoredStatus != "" {
		return o.StoredStatus
	}
	return o.Status.Name()
}

// HasStatusAnomaly reports a stored status missing from the order's track.
func (o Order) HasStatusAnomaly() bool {
	return o.StoredStatus != "" && o.StoredStatus != o.Status.Name()
}

// OrderItem snapshots the variant as ordered.
type OrderItem struct {
	ID               string   `json:"id"`
	OrderID          string   `json:"order_id"`
	ProductVariantID string   `json:"product_variant_id"`
	ProductName      string   `json:"product_name"`
	Size             string   `json:"size"`
	Colors           []string `json:"colors"`
	Personalization  string   `json:"personalization,omitempty"`
	PriceCents       int      `json:"price_cents"`
	Qty              int      `json:"qty"`
}

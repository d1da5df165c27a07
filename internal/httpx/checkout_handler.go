package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-printshop/internal/catalog"
	"github.com/ariefcatur/go-printshop/internal/estimate"
	"github.com/ariefcatur/go-printshop/internal/eta"
	"github.com/ariefcatur/go-printshop/internal/logging"
	"github.com/ariefcatur/go-printshop/internal/orders"
	"github.com/ariefcatur/go-printshop/internal/redisx"
	"github.com/ariefcatur/go-printshop/internal/tasks"
)

// OrderStore is the order persistence the HTTP layer uses.
type OrderStore interface {
	CreateOrderTx(ctx context.Context, o *orders.Order) (existed bool, err error)
	GetOrder(ctx context.Context, id string) (orders.Order, error)
	GetOrderStatus(ctx context.Context, id string) (status string, isRefund bool, err error)
	SetTrackingNumber(ctx context.Context, id, number string) error
}

// TaskSubmitter runs side effects off the request path.
type TaskSubmitter interface {
	Submit(ctx context.Context, name string, fn tasks.Func) <-chan error
}

type CheckoutHandler struct {
	Catalog   catalog.VariantLister
	Estimator Estimator
	Orders    OrderStore
	Cache     redisx.Cache
	Publisher orders.Publisher
	Tasks     TaskSubmitter
	Policy    eta.Policy
	Service   string
	Now       func() time.Time
	// EstimateTimeout bounds the estimate alone; zero means 2s.
	EstimateTimeout time.Duration
}

type CartLine struct {
	Product         string   `json:"product"`
	Size            string   `json:"size"`
	Colors          []string `json:"colors"`
	Personalization string   `json:"personalization"`
	Quantity        int      `json:"quantity"`
}

// CheckoutReq is sent after the payment processor confirmed the charge.
type CheckoutReq struct {
	ExternalID    string         `json:"external_id"`
	UserID        string         `json:"user_id"`
	PaymentRef    string         `json:"payment_ref"`
	Items         []CartLine     `json:"items"`
	Shipping      orders.Address `json:"shipping"`
	ShippingCents int            `json:"shipping_cents"`
}

type CheckoutResp struct {
	OrderID           string     `json:"order_id"`
	Status            string     `json:"status"`
	TotalCents        int        `json:"total_cents"`
	Idempotent        bool       `json:"idempotent"`
	EstimateAvailable bool       `json:"estimate_available"`
	QueueTimeMs       int64      `json:"queueTimeMs"`
	PrintTimeMs       int64      `json:"printTimeMs"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	EstimateMessage   string     `json:"estimate_message,omitempty"`
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Post("/checkout", h.checkout)
}

func (req CheckoutReq) validate() error {
	if req.ExternalID == "" || req.UserID == "" || len(req.Items) == 0 {
		return errors.New("missing fields")
	}
	if req.ShippingCents < 0 {
		return errors.New("shipping_cents must not be negative")
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.Product) == "" {
			return fmt.Errorf("item %d: missing product", i)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("item %d: quantity must be at least 1", i)
		}
	}
	return nil
}

func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	logger := logging.FromContext(ctx).With(zap.String("external_id", req.ExternalID))

	// Fast-path idempotency via Redis; the DB unique key stays authoritative.
	idemKey := fmt.Sprintf(redisx.KeyIdemCheckout, req.ExternalID)
	if orderID, ok, err := h.Cache.Get(ctx, idemKey); err == nil && ok {
		if o, err := h.Orders.GetOrder(ctx, orderID); err == nil {
			writeJSON(w, http.StatusOK, checkoutResp(o, true))
			return
		}
	}

	// Variants must resolve; pricing and production routing depend on them.
	o := orders.Order{
		ExternalID:    req.ExternalID,
		UserID:        req.UserID,
		Status:        orders.Waiting,
		PaymentRef:    req.PaymentRef,
		Shipping:      req.Shipping,
		ShippingCents: req.ShippingCents,
	}
	lines := make([]estimate.Line, 0, len(req.Items))
	for _, it := range req.Items {
		v, err := catalog.Resolve(ctx, h.Catalog, it.Product, it.Size, it.Colors)
		if err != nil {
			if errors.Is(err, catalog.ErrVariantNotFound) {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			writeErr(w, r, err)
			return
		}
		o.Items = append(o.Items, orders.OrderItem{
			ProductVariantID: v.ID,
			ProductName:      it.Product,
			Size:             it.Size,
			Colors:           it.Colors,
			Personalization:  it.Personalization,
			PriceCents:       v.PriceCents,
			Qty:              it.Quantity,
		})
		o.SubtotalCents += v.PriceCents * it.Quantity
		lines = append(lines, estimate.Line{VariantID: v.ID, Quantity: it.Quantity})
	}
	o.TotalCents = o.SubtotalCents + o.ShippingCents

	// A failed or slow estimate never blocks the order.
	h.applyEstimate(ctx, logger, &o, lines, req.Shipping.State)

	// The write gets a deadline of its own that the estimate could not spend.
	wctx, wcancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer wcancel()

	existed, err := h.Orders.CreateOrderTx(wctx, &o)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	_ = h.Cache.Set(wctx, idemKey, o.ID, redisx.TTLIdempotency)
	if existed {
		writeJSON(w, http.StatusOK, checkoutResp(o, true))
		return
	}
	cacheStatus(wctx, h.Cache, o)

	traceID := middleware.GetReqID(r.Context())
	orders.Emit(h.Publisher, orders.TopicOrderPlaced, orders.NewEnvelope(
		orders.EventOrderPlaced, h.Service, traceID, o.ID, orders.OrderPlacedPayload{
			OrderID:    o.ID,
			ExternalID: o.ExternalID,
			UserID:     o.UserID,
			Items:      orders.PlacedLines(o.Items),
			TotalCents: o.TotalCents,
		}))

	// fire-and-forget; failures are logged by the runner
	_ = h.Tasks.Submit(wctx, "order_confirmation", h.confirmation(o, traceID))

	logger.Info("order placed", zap.String("order_id", o.ID), zap.Int("total_cents", o.TotalCents),
		zap.Bool("estimate_available", o.EstimateAvailable))
	writeJSON(w, http.StatusAccepted, checkoutResp(o, false))
}

func (h *CheckoutHandler) applyEstimate(ctx context.Context, logger *zap.Logger, o *orders.Order, lines []estimate.Line, region string) {
	ectx, cancel := context.WithTimeout(ctx, durationOr(h.EstimateTimeout, 2*time.Second))
	defer cancel()

	est, err := h.Estimator.Estimate(ectx, lines)
	if err != nil {
		logger.Warn("checkout estimate unavailable", zap.Error(err))
		return
	}
	at := eta.Project(est.QueueTimeMs, est.PrintTimeMs, h.Policy.ShippingDays(region), h.now())
	o.QueueTimeMs, o.PrintTimeMs = est.QueueTimeMs, est.PrintTimeMs
	o.EstimateAvailable = true
	o.EstimatedDelivery = &at
}

func (h *CheckoutHandler) confirmation(o orders.Order, traceID string) tasks.Func {
	return func(context.Context) error {
		data := map[string]any{"total_cents": o.TotalCents}
		if o.EstimatedDelivery != nil {
			data["estimated_delivery"] = o.EstimatedDelivery.Format(time.RFC3339)
		}
		orders.Emit(h.Publisher, orders.TopicNotifications, orders.NewEnvelope(
			orders.EventNotificationRequested, h.Service, traceID, o.ID, orders.NotificationPayload{
				OrderID:  o.ID,
				UserID:   o.UserID,
				Template: "order_confirmation",
				Data:     data,
			}))
		return nil
	}
}

func checkoutResp(o orders.Order, idempotent bool) CheckoutResp {
	resp := CheckoutResp{
		OrderID:           o.ID,
		Status:            o.StatusName(),
		TotalCents:        o.TotalCents,
		Idempotent:        idempotent,
		EstimateAvailable: o.EstimateAvailable,
		QueueTimeMs:       o.QueueTimeMs,
		PrintTimeMs:       o.PrintTimeMs,
		EstimatedDelivery: o.EstimatedDelivery,
	}
	if !o.EstimateAvailable {
		resp.EstimateMessage = estimateUnavailable
	}
	return resp
}

func (h *CheckoutHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

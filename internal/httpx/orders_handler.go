package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-printshop/internal/countdown"
	"github.com/ariefcatur/go-printshop/internal/logging"
	"github.com/ariefcatur/go-printshop/internal/orders"
	"github.com/ariefcatur/go-printshop/internal/redisx"
)

// LifecycleService advances orders through their stages.
type LifecycleService interface {
	Advance(ctx context.Context, orderID, traceID string) (orders.Order, error)
	Refund(ctx context.Context, orderID, traceID string) (orders.Order, error)
}

type OrdersHandler struct {
	Orders           OrderStore
	Lifecycle        LifecycleService
	Cache            redisx.Cache
	TrackingTemplate string
}

type OrderResp struct {
	ID                string             `json:"id"`
	ExternalID        string             `json:"external_id"`
	UserID            string             `json:"user_id"`
	Status            string             `json:"status"`
	IsRefund          bool               `json:"is_refund"`
	SubtotalCents     int                `json:"subtotal_cents"`
	ShippingCents     int                `json:"shipping_cents"`
	TotalCents        int                `json:"total_cents"`
	Shipping          orders.Address     `json:"shipping"`
	TrackingNumber    *string            `json:"tracking_number,omitempty"`
	QueueTimeMs       int64              `json:"queueTimeMs"`
	PrintTimeMs       int64              `json:"printTimeMs"`
	EstimateAvailable bool               `json:"estimate_available"`
	EstimatedDelivery *time.Time         `json:"estimated_delivery,omitempty"`
	Items             []orders.OrderItem `json:"items"`
	View              orders.StageView   `json:"view"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type statusCacheEntry struct {
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	IsRefund bool   `json:"is_refund"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Get("/orders/{id}/view", h.getView)
	r.Post("/orders/{id}/advance", h.advance)
	r.Post("/orders/{id}/refund", h.refund)
	r.Put("/orders/{id}/tracking", h.setTracking)
}

func (h *OrdersHandler) toResp(o orders.Order) OrderResp {
	return OrderResp{
		ID:                o.ID,
		ExternalID:        o.ExternalID,
		UserID:            o.UserID,
		Status:            o.Status.Name(),
		IsRefund:          o.IsRefund(),
		SubtotalCents:     o.SubtotalCents,
		ShippingCents:     o.ShippingCents,
		TotalCents:        o.TotalCents,
		Shipping:          o.Shipping,
		TrackingNumber:    o.TrackingNumber,
		QueueTimeMs:       o.QueueTimeMs,
		PrintTimeMs:       o.PrintTimeMs,
		EstimateAvailable: o.EstimateAvailable,
		EstimatedDelivery: o.EstimatedDelivery,
		Items:             o.Items,
		View:              orders.View(o, h.TrackingTemplate),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResp(o))
}

func (h *OrdersHandler) getView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders.View(o, h.TrackingTemplate))
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, ok, err := h.Cache.Get(ctx, key); err == nil && ok && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	// 2) fallback DB
	status, isRefund, err := h.Orders.GetOrderStatus(ctx, orderID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	b, _ := json.Marshal(statusCacheEntry{OrderID: orderID, Status: status, IsRefund: isRefund})
	_ = h.Cache.Set(ctx, key, string(b), redisx.TTLStatusCache)
	writeJSON(w, http.StatusOK, json.RawMessage(b))
}

func (h *OrdersHandler) advance(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Lifecycle.Advance)
}

func (h *OrdersHandler) refund(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Lifecycle.Refund)
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request, step func(context.Context, string, string) (orders.Order, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := step(ctx, chi.URLParam(r, "id"), middleware.GetReqID(r.Context()))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	cacheStatus(ctx, h.Cache, o)
	writeJSON(w, http.StatusOK, h.toResp(o))
}

type TrackingReq struct {
	TrackingNumber string `json:"tracking_number"`
}

func (h *OrdersHandler) setTracking(w http.ResponseWriter, r *http.Request) {
	var req TrackingReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	number := strings.TrimSpace(req.TrackingNumber)
	if number == "" {
		writeError(w, http.StatusBadRequest, "missing tracking_number")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.Orders.SetTrackingNumber(ctx, id, number); err != nil {
		writeErr(w, r, err)
		return
	}
	o, err := h.Orders.GetOrder(ctx, id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResp(o))
}

// cacheStatus refreshes the order_status cache after a write. Cache errors
// are logged, never returned.
func cacheStatus(ctx context.Context, cache redisx.Cache, o orders.Order) {
	b, _ := json.Marshal(statusCacheEntry{OrderID: o.ID, Status: o.Status.Name(), IsRefund: o.IsRefund()})
	if err := cache.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, o.ID), string(b), redisx.TTLStatusCache); err != nil {
		logging.FromContext(ctx).Warn("status cache write failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// CountdownHandler streams the live stage countdown as server-sent events.
type CountdownHandler struct {
	Orders OrderStore
	// Tick is the countdown step, Refresh how often the order is re-read.
	Tick    time.Duration
	Refresh time.Duration
}

type countdownEvent struct {
	Stage     string `json:"stage"`
	Remaining int64  `json:"remaining"`
}

func (h *CountdownHandler) Register(r chi.Router) {
	r.Get("/orders/{id}/countdown", h.stream)
}

func (h *CountdownHandler) stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	o, err := h.Orders.GetOrder(ctx, id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(stage string, remaining int64) bool {
		b, _ := json.Marshal(countdownEvent{Stage: stage, Remaining: remaining})
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	timer := countdown.New(orders.CountdownKey(o), orders.CountdownSeconds(o))
	stage := o.Status.Name()
	if !send(stage, timer.Remaining()) {
		return
	}

	ticks := timer.Run(ctx, durationOr(h.Tick, time.Second))
	refresh := time.NewTicker(durationOr(h.Refresh, 5*time.Second))
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			fresh, err := h.Orders.GetOrder(ctx, id)
			if err != nil {
				logging.FromContext(ctx).Warn("countdown refresh failed", zap.String("order_id", id), zap.Error(err))
				continue
			}
			if timer.Reset(orders.CountdownKey(fresh), orders.CountdownSeconds(fresh)) {
				stage = fresh.Status.Name()
				if !send(stage, timer.Remaining()) {
					return
				}
			}
		case remaining, ok := <-ticks:
			if !ok {
				return
			}
			if !send(stage, remaining) {
				return
			}
		}
	}
}

func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

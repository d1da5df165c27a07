package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-printshop/internal/catalog"
	"github.com/ariefcatur/go-printshop/internal/estimate"
)

// CatalogStore is the catalog read side used by operator and browse routes.
type CatalogStore interface {
	catalog.VariantLister
	PendingByQueue(ctx context.Context, queueID string) ([]catalog.PendingItem, error)
}

// QueueService records operator progress on queue items.
type QueueService interface {
	MarkProcessed(ctx context.Context, queueItemID, traceID string) (catalog.QueueItem, error)
}

type QueueHandler struct {
	Catalog CatalogStore
	Queue   QueueService
}

type VariantResp struct {
	ID                    string             `json:"id"`
	ProductName           string             `json:"product_name"`
	Attributes            catalog.Attributes `json:"attributes"`
	PriceCents            int                `json:"price_cents"`
	EstimatedPrintSeconds *float64           `json:"estimated_print_seconds"`
	GroupSize             int                `json:"group_size"`
	PrintQueueID          *string            `json:"print_queue_id"`
}

type PendingResp struct {
	QueueID     string                `json:"queue_id"`
	Items       []catalog.PendingItem `json:"items"`
	QueueTimeMs int64                 `json:"queueTimeMs"`
}

func (h *QueueHandler) Register(r chi.Router) {
	r.Get("/products/{name}/variants", h.listVariants)
	r.Get("/queues/{id}/pending", h.listPending)
	r.Post("/queue-items/{id}/processed", h.markProcessed)
}

func (h *QueueHandler) listVariants(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	vs, err := h.Catalog.ListVariantsByProduct(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out := make([]VariantResp, 0, len(vs))
	for _, v := range vs {
		out = append(out, VariantResp{
			ID:                    v.ID,
			ProductName:           v.ProductName,
			Attributes:            v.Attributes,
			PriceCents:            v.PriceCents,
			EstimatedPrintSeconds: v.EstimatedPrintSeconds,
			GroupSize:             v.BatchSize(),
			PrintQueueID:          v.PrintQueueID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *QueueHandler) listPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	queueID := chi.URLParam(r, "id")
	items, err := h.Catalog.PendingByQueue(ctx, queueID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if items == nil {
		items = []catalog.PendingItem{}
	}
	writeJSON(w, http.StatusOK, PendingResp{
		QueueID:     queueID,
		Items:       items,
		QueueTimeMs: estimate.Millis(estimate.QueueWaitSeconds(items)),
	})
}

func (h *QueueHandler) markProcessed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	q, err := h.Queue.MarkProcessed(ctx, chi.URLParam(r, "id"), middleware.GetReqID(r.Context()))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

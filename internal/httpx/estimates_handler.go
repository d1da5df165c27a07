package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-printshop/internal/estimate"
	"github.com/ariefcatur/go-printshop/internal/eta"
	"github.com/ariefcatur/go-printshop/internal/logging"
)

type Estimator interface {
	Estimate(ctx context.Context, lines []estimate.Line) (estimate.Estimate, error)
}

const estimateUnavailable = "unable to estimate delivery"

type EstimatesHandler struct {
	Estimator Estimator
	Policy    eta.Policy
	Now       func() time.Time
}

type EstimateReq struct {
	Items      []estimate.Line `json:"items"`
	VariantIDs []string        `json:"variant_ids"`
	// Region is optional; when set the response carries a delivery date.
	Region string `json:"region"`
}

type EstimateResp struct {
	QueueTimeMs       int64      `json:"queueTimeMs"`
	PrintTimeMs       int64      `json:"printTimeMs"`
	ShippingDays      int        `json:"shippingDays,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
}

func (h *EstimatesHandler) Register(r chi.Router) {
	r.Post("/estimates", h.createEstimate)
}

func (h *EstimatesHandler) createEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	lines := append([]estimate.Line(nil), req.Items...)
	for _, id := range req.VariantIDs {
		lines = append(lines, estimate.Line{VariantID: id, Quantity: 1})
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	est, err := h.Estimator.Estimate(ctx, lines)
	if err != nil {
		var verr *estimate.ValidationError
		if errors.Is(err, estimate.ErrNoLines) || errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.FromContext(ctx).Error("estimate failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, estimateUnavailable)
		return
	}

	resp := EstimateResp{QueueTimeMs: est.QueueTimeMs, PrintTimeMs: est.PrintTimeMs}
	if req.Region != "" {
		days := h.Policy.ShippingDays(req.Region)
		at := eta.Project(est.QueueTimeMs, est.PrintTimeMs, days, h.now())
		resp.ShippingDays = days
		resp.EstimatedDelivery = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *EstimatesHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

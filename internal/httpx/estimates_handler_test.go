package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-printshop/internal/estimate"
	"github.com/ariefcatur/go-printshop/internal/eta"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func serve(t *testing.T, h Registrar, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(nil, []Registrar{h})
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestEstimates_WithRegionProjectsDelivery(t *testing.T) {
	est := &stubEstimator{est: estimate.Estimate{QueueTimeMs: 7200000, PrintTimeMs: 7200000}}
	h := &EstimatesHandler{Estimator: est, Policy: eta.DefaultPolicy(), Now: func() time.Time { return fixedNow }}

	rec := serve(t, h, http.MethodPost, "/estimates",
		`{"items":[{"variant_id":"v1","quantity":2}],"variant_ids":["v2"],"region":"ca"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EstimateResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(7200000), resp.QueueTimeMs)
	require.Equal(t, int64(7200000), resp.PrintTimeMs)
	require.Equal(t, 5, resp.ShippingDays)
	require.NotNil(t, resp.EstimatedDelivery)
	require.True(t, fixedNow.Add(4*time.Hour).Add(5*eta.Day).Equal(*resp.EstimatedDelivery))

	require.Len(t, est.calls, 1)
	require.Equal(t, []estimate.Line{{VariantID: "v1", Quantity: 2}, {VariantID: "v2", Quantity: 1}}, est.calls[0])
}

func TestEstimates_WithoutRegionOmitsDelivery(t *testing.T) {
	est := &stubEstimator{est: estimate.Estimate{QueueTimeMs: 1000, PrintTimeMs: 1000}}
	h := &EstimatesHandler{Estimator: est, Policy: eta.DefaultPolicy()}

	rec := serve(t, h, http.MethodPost, "/estimates", `{"variant_ids":["v1"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "estimatedDelivery")
	require.Contains(t, rec.Body.String(), `"queueTimeMs":1000`)
}

func TestEstimates_BadRequests(t *testing.T) {
	h := &EstimatesHandler{Estimator: &stubEstimator{}, Policy: eta.DefaultPolicy()}

	rec := serve(t, h, http.MethodPost, "/estimates", `{`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h, http.MethodPost, "/estimates", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), estimate.ErrNoLines.Error())
}

func TestEstimates_StoreFailureIsUnavailable(t *testing.T) {
	est := &stubEstimator{err: errors.New("connection refused")}
	h := &EstimatesHandler{Estimator: est, Policy: eta.DefaultPolicy()}

	rec := serve(t, h, http.MethodPost, "/estimates", `{"variant_ids":["v1"]}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), estimateUnavailable)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

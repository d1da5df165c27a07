package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-printshop/internal/catalog"
	"github.com/ariefcatur/go-printshop/internal/estimate"
	"github.com/ariefcatur/go-printshop/internal/logging"
	"github.com/ariefcatur/go-printshop/internal/orders"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

// writeErr maps domain errors to status codes. Server-side failures are
// logged and reported without internals.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, code, http.StatusText(code))
		return
	}
	writeError(w, code, err.Error())
}

func statusFor(err error) int {
	var verr *estimate.ValidationError
	var terr *orders.TransitionError
	switch {
	case errors.Is(err, estimate.ErrNoLines), errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, catalog.ErrQueueItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrVariantNotFound):
		return http.StatusUnprocessableEntity
	case errors.As(err, &terr),
		errors.Is(err, orders.ErrTerminalStatus),
		errors.Is(err, orders.ErrAlreadyRefunded),
		errors.Is(err, orders.ErrStatusConflict):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

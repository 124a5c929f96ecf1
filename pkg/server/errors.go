package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/routing"
)

// Error types reported in the error envelope.
const (
	errorTypeInvalidRequest = "invalid_request_error"
	errorTypeCostCap        = "cost_cap_exceeded"
	errorTypeRateLimit      = "rate_limit_exceeded"
	errorTypeUnavailable    = "service_unavailable"
	errorTypeBadGateway     = "bad_gateway"
	errorTypeNotFound       = "not_found"
	errorTypeServer         = "server_error"
)

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`

	// Code is the routing error kind.
	Code string `json:"code,omitempty"`

	// Class is the low-cardinality classification also used in metrics.
	Class string `json:"class,omitempty"`

	Rejections        []routing.Rejection `json:"rejections,omitempty"`
	Attempts          []routing.Attempt   `json:"attempts,omitempty"`
	RetryAfterSeconds int                 `json:"retry_after_seconds,omitempty"`
}

// statusFor maps a routing error to an HTTP status and error type. A
// selection where every candidate was rejected answers like its
// classification: 402 when a cost ceiling refused, 429 otherwise.
func statusFor(re *routing.Error) (int, string) {
	switch re.Kind {
	case routing.KindValidation:
		return http.StatusBadRequest, errorTypeInvalidRequest
	case routing.KindCostCapExceeded:
		return http.StatusPaymentRequired, errorTypeCostCap
	case routing.KindAllProvidersRejected:
		if routing.Classify(re) == routing.ClassCostCap {
			return http.StatusPaymentRequired, errorTypeCostCap
		}
		return http.StatusTooManyRequests, errorTypeRateLimit
	case routing.KindRateLimitExceeded:
		return http.StatusTooManyRequests, errorTypeRateLimit
	case routing.KindNoSuitableProvider:
		return http.StatusServiceUnavailable, errorTypeUnavailable
	case routing.KindProviderExecution:
		return http.StatusBadGateway, errorTypeBadGateway
	}
	return http.StatusInternalServerError, errorTypeServer
}

// writeRouteError renders an error returned by Engine.Route. Rate limit
// failures carry a Retry-After header in whole seconds.
func writeRouteError(w http.ResponseWriter, err error) {
	var re *routing.Error
	if !errors.As(err, &re) {
		writeError(w, http.StatusInternalServerError, errorDetail{
			Type:    errorTypeServer,
			Message: err.Error(),
			Class:   routing.Classify(err),
		})
		return
	}

	status, typ := statusFor(re)
	detail := errorDetail{
		Message:    re.Error(),
		Type:       typ,
		Code:       string(re.Kind),
		Class:      routing.Classify(re),
		Rejections: re.Rejections,
		Attempts:   re.Attempts,
	}
	if re.RetryAfter > 0 {
		secs := int(math.Ceil(re.RetryAfter.Seconds()))
		detail.RetryAfterSeconds = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	writeError(w, status, detail)
}

func writeError(w http.ResponseWriter, status int, detail errorDetail) {
	writeJSON(w, status, errorResponse{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

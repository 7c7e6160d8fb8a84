package fallback

import (
	"errors"
	"net/http"
	"time"

	"github.com/ashendes/order-service/internal/metrics"
	"github.com/ashendes/order-service/internal/models"
	"github.com/ashendes/order-service/internal/orders"
	"github.com/ashendes/order-service/internal/patterns"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Origin tags the cause of a failed order creation
type Origin string

const (
	OriginCircuitOpen          Origin = "circuit_open"
	OriginRetryBudgetExhausted Origin = "retry_budget_exhausted"
	OriginCapacityExceeded     Origin = "capacity_exceeded"
	OriginRateLimited          Origin = "rate_limited"
	OriginTimedOut             Origin = "timed_out"
	OriginPricingFailed        Origin = "pricing_failed"
	OriginPersistenceFailed    Origin = "persistence_failed"
	OriginInternal             Origin = "internal"
)

// HeaderOrigin carries the origin of a fallback response
const HeaderOrigin = "X-Fallback-Origin"

const serviceErrorMessage = "order service is currently unable to process the order"

// Response is the outcome returned to the caller in place of a created order.
// Body is either a placeholder order or a models.ErrorResponse.
type Response struct {
	Status int
	Origin Origin
	Body   interface{}
}

// OriginOf classifies a creation failure. A timeout is reported as such even
// when it was the last failure of an exhausted retry budget; any other
// exhausted budget is reported as retry exhaustion.
func OriginOf(err error) Origin {
	switch {
	case errors.Is(err, patterns.ErrTimedOut):
		return OriginTimedOut
	case errors.Is(err, patterns.ErrRetryBudgetExhausted):
		return OriginRetryBudgetExhausted
	case errors.Is(err, patterns.ErrCircuitOpen):
		return OriginCircuitOpen
	case errors.Is(err, patterns.ErrRateLimited):
		return OriginRateLimited
	case errors.Is(err, patterns.ErrCapacityExceeded):
		return OriginCapacityExceeded
	case errors.Is(err, orders.ErrPricingFailed):
		return OriginPricingFailed
	case errors.Is(err, orders.ErrPersistenceFailed):
		return OriginPersistenceFailed
	default:
		return OriginInternal
	}
}

// Resolve maps an origin to its fixed response. Policy rejections answer with
// the placeholder order; business failures answer with a generic error payload.
func Resolve(origin Origin) Response {
	metrics.FallbackResponses.WithLabelValues(string(origin)).Inc()

	switch origin {
	case OriginCircuitOpen:
		return placeholder(http.StatusServiceUnavailable, origin)
	case OriginRetryBudgetExhausted:
		return placeholder(http.StatusBadRequest, origin)
	case OriginCapacityExceeded:
		return placeholder(http.StatusGatewayTimeout, origin)
	case OriginRateLimited:
		return placeholder(http.StatusTooManyRequests, origin)
	case OriginTimedOut:
		return placeholder(http.StatusRequestTimeout, origin)
	case OriginPricingFailed, OriginPersistenceFailed:
		return Response{
			Status: http.StatusInternalServerError,
			Origin: origin,
			Body:   models.NewErrorResponse(http.StatusInternalServerError, serviceErrorMessage),
		}
	default:
		return Response{
			Status: http.StatusInternalServerError,
			Origin: OriginInternal,
			Body:   models.NewErrorResponse(http.StatusInternalServerError, serviceErrorMessage),
		}
	}
}

// ResolveError classifies err and resolves it. Unclassified errors keep their
// message, which is the only case where the cause reaches the caller.
func ResolveError(err error) Response {
	origin := OriginOf(err)
	log.WithField("origin", origin).Warn("Order creation fell back: ", err)

	response := Resolve(origin)
	if origin == OriginInternal {
		response.Body = models.NewErrorResponse(http.StatusInternalServerError, err.Error())
	}
	return response
}

// PlaceholderOrder is the sentinel order returned by policy fallbacks. It is
// never stored.
func PlaceholderOrder(now time.Time) models.Order {
	lineID := int64(1001)
	return models.Order{
		OrderID:    1000,
		Audit:      models.Audit{CreatedDate: now, ModifiedDate: now},
		TotalPrice: decimal.NewFromInt(1000),
		OrderLines: []models.OrderLine{
			{OrderLineID: &lineID, ProductID: 1002, Quantity: 500},
		},
	}
}

func placeholder(status int, origin Origin) Response {
	return Response{
		Status: status,
		Origin: origin,
		Body:   PlaceholderOrder(time.Now()),
	}
}

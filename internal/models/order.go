package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Audit holds the timestamps assigned by the order store
type Audit struct {
	CreatedDate  time.Time `json:"createdDate"`
	ModifiedDate time.Time `json:"modifiedDate"`
}

// OrderLine represents a single product line owned by an order
type OrderLine struct {
	OrderLineID *int64 `json:"orderLineId,omitempty"`
	ProductID   int64  `json:"productId"`
	Quantity    int    `json:"quantity"`
}

// Order represents a persisted customer order
type Order struct {
	OrderID int64 `json:"orderId"`
	Audit
	TotalPrice decimal.Decimal `json:"totalPrice"`
	OrderLines []OrderLine     `json:"orderLines"`
}

// CreateOrderLine is one line of an order creation request. Fields are pointers so
// that a missing value can be told apart from a zero value during validation.
type CreateOrderLine struct {
	OrderLineID *int64 `json:"orderLineId,omitempty"`
	ProductID   *int64 `json:"productId"`
	Quantity    *int   `json:"quantity"`
}

// CreateOrderRequest represents the request to create a new order. Any client
// supplied totalPrice is accepted on the wire but ignored.
type CreateOrderRequest struct {
	TotalPrice *decimal.Decimal  `json:"totalPrice,omitempty"`
	OrderLines []CreateOrderLine `json:"orderLines"`
}

// Lines converts a validated request into order lines. Missing values become
// zero, so callers validate first.
func (r CreateOrderRequest) Lines() []OrderLine {
	lines := make([]OrderLine, 0, len(r.OrderLines))
	for _, line := range r.OrderLines {
		var orderLine OrderLine
		if line.ProductID != nil {
			orderLine.ProductID = *line.ProductID
		}
		if line.Quantity != nil {
			orderLine.Quantity = *line.Quantity
		}
		lines = append(lines, orderLine)
	}
	return lines
}

// ErrorResponse is the payload returned for every failure. ErrorCode is only
// set for business failures.
type ErrorResponse struct {
	StatusCode int       `json:"statusCode"`
	ErrorCode  int       `json:"errorCode,omitempty"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewErrorResponse creates an ErrorResponse stamped with the current time
func NewErrorResponse(statusCode int, message string) ErrorResponse {
	return ErrorResponse{
		StatusCode: statusCode,
		Message:    message,
		Timestamp:  time.Now(),
	}
}

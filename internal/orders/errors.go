package orders

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrPricingFailed is returned when any line of an order could not be priced
	ErrPricingFailed = errors.New("order pricing failed")
	// ErrPersistenceFailed is returned when a priced order could not be stored
	ErrPersistenceFailed = errors.New("order persistence failed")
)

// Application error codes carried by ServiceError
const (
	CodeNoOrders            = 1001
	CodeGetOrderNotFound    = 1002
	CodeDeleteOrderNotFound = 1003
)

// ServiceError is a business failure with the HTTP status and application
// code it should be reported with
type ServiceError struct {
	Status  int
	Code    int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

func errNoOrders() *ServiceError {
	return &ServiceError{
		Status:  http.StatusNoContent,
		Code:    CodeNoOrders,
		Message: "no orders found",
	}
}

func errOrderNotFound(code int, orderID int64) *ServiceError {
	return &ServiceError{
		Status:  http.StatusNotFound,
		Code:    code,
		Message: fmt.Sprintf("order %d not found", orderID),
	}
}

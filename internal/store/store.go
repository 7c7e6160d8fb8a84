package store

import (
	"context"
	"errors"

	"github.com/ashendes/order-service/internal/models"
)

// ErrNotFound is returned when no order exists for the requested id
var ErrNotFound = errors.New("order not found")

// Store persists order aggregates keyed by order id. Implementations assign
// the order id, line ids and audit timestamps on insert.
type Store interface {
	Insert(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, orderID int64) (*models.Order, error)
	FindAll(ctx context.Context) ([]models.Order, error)
	Delete(ctx context.Context, orderID int64) (*models.Order, error)
}

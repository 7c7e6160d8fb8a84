package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ashendes/order-service/internal/models"
)

// MemoryStore keeps orders in process memory
type MemoryStore struct {
	orders    map[int64]*models.Order
	mutex     sync.RWMutex
	nextOrder int64
	nextLine  int64
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory order store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[int64]*models.Order),
		now:    time.Now,
	}
}

// Insert stores a copy of order under a new id. The context is checked while
// the lock is held so a caller that already gave up does not leave a write behind.
func (s *MemoryStore) Insert(ctx context.Context, order *models.Order) (*models.Order, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	stored := cloneOrder(order)
	s.nextOrder++
	stored.OrderID = s.nextOrder
	for i := range stored.OrderLines {
		s.nextLine++
		id := s.nextLine
		stored.OrderLines[i].OrderLineID = &id
	}
	now := s.now()
	stored.CreatedDate = now
	stored.ModifiedDate = now

	s.orders[stored.OrderID] = stored
	return cloneOrder(stored), nil
}

// FindByID returns a copy of the order or ErrNotFound
func (s *MemoryStore) FindByID(ctx context.Context, orderID int64) (*models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	order, exists := s.orders[orderID]
	if !exists {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	return cloneOrder(order), nil
}

// FindAll returns every stored order sorted by id
func (s *MemoryStore) FindAll(ctx context.Context) ([]models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	orders := make([]models.Order, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, *cloneOrder(order))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderID < orders[j].OrderID })
	return orders, nil
}

// Delete removes an order and returns it as it was stored
func (s *MemoryStore) Delete(ctx context.Context, orderID int64) (*models.Order, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	order, exists := s.orders[orderID]
	if !exists {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	delete(s.orders, orderID)
	return order, nil
}

func cloneOrder(order *models.Order) *models.Order {
	clone := *order
	clone.OrderLines = make([]models.OrderLine, len(order.OrderLines))
	for i, line := range order.OrderLines {
		if line.OrderLineID != nil {
			id := *line.OrderLineID
			line.OrderLineID = &id
		}
		clone.OrderLines[i] = line
	}
	return &clone
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ashendes/order-service/internal/metrics"
	"github.com/ashendes/order-service/internal/models"
	"github.com/ashendes/order-service/internal/patterns"
	"github.com/ashendes/order-service/internal/store"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PricingGateway quotes the current unit price of a product
type PricingGateway interface {
	Quote(ctx context.Context, productID int64) (models.ProductQuote, error)
}

// OrderStore persists order aggregates
type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, orderID int64) (*models.Order, error)
	FindAll(ctx context.Context) ([]models.Order, error)
	Delete(ctx context.Context, orderID int64) (*models.Order, error)
}

// EventPublisher announces order lifecycle changes
type EventPublisher interface {
	OrderCreated(ctx context.Context, order *models.Order) error
	OrderDeleted(ctx context.Context, order *models.Order) error
}

// Service implements the order operations. Creation runs through the
// configured policy; reads and deletes go straight to the store.
type Service struct {
	pricing PricingGateway
	store   OrderStore
	events  EventPublisher
	policy  patterns.Policy
}

// NewService creates an order service. A nil policy runs creation unguarded.
func NewService(pricing PricingGateway, orderStore OrderStore, events EventPublisher, policy patterns.Policy) *Service {
	if policy == nil {
		policy = patterns.NewChain()
	}
	if events == nil {
		events = noEvents{}
	}
	return &Service{
		pricing: pricing,
		store:   orderStore,
		events:  events,
		policy:  policy,
	}
}

// CreateOrder prices, builds and stores a new order through the policy chain.
// Errors are either a rejection from one of the policies or ErrPricingFailed /
// ErrPersistenceFailed wrapping the underlying cause.
func (s *Service) CreateOrder(ctx context.Context, lines []models.OrderLine) (*models.Order, error) {
	result, err := s.policy.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return s.create(ctx, lines)
	})
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	order := result.(*models.Order)
	metrics.OrdersTotal.WithLabelValues("created").Inc()
	log.WithFields(log.Fields{
		"order_id": order.OrderID,
		"lines":    len(order.OrderLines),
		"total":    order.TotalPrice.String(),
	}).Info("Order created")

	s.publish(ctx, "order.created", order, s.events.OrderCreated)
	return order, nil
}

// create is the unit of work guarded by the policy chain. All lines are
// priced before anything is built, and nothing is stored unless every
// lookup succeeded.
func (s *Service) create(ctx context.Context, lines []models.OrderLine) (*models.Order, error) {
	log.WithField("lines", len(lines)).Debug("Creating order")

	quotes, err := s.quoteLines(ctx, lines)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPricingFailed, err)
	}

	order, err := BuildOrder(lines, quotes)
	if err != nil {
		return nil, err
	}

	// A timed out attempt must not reach the store.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	saved, err := s.store.Insert(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	return saved, nil
}

// quoteLines issues one pricing lookup per line concurrently. The first
// failure cancels the lookups still in flight.
func (s *Service) quoteLines(ctx context.Context, lines []models.OrderLine) (map[int64]decimal.Decimal, error) {
	var mu sync.Mutex
	quotes := make(map[int64]decimal.Decimal, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	for _, line := range lines {
		productID := line.ProductID
		g.Go(func() error {
			quote, err := s.pricing.Quote(gctx, productID)
			if err != nil {
				return err
			}
			mu.Lock()
			quotes[productID] = quote.UnitPrice
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return quotes, nil
}

// GetAllOrders returns every stored order. An empty store is reported as a
// ServiceError with status NoContent.
func (s *Service) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	all, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if len(all) == 0 {
		log.Warn("No orders found")
		return nil, errNoOrders()
	}
	return all, nil
}

// GetOrderByID returns the stored order, or a not found business error
func (s *Service) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.store.FindByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		log.WithField("order_id", orderID).Warn("Order not found")
		return nil, errOrderNotFound(CodeGetOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	return order, nil
}

// DeleteOrderByID removes an order and returns it as it was stored
func (s *Service) DeleteOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.store.Delete(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		log.WithField("order_id", orderID).Warn("Order not found for deletion")
		return nil, errOrderNotFound(CodeDeleteOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("delete order %d: %w", orderID, err)
	}

	metrics.OrdersTotal.WithLabelValues("deleted").Inc()
	log.WithField("order_id", orderID).Info("Order deleted")

	s.publish(ctx, "order.deleted", order, s.events.OrderDeleted)
	return order, nil
}

// publish never fails the request; the order change is already committed.
func (s *Service) publish(ctx context.Context, event string, order *models.Order, send func(context.Context, *models.Order) error) {
	if err := send(context.WithoutCancel(ctx), order); err != nil {
		log.WithFields(log.Fields{
			"order_id": order.OrderID,
			"event":    event,
		}).Error("Failed to publish order event: ", err)
	}
}

type noEvents struct{}

func (noEvents) OrderCreated(context.Context, *models.Order) error { return nil }
func (noEvents) OrderDeleted(context.Context, *models.Order) error { return nil }

package orders

import (
	"errors"
	"fmt"

	"github.com/ashendes/order-service/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyOrder   = errors.New("order must contain at least one line")
	ErrMissingQuote = errors.New("no price quoted for product")
	ErrInvalidQuote = errors.New("quoted price is negative")
)

// BuildOrder assembles an unsaved order from its lines and the unit price of
// every product they reference. The total is the exact decimal sum of
// unit price times quantity.
func BuildOrder(lines []models.OrderLine, quotes map[int64]decimal.Decimal) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	total := decimal.Zero
	orderLines := make([]models.OrderLine, 0, len(lines))
	for _, line := range lines {
		price, ok := quotes[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, ErrMissingQuote)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, ErrInvalidQuote)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		orderLines = append(orderLines, models.OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	return &models.Order{
		TotalPrice: total,
		OrderLines: orderLines,
	}, nil
}

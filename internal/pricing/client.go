package pricing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ashendes/order-service/internal/metrics"
	"github.com/ashendes/order-service/internal/models"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrUpstreamUnavailable is returned when the product service cannot be
	// reached or answers with a non-success status
	ErrUpstreamUnavailable = errors.New("product service unavailable")
	// ErrInvalidProductID is returned for non-positive product ids
	ErrInvalidProductID = errors.New("product id must be positive")
)

// Client quotes product prices from the product service. It never retries;
// retries belong to the policy chain wrapping order creation.
type Client struct {
	http *resty.Client
}

// NewClient creates a pricing client for the product service at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(0).
			SetHeader("Accept", "application/json"),
	}
}

// Quote fetches the current unit price of a product
func (c *Client) Quote(ctx context.Context, productID int64) (models.ProductQuote, error) {
	if productID <= 0 {
		return models.ProductQuote{}, fmt.Errorf("quote product %d: %w", productID, ErrInvalidProductID)
	}

	start := time.Now()
	var product models.Product
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("productId", strconv.FormatInt(productID, 10)).
		SetResult(&product).
		Get("/products/{productId}")

	if err != nil {
		metrics.PricingDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return models.ProductQuote{}, fmt.Errorf("%w: product %d: %w", ErrUpstreamUnavailable, productID, err)
	}

	if !resp.IsSuccess() {
		metrics.PricingDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		log.WithFields(log.Fields{
			"product_id": productID,
			"status":     resp.StatusCode(),
		}).Warn("Product service returned non-success status")
		return models.ProductQuote{}, fmt.Errorf("%w: product %d: status %d", ErrUpstreamUnavailable, productID, resp.StatusCode())
	}

	metrics.PricingDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
	log.WithFields(log.Fields{
		"product_id": productID,
		"price":      product.ProductPrice.String(),
	}).Debug("product-service called")

	return models.ProductQuote{
		ProductID: productID,
		UnitPrice: product.ProductPrice,
	}, nil
}

package main

import (
	"errors"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ashendes/order-service/internal/metrics"
	"github.com/ashendes/order-service/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const serviceName = "product-service"

var errChaos = errors.New("chaos: simulated failure")

// ProductService serves the product catalogue used to price orders
type ProductService struct {
	products      map[int64]*models.Product
	mutex         sync.RWMutex
	chaosEnabled  bool
	chaosSlowMode bool
	chaosMutex    sync.RWMutex
}

var productService *ProductService

func init() {
	// Initialize logger
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)

	decimal.MarshalJSONWithoutQuotes = true

	productService = &ProductService{
		products: make(map[int64]*models.Product),
	}

	// Add sample products
	sampleProducts := []*models.Product{
		{ProductID: 1, ProductName: "Laptop", ProductPrice: decimal.RequireFromString("999.99")},
		{ProductID: 2, ProductName: "Mouse", ProductPrice: decimal.RequireFromString("29.99")},
		{ProductID: 3, ProductName: "Keyboard", ProductPrice: decimal.RequireFromString("79.99")},
		{ProductID: 4, ProductName: "Monitor", ProductPrice: decimal.RequireFromString("299.99")},
		{ProductID: 5, ProductName: "Headphones", ProductPrice: decimal.RequireFromString("149.99")},
	}

	for _, product := range sampleProducts {
		productService.products[product.ProductID] = product
	}
}

func main() {
	router := gin.Default()

	// Add Prometheus middleware
	router.Use(metrics.PrometheusMiddleware(serviceName))

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/product/status", getStatus)

	router.GET("/products/:productId", getProduct)

	// Chaos engineering endpoints
	router.POST("/chaos/product/enable", enableChaos)
	router.POST("/chaos/product/disable", disableChaos)
	router.POST("/chaos/product/slow", enableSlowMode)
	router.POST("/chaos/product/slow/disable", disableSlowMode)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	port := getEnv("PORT", "8081")
	log.Info("Product Service starting on port " + port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}

func getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":         serviceName,
		"status":          "healthy",
		"chaos_enabled":   productService.getChaosEnabled(),
		"chaos_slow_mode": productService.getSlowMode(),
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

func getProduct(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil || productID <= 0 {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(http.StatusBadRequest, "invalid product id"))
		return
	}

	// Simulate chaos
	if err := simulateChaos(); err != nil {
		log.WithField("product_id", productID).Warn("Chaos: Simulated failure")
		c.JSON(http.StatusServiceUnavailable, models.NewErrorResponse(http.StatusServiceUnavailable, "Service temporarily unavailable"))
		return
	}

	productService.mutex.RLock()
	product, exists := productService.products[productID]
	productService.mutex.RUnlock()

	if !exists {
		c.JSON(http.StatusNotFound, models.NewErrorResponse(http.StatusNotFound, "product not found"))
		return
	}

	c.JSON(http.StatusOK, product)
}

func enableChaos(c *gin.Context) {
	productService.setChaosEnabled(true)
	metrics.ChaosFailureRate.WithLabelValues(serviceName).Set(1)

	log.Info("Chaos mode ENABLED for product service")
	c.JSON(http.StatusOK, gin.H{
		"message": "Chaos mode enabled",
		"info":    "30% of requests will fail randomly",
	})
}

func disableChaos(c *gin.Context) {
	productService.setChaosEnabled(false)
	productService.setSlowMode(false)
	metrics.ChaosFailureRate.WithLabelValues(serviceName).Set(0)
	metrics.ChaosSlowMode.WithLabelValues(serviceName).Set(0)

	log.Info("Chaos mode DISABLED for product service")
	c.JSON(http.StatusOK, gin.H{
		"message": "Chaos mode disabled",
	})
}

func enableSlowMode(c *gin.Context) {
	productService.setSlowMode(true)
	metrics.ChaosSlowMode.WithLabelValues(serviceName).Set(1)

	log.Info("Slow mode ENABLED for product service")
	c.JSON(http.StatusOK, gin.H{
		"message": "Slow mode enabled",
		"info":    "Requests will have 2-5 second delays",
	})
}

func disableSlowMode(c *gin.Context) {
	productService.setSlowMode(false)
	metrics.ChaosSlowMode.WithLabelValues(serviceName).Set(0)

	log.Info("Slow mode DISABLED for product service")
	c.JSON(http.StatusOK, gin.H{
		"message": "Slow mode disabled",
	})
}

// Helper methods
func (ps *ProductService) setChaosEnabled(enabled bool) {
	ps.chaosMutex.Lock()
	defer ps.chaosMutex.Unlock()
	ps.chaosEnabled = enabled
}

func (ps *ProductService) getChaosEnabled() bool {
	ps.chaosMutex.RLock()
	defer ps.chaosMutex.RUnlock()
	return ps.chaosEnabled
}

func (ps *ProductService) setSlowMode(enabled bool) {
	ps.chaosMutex.Lock()
	defer ps.chaosMutex.Unlock()
	ps.chaosSlowMode = enabled
}

func (ps *ProductService) getSlowMode() bool {
	ps.chaosMutex.RLock()
	defer ps.chaosMutex.RUnlock()
	return ps.chaosSlowMode
}

func simulateChaos() error {
	if productService.getSlowMode() {
		delay := time.Duration(2000+rand.Intn(3000)) * time.Millisecond
		log.WithField("delay_ms", delay.Milliseconds()).Debug("Chaos: Simulating slow response")
		time.Sleep(delay)
	}

	// 30% failure rate
	if productService.getChaosEnabled() && rand.Float32() < 0.3 {
		return errChaos
	}

	return nil
}

// getEnv gets environment variable with fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

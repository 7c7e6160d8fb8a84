package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ashendes/order-service/internal/fallback"
	"github.com/ashendes/order-service/internal/metrics"
	"github.com/ashendes/order-service/internal/models"
	"github.com/ashendes/order-service/internal/orders"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// OrderService is the order use case behind the HTTP handlers
type OrderService interface {
	CreateOrder(ctx context.Context, lines []models.OrderLine) (*models.Order, error)
	GetAllOrders(ctx context.Context) ([]models.Order, error)
	GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error)
	DeleteOrderByID(ctx context.Context, orderID int64) (*models.Order, error)
}

// CircuitStatus reports the state of the breaker guarding order creation
type CircuitStatus interface {
	GetState() string
	GetStateValue() int
}

// Handler serves the /orders endpoints
type Handler struct {
	service   OrderService
	breaker   CircuitStatus
	validator *requestValidator
}

// NewHandler creates the order handlers. breaker may be nil when creation is
// not guarded by a circuit breaker.
func NewHandler(service OrderService, breaker CircuitStatus) *Handler {
	return &Handler{
		service:   service,
		breaker:   breaker,
		validator: newRequestValidator(),
	}
}

// Register mounts the order routes on router
func (h *Handler) Register(router gin.IRouter) {
	group := router.Group("/orders")
	group.GET("", h.getAllOrders)
	group.POST("", h.createOrder)
	group.GET("/circuit-status", h.getCircuitStatus)
	group.GET("/:orderId", h.getOrder)
	group.DELETE("/:orderId", h.deleteOrder)
}

func (h *Handler) getAllOrders(c *gin.Context) {
	all, err := h.service.GetAllOrders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

// createOrder validates the request and runs it through the guarded
// creation pipeline. Any failure is answered by the fallback resolver.
func (h *Handler) createOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.OrdersTotal.WithLabelValues("validation_failed").Inc()
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(http.StatusBadRequest, "malformed order request: "+err.Error()))
		return
	}

	if violations := h.validator.Validate(&req); len(violations) > 0 {
		metrics.OrdersTotal.WithLabelValues("validation_failed").Inc()
		logger(c).WithField("violations", len(violations)).Info("Order request rejected")
		c.JSON(http.StatusBadRequest, violations)
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), req.Lines())
	if err != nil {
		response := fallback.ResolveError(err)
		logger(c).WithFields(log.Fields{
			"origin": response.Origin,
			"status": response.Status,
		}).Info("Order creation answered by fallback")

		c.Header(fallback.HeaderOrigin, string(response.Origin))
		c.JSON(response.Status, response.Body)
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.service.GetOrderByID(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) deleteOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.service.DeleteOrderByID(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// getCircuitStatus returns the status of the creation circuit breaker
func (h *Handler) getCircuitStatus(c *gin.Context) {
	if h.breaker == nil {
		c.JSON(http.StatusOK, gin.H{"order_circuit": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_circuit": gin.H{
			"name":  "createOrder",
			"state": h.breaker.GetState(),
			"value": h.breaker.GetStateValue(),
		},
	})
}

// respondError renders business failures with their own status and code.
// Anything else is an internal error carrying its raw message.
func (h *Handler) respondError(c *gin.Context, err error) {
	var serviceErr *orders.ServiceError
	if errors.As(err, &serviceErr) {
		response := models.NewErrorResponse(serviceErr.Status, serviceErr.Message)
		response.ErrorCode = serviceErr.Code
		c.JSON(serviceErr.Status, response)
		return
	}

	logger(c).Error("Order request failed: ", err)
	c.JSON(http.StatusInternalServerError, models.NewErrorResponse(http.StatusInternalServerError, err.Error()))
}

func orderIDParam(c *gin.Context) (int64, bool) {
	raw := c.Param("orderId")
	orderID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(http.StatusBadRequest, "invalid order id: "+raw))
		return 0, false
	}
	return orderID, true
}

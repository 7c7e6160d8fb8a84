package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashendes/order-service/internal/fallback"
	"github.com/ashendes/order-service/internal/models"
	"github.com/ashendes/order-service/internal/orders"
	"github.com/ashendes/order-service/internal/patterns"
	"github.com/ashendes/order-service/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOrderService struct {
	mock.Mock
}

func (m *mockOrderService) CreateOrder(ctx context.Context, lines []models.OrderLine) (*models.Order, error) {
	args := m.Called(ctx, lines)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *mockOrderService) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	args := m.Called(ctx)
	all, _ := args.Get(0).([]models.Order)
	return all, args.Error(1)
}

func (m *mockOrderService) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *mockOrderService) DeleteOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

type fixedPricing map[int64]string

func (p fixedPricing) Quote(ctx context.Context, productID int64) (models.ProductQuote, error) {
	price, ok := p[productID]
	if !ok {
		return models.ProductQuote{}, fmt.Errorf("product %d unknown", productID)
	}
	return models.ProductQuote{ProductID: productID, UnitPrice: decimal.RequireFromString(price)}, nil
}

type fixedBreaker string

func (b fixedBreaker) GetState() string   { return string(b) }
func (b fixedBreaker) GetStateValue() int { return 1 }

func newTestRouter(service OrderService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	NewHandler(service, fixedBreaker("open")).Register(router)
	return router
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorMessages(t *testing.T, body []byte) []string {
	var payload []models.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &payload))
	messages := make([]string, 0, len(payload))
	for _, p := range payload {
		assert.Equal(t, http.StatusBadRequest, p.StatusCode)
		assert.False(t, p.Timestamp.IsZero())
		messages = append(messages, p.Message)
	}
	return messages
}

func TestHandler_CreateOrderValidation(t *testing.T) {
	testCases := map[string]struct {
		body             string
		expectedMessages []string
	}{
		"should report both constraints for a missing line list": {
			body: `{}`,
			expectedMessages: []string{
				"order lines must not be null",
				"order lines must not be empty",
			},
		},
		"should report both constraints for a null line list": {
			body: `{"orderLines": null}`,
			expectedMessages: []string{
				"order lines must not be null",
				"order lines must not be empty",
			},
		},
		"should report only the empty constraint for an empty line list": {
			body:             `{"orderLines": []}`,
			expectedMessages: []string{"order lines must not be empty"},
		},
		"should report only the maximum for a quantity above 1000": {
			body:             `{"orderLines": [{"productId": 1, "quantity": 1001}]}`,
			expectedMessages: []string{"quantity must not exceed 1000"},
		},
		"should report only not null for missing line fields": {
			body: `{"orderLines": [{}]}`,
			expectedMessages: []string{
				"product id must not be null",
				"quantity must not be null",
			},
		},
		"should report non positive values": {
			body: `{"orderLines": [{"productId": 0, "quantity": -1}]}`,
			expectedMessages: []string{
				"product id must be positive",
				"quantity must be positive",
			},
		},
		"should report violations of every line in order": {
			body: `{"orderLines": [{"productId": 1, "quantity": 1}, {"productId": -2, "quantity": 2000}]}`,
			expectedMessages: []string{
				"product id must be positive",
				"quantity must not exceed 1000",
			},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			service := &mockOrderService{}
			w := serve(newTestRouter(service), http.MethodPost, "/orders", tc.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.expectedMessages, errorMessages(t, w.Body.Bytes()))
			service.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestHandler_CreateOrderMalformedJSON(t *testing.T) {
	service := &mockOrderService{}
	w := serve(newTestRouter(service), http.MethodPost, "/orders", `{"orderLines": [`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var payload models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, http.StatusBadRequest, payload.StatusCode)
	assert.Contains(t, payload.Message, "malformed order request")
	service.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestHandler_CreateOrderFallbacks(t *testing.T) {
	testCases := map[string]struct {
		err            error
		expectedStatus int
		expectedOrigin fallback.Origin
	}{
		"should answer an open circuit with 503": {
			err:            fmt.Errorf("circuit breaker createOrder: %w", patterns.ErrCircuitOpen),
			expectedStatus: http.StatusServiceUnavailable,
			expectedOrigin: fallback.OriginCircuitOpen,
		},
		"should answer an exhausted retry budget with 400": {
			err:            fmt.Errorf("retry createOrder: %w", patterns.ErrRetryBudgetExhausted),
			expectedStatus: http.StatusBadRequest,
			expectedOrigin: fallback.OriginRetryBudgetExhausted,
		},
		"should answer a full bulkhead with 504": {
			err:            fmt.Errorf("bulkhead createOrder: %w", patterns.ErrCapacityExceeded),
			expectedStatus: http.StatusGatewayTimeout,
			expectedOrigin: fallback.OriginCapacityExceeded,
		},
		"should answer a throttled request with 429": {
			err:            fmt.Errorf("rate limiter createOrder: %w", patterns.ErrRateLimited),
			expectedStatus: http.StatusTooManyRequests,
			expectedOrigin: fallback.OriginRateLimited,
		},
		"should answer a timeout with 408": {
			err:            fmt.Errorf("time limiter createOrder: %w", patterns.ErrTimedOut),
			expectedStatus: http.StatusRequestTimeout,
			expectedOrigin: fallback.OriginTimedOut,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			service := &mockOrderService{}
			service.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, tc.err)

			w := serve(newTestRouter(service), http.MethodPost, "/orders",
				`{"orderLines": [{"productId": 1, "quantity": 2}]}`)

			assert.Equal(t, tc.expectedStatus, w.Code)
			assert.Equal(t, string(tc.expectedOrigin), w.Header().Get(fallback.HeaderOrigin))

			var placeholder models.Order
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &placeholder))
			assert.Equal(t, int64(1000), placeholder.OrderID)
			require.Len(t, placeholder.OrderLines, 1)
			assert.Equal(t, int64(1002), placeholder.OrderLines[0].ProductID)
		})
	}
}

func TestHandler_CreateOrderBusinessFailure(t *testing.T) {
	service := &mockOrderService{}
	service.On("CreateOrder", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: product 9 unknown", orders.ErrPricingFailed))

	w := serve(newTestRouter(service), http.MethodPost, "/orders",
		`{"orderLines": [{"productId": 9, "quantity": 1}]}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var payload models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, http.StatusInternalServerError, payload.StatusCode)
	assert.NotContains(t, payload.Message, "product 9")
}

func TestHandler_OrderLifecycle(t *testing.T) {
	service := orders.NewService(fixedPricing{1: "10.00", 2: "5.00"}, store.NewMemoryStore(), nil, nil)
	router := newTestRouter(service)

	w := serve(router, http.MethodGet, "/orders", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = serve(router, http.MethodPost, "/orders",
		`{"totalPrice": 1, "orderLines": [{"productId": 1, "quantity": 2}, {"productId": 2, "quantity": 3}]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, decimal.RequireFromString("35.00").Equal(created.TotalPrice))
	assert.NotZero(t, created.OrderID)
	assert.False(t, created.CreatedDate.IsZero())
	require.Len(t, created.OrderLines, 2)
	assert.NotNil(t, created.OrderLines[0].OrderLineID)

	path := fmt.Sprintf("/orders/%d", created.OrderID)

	w = serve(router, http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	var all []models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 1)

	w = serve(router, http.MethodGet, path, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	var deleted models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &deleted))
	assert.Equal(t, created.OrderID, deleted.OrderID)

	w = serve(router, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var notFound models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &notFound))
	assert.Equal(t, http.StatusNotFound, notFound.StatusCode)
	assert.Equal(t, orders.CodeGetOrderNotFound, notFound.ErrorCode)

	w = serve(router, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &notFound))
	assert.Equal(t, orders.CodeDeleteOrderNotFound, notFound.ErrorCode)
}

func TestHandler_InvalidOrderID(t *testing.T) {
	service := &mockOrderService{}
	router := newTestRouter(service)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w := serve(router, method, "/orders/abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code, method)
	}
	service.AssertNotCalled(t, "GetOrderByID", mock.Anything, mock.Anything)
	service.AssertNotCalled(t, "DeleteOrderByID", mock.Anything, mock.Anything)
}

func TestHandler_InternalErrorKeepsMessage(t *testing.T) {
	service := &mockOrderService{}
	service.On("GetOrderByID", mock.Anything, int64(4)).Return(nil, fmt.Errorf("get order 4: connection refused"))

	w := serve(newTestRouter(service), http.MethodGet, "/orders/4", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var payload models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "get order 4: connection refused", payload.Message)
}

func TestHandler_CircuitStatus(t *testing.T) {
	w := serve(newTestRouter(&mockOrderService{}), http.MethodGet, "/orders/circuit-status", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"order_circuit": {"name": "createOrder", "state": "open", "value": 1}}`, w.Body.String())
}

func TestRequestID(t *testing.T) {
	router := newTestRouter(&mockOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/circuit-status", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))

	w = serve(router, http.MethodGet, "/orders/circuit-status", "")
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
}

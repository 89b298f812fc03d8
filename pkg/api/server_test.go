package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orderdesk/orderdesk/pkg/api"
	"github.com/orderdesk/orderdesk/pkg/book"
	"github.com/orderdesk/orderdesk/pkg/storage"
)

func newTestServer(t *testing.T) (http.Handler, *book.Manager) {
	t.Helper()
	s, err := storage.Open(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	logger := zap.NewNop()
	orders := book.NewManager(s, logger)
	engine := book.NewEngine(s, logger)
	server := api.NewServer(orders, engine, nil, []string{"*"}, logger)
	return server.Handler(), orders
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAddAndGetOrder(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, "POST", "/orders/1", api.AddOrderRequest{Symbol: "XYZ", Side: "Buy", Amount: 10, Price: 99})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, "GET", "/orders/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got api.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, api.OrderResponse{ID: "1", Symbol: "XYZ", Side: "Buy", Amount: 10, Price: 99}, got)
}

func TestGetOrderNotFound(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, "GET", "/orders/404", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddOrderConflict(t *testing.T) {
	h, _ := newTestServer(t)

	body := api.AddOrderRequest{Symbol: "XYZ", Side: "Buy", Amount: 10, Price: 99}
	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/orders/1", body).Code)
	require.Equal(t, http.StatusConflict, do(t, h, "POST", "/orders/1", body).Code)
}

func TestAddOrderValidation(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, "POST", "/orders/1", api.AddOrderRequest{Symbol: "XYZ", Side: "Long", Amount: 10, Price: 99})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "POST", "/orders/1", api.AddOrderRequest{Symbol: "XYZ", Side: "Buy", Amount: 0, Price: 99})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "POST", "/orders/1", api.AddOrderRequest{Side: "Buy", Amount: 10, Price: 99})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModifyOrder(t *testing.T) {
	h, _ := newTestServer(t)

	require.Equal(t, http.StatusCreated,
		do(t, h, "POST", "/orders/1", api.AddOrderRequest{Symbol: "XYZ", Side: "Buy", Amount: 10, Price: 99}).Code)

	rec := do(t, h, "PATCH", "/orders/1", api.ModifyOrderRequest{Amount: 3, Price: 55})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, "GET", "/orders/1", nil)
	var got api.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, 3, got.Amount)
	require.Equal(t, 55, got.Price)

	rec = do(t, h, "PUT", "/orders/missing", api.ModifyOrderRequest{Amount: 3, Price: 55})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveOrder(t *testing.T) {
	h, _ := newTestServer(t)

	require.Equal(t, http.StatusCreated,
		do(t, h, "POST", "/orders/1", api.AddOrderRequest{Symbol: "XYZ", Side: "Buy", Amount: 10, Price: 99}).Code)
	require.Equal(t, http.StatusOK, do(t, h, "DELETE", "/orders/1", nil).Code)
	require.Equal(t, http.StatusNotFound, do(t, h, "DELETE", "/orders/1", nil).Code)
	require.Equal(t, http.StatusNotFound, do(t, h, "GET", "/orders/1", nil).Code)
}

func seedSellBook(t *testing.T, orders *book.Manager) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, orders.AddOrder(ctx, "s10", "XYZ", book.Sell, 5, 10))
	require.NoError(t, orders.AddOrder(ctx, "s12", "XYZ", book.Sell, 5, 12))
	require.NoError(t, orders.AddOrder(ctx, "s15", "XYZ", book.Sell, 5, 15))
}

func TestCalculatePriceEndpoint(t *testing.T) {
	h, orders := newTestServer(t)
	seedSellBook(t, orders)

	rec := do(t, h, "POST", "/trade/price", api.TradeRequest{Symbol: "XYZ", Side: "Buy", Amount: 8})
	require.Equal(t, http.StatusOK, rec.Code)

	var got api.TradePriceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got.Successful)
	require.Equal(t, 86, got.Price)
	require.False(t, got.Timestamp.IsZero())
}

func TestCalculatePriceInsufficientLiquidity(t *testing.T) {
	h, orders := newTestServer(t)
	seedSellBook(t, orders)

	rec := do(t, h, "POST", "/trade/price", api.TradeRequest{Symbol: "XYZ", Side: "Buy", Amount: 100})
	require.Equal(t, http.StatusOK, rec.Code)

	var got api.TradePriceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.False(t, got.Successful)
	require.NotEmpty(t, got.Reason)
}

func TestPlaceTradeEndpoint(t *testing.T) {
	h, orders := newTestServer(t)
	seedSellBook(t, orders)

	rec := do(t, h, "POST", "/trade", api.TradeRequest{Symbol: "XYZ", Side: "Buy", Amount: 8})
	require.Equal(t, http.StatusOK, rec.Code)

	var got api.TradeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got.Successful)

	// book mutated: best ask drained, next one reduced
	require.Equal(t, http.StatusNotFound, do(t, h, "GET", "/orders/s10", nil).Code)

	var partial api.OrderResponse
	rec = do(t, h, "GET", "/orders/s12", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &partial))
	require.Equal(t, 2, partial.Amount)
}

func TestPlaceTradeInsufficientLiquidity(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, "POST", "/trade", api.TradeRequest{Symbol: "XYZ", Side: "Buy", Amount: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	var got api.TradeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.False(t, got.Successful)
	require.NotEmpty(t, got.Reason)
}

func TestTradeValidation(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, "POST", "/trade", api.TradeRequest{Symbol: "XYZ", Side: "Hold", Amount: 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "POST", "/trade", api.TradeRequest{Symbol: "", Side: "Buy", Amount: 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "POST", "/trade/price", api.TradeRequest{Symbol: "XYZ", Side: "Buy", Amount: -5})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, h, "GET", "/health", nil).Code)
}

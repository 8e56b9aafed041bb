package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/farmtofork/coldchain/internal/cache"
	"github.com/farmtofork/coldchain/internal/config"
	"github.com/farmtofork/coldchain/internal/ledger"
	"github.com/farmtofork/coldchain/internal/models"
	"github.com/farmtofork/coldchain/internal/notify"
	"github.com/farmtofork/coldchain/internal/server"
	"github.com/farmtofork/coldchain/internal/service"
)

const (
	testUser = "admin"
	testPass = "secret"
)

func newTestServer(t *testing.T) (*httptest.Server, *ledger.Memory) {
	store := ledger.NewMemory()
	ctx := context.Background()

	assert.NoError(t, store.AddManufacturer(ctx, &models.Manufacturer{Addr: "0xmfg", Name: "Greenfield Dairy"}))
	assert.NoError(t, store.AddRetailer(ctx, &models.Retailer{Addr: "0xret", Name: "Corner Market"}))

	_, err := store.CreateProduct(ctx, &models.Product{
		Name:         "yogurt",
		Manufacturer: "0xmfg",
		Status:       models.ProductInStock,
		MinTemp:      2,
		MaxTemp:      6,
		Details: models.ProductDetails{
			Price:            50,
			TransportMode:    models.TransportRefrigerated,
			MinOrderQuantity: 1,
			MaxOrderQuantity: 100,
		},
	})
	assert.NoError(t, err)

	dedupe, err := notify.NewStore(filepath.Join(t.TempDir(), "notifications.json"), 0)
	assert.NoError(t, err)
	center := notify.NewCenter(dedupe, zerolog.Nop())

	svc := service.NewOrderService(store, cache.NewProductCache(store), nil, center, nil, zerolog.Nop())
	cfg := &config.Config{Username: testUser, Password: testPass, HTTPPort: "0"}
	srv := server.NewServer(svc, center, cfg, zerolog.Nop())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func doJSON(t *testing.T, method, url string, body interface{}, auth bool) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	assert.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.SetBasicAuth(testUser, testPass)
	}
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	return resp
}

func createOrderBody() map[string]interface{} {
	return map[string]interface{}{
		"retailer":        "0xret",
		"productId":       1,
		"quantity":        10,
		"deliveryDate":    time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02"),
		"deliveryTime":    "AM",
		"shippingAddress": "12 Harbor Road",
	}
}

func TestCreateOrderEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/orders", createOrderBody(), true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var o models.Order
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&o))
	assert.Equal(t, models.StatusAwaitingAcceptance, o.Status)
	assert.Equal(t, int64(500), o.Price)
}

func TestCreateOrderRequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/orders", createOrderBody(), false)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateOrderValidationMapsTo400(t *testing.T) {
	ts, _ := newTestServer(t)

	body := createOrderBody()
	body["quantity"] = 1000
	resp := doJSON(t, http.MethodPost, ts.URL+"/orders", body, true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetOrderAndTrack(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/orders", createOrderBody(), true)
	var o models.Order
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&o))
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/orders/1", nil, false)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2 := doJSON(t, http.MethodGet, ts.URL+"/orders/1/track", nil, false)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	var history []models.HistoryEntry
	assert.NoError(t, json.NewDecoder(resp2.Body).Decode(&history))
	assert.Len(t, history, 1)
}

func TestGetMissingOrderMapsTo404(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/orders/999", nil, false)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusUpdateFlowOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/orders", createOrderBody(), true)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPut, ts.URL+"/orders/1/status", map[string]string{
		"actor":  "0xmfg",
		"status": string(models.StatusAwaitingPayment),
	}, true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The same transition again conflicts.
	resp2 := doJSON(t, http.MethodPut, ts.URL+"/orders/1/status", map[string]string{
		"actor":  "0xmfg",
		"status": string(models.StatusAwaitingPayment),
	}, true)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusConflict, resp2.StatusCode)
}

func TestRejectEndpoint(t *testing.T) {
	ts, store := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/orders", createOrderBody(), true)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPut, ts.URL+"/orders/1/reject", map[string]string{
		"actor":  "0xmfg",
		"reason": "out of capacity",
	}, true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := store.GetOrderByID(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusRejectedManufacturer, got.Status)
	assert.Equal(t, "out of capacity", got.RejectionReason)
}

func TestWrongActorMapsTo403(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/orders", createOrderBody(), true)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPut, ts.URL+"/orders/1/status", map[string]string{
		"actor":  "0xret",
		"status": string(models.StatusAwaitingPayment),
	}, true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestNotificationsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/orders", createOrderBody(), true)
	resp.Body.Close()
	resp = doJSON(t, http.MethodPut, ts.URL+"/orders/1/reject", map[string]string{
		"actor":  "0xmfg",
		"reason": "out of capacity",
	}, true)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/notifications", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var active []notify.Notification
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&active))
	resp.Body.Close()
	assert.Len(t, active, 1)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/notifications", map[string]interface{}{
		"orderId":  1,
		"category": string(notify.CategoryRejection),
	}, true)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/notifications", nil, false)
	defer resp.Body.Close()
	var after []notify.Notification
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&after))
	assert.Empty(t, after)
}

func TestRegisterDistributorEndpoint(t *testing.T) {
	ts, store := newTestServer(t)

	d := models.Distributor{
		Addr:           "0xdist",
		Name:           "Polar Freight",
		IsRefrigerated: true,
		IsAM:           true,
	}
	d.WorkingDays[5] = true

	resp := doJSON(t, http.MethodPost, ts.URL+"/distributors", d, true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	role, err := store.RoleOf(context.Background(), "0xdist")
	assert.NoError(t, err)
	assert.Equal(t, models.RoleDistributor, role)
}
